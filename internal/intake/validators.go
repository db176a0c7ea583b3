package intake

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/diewo77/training-tracker/internal/models"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags
	notBlankTag         = "notblank"
	trainingTypeTag     = "training_type"
	locationTypeTag     = "location_type"
	idaClassTag         = "ida_class"
	requiredInternalTag = "required_internal"
	requiredExternalTag = "required_external"
	requiredOffsiteTag  = "required_offsite"
	requiredVirtualTag  = "required_virtual"
	endAfterStartTag    = "end_after_start"
	traineeRequiredTag  = "trainee_required"
	nonNegativeTag      = "non_negative"
)

// messages holds the wording shown to users, keyed by "<field>.<tag>".
// Keys with an empty field apply to every field carrying the tag.
var messages = map[string]string{
	"training_name.notblank":               "Training Name is required.",
	"training_type.required":               "Training Type is required.",
	"training_type.training_type":          "Please select a training type.",
	"location_type.required":               "Please select a location type.",
	"location_type.location_type":          "Please select a location type.",
	"start_date.required":                  "Start Date is required.",
	"start_date.datetime":                  "Not a valid date value.",
	"end_date.required":                    "End Date is required.",
	"end_date.datetime":                    "Not a valid date value.",
	"end_date.end_after_start":             "End date cannot be earlier than start date.",
	"training_description.notblank":        "Training Description is required.",
	"ida_class.required":                   "Training Class is required.",
	"ida_class.ida_class":                  "Not a valid choice.",
	"training_hours.required":              "Training Hours is required.",
	"training_hours.min":                   "Training Hours cannot be negative.",
	"trainer_name.required_internal":       "Trainer Name is required for internal training.",
	"trainer_email.required_internal":      "Trainer Email is required for internal training.",
	"trainer_department.required_internal": "Trainer Department is required for internal training.",
	"supplier_name.required_external":      "Supplier Name is required for external training.",
	"invoice_number.required_external":     "Invoice Number is required for external training.",
	"concur_claim.required_external":       "Concur Claim Number is required for external training.",
	"course_cost.required_external":        "Course Cost is required for external training.",
	"course_cost.non_negative":             "Value cannot be negative.",
	"location_details.required_offsite":    "Location Details is required for offsite training.",
	"attachments.required_virtual":         "At least one attachment is required for virtual training.",
	"trainees.trainee_required":            "At least one trainee must be added.",
	".notblank":                            "This field cannot be blank.",
}

// Instantiate the validator for use.
func init() {
	Validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = Validate.RegisterValidation(trainingTypeTag, oneOfValidation(models.TrainingInternal, models.TrainingExternal))
	_ = Validate.RegisterValidation(locationTypeTag, oneOfValidation(models.LocationOnsite, models.LocationOffsite, models.LocationVirtual))
	_ = Validate.RegisterValidation(idaClassTag, oneOfValidation(models.IdaClasses...))
	Validate.RegisterStructValidation(formInputStructValidation, FormInput{})

	registerCustomValidationsTranslations(
		notBlankTag, trainingTypeTag, locationTypeTag, idaClassTag,
		requiredInternalTag, requiredExternalTag, requiredOffsiteTag, requiredVirtualTag,
		endAfterStartTag, traineeRequiredTag, nonNegativeTag,
	)
}

// registerCustomValidationsTranslations registers a fallback message for the
// custom tags. The default translations are already registered, so a noop
// registration func is passed.
func registerCustomValidationsTranslations(tags ...string) {
	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range tags {
		_ = Validate.RegisterTranslation(tag, Translator, registerFn, translateCustomValidationErrs)
	}
}

func translateCustomValidationErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case trainingTypeTag, locationTypeTag, idaClassTag:
		return "not a valid choice"
	case requiredInternalTag:
		return "this field is required for internal training"
	case requiredExternalTag:
		return "this field is required for external training"
	case requiredOffsiteTag:
		return "this field is required for offsite training"
	case requiredVirtualTag:
		return "at least one attachment is required for virtual training"
	case endAfterStartTag:
		return "end date cannot be earlier than start date"
	case traineeRequiredTag:
		return "at least one trainee must be added"
	case nonNegativeTag:
		return "value cannot be negative"
	default:
		return ""
	}
}

// message returns the user-facing text for a field error.
func message(fe validator.FieldError) string {
	if m, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	if m, ok := messages["."+fe.Tag()]; ok {
		return m
	}
	return fe.Translate(Translator)
}

// Custom Validators

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func oneOfValidation(allowed ...string) validator.Func {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	return func(fl validator.FieldLevel) bool {
		return set[fl.Field().String()]
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// formInputStructValidation checks the rules that depend on training and location type.
func formInputStructValidation(sl validator.StructLevel) {
	in, ok := sl.Current().Interface().(FormInput)
	if !ok {
		return
	}

	switch in.TrainingType {
	case models.TrainingInternal:
		if blank(in.TrainerName) {
			sl.ReportError(in.TrainerName, "trainer_name", "TrainerName", requiredInternalTag, "")
		}
		if blank(in.TrainerEmail) {
			sl.ReportError(in.TrainerEmail, "trainer_email", "TrainerEmail", requiredInternalTag, "")
		}
		if blank(in.TrainerDepartment) {
			sl.ReportError(in.TrainerDepartment, "trainer_department", "TrainerDepartment", requiredInternalTag, "")
		}
	case models.TrainingExternal:
		if blank(in.SupplierName) {
			sl.ReportError(in.SupplierName, "supplier_name", "SupplierName", requiredExternalTag, "")
		}
		if blank(in.InvoiceNumber) {
			sl.ReportError(in.InvoiceNumber, "invoice_number", "InvoiceNumber", requiredExternalTag, "")
		}
		if blank(in.ConcurClaim) {
			sl.ReportError(in.ConcurClaim, "concur_claim", "ConcurClaim", requiredExternalTag, "")
		}
		switch {
		case in.CourseCost == nil:
			sl.ReportError(in.CourseCost, "course_cost", "CourseCost", requiredExternalTag, "")
		case *in.CourseCost < 0:
			sl.ReportError(in.CourseCost, "course_cost", "CourseCost", nonNegativeTag, "")
		}
	}

	switch in.LocationType {
	case models.LocationOffsite:
		if blank(in.LocationDetails) {
			sl.ReportError(in.LocationDetails, "location_details", "LocationDetails", requiredOffsiteTag, "")
		}
	case models.LocationVirtual:
		if in.AttachmentCount < 1 {
			sl.ReportError(in.AttachmentCount, "attachments", "AttachmentCount", requiredVirtualTag, "")
		}
	}

	if start, end, ok := in.dates(); ok && end.Before(start) {
		sl.ReportError(in.EndDate, "end_date", "EndDate", endAfterStartTag, "")
	}

	if !in.IsDraft && len(in.Trainees)+in.KeptTrainees == 0 && !in.traineesUnreadable {
		sl.ReportError(in.Trainees, "trainees", "Trainees", traineeRequiredTag, "")
	}
}
