package intake

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/internal/storage"
	"github.com/diewo77/training-tracker/validation"
)

// Child collection labels used in warnings.
const (
	ChildTrainees         = "trainees"
	ChildTravelExpenses   = "travel expenses"
	ChildMaterialExpenses = "material expenses"
)

// Decoded is a parsed request: the input plus the child collections whose
// JSON could not be read. A malformed child collection does not block the
// save of the form itself.
type Decoded struct {
	Input    *FormInput
	Warnings []string
}

// UnmarshalJSON reads course_cost and training_hours leniently: an empty
// string counts as absent.
func (in *FormInput) UnmarshalJSON(b []byte) error {
	type plain FormInput
	aux := struct {
		*plain
		TrainingHours Amount `json:"training_hours"`
		CourseCost    Amount `json:"course_cost"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	in.TrainingHours = aux.TrainingHours.Ptr()
	in.CourseCost = aux.CourseCost.Ptr()
	return nil
}

// IsJSON reports whether the request body is JSON.
func IsJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// Decode reads a form submission from a JSON body or from form values.
// maxMemory bounds the multipart parser and the size of an accepted upload.
func Decode(r *http.Request, maxMemory int64) (*Decoded, error) {
	if IsJSON(r) {
		var in FormInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return nil, errors.Wrap(err, "decode form json")
		}
		return &Decoded{Input: &in}, nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, errors.Wrap(err, "parse multipart form")
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, errors.Wrap(err, "parse form")
	}

	in := &FormInput{
		TrainingType:        r.FormValue("training_type"),
		TrainingName:        r.FormValue("training_name"),
		TrainerName:         r.FormValue("trainer_name"),
		TrainerEmail:        r.FormValue("trainer_email"),
		TrainerDepartment:   r.FormValue("trainer_department"),
		SupplierName:        r.FormValue("supplier_name"),
		LocationType:        r.FormValue("location_type"),
		LocationDetails:     r.FormValue("location_details"),
		StartDate:           r.FormValue("start_date"),
		EndDate:             r.FormValue("end_date"),
		InvoiceNumber:       r.FormValue("invoice_number"),
		ConcurClaim:         r.FormValue("concur_claim"),
		TrainingDescription: r.FormValue("training_description"),
		Notes:               r.FormValue("notes"),
		IdaClass:            r.FormValue("ida_class"),
		IsDraft:             formBool(r.FormValue("is_draft")),
		parseErrors:         validation.Violations{},
	}
	in.TrainingHours = in.formFloat("training_hours", r.FormValue("training_hours"))
	in.CourseCost = in.formFloat("course_cost", r.FormValue("course_cost"))
	if raw := r.FormValue("ready_for_approval"); raw != "" {
		ready := formBool(raw)
		in.ReadyForApproval = &ready
	}

	d := &Decoded{Input: in}
	if err := childJSON(r.FormValue("trainees_data"), &in.Trainees); err != nil {
		in.traineesUnreadable = true
		d.Warnings = append(d.Warnings, ChildTrainees)
	}
	if err := childJSON(r.FormValue("travel_expenses_data"), &in.TravelExpenses); err != nil {
		d.Warnings = append(d.Warnings, ChildTravelExpenses)
	}
	if err := childJSON(r.FormValue("material_expenses_data"), &in.MaterialExpenses); err != nil {
		d.Warnings = append(d.Warnings, ChildMaterialExpenses)
	}
	in.AttachmentCount = UploadCount(r, maxMemory)
	return d, nil
}

// UploadCount counts the uploaded attachment files that storage will accept:
// a usable name, an allowed extension and at most maxSize bytes.
func UploadCount(r *http.Request, maxSize int64) int {
	if r.MultipartForm == nil {
		return 0
	}
	n := 0
	for _, fh := range r.MultipartForm.File["attachments"] {
		if fh == nil {
			continue
		}
		if _, err := storage.CheckUpload(fh, maxSize); err == nil {
			n++
		}
	}
	return n
}

func childJSON[T any](raw string, dst *[]T) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var rows []T
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return err
	}
	*dst = rows
	return nil
}

func (in *FormInput) formFloat(field, raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		in.parseErrors.Add(field, "Not a valid float value.")
		return nil
	}
	return &v
}

func formBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "yes", "y":
		return true
	}
	return false
}

// WarningMessage is the flash shown when a child collection could not be saved.
func WarningMessage(child string, updated bool) string {
	verb := "submitted"
	if updated {
		verb = "updated"
	}
	return "Warning: There was an issue processing " + child + ", but the form was " + verb + " successfully."
}
