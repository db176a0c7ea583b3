package intake

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/training-tracker/internal/models"
)

func f64(v float64) *float64 { return &v }

func validInternal() *FormInput {
	return &FormInput{
		TrainingType:        models.TrainingInternal,
		TrainingName:        "Safety 101",
		TrainerName:         "Jane Trainer",
		TrainerEmail:        "jane@example.com",
		TrainerDepartment:   "Quality",
		LocationType:        models.LocationOnsite,
		StartDate:           "2024-01-10",
		EndDate:             "2024-01-10",
		TrainingHours:       f64(4),
		TrainingDescription: "Induction",
		IdaClass:            "Class A - QQI Certified L1-10",
		Trainees:            []TraineeInput{{Name: "Ann", Email: "ann@example.com"}},
	}
}

func validExternal() *FormInput {
	return &FormInput{
		TrainingType:        models.TrainingExternal,
		TrainingName:        "Lean",
		SupplierName:        "Acme",
		LocationType:        models.LocationOffsite,
		LocationDetails:     "Dublin",
		StartDate:           "2024-05-02",
		EndDate:             "2024-05-03",
		TrainingHours:       f64(16),
		CourseCost:          f64(950),
		InvoiceNumber:       "INV-1",
		ConcurClaim:         "CC-1",
		TrainingDescription: "Lean six sigma",
		IdaClass:            "Class B - Industry Certified",
		Trainees:            []TraineeInput{{Name: "Bob"}},
	}
}

func TestValidate_ValidInputs(t *testing.T) {
	assert.Empty(t, validInternal().Validate())
	assert.Empty(t, validExternal().Validate())
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *FormInput)
		field  string
		msg    string
	}{
		{"blank training name", func(in *FormInput) { in.TrainingName = "  " }, "training_name", "Training Name is required."},
		{"missing trainer", func(in *FormInput) { in.TrainerName = "" }, "trainer_name", "Trainer Name is required for internal training."},
		{"missing trainer email", func(in *FormInput) { in.TrainerEmail = "" }, "trainer_email", "Trainer Email is required for internal training."},
		{"end before start", func(in *FormInput) { in.EndDate = "2024-01-09" }, "end_date", "End date cannot be earlier than start date."},
		{"bad date", func(in *FormInput) { in.StartDate = "10/01/2024" }, "start_date", "Not a valid date value."},
		{"negative hours", func(in *FormInput) { in.TrainingHours = f64(-1) }, "training_hours", "Training Hours cannot be negative."},
		{"missing hours", func(in *FormInput) { in.TrainingHours = nil }, "training_hours", "Training Hours is required."},
		{"unknown location", func(in *FormInput) { in.LocationType = "Moon" }, "location_type", "Please select a location type."},
		{"offsite without details", func(in *FormInput) { in.LocationType = models.LocationOffsite }, "location_details", "Location Details is required for offsite training."},
		{"virtual without attachment", func(in *FormInput) { in.LocationType = models.LocationVirtual }, "attachments", "At least one attachment is required for virtual training."},
		{"no trainees", func(in *FormInput) { in.Trainees = nil }, "trainees", "At least one trainee must be added."},
		{"unknown ida class", func(in *FormInput) { in.IdaClass = "Class Z" }, "ida_class", "Not a valid choice."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInternal()
			tt.mutate(in)
			v := in.Validate()
			assert.Equal(t, tt.msg, v[tt.field], "violations: %v", v)
		})
	}
}

func TestValidate_ExternalRules(t *testing.T) {
	in := validExternal()
	in.SupplierName = ""
	in.InvoiceNumber = ""
	in.ConcurClaim = ""
	in.CourseCost = nil
	v := in.Validate()
	assert.Equal(t, "Supplier Name is required for external training.", v["supplier_name"])
	assert.Equal(t, "Invoice Number is required for external training.", v["invoice_number"])
	assert.Equal(t, "Concur Claim Number is required for external training.", v["concur_claim"])
	assert.Equal(t, "Course Cost is required for external training.", v["course_cost"])

	in = validExternal()
	in.CourseCost = f64(-10)
	assert.Equal(t, "Value cannot be negative.", in.Validate()["course_cost"])

	in = validExternal()
	in.CourseCost = f64(0)
	assert.Empty(t, in.Validate(), "zero cost is allowed")
}

func TestValidate_DraftNeedsNoTrainee(t *testing.T) {
	in := validInternal()
	in.Trainees = nil
	in.IsDraft = true
	assert.Empty(t, in.Validate())
}

func TestValidate_VirtualWithAttachment(t *testing.T) {
	in := validInternal()
	in.LocationType = models.LocationVirtual
	in.AttachmentCount = 1
	assert.Empty(t, in.Validate())
}

func TestToRecord_ClearsFieldsByType(t *testing.T) {
	in := validInternal()
	in.SupplierName = "Leftover supplier"
	in.InvoiceNumber = "INV-9"
	in.CourseCost = f64(300)
	in.LocationDetails = "Ignored"
	f := in.ToRecord("sub@example.com")
	assert.Nil(t, f.SupplierName)
	assert.Nil(t, f.InvoiceNumber)
	assert.Nil(t, f.LocationDetails)
	assert.Zero(t, f.CourseCost)
	require.NotNil(t, f.TrainerName)
	assert.Equal(t, "Jane Trainer", *f.TrainerName)
	assert.Equal(t, "sub@example.com", f.Submitter)
	assert.Equal(t, "2024-01-10", f.Start().Format(DateLayout))

	ex := validExternal()
	ex.TrainerName = "Leftover trainer"
	g := ex.ToRecord("sub@example.com")
	assert.Nil(t, g.TrainerName)
	assert.Nil(t, g.TrainerEmail)
	require.NotNil(t, g.SupplierName)
	require.NotNil(t, g.LocationDetails)
	assert.Equal(t, "Dublin", *g.LocationDetails)
	assert.Equal(t, 950.0, g.CourseCost)
	assert.False(t, g.ReadySet)

	ready := true
	ex.ReadyForApproval = &ready
	assert.True(t, ex.ToRecord("x").ReadySet)
}

func TestDecode_JSONBlankCourseCost(t *testing.T) {
	body := `{"training_type":"External Training","training_name":"Lean","supplier_name":"Acme",
		"location_type":"Onsite","start_date":"2024-05-02","end_date":"2024-05-02",
		"training_hours":"8","course_cost":"","invoice_number":"I","concur_claim":"C",
		"training_description":"d","ida_class":"Not sure","trainees":[{"name":"Ann"}]}`
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	d, err := Decode(req, 1<<20)
	require.NoError(t, err)
	assert.Nil(t, d.Input.CourseCost)
	require.NotNil(t, d.Input.TrainingHours)
	assert.Equal(t, 8.0, *d.Input.TrainingHours)
	assert.Equal(t, "Course Cost is required for external training.", d.Input.Validate()["course_cost"])
}

func TestDecode_FormValues(t *testing.T) {
	form := url.Values{
		"training_type":          {models.TrainingInternal},
		"training_name":          {"Safety 101"},
		"trainer_name":           {"Jane"},
		"trainer_email":          {"jane@example.com"},
		"trainer_department":     {"Quality"},
		"location_type":          {models.LocationOnsite},
		"start_date":             {"2024-01-10"},
		"end_date":               {"2024-01-10"},
		"training_hours":         {"4"},
		"course_cost":            {""},
		"training_description":   {"Induction"},
		"ida_class":              {"Class C - Internal Certificate"},
		"trainees_data":          {`[{"name":"Ann","email":"ann@example.com","department":"Ops"}]`},
		"travel_expenses_data":   {`[{"travel_date":"2024-01-10","destination":"Cork","travel_mode":"rail","cost":"12.50","distance_km":null}]`},
		"material_expenses_data": {`not json`},
	}
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	d, err := Decode(req, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, []string{ChildMaterialExpenses}, d.Warnings)
	assert.Empty(t, d.Input.Validate())
	assert.Nil(t, d.Input.CourseCost)

	travel, err := d.Input.TravelRows()
	require.NoError(t, err)
	require.Len(t, travel, 1)
	require.NotNil(t, travel[0].Cost)
	assert.Equal(t, 12.5, *travel[0].Cost)
	assert.Nil(t, travel[0].DistanceKm)

	trainees := d.Input.TraineeRows()
	require.Len(t, trainees, 1)
	assert.Equal(t, "Ops", trainees[0].Department)
}

func TestDecode_UnreadableTraineesDoNotBlockSave(t *testing.T) {
	form := url.Values{
		"training_type":        {models.TrainingInternal},
		"training_name":        {"Safety 101"},
		"trainer_name":         {"Jane"},
		"trainer_email":        {"jane@example.com"},
		"trainer_department":   {"Quality"},
		"location_type":        {models.LocationOnsite},
		"start_date":           {"2024-01-10"},
		"end_date":             {"2024-01-10"},
		"training_hours":       {"abc"},
		"training_description": {"Induction"},
		"ida_class":            {"Not sure"},
		"trainees_data":        {`[{"name":`},
	}
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	d, err := Decode(req, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, []string{ChildTrainees}, d.Warnings)
	v := d.Input.Validate()
	assert.NotContains(t, v, "trainees")
	assert.Equal(t, "Not a valid float value.", v["training_hours"])
}

func TestDecode_MultipartCountsUploads(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("location_type", models.LocationVirtual)
	fw, err := mw.CreateFormFile("attachments", "certificate.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/submit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	d, err := Decode(req, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Input.AttachmentCount)
	assert.NotContains(t, d.Input.Validate(), "attachments")
}

func TestDecode_MultipartSkipsRejectedUploads(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		size    int
		maxSize int64
		want    int
	}{
		{"accepted", "agenda.docx", 10, 1 << 20, 1},
		{"disallowed extension", "setup.exe", 10, 1 << 20, 0},
		{"name sanitizes to nothing", "___", 10, 1 << 20, 0},
		{"over the size cap", "scan.pdf", 2048, 1024, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			_ = mw.WriteField("location_type", models.LocationVirtual)
			fw, err := mw.CreateFormFile("attachments", tt.file)
			require.NoError(t, err)
			_, _ = fw.Write(bytes.Repeat([]byte("x"), tt.size))
			require.NoError(t, mw.Close())

			req := httptest.NewRequest(http.MethodPost, "/submit", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			d, err := Decode(req, tt.maxSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Input.AttachmentCount)
			if tt.want == 0 {
				assert.Equal(t, "At least one attachment is required for virtual training.", d.Input.Validate()["attachments"])
			}
		})
	}
}

func TestValidate_KeptTraineesSatisfyTraineeRule(t *testing.T) {
	in := validInternal()
	in.Trainees = nil
	in.KeptTrainees = 2
	assert.NotContains(t, in.Validate(), "trainees")

	in.KeptTrainees = 0
	assert.Equal(t, "At least one trainee must be added.", in.Validate()["trainees"])
}

func TestFromRecordRoundTrip(t *testing.T) {
	in := validExternal()
	in.TravelExpenses = []TravelExpenseInput{{TravelDate: "2024-05-02", Destination: "Dublin", Cost: Amount{Value: 20, Valid: true}}}
	f := in.ToRecord("sub@example.com")
	travel, err := in.TravelRows()
	require.NoError(t, err)
	f.TravelExpenses = travel

	back := FromRecord(f)
	assert.Equal(t, in.SupplierName, back.SupplierName)
	assert.Equal(t, in.StartDate, back.StartDate)
	require.NotNil(t, back.CourseCost)
	assert.Equal(t, 950.0, *back.CourseCost)
	require.Len(t, back.TravelExpenses, 1)
	assert.Equal(t, 20.0, back.TravelExpenses[0].Cost.Value)
}

func TestWarningMessage(t *testing.T) {
	assert.Equal(t,
		"Warning: There was an issue processing trainees, but the form was updated successfully.",
		WarningMessage(ChildTrainees, true))
}
