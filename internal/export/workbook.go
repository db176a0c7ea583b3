package export

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/diewo77/training-tracker/internal/models"
)

// ErrTemplateNotFound is returned when the Claim 5 template is missing.
var ErrTemplateNotFound = errors.New("claim 5 template not found")

// Template sheets and the first data row of each.
const (
	SheetTrainee          = "Trainee"
	SheetExternalTrainer  = "External Trainer"
	SheetInternalTrainers = "Internal Trainers"
	SheetPersonnel        = "Personnel Costs Lookup Table"
	SheetTravel           = "Travel"
	SheetMaterials        = "Materials"

	firstTraineeRow         = 16
	firstExternalTrainerRow = 8
	firstInternalTrainerRow = 9
	firstPersonnelRow       = 3
	firstTravelRow          = 12
	firstMaterialsRow       = 14
)

// Sheets lists every sheet the template must contain.
var Sheets = []string{SheetTrainee, SheetExternalTrainer, SheetInternalTrainers, SheetPersonnel, SheetTravel, SheetMaterials}

// Summary reports what an export wrote.
type Summary struct {
	Forms     int
	Trainees  int
	Personnel int
}

// person is one line of the personnel roster.
type person struct {
	name       string
	department string
}

// roster keeps people in first-seen order. A name already present is not
// added again, even with a different department.
type roster struct {
	people []person
	seen   map[string]bool
}

func (r *roster) add(name, department string) {
	if name == "" || r.seen[name] {
		return
	}
	if r.seen == nil {
		r.seen = map[string]bool{}
	}
	r.seen[name] = true
	r.people = append(r.people, person{name: name, department: department})
}

// workbook writes cells and keeps the first error.
type workbook struct {
	f   *excelize.File
	err error
}

func (w *workbook) set(sheet string, col, row int, v any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellValue(sheet, cell, v); err != nil {
		w.err = errors.Wrapf(err, "write %s!%s", sheet, cell)
	}
}

// Build fills a copy of the template at templatePath with forms and returns
// the serialized workbook. Any failure aborts the whole export.
func Build(templatePath string, forms []models.TrainingForm) ([]byte, Summary, error) {
	var sum Summary
	if _, err := os.Stat(templatePath); err != nil {
		if os.IsNotExist(err) {
			return nil, sum, ErrTemplateNotFound
		}
		return nil, sum, errors.Wrap(err, "stat claim 5 template")
	}
	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return nil, sum, errors.Wrap(err, "open claim 5 template")
	}
	defer f.Close()

	for _, name := range Sheets {
		idx, err := f.GetSheetIndex(name)
		if err != nil || idx < 0 {
			return nil, sum, errors.Errorf("claim 5 template has no %q sheet", name)
		}
	}

	w := &workbook{f: f}
	var people roster
	traineeRow := firstTraineeRow
	externalRow := firstExternalTrainerRow
	internalRow := firstInternalTrainerRow
	travelRow := firstTravelRow
	materialsRow := firstMaterialsRow

	for i := range forms {
		form := &forms[i]
		internal := form.IsInternal()
		trainerName := models.LocalPart(models.Deref(form.TrainerEmail))
		trainerDept := models.Deref(form.TrainerDepartment)

		for _, t := range form.Trainees {
			name := traineeName(t)
			people.add(name, t.Department)

			w.set(SheetTrainee, 1, traineeRow, name)
			w.set(SheetTrainee, 2, traineeRow, form.TrainingName)
			w.set(SheetTrainee, 3, traineeRow, CertificationClass(form.IdaClass))
			w.set(SheetTrainee, 5, traineeRow, form.TrainingHours)
			w.set(SheetTrainee, 8, traineeRow, day(form.Start()))
			w.set(SheetTrainee, 9, traineeRow, day(form.End()))
			if internal {
				people.add(trainerName, trainerDept)
				w.set(SheetTrainee, 10, traineeRow, trainerName)
				w.set(SheetTrainee, 11, traineeRow, "")
			} else {
				w.set(SheetTrainee, 10, traineeRow, "")
				w.set(SheetTrainee, 11, traineeRow, models.Deref(form.SupplierName))
			}
			traineeRow++
			sum.Trainees++
		}

		for _, e := range form.TravelExpenses {
			cost := 0.0
			if e.Cost != nil {
				cost = *e.Cost
			}
			w.set(SheetTravel, 1, travelRow, day(time.Time(e.TravelDate)))
			w.set(SheetTravel, 2, travelRow, models.LocalPart(e.TravelerEmail))
			w.set(SheetTravel, 3, travelRow, TravelModeLabel(e.TravelMode))
			w.set(SheetTravel, 5, travelRow, cost)
			w.set(SheetTravel, 6, travelRow, "Destination: "+e.Destination+", Course Details: "+form.TrainingName)
			travelRow++
		}

		for _, e := range form.MaterialExpenses {
			w.set(SheetMaterials, 1, materialsRow, day(time.Time(e.PurchaseDate)))
			w.set(SheetMaterials, 2, materialsRow, e.SupplierName)
			w.set(SheetMaterials, 3, materialsRow, e.InvoiceNumber)
			w.set(SheetMaterials, 5, materialsRow, e.MaterialCost)
			w.set(SheetMaterials, 6, materialsRow, form.TrainingName)
			materialsRow++
		}

		if internal {
			people.add(trainerName, trainerDept)
			w.set(SheetInternalTrainers, 1, internalRow, trainerName)
			w.set(SheetInternalTrainers, 3, internalRow, form.TrainingName)
			w.set(SheetInternalTrainers, 4, internalRow, form.TrainingHours)
			internalRow++
		} else {
			w.set(SheetExternalTrainer, 1, externalRow, day(form.Start()))
			w.set(SheetExternalTrainer, 2, externalRow, models.Deref(form.SupplierName))
			w.set(SheetExternalTrainer, 3, externalRow, models.Deref(form.InvoiceNumber))
			w.set(SheetExternalTrainer, 4, externalRow, form.TrainingName)
			w.set(SheetExternalTrainer, 5, externalRow, form.CourseCost)
			w.set(SheetExternalTrainer, 6, externalRow, form.TrainingDescription)
			externalRow++
		}
		sum.Forms++
	}

	row := firstPersonnelRow
	for _, p := range people.people {
		w.set(SheetPersonnel, 2, row, p.name)
		w.set(SheetPersonnel, 3, row, p.department)
		row++
	}
	sum.Personnel = len(people.people)

	if w.err != nil {
		return nil, sum, w.err
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, sum, errors.Wrap(err, "serialize claim 5 workbook")
	}
	return buf.Bytes(), sum, nil
}

// traineeName is the local part of the trainee's email. A trainee without
// an email gets an empty name cell and stays off the personnel sheet.
func traineeName(t models.Trainee) string {
	return models.LocalPart(strings.TrimSpace(t.Email))
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
