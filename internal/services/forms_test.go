package services

import (
	"testing"
	"time"

	"github.com/diewo77/training-tracker/internal/models"
)

func TestInsertDerivesReadinessAndSubmissionDate(t *testing.T) {
	db := setupTestDB(t)
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewFormService(db).WithClock(func() time.Time { return fixed })

	f := internalForm("Safety 101", "sub@example.com")
	f.IdaClass = models.IdaClassNotSure
	id := mustInsert(t, svc, f)

	got, err := svc.Get(t.Context(), id, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReadyForApproval {
		t.Fatal("form with ida_class Not sure must not be ready")
	}
	if !got.SubmissionDate.Equal(fixed) {
		t.Fatalf("submission date = %s, want %s", got.SubmissionDate, fixed)
	}
	if got.SupplierName != nil {
		t.Fatalf("internal form must keep supplier null, got %q", *got.SupplierName)
	}
}

func TestInsertKeepsExplicitReadiness(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFormService(db)

	f := internalForm("Course", "sub@example.com")
	f.Notes = "NA"
	f.ReadyForApproval = true
	f.ReadySet = true
	id := mustInsert(t, svc, f)

	got, _ := svc.Get(t.Context(), id, false)
	if !got.ReadyForApproval {
		t.Fatal("explicit readiness must be kept")
	}
}

func TestUpdateOverwritesScalarsAndKeepsSubmitter(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFormService(db)
	id := mustInsert(t, svc, internalForm("Old name", "owner@example.com"))

	upd := externalForm("New name", "someone-else@example.com")
	ok, err := svc.Update(t.Context(), id, upd)
	if err != nil || !ok {
		t.Fatalf("update ok=%v err=%v", ok, err)
	}
	got, _ := svc.Get(t.Context(), id, false)
	if got.TrainingName != "New name" || got.TrainingType != models.TrainingExternal {
		t.Fatalf("scalars not updated: %+v", got)
	}
	if got.TrainerName != nil || got.TrainerEmail != nil {
		t.Fatal("trainer fields must be cleared when switching to external")
	}
	if got.Submitter != "owner@example.com" {
		t.Fatalf("submitter changed to %q", got.Submitter)
	}
	if got.CourseCost != 950 {
		t.Fatalf("course cost = %v", got.CourseCost)
	}

	ok, err = svc.Update(t.Context(), 9999, upd)
	if err != nil || ok {
		t.Fatalf("update of missing form: ok=%v err=%v", ok, err)
	}
}

func TestReplaceTraineesIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFormService(db)
	id := mustInsert(t, svc, internalForm("Course", "sub@example.com"))

	if err := svc.InsertTrainees(t.Context(), id, []models.Trainee{{Name: "Old", Email: "old@example.com"}}); err != nil {
		t.Fatalf("insert trainees: %v", err)
	}
	rows := []models.Trainee{
		{Name: "Ann", Email: "ann@example.com", Department: "Ops"},
		{Name: "Bob", Email: "bob@example.com"},
	}
	for i := 0; i < 2; i++ {
		if err := svc.ReplaceTrainees(t.Context(), id, rows); err != nil {
			t.Fatalf("replace #%d: %v", i+1, err)
		}
	}
	got, _ := svc.Get(t.Context(), id, false)
	if len(got.Trainees) != 2 {
		t.Fatalf("expected 2 trainees, got %d", len(got.Trainees))
	}
	if got.Trainees[0].Name != "Ann" || got.Trainees[1].Department != DefaultDepartment {
		t.Fatalf("unexpected trainees: %+v", got.Trainees)
	}
	if rows[1].FormID != 0 {
		t.Fatal("caller rows must not be mutated")
	}
}

func TestChildBatchRollsBackOnInvalidRow(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFormService(db)
	id := mustInsert(t, svc, internalForm("Course", "sub@example.com"))

	if err := svc.InsertTrainees(t.Context(), id, []models.Trainee{{Name: "Keep"}}); err != nil {
		t.Fatalf("seed trainee: %v", err)
	}
	err := svc.ReplaceTrainees(t.Context(), id, []models.Trainee{{Name: "Ann"}, {Name: " ", Email: ""}})
	if err == nil {
		t.Fatal("expected error for trainee without name or email")
	}
	got, _ := svc.Get(t.Context(), id, false)
	if len(got.Trainees) != 1 || got.Trainees[0].Name != "Keep" {
		t.Fatalf("replace must roll back, got %+v", got.Trainees)
	}

	cost := -5.0
	err = svc.InsertTravelExpenses(t.Context(), id, []models.TravelExpense{
		{TravelDate: date("2024-01-10"), Destination: "Cork"},
		{TravelDate: date("2024-01-11"), Cost: &cost},
	})
	if err == nil {
		t.Fatal("expected error for negative travel cost")
	}
	var count int64
	db.Model(&models.TravelExpense{}).Count(&count)
	if count != 0 {
		t.Fatalf("travel batch must roll back, found %d rows", count)
	}
}

func TestReplaceExpenses(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFormService(db)
	id := mustInsert(t, svc, externalForm("Course", "sub@example.com"))

	cost := 42.5
	if err := svc.ReplaceTravelExpenses(t.Context(), id, []models.TravelExpense{
		{TravelDate: date("2024-05-01"), Destination: "Berlin", TravelerEmail: "ann@example.com", TravelMode: models.TravelRail, Cost: &cost},
	}); err != nil {
		t.Fatalf("travel: %v", err)
	}
	if err := svc.ReplaceMaterialExpenses(t.Context(), id, []models.MaterialExpense{
		{PurchaseDate: date("2024-04-20"), SupplierName: "Books Inc", InvoiceNumber: "B-1", MaterialCost: 30},
		{PurchaseDate: date("2024-04-21"), SupplierName: "Books Inc", InvoiceNumber: "B-2", MaterialCost: 12},
	}); err != nil {
		t.Fatalf("materials: %v", err)
	}
	if err := svc.ReplaceMaterialExpenses(t.Context(), id, nil); err != nil {
		t.Fatalf("clear materials: %v", err)
	}
	got, _ := svc.Get(t.Context(), id, false)
	if len(got.TravelExpenses) != 1 || *got.TravelExpenses[0].Cost != 42.5 {
		t.Fatalf("unexpected travel rows: %+v", got.TravelExpenses)
	}
	if len(got.MaterialExpenses) != 0 {
		t.Fatalf("materials must be cleared, got %d", len(got.MaterialExpenses))
	}
}

func TestSoftDeleteAndRecover(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := NewFormService(db).WithClock(func() time.Time { return now })
	id := mustInsert(t, svc, internalForm("Course", "sub@example.com"))

	if approved, err := svc.ToggleApproval(t.Context(), id); err != nil || !approved {
		t.Fatalf("toggle: approved=%v err=%v", approved, err)
	}
	ok, err := svc.SoftDelete(t.Context(), id)
	if err != nil || !ok {
		t.Fatalf("soft delete ok=%v err=%v", ok, err)
	}
	if ok, _ := svc.SoftDelete(t.Context(), id); ok {
		t.Fatal("second soft delete must report false")
	}
	if _, err := svc.Get(t.Context(), id, false); err != ErrFormNotFound {
		t.Fatalf("deleted form must be hidden, err=%v", err)
	}
	got, err := svc.Get(t.Context(), id, true)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if !got.Deleted || got.Approved || got.DeletedDatetimestamp == nil || !got.DeletedDatetimestamp.Equal(now) {
		t.Fatalf("unexpected deleted state: %+v", got)
	}
	if _, err := svc.ToggleApproval(t.Context(), id); err != ErrFormNotFound {
		t.Fatalf("deleted form cannot be approved, err=%v", err)
	}

	ok, err = svc.Recover(t.Context(), id)
	if err != nil || !ok {
		t.Fatalf("recover ok=%v err=%v", ok, err)
	}
	got, _ = svc.Get(t.Context(), id, false)
	if got.Deleted || got.DeletedDatetimestamp != nil {
		t.Fatalf("recover must clear deletion: %+v", got)
	}
	if got.Approved {
		t.Fatal("recover must not restore approval")
	}
	if ok, _ := svc.Recover(t.Context(), id); ok {
		t.Fatal("recovering a live form must report false")
	}
}

func TestListDeleteStatusFilters(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFormService(db)

	approved := mustInsert(t, svc, internalForm("Approved", "a@example.com"))
	if _, err := svc.ToggleApproval(t.Context(), approved); err != nil {
		t.Fatal(err)
	}
	mustInsert(t, svc, internalForm("Pending", "a@example.com"))
	draft := internalForm("Draft", "a@example.com")
	draft.IsDraft = true
	mustInsert(t, svc, draft)
	deleted := mustInsert(t, svc, internalForm("Deleted", "b@example.com"))
	if _, err := svc.SoftDelete(t.Context(), deleted); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		status string
		want   int64
	}{
		{"", 3},
		{StatusNotDeleted, 3},
		{StatusAll, 4},
		{StatusDeleted, 1},
		{StatusApproved, 1},
		{StatusUnapproved, 1},
		{StatusDraft, 1},
	}
	for _, tt := range tests {
		_, total, err := svc.List(t.Context(), Filter{DeleteStatus: tt.status})
		if err != nil {
			t.Fatalf("list %q: %v", tt.status, err)
		}
		if total != tt.want {
			t.Errorf("delete_status %q: total = %d, want %d", tt.status, total, tt.want)
		}
	}
}

func TestApproveThenDeleteVisibility(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFormService(db)
	id := mustInsert(t, svc, internalForm("Course", "a@example.com"))
	if _, err := svc.ToggleApproval(t.Context(), id); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SoftDelete(t.Context(), id); err != nil {
		t.Fatal(err)
	}

	forms, total, _ := svc.List(t.Context(), Filter{DeleteStatus: StatusAll})
	if total != 1 || !forms[0].Deleted || forms[0].Approved {
		t.Fatalf("all listing: total=%d forms=%+v", total, forms)
	}
	_, total, _ = svc.List(t.Context(), Filter{})
	if total != 0 {
		t.Fatalf("default listing must hide deleted forms, total=%d", total)
	}
}

func TestListSearchDatesTypeAndSort(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFormService(db)

	a := internalForm("Forklift Safety", "a@example.com")
	a.StartDate, a.EndDate = date("2024-01-10"), date("2024-01-11")
	mustInsert(t, svc, a)
	b := externalForm("Excel Advanced", "b@example.com")
	b.StartDate, b.EndDate = date("2024-03-01"), date("2024-03-02")
	b.CourseCost = 300
	mustInsert(t, svc, b)
	c := externalForm("Leadership", "a@example.com")
	c.StartDate, c.EndDate = date("2024-06-01"), date("2024-06-30")
	c.CourseCost = 1200
	mustInsert(t, svc, c)

	forms, total, _ := svc.List(t.Context(), Filter{Search: "FORKLIFT"})
	if total != 1 || forms[0].TrainingName != "Forklift Safety" {
		t.Fatalf("search: total=%d", total)
	}
	_, total, _ = svc.List(t.Context(), Filter{Search: "acme"})
	if total != 2 {
		t.Fatalf("search supplier: total=%d", total)
	}

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	forms, total, _ = svc.List(t.Context(), Filter{DateFrom: &from, DateTo: &to})
	if total != 1 || forms[0].TrainingName != "Excel Advanced" {
		t.Fatalf("date range: total=%d", total)
	}

	_, total, _ = svc.List(t.Context(), Filter{TrainingType: models.TrainingExternal})
	if total != 2 {
		t.Fatalf("type filter: total=%d", total)
	}

	forms, _, _ = svc.List(t.Context(), Filter{SortBy: "cost", SortOrder: "ASC"})
	if forms[0].TrainingName != "Forklift Safety" || forms[2].TrainingName != "Leadership" {
		t.Fatalf("cost sort: %s, %s, %s", forms[0].TrainingName, forms[1].TrainingName, forms[2].TrainingName)
	}
	forms, _, _ = svc.List(t.Context(), Filter{SortBy: "start_date; DROP TABLE training_forms"})
	if len(forms) != 3 {
		t.Fatalf("unknown sort column must fall back, got %d forms", len(forms))
	}

	forms, total, _ = svc.ListForSubmitter(t.Context(), "A@example.com", Filter{})
	if total != 2 || len(forms) != 2 {
		t.Fatalf("submitter listing: total=%d", total)
	}
}

func TestListPagination(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFormService(db)
	for i := 0; i < 23; i++ {
		mustInsert(t, svc, internalForm("Course", "a@example.com"))
	}
	forms, total, _ := svc.List(t.Context(), Filter{Page: 3})
	if total != 23 || len(forms) != 3 {
		t.Fatalf("page 3: total=%d len=%d", total, len(forms))
	}
	if TotalPages(total) != 3 || TotalPages(0) != 0 || TotalPages(10) != 1 {
		t.Fatalf("TotalPages mismatch")
	}
}

func TestLeaderboard(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFormService(db)

	add := func(trainer string, hours float64, trainees int, approve bool) {
		f := internalForm("Course", "a@example.com")
		f.TrainerName = str(trainer)
		f.TrainingHours = hours
		id := mustInsert(t, svc, f)
		rows := make([]models.Trainee, trainees)
		for i := range rows {
			rows[i] = models.Trainee{Name: "T", Email: "t@example.com"}
		}
		if err := svc.InsertTrainees(t.Context(), id, rows); err != nil {
			t.Fatal(err)
		}
		if approve {
			if _, err := svc.ToggleApproval(t.Context(), id); err != nil {
				t.Fatal(err)
			}
		}
	}
	add("Alice", 2, 3, true)   // 6
	add("Bob", 10, 1, true)    // 10
	add("Alice", 1, 5, true)   // +5 = 11
	add("Carol", 50, 5, false) // not approved

	board, err := svc.Leaderboard(t.Context())
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("expected 2 trainers, got %+v", board)
	}
	if board[0].Name != "Alice" || board[0].Hours != 11 || board[1].Name != "Bob" || board[1].Hours != 10 {
		t.Fatalf("unexpected ranking: %+v", board)
	}
}

func TestPurgeDeletedBefore(t *testing.T) {
	db := setupTestDB(t)
	old := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewFormService(db).WithClock(func() time.Time { return old })

	stale := mustInsert(t, svc, internalForm("Stale", "a@example.com"))
	if err := svc.InsertTrainees(t.Context(), stale, []models.Trainee{{Name: "Ann"}}); err != nil {
		t.Fatal(err)
	}
	if err := svc.AddAttachments(t.Context(), stale, []models.Attachment{{Filename: "a.pdf"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SoftDelete(t.Context(), stale); err != nil {
		t.Fatal(err)
	}
	live := mustInsert(t, svc, internalForm("Live", "a@example.com"))

	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return recent })
	fresh := mustInsert(t, svc, internalForm("Fresh delete", "a@example.com"))
	if _, err := svc.SoftDelete(t.Context(), fresh); err != nil {
		t.Fatal(err)
	}

	ids, err := svc.PurgeDeletedBefore(t.Context(), recent.AddDate(0, 0, -180))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(ids) != 1 || ids[0] != stale {
		t.Fatalf("purged ids = %v, want [%d]", ids, stale)
	}
	var count int64
	db.Model(&models.Trainee{}).Where("form_id = ?", stale).Count(&count)
	if count != 0 {
		t.Fatal("children of purged form must be removed")
	}
	db.Model(&models.Attachment{}).Where("form_id = ?", stale).Count(&count)
	if count != 0 {
		t.Fatal("attachments of purged form must be removed")
	}
	for _, id := range []uint{live, fresh} {
		if _, err := svc.Get(t.Context(), id, true); err != nil {
			t.Fatalf("form %d must survive purge: %v", id, err)
		}
	}
}

func TestAttachmentHelpers(t *testing.T) {
	db := setupTestDB(t)
	svc := NewFormService(db)
	id := mustInsert(t, svc, internalForm("Course", "a@example.com"))
	other := mustInsert(t, svc, internalForm("Other", "a@example.com"))

	if err := svc.AddAttachments(t.Context(), id, []models.Attachment{{Filename: "a.pdf", Description: "agenda"}, {Filename: "b.png"}}); err != nil {
		t.Fatal(err)
	}
	if err := svc.AddAttachments(t.Context(), other, []models.Attachment{{Filename: "c.pdf"}}); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Get(t.Context(), id, false)
	first, second := got.Attachments[0], got.Attachments[1]

	if err := svc.UpdateAttachmentDescriptions(t.Context(), id, map[uint]string{second.ID: " photo "}); err != nil {
		t.Fatal(err)
	}
	otherForm, _ := svc.Get(t.Context(), other, false)
	removed, err := svc.DeleteAttachments(t.Context(), id, []uint{first.ID, otherForm.Attachments[0].ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0].Filename != "a.pdf" {
		t.Fatalf("only attachments of the form may be deleted: %+v", removed)
	}
	got, _ = svc.Get(t.Context(), id, false)
	if len(got.Attachments) != 1 || got.Attachments[0].Description != "photo" {
		t.Fatalf("unexpected attachments: %+v", got.Attachments)
	}
}
