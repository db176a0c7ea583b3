package services

import (
	"testing"

	"github.com/diewo77/training-tracker/internal/models"
)

func TestAdminService(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAdminService(db)
	ctx := t.Context()

	added, err := svc.Add(ctx, "  Boss@Example.com ", "Big", "Boss")
	if err != nil || !added {
		t.Fatalf("add: added=%v err=%v", added, err)
	}
	if added, _ := svc.Add(ctx, "boss@example.com", "", ""); added {
		t.Fatal("adding an existing admin must report false")
	}
	if _, err := svc.Add(ctx, "   ", "", ""); err == nil {
		t.Fatal("expected error for blank email")
	}
	if ok, _ := svc.IsAdmin(ctx, "BOSS@example.com"); !ok {
		t.Fatal("admin lookup must ignore case")
	}
	if ok, _ := svc.IsAdmin(ctx, ""); ok {
		t.Fatal("blank email is never an admin")
	}

	if _, err := svc.Add(ctx, "quiet@example.com", "Q", "Uiet"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := svc.SetReceiveEmails(ctx, "quiet@example.com", false); !ok {
		t.Fatal("preference update must report true")
	}
	if ok, _ := svc.SetReceiveEmails(ctx, "nobody@example.com", false); ok {
		t.Fatal("preference update of unknown admin must report false")
	}
	emails, err := svc.NotificationEmails(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(emails) != 1 || emails[0] != "boss@example.com" {
		t.Fatalf("notification emails = %v", emails)
	}

	admins, _ := svc.List(ctx)
	if len(admins) != 2 || admins[0].Email != "boss@example.com" || !admins[0].ReceiveEmails {
		t.Fatalf("unexpected admins: %+v", admins)
	}

	if ok, _ := svc.Remove(ctx, "Quiet@example.com"); !ok {
		t.Fatal("remove must report true")
	}
	if ok, _ := svc.Remove(ctx, "quiet@example.com"); ok {
		t.Fatal("second remove must report false")
	}
}

func TestUserServiceUpsert(t *testing.T) {
	db := setupTestDB(t)
	svc := NewUserService(db)
	ctx := t.Context()

	first, err := svc.Upsert(ctx, models.User{Email: "Ann@Example.com", FirstName: "Ann", DisplayName: "Ann"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.ID == 0 || first.Email != "ann@example.com" || first.LastLoginAt == nil {
		t.Fatalf("unexpected user: %+v", first)
	}
	second, err := svc.Upsert(ctx, models.User{Email: "ann@example.com", FirstName: "Ann", LastName: "Lee", Department: "Ops"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert must keep the id: %d != %d", second.ID, first.ID)
	}
	if second.LastName != "Lee" || second.Department != "Ops" {
		t.Fatalf("profile not refreshed: %+v", second)
	}
	if !svc.Exists(ctx, first.ID) || svc.Exists(ctx, first.ID+100) {
		t.Fatal("Exists mismatch")
	}
	if _, err := svc.Upsert(ctx, models.User{}); err == nil {
		t.Fatal("expected error for missing email")
	}
}

func TestEmployeeServiceReplaceAll(t *testing.T) {
	db := setupTestDB(t)
	svc := NewEmployeeService(db)
	ctx := t.Context()

	if _, err := svc.ReplaceAll(ctx, []models.Employee{{FirstName: "Gone", Email: "gone@example.com"}}); err != nil {
		t.Fatal(err)
	}
	n, err := svc.ReplaceAll(ctx, []models.Employee{
		{FirstName: "Zed", LastName: "Adams", Email: "zed@example.com"},
		{FirstName: "Amy", LastName: "Brown", Email: " amy@example.com "},
		{FirstName: "Dup", LastName: "Brown", Email: "AMY@example.com"},
		{FirstName: "No", LastName: "Mail"},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n != 2 {
		t.Fatalf("stored %d employees, want 2", n)
	}
	all, _ := svc.All(ctx)
	if len(all) != 2 || all[0].LastName != "Adams" || all[1].FirstName != "Amy" {
		t.Fatalf("unexpected roster: %+v", all)
	}
	e, err := svc.ByEmail(ctx, "AMY@EXAMPLE.COM")
	if err != nil || e.FirstName != "Amy" {
		t.Fatalf("by email: %+v %v", e, err)
	}
	if _, err := svc.ByEmail(ctx, "gone@example.com"); err == nil {
		t.Fatal("previous roster must be replaced")
	}
}
