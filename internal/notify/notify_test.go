package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/diewo77/training-tracker/internal/config"
	"github.com/diewo77/training-tracker/internal/models"
)

type staticAdmins struct {
	emails []string
	err    error
	calls  int
}

func (s *staticAdmins) NotificationEmails(context.Context) ([]string, error) {
	s.calls++
	return s.emails, s.err
}

func externalForm() *models.TrainingForm {
	supplier := "Acme Training Ltd"
	details := "Dublin"
	return &models.TrainingForm{
		ID:              7,
		TrainingType:    models.TrainingExternal,
		TrainingName:    "Lean <Basics>",
		SupplierName:    &supplier,
		LocationType:    models.LocationOffsite,
		LocationDetails: &details,
		StartDate:       datatypes.Date(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)),
		CourseCost:      950,
		Notes:           "  please check invoice ",
		Submitter:       "ann@example.com",
		Trainees:        []models.Trainee{{Name: "Ann"}, {Name: "Bob"}},
	}
}

func TestCompose(t *testing.T) {
	msg, err := Compose(externalForm())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if msg.Subject != "New Training Form Submitted - External Training" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	for _, want := range []string{
		"- Submitted by: ann@example.com",
		"- Training Location: Offsite - Dublin",
		"- Number of Trainees: 2",
		"- External Vendor: Acme Training Ltd",
		"- Training Cost: €950.00",
		"- Notes for Reviewer: please check invoice\n",
	} {
		if !strings.Contains(msg.TextContent, want) {
			t.Fatalf("text body missing %q:\n%s", want, msg.TextContent)
		}
	}
	if !strings.Contains(msg.HTMLContent, "Lean &lt;Basics&gt;") {
		t.Fatalf("html body not escaped:\n%s", msg.HTMLContent)
	}
}

func TestCompose_InternalOmitsVendor(t *testing.T) {
	f := externalForm()
	f.TrainingType = models.TrainingInternal
	f.Notes = ""
	msg, err := Compose(f)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if strings.Contains(msg.TextContent, "External Vendor") || strings.Contains(msg.TextContent, "Notes for Reviewer") {
		t.Fatalf("unexpected lines:\n%s", msg.TextContent)
	}
}

func TestNotify_Recipients(t *testing.T) {
	admins := &staticAdmins{emails: []string{"boss@example.com"}}

	mock := &MockMailer{}
	NewSubmissionNotifier(mock, admins, true, []string{"dev@example.com"}, nil, nil).Notify(t.Context(), externalForm())
	sent := mock.Messages()
	if len(sent) != 1 || sent[0].To[0].Address != "boss@example.com" {
		t.Fatalf("production mail = %+v", sent)
	}

	mock = &MockMailer{}
	admins.calls = 0
	NewSubmissionNotifier(mock, admins, false, []string{"dev@example.com"}, nil, nil).Notify(t.Context(), externalForm())
	sent = mock.Messages()
	if len(sent) != 1 || sent[0].To[0].Address != "dev@example.com" {
		t.Fatalf("development mail = %+v", sent)
	}
	if admins.calls != 0 {
		t.Fatalf("admins consulted outside production")
	}
}

func TestNotify_SkipsAndSwallows(t *testing.T) {
	admins := &staticAdmins{emails: []string{"boss@example.com"}}
	mock := &MockMailer{}
	n := NewSubmissionNotifier(mock, admins, true, nil, []string{"User@Test.com"}, nil)

	f := externalForm()
	f.Submitter = "user@test.com"
	n.Notify(t.Context(), f)
	if len(mock.Messages()) != 0 || admins.calls != 0 {
		t.Fatalf("excluded submitter triggered a notification")
	}

	admins.emails = nil
	n.Notify(t.Context(), externalForm())
	if len(mock.Messages()) != 0 {
		t.Fatalf("mail sent without recipients")
	}

	admins.emails = []string{"boss@example.com"}
	mock.Err = errors.New("relay down")
	n.Notify(t.Context(), externalForm()) // must not panic or propagate
}

func TestConsoleMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewMailer(config.MailConfig{Backend: "console", DefaultSender: "noreply@example.com"}, &buf)
	msg, _ := Compose(externalForm())
	if err := m.Send(t.Context(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "From: <noreply@example.com>") || !strings.Contains(out, "Subject: New Training Form Submitted") {
		t.Fatalf("console output:\n%s", out)
	}
	if _, ok := NewMailer(config.MailConfig{Backend: "sendgrid"}, nil).(*SendgridMailer); !ok {
		t.Fatalf("sendgrid backend not selected")
	}
	if _, ok := NewMailer(config.MailConfig{Backend: "smtp", Server: "mail", Port: 25}, nil).(*SMTPMailer); !ok {
		t.Fatalf("smtp backend not selected")
	}
}
