package notify

import (
	"context"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"strings"
	texttmpl "text/template"

	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/models"
)

const submissionText = `A new training form has been submitted and requires your attention.

Form Details:
- Submitted by: {{.Submitter}}
- Training Type: {{.TrainingType}}
- Training Name: {{.TrainingName}}
- Training Date: {{.StartDate}}
- Training Location: {{.Location}}
- Number of Trainees: {{.TraineeCount}}
{{- if .External}}
- External Vendor: {{.Supplier}}
- Training Cost: {{.Cost}}
{{- end}}
{{- if .Notes}}
- Notes for Reviewer: {{.Notes}}
{{- end}}

Please log into the training application to review and approve this form.

This is an automated notification from the Training Form Application.
`

const submissionHTML = `<html>
<body>
  <h2>New Training Form Submitted</h2>
  <p>A new training form has been submitted and requires your attention.</p>
  <h3>Form Details:</h3>
  <ul>
    <li><strong>Submitted by:</strong> {{.Submitter}}</li>
    <li><strong>Training Type:</strong> {{.TrainingType}}</li>
    <li><strong>Training Name:</strong> {{.TrainingName}}</li>
    <li><strong>Training Date:</strong> {{.StartDate}}</li>
    <li><strong>Training Location:</strong> {{.Location}}</li>
    <li><strong>Number of Trainees:</strong> {{.TraineeCount}}</li>
    {{- if .External}}
    <li><strong>External Vendor:</strong> {{.Supplier}}</li>
    <li><strong>Training Cost:</strong> {{.Cost}}</li>
    {{- end}}
    {{- if .Notes}}
    <li><strong>Notes for Reviewer:</strong> {{.Notes}}</li>
    {{- end}}
  </ul>
  <p>Please log into the training application to review and approve this form.</p>
  <p><em>This is an automated notification from the Training Form Application.</em></p>
</body>
</html>
`

var (
	submissionTextTmpl = texttmpl.Must(texttmpl.New("submission.txt").Parse(submissionText))
	submissionHTMLTmpl = htmltmpl.Must(htmltmpl.New("submission.html").Parse(submissionHTML))
)

type submissionData struct {
	Submitter    string
	TrainingType string
	TrainingName string
	StartDate    string
	Location     string
	TraineeCount int
	External     bool
	Supplier     string
	Cost         string
	Notes        string
}

// RecipientSource lists the admins who opted in to notifications.
type RecipientSource interface {
	NotificationEmails(ctx context.Context) ([]string, error)
}

// SubmissionNotifier tells reviewers about newly submitted forms.
type SubmissionNotifier struct {
	mailer     Mailer
	admins     RecipientSource
	production bool
	devTo      []string
	excluded   map[string]bool
	log        logging.Logger
}

// NewSubmissionNotifier builds a notifier. In production the opted-in
// admins receive the mail, otherwise devRecipients do. Submissions from
// excluded addresses never notify anyone.
func NewSubmissionNotifier(mailer Mailer, admins RecipientSource, production bool, devRecipients, excluded []string, log logging.Logger) *SubmissionNotifier {
	if log == nil {
		log = logging.Discard
	}
	ex := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		ex[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &SubmissionNotifier{
		mailer:     mailer,
		admins:     admins,
		production: production,
		devTo:      devRecipients,
		excluded:   ex,
		log:        log,
	}
}

// Recipients returns who should hear about a submission.
func (n *SubmissionNotifier) Recipients(ctx context.Context) ([]string, error) {
	if !n.production {
		return n.devTo, nil
	}
	return n.admins.NotificationEmails(ctx)
}

// Compose renders the notification for form.
func Compose(form *models.TrainingForm) (*Message, error) {
	location := form.LocationType
	if d := models.Deref(form.LocationDetails); d != "" {
		location += " - " + d
	}
	data := submissionData{
		Submitter:    form.Submitter,
		TrainingType: form.TrainingType,
		TrainingName: form.TrainingName,
		StartDate:    form.Start().Format("2006-01-02"),
		Location:     location,
		TraineeCount: len(form.Trainees),
		External:     form.IsExternal(),
		Supplier:     models.Deref(form.SupplierName),
		Cost:         fmt.Sprintf("€%.2f", form.CourseCost),
		Notes:        strings.TrimSpace(form.Notes),
	}
	if data.Supplier == "" {
		data.Supplier = "N/A"
	}

	var text, html strings.Builder
	if err := submissionTextTmpl.Execute(&text, data); err != nil {
		return nil, errors.Wrap(err, "render submission text")
	}
	if err := submissionHTMLTmpl.Execute(&html, data); err != nil {
		return nil, errors.Wrap(err, "render submission html")
	}
	return &Message{
		Subject:     "New Training Form Submitted - " + form.TrainingType,
		TextContent: text.String(),
		HTMLContent: html.String(),
	}, nil
}

// Notify mails the reviewers about form. Failures are logged, never
// returned, so a submission never fails because of mail.
func (n *SubmissionNotifier) Notify(ctx context.Context, form *models.TrainingForm) {
	if n.excluded[strings.ToLower(form.Submitter)] {
		n.log.Debug("notification skipped for excluded submitter", map[string]interface{}{"form_id": form.ID})
		return
	}
	to, err := n.Recipients(ctx)
	if err != nil {
		n.log.Error("load notification recipients", err, map[string]interface{}{"form_id": form.ID})
		return
	}
	if len(to) == 0 {
		n.log.Warn("no recipients configured for submission notifications")
		return
	}

	msg, err := Compose(form)
	if err != nil {
		n.log.Error("compose submission notification", err, map[string]interface{}{"form_id": form.ID})
		return
	}
	for _, addr := range to {
		msg.To = append(msg.To, mail.Address{Address: addr})
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.log.Error("send submission notification", err, map[string]interface{}{"form_id": form.ID})
		return
	}
	n.log.Info("submission notification sent", map[string]interface{}{
		"form_id": form.ID,
		"to":      strings.Join(to, ", "),
	})
}
