package export

import (
	"context"

	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/models"
)

// FormSource yields the approved, non-deleted forms with their children,
// newest submission first.
type FormSource interface {
	ApprovedForExport(ctx context.Context) ([]models.TrainingForm, error)
}

// Service runs Claim 5 exports against a template on disk.
type Service struct {
	forms        FormSource
	templatePath string
	log          logging.Logger
}

func NewService(forms FormSource, templatePath string, log logging.Logger) *Service {
	if log == nil {
		log = logging.Discard
	}
	return &Service{forms: forms, templatePath: templatePath, log: log}
}

// Export builds the workbook for the forms selected by opts. A nil opts
// exports every approved form.
func (s *Service) Export(ctx context.Context, opts *Options) ([]byte, error) {
	forms, err := s.forms.ApprovedForExport(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load approved forms")
	}
	if opts != nil {
		forms = Select(forms, *opts)
	}
	data, sum, err := Build(s.templatePath, forms)
	if err != nil {
		s.log.Error("claim 5 export failed", err)
		return nil, err
	}
	s.log.Info("claim 5 export built", map[string]interface{}{
		"forms":     sum.Forms,
		"trainees":  sum.Trainees,
		"personnel": sum.Personnel,
	})
	return data, nil
}

// Options lists the quarters and date bounds the approved forms cover.
func (s *Service) Options(ctx context.Context) (QuarterInfo, error) {
	forms, err := s.forms.ApprovedForExport(ctx)
	if err != nil {
		return QuarterInfo{}, errors.Wrap(err, "load approved forms")
	}
	return Quarters(forms), nil
}
