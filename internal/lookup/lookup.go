package lookup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/models"
)

// Lookup entities.
const (
	EntityEmployees = "employees"
	EntityTrainings = "trainings"
)

// ErrUnknownEntity is returned for an entity other than employees or trainings.
var ErrUnknownEntity = errors.New("unknown lookup entity")

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// Employee is the autocomplete entry for a member of staff.
type Employee struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Department  string `json:"department"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
}

// Training is the autocomplete entry for a catalog course.
type Training struct {
	ID            uint     `json:"id"`
	TrainingName  string   `json:"training_name"`
	Name          string   `json:"name"`
	Area          string   `json:"area"`
	TrainingDesc  string   `json:"training_desc"`
	IdaClass      string   `json:"ida_class"`
	TrainingType  string   `json:"training_type"`
	SupplierName  string   `json:"supplier_name"`
	TrainingHours *float64 `json:"training_hours"`
	CourseCost    *float64 `json:"course_cost"`
}

type EmployeeSource interface {
	All(ctx context.Context) ([]models.Employee, error)
}

type CatalogSource interface {
	All(ctx context.Context) ([]models.TrainingCatalog, error)
}

// Service loads lookup lists and caches them until the TTL elapses or
// they are invalidated.
type Service struct {
	cache     Backend
	ttl       time.Duration
	employees EmployeeSource
	catalog   CatalogSource
	csvPath   string
	log       logging.Logger
}

// NewService builds the lookup service. csvPath is the staff snapshot used
// when the employees table cannot serve.
func NewService(cache Backend, ttl time.Duration, employees EmployeeSource, catalog CatalogSource, csvPath string, log logging.Logger) *Service {
	if cache == nil {
		cache = NewMemoryBackend(nil)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logging.Discard
	}
	return &Service{cache: cache, ttl: ttl, employees: employees, catalog: catalog, csvPath: csvPath, log: log}
}

// Lookup returns the list for entity.
func (s *Service) Lookup(ctx context.Context, entity string) (any, error) {
	switch entity {
	case EntityEmployees:
		return s.Employees(ctx)
	case EntityTrainings:
		return s.Trainings(ctx)
	}
	return nil, ErrUnknownEntity
}

func (s *Service) Employees(ctx context.Context) ([]Employee, error) {
	return cached(ctx, s, EntityEmployees, s.loadEmployees)
}

func (s *Service) Trainings(ctx context.Context) ([]Training, error) {
	return cached(ctx, s, EntityTrainings, s.loadTrainings)
}

func (s *Service) InvalidateEmployees(ctx context.Context) error {
	return s.cache.Delete(ctx, EntityEmployees)
}

func (s *Service) InvalidateTrainings(ctx context.Context) error {
	return s.cache.Delete(ctx, EntityTrainings)
}

func (s *Service) InvalidateAll(ctx context.Context) error {
	return s.cache.Delete(ctx, EntityEmployees, EntityTrainings)
}

// cached serves key from the cache, loading and storing it on a miss.
// Cache failures are logged and the list is loaded directly.
func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("lookup cache read", err, map[string]interface{}{"key": key})
	} else if ok {
		var out []T
		if err := json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
		s.log.Warn("lookup cache entry unreadable", map[string]interface{}{"key": key})
	}

	out, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	raw, err := json.Marshal(out)
	if err == nil {
		err = s.cache.Set(ctx, key, raw, s.ttl)
	}
	if err != nil {
		s.log.Warn("lookup cache write", err, map[string]interface{}{"key": key})
	}
	s.log.Info("lookup list loaded", map[string]interface{}{"key": key, "count": len(out)})
	return out, nil
}

// loadEmployees reads the employees table, falling back to the CSV
// snapshot when the table errors or is still empty.
func (s *Service) loadEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := s.employees.All(ctx)
	if err != nil {
		s.log.Error("load employees", err)
	}
	if len(rows) == 0 && s.csvPath != "" {
		fromCSV, csvErr := ReadEmployeeCSVFile(s.csvPath)
		switch {
		case csvErr == nil:
			rows = fromCSV
			err = nil
		case err != nil:
			return nil, errors.Wrap(csvErr, "employee snapshot fallback")
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "load employees")
	}

	out := make([]Employee, 0, len(rows))
	for i := range rows {
		e := &rows[i]
		name := e.DisplayName()
		out = append(out, Employee{
			DisplayName: name,
			Email:       e.Email,
			Name:        name,
			Department:  e.Department,
			FirstName:   e.FirstName,
			LastName:    e.LastName,
		})
	}
	return out, nil
}

func (s *Service) loadTrainings(ctx context.Context) ([]Training, error) {
	rows, err := s.catalog.All(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load training catalog")
	}
	out := make([]Training, 0, len(rows))
	for _, c := range rows {
		out = append(out, Training{
			ID:            c.ID,
			TrainingName:  c.TrainingName,
			Name:          c.TrainingName,
			Area:          c.Area,
			TrainingDesc:  c.TrainingDesc,
			IdaClass:      c.IdaClass,
			TrainingType:  c.TrainingType,
			SupplierName:  c.SupplierName,
			TrainingHours: c.TrainingHours,
			CourseCost:    c.CourseCost,
		})
	}
	return out, nil
}
