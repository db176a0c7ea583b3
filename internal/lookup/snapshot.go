package lookup

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/internal/models"
)

var snapshotHeader = []string{"FirstName", "LastName", "UserPrincipalName", "Department"}

// WriteEmployeeCSV writes the staff snapshot.
func WriteEmployeeCSV(w io.Writer, employees []models.Employee) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(snapshotHeader); err != nil {
		return err
	}
	for _, e := range employees {
		if err := cw.Write([]string{e.FirstName, e.LastName, e.Email, e.Department}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEmployeeCSVFile replaces the snapshot at path through a temp file.
func WriteEmployeeCSVFile(path string, employees []models.Employee) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create snapshot dir")
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".employees-*.csv")
	if err != nil {
		return errors.Wrap(err, "create snapshot")
	}
	defer os.Remove(tmp.Name())
	if err := WriteEmployeeCSV(tmp, employees); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close snapshot")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "replace snapshot")
}

// ReadEmployeeCSV parses a snapshot. Rows missing a first name, last name
// or email are skipped.
func ReadEmployeeCSV(r io.Reader) ([]models.Employee, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot header")
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []models.Employee
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read snapshot row")
		}
		e := models.Employee{
			FirstName:  get(rec, "FirstName"),
			LastName:   get(rec, "LastName"),
			Email:      get(rec, "UserPrincipalName"),
			Department: get(rec, "Department"),
		}
		if e.FirstName == "" || e.LastName == "" || e.Email == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ReadEmployeeCSVFile parses the snapshot at path.
func ReadEmployeeCSVFile(path string) ([]models.Employee, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEmployeeCSV(f)
}
