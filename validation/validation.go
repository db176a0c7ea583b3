package validation

import (
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Violations maps a field name to its first error message.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records msg for field unless the field already has a message.
func (v Violations) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Fields returns the violated field names in sorted order.
func (v Violations) Fields() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Messages returns the messages ordered by field name.
func (v Violations) Messages() []string {
	msgs := make([]string, 0, len(v))
	for _, k := range v.Fields() {
		msgs = append(msgs, v[k])
	}
	return msgs
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

func NonNegativeFloat(field string, val float64, v Violations) {
	if val < 0 {
		v.Add(field, "must_not_be_negative")
	}
}

// FromValidator converts the error returned by validator.Struct into
// Violations, asking message for the text of each field error. Errors that
// are not validation errors are returned unchanged.
func FromValidator(err error, message func(validator.FieldError) string) (Violations, error) {
	v := Violations{}
	if err == nil {
		return v, nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, err
	}
	for _, fe := range verrs {
		v.Add(fe.Field(), message(fe))
	}
	return v, nil
}
