package logging

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
)

func TestStdLoggerWritesLevelAndArgs(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger(log.New(&buf, "", 0))

	l.Warn("child rows rejected", errors.New("boom"), map[string]interface{}{"form_id": 7}, Person{ID: "1", Email: "a@example.com"})

	out := buf.String()
	for _, want := range []string{"[WARN] child rows rejected", "boom", "form_id:7"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "a@example.com") {
		t.Fatalf("person must not be printed:\n%s", out)
	}
}
