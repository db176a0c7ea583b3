package storage

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"My Report.pdf":          "My_Report.pdf",
		"../../etc/passwd":       "etc_passwd",
		`C:\Users\ann\cv.docx`:   "C_Users_ann_cv.docx",
		"résumé final.docx":      "resume_final.docx",
		"  .hidden.txt ":         "hidden.txt",
		"invoice#12 (copy).xlsx": "invoice12_copy.xlsx",
		"日本語":                    "",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAllowedAndViewable(t *testing.T) {
	if !Allowed("cert.PDF") || !Allowed("list.csv") || Allowed("setup.exe") || Allowed("noext") {
		t.Fatalf("Allowed mismatch")
	}
	if !Viewable("photo.JPG") || !Viewable("notes.txt") || Viewable("sheet.xlsx") {
		t.Fatalf("Viewable mismatch")
	}
}

func TestCleanKey(t *testing.T) {
	for _, bad := range []string{"", "/etc/passwd", "../x", "form_1/../../x", `form_1\x`, ".."} {
		if _, err := CleanKey(bad); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("CleanKey(%q) err = %v", bad, err)
		}
	}
	if k, err := CleanKey("form_1/./a.pdf"); err != nil || k != "form_1/a.pdf" {
		t.Fatalf("CleanKey = %q, %v", k, err)
	}
	if Key(12, "a.pdf") != "form_12/a.pdf" {
		t.Fatalf("Key = %q", Key(12, "a.pdf"))
	}
}

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := t.Context()

	if err := s.Put(ctx, Key(3, "a.txt"), strings.NewReader("hello"), 5, "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	obj, err := s.Open(ctx, Key(3, "a.txt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(obj)
	_ = obj.Close()
	if string(data) != "hello" || obj.Size != 5 || obj.Name != "a.txt" {
		t.Fatalf("object = %q %+v", data, obj)
	}

	if _, err := s.Open(ctx, Key(3, "missing.txt")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
	if _, err := s.Open(ctx, "form_3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("directory err = %v", err)
	}
	if err := s.Put(ctx, "../escape.txt", strings.NewReader("x"), 1, ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("escape err = %v", err)
	}

	if err := s.Delete(ctx, Key(3, "a.txt")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, Key(3, "a.txt")); err != nil {
		t.Fatalf("second Delete: %v", err)
	}

	_ = s.Put(ctx, Key(4, "b.pdf"), strings.NewReader("%PDF"), 4, "application/pdf")
	_ = s.Put(ctx, Key(40, "c.pdf"), strings.NewReader("%PDF"), 4, "application/pdf")
	if err := s.RemovePrefix(ctx, FormPrefix(4)); err != nil {
		t.Fatalf("RemovePrefix: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "form_4")); !os.IsNotExist(err) {
		t.Fatalf("form_4 still present")
	}
	if _, err := os.Stat(filepath.Join(root, "form_40", "c.pdf")); err != nil {
		t.Fatalf("form_40 removed with form_4: %v", err)
	}
}

func uploadHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("attachments", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(content)
	_ = mw.Close()
	req := httptest.NewRequest("POST", "/submit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatal(err)
	}
	return req.MultipartForm.File["attachments"][0]
}

func TestSaveUpload(t *testing.T) {
	s, _ := NewLocalStore(t.TempDir())
	ctx := t.Context()

	name, err := SaveUpload(ctx, s, 9, uploadHeader(t, "Course Certificate.pdf", []byte("%PDF-1.4")), 1<<10)
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if name != "Course_Certificate.pdf" {
		t.Fatalf("stored name = %q", name)
	}
	if _, err := s.Open(ctx, Key(9, name)); err != nil {
		t.Fatalf("stored file not found: %v", err)
	}

	if _, err := SaveUpload(ctx, s, 9, uploadHeader(t, "run.exe", []byte("MZ")), 1<<10); !errors.Is(err, ErrDisallowedType) {
		t.Fatalf("exe err = %v", err)
	}
	if _, err := SaveUpload(ctx, s, 9, uploadHeader(t, "big.txt", bytes.Repeat([]byte("x"), 2048)), 1<<10); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("oversize err = %v", err)
	}
}
