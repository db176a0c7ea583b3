// Package storage keeps form attachments under "form_<id>/<filename>" keys
// on local disk or in a MinIO bucket.
package storage

import (
	"context"
	"io"
	"mime/multipart"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/diewo77/training-tracker/internal/config"
)

var (
	ErrNotFound       = errors.New("attachment not found")
	ErrInvalidKey     = errors.New("invalid attachment key")
	ErrFileTooLarge   = errors.New("file is too large")
	ErrDisallowedType = errors.New("file type not allowed")
	ErrEmptyFilename  = errors.New("file name is empty")
)

// AllowedExtensions lists the attachment types accepted on upload.
var AllowedExtensions = map[string]bool{
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
	"jpg": true, "jpeg": true, "png": true, "csv": true, "txt": true,
}

// viewable types are served inline, everything else as a download.
var viewable = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".svg": true, ".txt": true, ".pdf": true,
}

// Object is an opened attachment.
type Object struct {
	io.ReadSeekCloser
	Name    string
	Size    int64
	ModTime time.Time
}

// Store persists attachment bytes.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	RemovePrefix(ctx context.Context, prefix string) error
}

// New returns the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	if cfg.Backend == "minio" {
		return NewMinioStore(ctx, cfg)
	}
	return NewLocalStore(cfg.UploadFolder)
}

// FormPrefix is the key prefix of every attachment of a form.
func FormPrefix(formID uint) string {
	return "form_" + strconv.FormatUint(uint64(formID), 10) + "/"
}

// Key returns the storage key of a form attachment.
func Key(formID uint, filename string) string {
	return FormPrefix(formID) + filename
}

// CleanKey rejects keys that escape the store root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "\\") || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces a client file name to a safe ASCII base name.
// It returns "" when nothing usable remains.
func SanitizeFilename(name string) string {
	name = norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(b.String())
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

func ext(name string) string {
	return strings.ToLower(path.Ext(name))
}

// Allowed reports whether filename has an accepted extension.
func Allowed(filename string) bool {
	return AllowedExtensions[strings.TrimPrefix(ext(filename), ".")]
}

// Viewable reports whether the browser should display filename inline.
func Viewable(filename string) bool {
	return viewable[ext(filename)]
}

// CheckUpload validates an uploaded file and returns its sanitized name.
func CheckUpload(fh *multipart.FileHeader, maxSize int64) (string, error) {
	name := SanitizeFilename(fh.Filename)
	if name == "" {
		return "", ErrEmptyFilename
	}
	if !Allowed(name) {
		return "", errors.Wrap(ErrDisallowedType, fh.Filename)
	}
	if maxSize > 0 && fh.Size > maxSize {
		return "", errors.Wrap(ErrFileTooLarge, fh.Filename)
	}
	return name, nil
}

// SaveUpload stores fh under the form's prefix and returns the stored name.
func SaveUpload(ctx context.Context, store Store, formID uint, fh *multipart.FileHeader, maxSize int64) (string, error) {
	name, err := CheckUpload(fh, maxSize)
	if err != nil {
		return "", err
	}
	f, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer f.Close()

	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	if err := store.Put(ctx, Key(formID, name), f, fh.Size, ct); err != nil {
		return "", err
	}
	return name, nil
}
