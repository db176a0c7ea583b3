package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// LocalStore keeps attachments under a root directory.
type LocalStore struct {
	root string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload folder")
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrap(err, "create attachment dir")
	}
	f, err := os.Create(p)
	if err != nil {
		return errors.Wrap(err, "create attachment")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "write attachment")
	}
	return errors.Wrap(f.Close(), "close attachment")
}

func (s *LocalStore) Open(_ context.Context, key string) (*Object, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "open attachment")
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "stat attachment")
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound
	}
	return &Object{ReadSeekCloser: f, Name: st.Name(), Size: st.Size(), ModTime: st.ModTime()}, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete attachment")
	}
	return nil
}

// RemovePrefix deletes the directory holding prefix.
func (s *LocalStore) RemovePrefix(_ context.Context, prefix string) error {
	p, err := s.path(prefix)
	if err != nil {
		return err
	}
	return errors.Wrap(os.RemoveAll(p), "remove attachments")
}
