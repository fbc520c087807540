// internal/storage/file.go
package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"leadgen/internal/model"
)

// FileStore keeps leads as a pretty-printed JSON array in a single file.
// Insert is a read-modify-write and is not safe for concurrent use;
// wrap it in a worker.SerialWriter.
type FileStore struct {
	path string
	log  logrus.FieldLogger
}

func NewFileStore(path string, log logrus.FieldLogger) *FileStore {
	return &FileStore{path: path, log: log}
}

func (s *FileStore) Path() string {
	return s.path
}

var _ LeadStore = (*FileStore)(nil)

// Load returns every stored lead in arrival order. A missing file is an
// empty collection; so is a file that does not parse.
func (s *FileStore) Load(ctx context.Context) ([]model.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read leads file")
	}

	var leads []model.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		s.log.WithError(err).WithField("path", s.path).Warn("leads file unreadable, treating as empty")
		return nil, nil
	}
	return leads, nil
}

func (s *FileStore) FindByEmail(ctx context.Context, email string) (*model.Lead, error) {
	leads, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexByEmail(leads, email); i >= 0 {
		found := leads[i]
		return &found, nil
	}
	return nil, nil
}

func (s *FileStore) Insert(ctx context.Context, lead *model.Lead) (bool, error) {
	leads, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	if indexByEmail(leads, lead.Email) >= 0 {
		return false, nil
	}

	leads = append(leads, *lead)
	if err := s.write(leads); err != nil {
		return false, err
	}
	return true, nil
}

// write replaces the file through a temp file in the same directory.
func (s *FileStore) write(leads []model.Lead) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create leads directory")
	}

	data, err := json.MarshalIndent(leads, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode leads")
	}

	tmp, err := os.CreateTemp(dir, ".leads-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp leads file")
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return errors.Wrap(err, "chmod temp leads file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp leads file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp leads file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "replace leads file")
	}
	return nil
}

func indexByEmail(leads []model.Lead, email string) int {
	key := EmailKey(email)
	for i := range leads {
		if EmailKey(leads[i].Email) == key {
			return i
		}
	}
	return -1
}
