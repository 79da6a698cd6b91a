package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps each role in its own file.
type FileStore struct {
	paths map[Role]string
}

// NewFileStore creates a store writing the extractor and classifier to the
// given paths.
func NewFileStore(extractorPath, classifierPath string) *FileStore {
	return &FileStore{paths: map[Role]string{
		RoleExtractor:  extractorPath,
		RoleClassifier: classifierPath,
	}}
}

// Path returns the file used for role.
func (s *FileStore) Path(role Role) string {
	return s.paths[role]
}

// Put writes blob atomically: a temp file in the same directory is renamed
// over the target.
func (s *FileStore) Put(ctx context.Context, role Role, blob []byte) error {
	path, ok := s.paths[role]
	if !ok || path == "" {
		return fmt.Errorf("no path configured for %s artifact", role)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %v", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync artifact: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %v", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod artifact: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %v", err)
	}
	return nil
}

// Get reads the blob for role.
func (s *FileStore) Get(ctx context.Context, role Role) ([]byte, error) {
	path, ok := s.paths[role]
	if !ok || path == "" {
		return nil, fmt.Errorf("%w: no path configured for %s", ErrArtifactMissing, role)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found at %s", ErrArtifactMissing, role, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s artifact: %v", role, err)
	}
	return data, nil
}
