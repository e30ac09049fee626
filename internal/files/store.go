// Package files is the file collaborator: validation and byte storage
// for shared files. The allow-list and size ceiling come from config.
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var (
	ErrTypeNotAllowed = errors.New("file type not allowed")
	ErrTooLarge       = errors.New("file too large")
	ErrStoreFailed    = errors.New("store failed")
	ErrNotFound       = errors.New("file not found")
)

type Store struct {
	fs      afero.Fs
	dir     string
	maxSize int64
	allowed map[string]struct{}
}

// NewStore builds a store over fs. Pass afero.NewMemMapFs() in tests and
// afero.NewOsFs() in production.
func NewStore(fs afero.Fs, dir string, maxSize int64, allowedTypes []string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[t] = struct{}{}
	}
	return &Store{fs: fs, dir: dir, maxSize: maxSize, allowed: allowed}, nil
}

// ValidateAndStore checks size and sniffed content type against the
// configured limits before persisting. The declared type is advisory;
// the sniffed type is what gets checked, so a renamed binary does not
// pass as a text file.
func (s *Store) ValidateAndStore(data []byte, declaredType string, declaredSize int64) (string, error) {
	if declaredSize > s.maxSize || int64(len(data)) > s.maxSize {
		return "", ErrTooLarge
	}
	detected := mimetype.Detect(data)
	if !s.typeAllowed(detected) {
		log.Warn().Str("module", "files").Str("declared", declaredType).Str("detected", detected.String()).Msg("rejected upload type")
		return "", ErrTypeNotAllowed
	}

	id := uuid.NewString()
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, id), data, 0o644); err != nil {
		log.Error().Err(err).Str("module", "files").Msg("write file")
		return "", ErrStoreFailed
	}
	log.Info().Str("module", "files").Str("file", id).Int("size", len(data)).Str("mime", detected.String()).Msg("stored file")
	return id, nil
}

func (s *Store) Retrieve(fileID string) ([]byte, error) {
	// File ids are uuids we allocated; anything else never names a file
	// and must not reach the filesystem.
	if _, err := uuid.Parse(fileID); err != nil {
		return nil, ErrNotFound
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, fileID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// typeAllowed walks the detected type's parents too, so allowing
// "text/plain" admits its subtypes.
func (s *Store) typeAllowed(detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if _, ok := s.allowed[m.String()]; ok {
			return true
		}
	}
	return false
}
