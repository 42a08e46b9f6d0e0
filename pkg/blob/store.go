// Package blob stores immutable dataset version snapshots.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"ai-insights-be/pkg/dataset"
)

// ErrNotFound is returned when a reference points at no snapshot.
var ErrNotFound = errors.New("blob not found")

var safeSegment = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Snapshot is the JSON document written for one dataset version.
type Snapshot struct {
	SessionID string        `json:"sessionId"`
	Version   int           `json:"version"`
	Operation string        `json:"operation"`
	Columns   []string      `json:"columns"`
	Rows      []dataset.Row `json:"rows"`
	CreatedAt time.Time     `json:"createdAt"`
}

type Store interface {
	Write(ctx context.Context, snap Snapshot) (ref string, err error)
	Read(ctx context.Context, ref string) (*Snapshot, error)
	Remove(ctx context.Context, ref string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// FileStore lays snapshots out as <dir>/<sessionId>/v<N>.json. References are
// relative to dir.
type FileStore struct {
	dir string
}

var _ Store = &FileStore{}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Ref is the reference a snapshot of sessionID at version gets.
func Ref(sessionID string, version int) string {
	return filepath.ToSlash(filepath.Join(sessionID, fmt.Sprintf("v%d.json", version)))
}

// Write never overwrites: a second write of the same version fails with os.ErrExist.
func (s *FileStore) Write(ctx context.Context, snap Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !safeSegment.MatchString(snap.SessionID) {
		return "", fmt.Errorf("invalid session id %q", snap.SessionID)
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	ref := Ref(snap.SessionID, snap.Version)
	path := filepath.Join(s.dir, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("write %s: %w", ref, os.ErrExist)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".v*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish blob: %w", err)
	}
	return ref, nil
}

func (s *FileStore) Read(ctx context.Context, ref string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return &snap, nil
}

// Remove deletes one snapshot. Removing a missing snapshot is not an error.
func (s *FileStore) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !safeSegment.MatchString(sessionID) {
		return fmt.Errorf("invalid session id %q", sessionID)
	}
	return os.RemoveAll(filepath.Join(s.dir, sessionID))
}

// resolve rejects references that escape the store directory.
func (s *FileStore) resolve(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(clean) || clean == ".." || len(clean) >= 3 && clean[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("invalid blob reference %q", ref)
	}
	return filepath.Join(s.dir, clean), nil
}
