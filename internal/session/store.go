package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/specksdev/specks/internal/errors"
)

const (
	sessionsDirName  = ".sessions"
	artifactsDirName = ".artifacts"
)

// Store reads and writes Session records under a worktrees root.
type Store struct {
	root string
	mu   sync.RWMutex
}

// NewStore returns a Store for the given worktrees root. The sessions
// directory is created lazily on first save.
func NewStore(worktreesRoot string) *Store {
	return &Store{root: worktreesRoot}
}

// Dir returns the directory session records are stored in.
func (s *Store) Dir() string {
	return filepath.Join(s.root, sessionsDirName)
}

// path returns the record file for a session ID.
func (s *Store) path(id string) string {
	return filepath.Join(s.Dir(), id+".json")
}

// ArtifactDir returns the artifact directory for one step of a session,
// creating it if necessary.
func (s *Store) ArtifactDir(id string, step int) (string, error) {
	dir := filepath.Join(s.root, artifactsDirName, id, fmt.Sprintf("step-%d", step))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return dir, nil
}

// Save persists a session record with an atomic write.
func (s *Store) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		return errors.NewValidationError("session ID cannot be empty")
	}

	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return atomicWriteFile(s.path(sess.ID), data, 0644)
}

// Load retrieves a session record by ID.
func (s *Store) Load(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrSessionCorrupted, id, err)
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("%w: %s: missing session ID", errors.ErrSessionCorrupted, id)
	}
	return &sess, nil
}

// Delete removes a session record. Deleting a record that does not exist
// is not an error; removal must stay idempotent.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	// Artifacts go with the session.
	if err := os.RemoveAll(filepath.Join(s.root, artifactsDirName, id)); err != nil {
		return fmt.Errorf("failed to delete session artifacts: %w", err)
	}
	return nil
}

// List returns every readable session record, skipping corrupted files.
func (s *Store) List() ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir(), entry.Name()))
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil || sess.ID == "" {
			continue
		}
		sessions = append(sessions, &sess)
	}
	return sessions, nil
}

// FindByBranch returns the session bound to the given branch, or
// ErrSessionNotFound.
func (s *Store) FindByBranch(branch string) (*Session, error) {
	sessions, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.Branch == branch {
			return sess, nil
		}
	}
	return nil, fmt.Errorf("%w: branch %s", errors.ErrSessionNotFound, branch)
}

// FindByPath returns the session bound to the given worktree path, or
// ErrSessionNotFound.
func (s *Store) FindByPath(path string) (*Session, error) {
	sessions, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.WorktreePath == path {
			return sess, nil
		}
	}
	return nil, fmt.Errorf("%w: worktree %s", errors.ErrSessionNotFound, path)
}

// FindBySlug returns every session for the given plan slug.
func (s *Store) FindBySlug(slug string) ([]*Session, error) {
	sessions, err := s.List()
	if err != nil {
		return nil, err
	}
	var matched []*Session
	for _, sess := range sessions {
		if sess.Slug == slug {
			matched = append(matched, sess)
		}
	}
	return matched, nil
}

// atomicWriteFile writes data through a temp file in the target directory
// and renames it into place, so the record is never observed half-written.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
