package sessionstore

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
)

// Store is a durable, file-backed Session Store. One file per session,
// named "<id>.session" under dir. The zero value is not usable;
// construct with New.
type Store struct {
	mu        sync.RWMutex
	dir       string
	mode      encryptionMode
	password  string
	mixedMode bool
}

// New constructs a Store persisting sessions as files under dir (created
// on first Save if absent).
func New(dir string) *Store {
	return &Store{dir: dir, mode: modePlaintext}
}

// EnableMixedModeReads allows Load to accept plaintext-tagged files even
// after encryption has been enabled. Without this, such files fail to
// load once encryption is active.
func (s *Store) EnableMixedModeReads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mixedMode = true
}

// EnableEncryption activates standard (PBKDF2-derived key) AES-GCM
// encryption for every subsequent Save.
func (s *Store) EnableEncryption(password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = modeStandard
	s.password = password
}

// EnableEnterpriseEncryption activates enterprise-grade (scrypt-derived
// key) AES-GCM encryption for every subsequent Save.
func (s *Store) EnableEnterpriseEncryption(password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = modeEnterprise
	s.password = password
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".session")
}

// Save writes session atomically (temp file + rename) to dir, under the
// Store's currently active encryption mode.
func (s *Store) Save(session Session) error {
	const op = "sessionstore.Store.Save"
	s.mu.RLock()
	mode, password := s.mode, s.password
	s.mu.RUnlock()

	plaintext, err := json.Marshal(session)
	if err != nil {
		return kernelerr.Wrap(op, kernelerr.ValidationError, err)
	}

	container, err := seal(mode, password, plaintext)
	if err != nil {
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	tmp, err := os.CreateTemp(s.dir, ".session-*.tmp")
	if err != nil {
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(container); err != nil {
		tmp.Close()
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	if err := tmp.Close(); err != nil {
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	if err := os.Rename(tmpPath, s.path(session.ID)); err != nil {
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	slog.Debug("saved session", "session_id", session.ID, "mode", mode)
	return nil
}

// Load reads and validates the session stored under id. A missing file
// is NotFound; a corrupted or undecryptable file is Corrupted — the two
// are always distinguishable.
func (s *Store) Load(id string) (Session, error) {
	const op = "sessionstore.Store.Load"
	s.mu.RLock()
	// A Store still in plaintext mode always reads plaintext-tagged files;
	// once encryption is enabled they load only with mixed-mode reads.
	password, mixedMode := s.password, s.mixedMode || s.mode == modePlaintext
	s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, kernelerr.New(op, kernelerr.NotFound)
		}
		return Session{}, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}

	plaintext, err := openSealed(password, data, mixedMode)
	if err != nil {
		slog.Warn("session file corrupted or undecryptable", "session_id", id, "error", err)
		return Session{}, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}

	var session Session
	if err := json.Unmarshal(plaintext, &session); err != nil {
		slog.Warn("session file corrupted", "session_id", id, "error", err)
		return Session{}, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	return session, nil
}

// List returns the IDs of every session currently persisted in dir.
func (s *Store) List() ([]string, error) {
	const op = "sessionstore.Store.List"
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		const suffix = ".session"
		if !e.IsDir() && len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			ids = append(ids, name[:len(name)-len(suffix)])
		}
	}
	return ids, nil
}

// Erase permanently deletes the persisted session identified by id.
func (s *Store) Erase(id string) error {
	const op = "sessionstore.Store.Erase"
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return kernelerr.New(op, kernelerr.NotFound)
		}
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	return nil
}

// CleanupOldSessions removes every session whose UpdatedAt is older than
// retention (relative to now), returning the count removed. Sessions
// that fail to load (corrupted) are left in place rather than silently
// deleted.
func (s *Store) CleanupOldSessions(retention time.Duration) (int, error) {
	ids, err := s.List()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-retention)
	var removed int
	for _, id := range ids {
		session, err := s.Load(id)
		if err != nil {
			continue
		}
		if session.UpdatedAt.Before(cutoff) {
			if err := s.Erase(id); err == nil {
				removed++
			}
		}
	}
	slog.Debug("cleaned up old sessions", "removed", removed, "retention", retention)
	return removed, nil
}

// Export returns the raw (decrypted) JSON representation of a session,
// for external backup or migration.
func (s *Store) Export(id string) ([]byte, error) {
	session, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(session, "", "  ")
}
