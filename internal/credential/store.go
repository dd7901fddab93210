package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

// credentialsFileName is the fixed name of the bundle inside the auth dir.
const credentialsFileName = "credentials.json"

// StorageError reports a failed persistence operation. Reads never produce it;
// unreadable or corrupt data degrades to an absent bundle instead.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("credential store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store persists a single credential bundle as JSON on disk.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store rooted at dir. The bundle lives at
// dir/credentials.json.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, credentialsFileName)}
}

// Path returns the credential file location.
func (s *Store) Path() string { return s.path }

// Load returns the persisted bundle, or (nil, nil) when no usable bundle
// exists. Corrupt or unreadable data is logged and treated as absent so the
// user can simply re-authenticate.
func (s *Store) Load() (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("credential store: read %s failed, treating as logged out: %v", s.path, err)
		}
		return nil, nil
	}

	var bundle Bundle
	if err = json.Unmarshal(data, &bundle); err != nil {
		log.Warnf("credential store: %s is not valid JSON, treating as logged out: %v", s.path, err)
		return nil, nil
	}
	if !bundle.Usable() {
		log.Warnf("credential store: %s is missing an access token, treating as logged out", s.path)
		return nil, nil
	}
	return &bundle, nil
}

// Save writes the bundle with atomic replace semantics: the JSON is written to
// a uniquely named temp file in the same directory and renamed over the final
// path, so a crash mid-write never leaves a partially written file behind.
// The file is owner read/write only.
func (s *Store) Save(bundle *Bundle) error {
	if bundle == nil {
		return &StorageError{Op: "save", Err: fmt.Errorf("bundle is nil")}
	}
	bundle.Type = "discord"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return &StorageError{Op: "create dir", Err: err}
	}

	raw, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return &StorageError{Op: "marshal", Err: err}
	}

	tmp := fmt.Sprintf("%s.%s.tmp", s.path, uuid.NewString())
	if err = os.WriteFile(tmp, raw, 0o600); err != nil {
		return &StorageError{Op: "write temp", Err: err}
	}
	if err = os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return &StorageError{Op: "replace", Err: err}
	}
	if err = os.Chmod(s.path, 0o600); err != nil {
		log.Warnf("credential store: chmod %s failed: %v", s.path, err)
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("credential store: saved bundle to %s: %s", s.path, redactTokens(raw))
	}
	return nil
}

// Clear removes the persisted bundle. A missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "clear", Err: err}
	}
	return nil
}

// redactTokens blanks the secret fields of a serialized bundle for logging.
func redactTokens(raw []byte) string {
	out := raw
	for _, field := range []string{"access_token", "refresh_token"} {
		if updated, err := sjson.SetBytes(out, field, "[redacted]"); err == nil {
			out = updated
		}
	}
	return string(out)
}
