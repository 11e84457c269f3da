package appconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"pkt.systems/pslog"
)

// Store loads and atomically saves the panel record. Failures are logged and
// returned; callers treat them as non-fatal.
type Store struct {
	mu   sync.Mutex
	path string
	log  pslog.Logger
}

// NewStore constructs a store for path. If path is empty, uses DefaultConfigPath.
func NewStore(path string, logger pslog.Logger) (*Store, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}
	if logger != nil {
		logger = logger.With("config_path", path)
	}
	return &Store{path: path, log: logger}, nil
}

// Path returns the record location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the record, falling back to defaults on any failure.
func (s *Store) Load() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := Load(s.path)
	if err != nil {
		if s.log != nil {
			s.log.Warn("config load failed", "err", err)
		}
		return cfg
	}
	if s.log != nil {
		s.log.Debug("config load ok", "mode", cfg.PermissionMode, "height", cfg.ChatHeight, "width", cfg.ChatWidth)
	}
	return cfg
}

// Save writes cfg via a temp file and rename.
func (s *Store) Save(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(cfg); err != nil {
		if s.log != nil {
			s.log.Warn("config save failed", "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Trace("config save ok", "mode", cfg.PermissionMode, "height", cfg.ChatHeight)
	}
	return nil
}

func (s *Store) save(cfg Config) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "config-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
