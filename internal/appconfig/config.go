package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/agentpanel/schema"
)

// DirName is the directory under the user config root holding the record.
const DirName = "claude-panel"

// FileName is the record's file name.
const FileName = "config.json"

// Config is the panel configuration record.
type Config = schema.PanelConfig

// DefaultConfig returns the record used when none can be loaded.
func DefaultConfig() Config {
	return schema.DefaultPanelConfig()
}

// DefaultConfigPath returns ~/.config/claude-panel/config.json.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", DirName, FileName), nil
}
