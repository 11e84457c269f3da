package schema

const (
	// DefaultChatHeight is the transcript overlay height used without a config record.
	DefaultChatHeight = 400
	// DefaultChatWidth is the transcript overlay width used without a config record.
	DefaultChatWidth = 400
	// MinChatHeight is the smallest height a resize drag may produce.
	MinChatHeight = 100
	// MaxChatHeight is the largest height a resize drag may produce.
	MaxChatHeight = 800
)

// PanelConfig is the user-scoped record the controller reads and writes.
type PanelConfig struct {
	PermissionMode PermissionMode `json:"permissionMode" mapstructure:"permissionMode" yaml:"permissionMode"`
	ChatHeight     float64        `json:"chatHeight" mapstructure:"chatHeight" yaml:"chatHeight"`
	ChatWidth      float64        `json:"chatWidth" mapstructure:"chatWidth" yaml:"chatWidth"`
}

// DefaultPanelConfig returns the record used when none can be loaded.
func DefaultPanelConfig() PanelConfig {
	return PanelConfig{
		PermissionMode: PermissionNormal,
		ChatHeight:     DefaultChatHeight,
		ChatWidth:      DefaultChatWidth,
	}
}

// NormalizePanelConfig fills zero values with defaults and normalizes the mode.
func NormalizePanelConfig(cfg PanelConfig) PanelConfig {
	cfg.PermissionMode = NormalizePermissionMode(string(cfg.PermissionMode))
	if cfg.ChatHeight <= 0 {
		cfg.ChatHeight = DefaultChatHeight
	}
	if cfg.ChatWidth <= 0 {
		cfg.ChatWidth = DefaultChatWidth
	}
	return cfg
}
