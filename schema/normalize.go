package schema

import "strings"

// NormalizePermissionMode maps a stored or user supplied mode to a known value.
// Unknown and empty values fall back to PermissionNormal.
func NormalizePermissionMode(value string) PermissionMode {
	switch PermissionMode(strings.ToLower(strings.TrimSpace(value))) {
	case PermissionSudo:
		return PermissionSudo
	case PermissionDangerous:
		return PermissionDangerous
	default:
		return PermissionNormal
	}
}

// ParsePermissionMode validates a mode strictly.
func ParsePermissionMode(value string) (PermissionMode, error) {
	switch mode := PermissionMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case PermissionNormal, PermissionSudo, PermissionDangerous:
		return mode, nil
	default:
		return "", ErrInvalidPermissionMode
	}
}

// Label returns the settings menu label for the mode.
func (m PermissionMode) Label() string {
	switch m {
	case PermissionSudo:
		return "Sudo (System Level)"
	case PermissionDangerous:
		return "Dangerous (No Prompts)"
	default:
		return "Normal (Ask Permission)"
	}
}
