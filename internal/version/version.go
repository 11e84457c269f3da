// Package version describes the agentpanel build.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const (
	fallbackModule  = "pkt.systems/agentpanel"
	fallbackVersion = "v0.0.0-unknown"
	dirtySuffix     = "+dirty"
)

// linkedVersion is stamped with
// -ldflags "-X pkt.systems/agentpanel/internal/version.linkedVersion=v1.2.3".
var linkedVersion = ""

// Info is the build identity of the running binary.
type Info struct {
	Module   string
	Version  string
	Revision string
	Built    time.Time
	Modified bool
}

// Get reads the build identity of the running binary.
func Get() Info {
	bi, _ := debug.ReadBuildInfo()
	return fromBuildInfo(bi, linkedVersion)
}

// Label is the version without a dirty marker.
func (i Info) Label() string {
	return strings.TrimSuffix(i.Version, dirtySuffix)
}

// DirtyLabel is the version with a dirty marker when the tree was modified.
func (i Info) DirtyLabel() string {
	label := i.Label()
	if i.Modified {
		return label + dirtySuffix
	}
	return label
}

// Line renders the `agentpanel version` output.
func (i Info) Line(dirty bool) string {
	if dirty {
		return i.Module + " " + i.DirtyLabel()
	}
	return i.Module + " " + i.Label()
}

func fromBuildInfo(bi *debug.BuildInfo, linked string) Info {
	info := Info{Module: fallbackModule}
	if bi != nil {
		if path := strings.TrimSpace(bi.Main.Path); path != "" {
			info.Module = path
		}
		readVCS(bi.Settings, &info)
	}

	if linked = strings.TrimSpace(linked); linked != "" {
		info.Version = linked
		if strings.HasSuffix(linked, dirtySuffix) {
			info.Modified = true
		}
		return info
	}
	if bi != nil {
		if v := strings.TrimSpace(bi.Main.Version); v != "" && v != "(devel)" {
			info.Version = v
			return info
		}
	}
	if v := info.pseudo(); v != "" {
		info.Version = v
		return info
	}
	info.Version = fallbackVersion
	return info
}

func readVCS(settings []debug.BuildSetting, info *Info) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.time":
			if at, err := time.Parse(time.RFC3339, s.Value); err == nil {
				info.Built = at.UTC()
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

// pseudo builds a Go pseudo-version from the vcs stamp, or "" without one.
func (i Info) pseudo() string {
	if i.Revision == "" || i.Built.IsZero() {
		return ""
	}
	rev := i.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + i.Built.Format("20060102150405") + "-" + rev
}
