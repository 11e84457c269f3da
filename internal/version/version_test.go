package version

import (
	"runtime/debug"
	"testing"
	"time"
)

func vcsSettings(modified bool) []debug.BuildSetting {
	flag := "false"
	if modified {
		flag = "true"
	}
	return []debug.BuildSetting{
		{Key: "vcs.revision", Value: "abcdef0123456789"},
		{Key: "vcs.time", Value: time.Date(2026, time.March, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339)},
		{Key: "vcs.modified", Value: flag},
	}
}

func TestFromBuildInfo(t *testing.T) {
	tests := []struct {
		name      string
		bi        *debug.BuildInfo
		linked    string
		module    string
		label     string
		dirtyLine string
	}{
		{
			name:      "linked version wins",
			bi:        &debug.BuildInfo{Main: debug.Module{Path: "example.com/panel", Version: "v9.9.9"}},
			linked:    "v1.2.3+dirty",
			module:    "example.com/panel",
			label:     "v1.2.3",
			dirtyLine: "example.com/panel v1.2.3+dirty",
		},
		{
			name:      "module version",
			bi:        &debug.BuildInfo{Main: debug.Module{Path: "example.com/panel", Version: "v0.4.0"}},
			module:    "example.com/panel",
			label:     "v0.4.0",
			dirtyLine: "example.com/panel v0.4.0",
		},
		{
			name:      "pseudo version from vcs",
			bi:        &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}, Settings: vcsSettings(true)},
			module:    fallbackModule,
			label:     "v0.0.0-20260302030405-abcdef012345",
			dirtyLine: fallbackModule + " v0.0.0-20260302030405-abcdef012345+dirty",
		},
		{
			name:      "clean vcs tree",
			bi:        &debug.BuildInfo{Settings: vcsSettings(false)},
			module:    fallbackModule,
			label:     "v0.0.0-20260302030405-abcdef012345",
			dirtyLine: fallbackModule + " v0.0.0-20260302030405-abcdef012345",
		},
		{
			name:      "no build info",
			module:    fallbackModule,
			label:     fallbackVersion,
			dirtyLine: fallbackModule + " " + fallbackVersion,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := fromBuildInfo(tc.bi, tc.linked)
			if info.Module != tc.module {
				t.Fatalf("module = %q, want %q", info.Module, tc.module)
			}
			if got := info.Label(); got != tc.label {
				t.Fatalf("label = %q, want %q", got, tc.label)
			}
			if got := info.Line(false); got != tc.module+" "+tc.label {
				t.Fatalf("line = %q", got)
			}
			if got := info.Line(true); got != tc.dirtyLine {
				t.Fatalf("dirty line = %q, want %q", got, tc.dirtyLine)
			}
		})
	}
}

func TestFromBuildInfoKeepsRevision(t *testing.T) {
	info := fromBuildInfo(&debug.BuildInfo{Settings: vcsSettings(false)}, "")
	if info.Revision != "abcdef0123456789" {
		t.Fatalf("revision = %q", info.Revision)
	}
	if want := time.Date(2026, time.March, 2, 3, 4, 5, 0, time.UTC); !info.Built.Equal(want) {
		t.Fatalf("built = %v, want %v", info.Built, want)
	}
}

func TestGetNeverEmpty(t *testing.T) {
	info := Get()
	if info.Module == "" || info.Label() == "" {
		t.Fatalf("incomplete build info: %+v", info)
	}
}
