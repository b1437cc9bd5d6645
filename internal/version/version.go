// Package version reports the build of the running binary.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const (
	defaultModule = "pkt.systems/blinx"
	unknown       = "v0.0.0-unknown"
)

// buildVersion is set via -ldflags "-X pkt.systems/blinx/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes a build.
type Info struct {
	Module   string
	Version  string
	Revision string
	Time     time.Time
	Dirty    bool
}

// Read collects build details from the linker flag and the embedded build
// info.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, buildVersion)
}

// Current returns the version without a dirty marker.
func Current() string {
	return Read().Version
}

// Module returns the main module path.
func Module() string {
	return Read().Module
}

// Product names the binary in protocol banners, e.g. "blinx_v1.2.3".
func Product() string {
	return "blinx_" + strings.ReplaceAll(Current(), " ", "_")
}

// String renders the version with the revision and a dirty marker when
// known.
func (i Info) String() string {
	var b strings.Builder
	b.WriteString(i.Version)
	if i.Revision != "" && !strings.Contains(i.Version, shortRevision(i.Revision)) {
		b.WriteString(" (")
		b.WriteString(shortRevision(i.Revision))
		b.WriteString(")")
	}
	if i.Dirty {
		b.WriteString("+dirty")
	}
	return b.String()
}

func fromBuildInfo(bi *debug.BuildInfo, linked string) Info {
	out := Info{Module: defaultModule, Version: unknown}
	if bi != nil {
		if path := strings.TrimSpace(bi.Main.Path); path != "" {
			out.Module = path
		}
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				out.Revision = setting.Value
			case "vcs.time":
				if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					out.Time = parsed.UTC()
				}
			case "vcs.modified":
				out.Dirty = setting.Value == "true"
			}
		}
	}
	switch {
	case strings.TrimSpace(linked) != "":
		out.Version = strings.TrimSuffix(strings.TrimSpace(linked), "+dirty")
	case bi != nil && bi.Main.Version != "" && bi.Main.Version != "(devel)":
		out.Version = strings.TrimSuffix(bi.Main.Version, "+dirty")
	case out.Revision != "" && !out.Time.IsZero():
		out.Version = "v0.0.0-" + out.Time.Format("20060102150405") + "-" + shortRevision(out.Revision)
	}
	return out
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
