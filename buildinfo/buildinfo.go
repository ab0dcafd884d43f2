// Package buildinfo holds application metadata stamped at build time.
//
//	go build -ldflags "\
//	  -X github.com/dotside-studios/davi-nfc-bridge/buildinfo.Version=1.0.0 \
//	  -X github.com/dotside-studios/davi-nfc-bridge/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

import (
	"fmt"
	"runtime"
	"strings"
)

var (
	// Name is the technical application name, also used for the config
	// directory and the mDNS instance.
	Name = "davi-nfc-bridge"

	// DisplayName is shown in the tray.
	DisplayName = "Davi NFC Bridge"

	Description = "Fans NFC tag discoveries out to local listeners"

	// Version is set via ldflags for releases.
	Version = "dev"

	Commit    = ""
	BuildTime = ""
)

// FullVersion returns the version with the commit appended when known,
// e.g. "1.0.0 (abc1234)".
func FullVersion() string {
	if Commit != "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return Version
}

// BuildInfo returns a multi-line description of the build.
func BuildInfo() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", Name, FullVersion())
	fmt.Fprintf(&sb, "  %s\n", Description)
	fmt.Fprintf(&sb, "  Go: %s\n", runtime.Version())
	fmt.Fprintf(&sb, "  OS/Arch: %s/%s", runtime.GOOS, runtime.GOARCH)
	if BuildTime != "" {
		fmt.Fprintf(&sb, "\n  Built: %s", BuildTime)
	}
	return sb.String()
}

// IsDev reports whether this is a development build.
func IsDev() bool {
	return Version == "dev"
}
