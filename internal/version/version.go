package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

const devVersion = "0.1.0-dev"

// Set at link time with -ldflags "-X github.com/openmined/sharegate/internal/version.Version=...".
var (
	AppName   = "ShareGate"
	Version   = devVersion
	Revision  = ""
	BuildDate = ""
)

// Info describes the running binary.
type Info struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
}

var buildInfo = sync.OnceValue(func() Info {
	info := Info{
		App:       AppName,
		Version:   Version,
		Revision:  Revision,
		BuildDate: BuildDate,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		settings := make(map[string]string, len(bi.Settings))
		for _, s := range bi.Settings {
			settings[s.Key] = s.Value
		}
		info = fillFromModule(info, bi.Main.Version, settings)
	}

	return info
})

// Get returns the build information, filling gaps left by ldflags from the module
// and VCS metadata embedded by the Go toolchain.
func Get() Info {
	return buildInfo()
}

// fillFromModule only touches fields that still hold their defaults.
func fillFromModule(info Info, moduleVersion string, settings map[string]string) Info {
	if info.Version == devVersion || info.Version == "" {
		if moduleVersion != "" && moduleVersion != "(devel)" {
			info.Version = strings.TrimPrefix(moduleVersion, "v")
		}
	}

	if info.Revision == "" {
		if rev := settings["vcs.revision"]; rev != "" {
			if len(rev) > 12 {
				rev = rev[:12]
			}
			if settings["vcs.modified"] == "true" {
				rev += "-dirty"
			}
			info.Revision = rev
		}
	}

	if info.BuildDate == "" {
		info.BuildDate = settings["vcs.time"]
	}

	return info
}

// Short is the version with the revision when known, e.g. `0.1.0 (5e23a4b1c0de)`.
func (i Info) Short() string {
	if i.Revision == "" {
		return i.Version
	}
	return fmt.Sprintf("%s (%s)", i.Version, i.Revision)
}

// Detailed adds toolchain and platform, e.g. `0.1.0 (5e23a4b1c0de; go1.23.6; linux/amd64)`.
func (i Info) Detailed() string {
	parts := []string{}
	if i.Revision != "" {
		parts = append(parts, i.Revision)
	}
	parts = append(parts, i.Go, i.Platform)
	if i.BuildDate != "" {
		parts = append(parts, i.BuildDate)
	}
	return fmt.Sprintf("%s (%s)", i.Version, strings.Join(parts, "; "))
}

func (i Info) String() string {
	return i.App + " " + i.Detailed()
}

func Short() string {
	return Get().Short()
}

func Detailed() string {
	return Get().Detailed()
}

// DetailedWithApp prefixes Detailed with the application name.
func DetailedWithApp() string {
	return Get().String()
}
