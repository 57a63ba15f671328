package health

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

type BuildInfo struct {
	Version   string
	GitCommit string
	BuildTime time.Time
	GoVersion string
}

// getBuildInfo renders "<version>-<commit7> (<date>) <go version>". BUILD_*
// env vars win over the VCS stamp embedded by the go tool.
func getBuildInfo() string {
	info := readBuildInfo(os.Getenv)

	commit := info.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}

	built := "unknown"
	if !info.BuildTime.IsZero() {
		built = info.BuildTime.Format("2006-01-02")
	}

	return fmt.Sprintf("%s-%s (%s) %s", info.Version, commit, built, info.GoVersion)
}

func readBuildInfo(getenv func(string) string) BuildInfo {
	info := BuildInfo{
		Version:   "dev",
		GitCommit: "unknown",
		GoVersion: runtime.Version(),
	}

	if embedded, ok := debug.ReadBuildInfo(); ok {
		if v := embedded.Main.Version; v != "" && v != "(devel)" {
			info.Version = strings.TrimPrefix(v, "v")
		}
		for _, setting := range embedded.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.GitCommit = setting.Value
			case "vcs.time":
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					info.BuildTime = t
				}
			}
		}
	}

	if v := getenv("BUILD_VERSION"); v != "" {
		info.Version = v
	}
	if v := getenv("BUILD_COMMIT"); v != "" {
		info.GitCommit = v
	}
	if v := getenv("BUILD_TIME"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			info.BuildTime = t
		}
	}

	return info
}
