package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const goGitModule = "github.com/go-git/go-git/v5"

var readBuildInfo = debug.ReadBuildInfo

// Version returns the module version or "dev" when unset.
func Version() string {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return "dev"
	}
	version := info.Main.Version
	if version == "" || version == "(devel)" {
		return "dev"
	}
	return version
}

// Tags returns the build tags recorded at compile time.
func Tags() string {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "-tags" {
			return setting.Value
		}
	}
	return ""
}

// GoGitVersion returns the linked go-git version, or "" when unknown.
func GoGitVersion() string {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return ""
	}
	for _, dep := range info.Deps {
		if dep.Path != goGitModule {
			continue
		}
		if dep.Replace != nil {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return ""
}

// String is the one-line summary printed by -version.
func String() string {
	var b strings.Builder
	b.WriteString(Version())
	if tags := Tags(); tags != "" {
		fmt.Fprintf(&b, " (tags: %s)", tags)
	}
	if v := GoGitVersion(); v != "" {
		fmt.Fprintf(&b, " go-git/%s", v)
	}
	return b.String()
}
