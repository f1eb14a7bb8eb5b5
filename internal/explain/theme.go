package explain

import (
	"log/slog"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	darkmode "github.com/thiagokokada/dark-mode-go"
)

type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorLight
	ColorDark
	ColorNever
)

func (m ColorMode) String() string {
	switch m {
	case ColorLight:
		return "light"
	case ColorDark:
		return "dark"
	case ColorNever:
		return "never"
	default:
		return "auto"
	}
}

func ColorModeFromString(raw string) ColorMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ColorLight.String():
		return ColorLight
	case ColorDark.String():
		return ColorDark
	case ColorNever.String(), "none", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

var detectDarkMode = darkmode.IsDarkMode

// styleForMode returns nil when output must stay uncoloured.
func styleForMode(mode ColorMode) *chroma.Style {
	switch mode {
	case ColorNever:
		return nil
	case ColorDark:
		return namedStyle("github-dark")
	case ColorLight:
		return namedStyle("github")
	default:
		if detectDarkMode != nil {
			dark, err := detectDarkMode()
			if err == nil && dark {
				return namedStyle("github-dark")
			}
			if err != nil {
				slog.Debug("detect dark-mode", slog.Any("error", err))
			}
		}
		return namedStyle("github")
	}
}

func namedStyle(name string) *chroma.Style {
	if st := styles.Get(name); st != nil {
		return st
	}
	return styles.Fallback
}
