package trend

// Theme represents a color theme for trend charts.
type Theme string

const (
	// ThemeLight is the light color theme.
	ThemeLight Theme = "light"
	// ThemeDark is the dark color theme.
	ThemeDark Theme = "dark"
)

// themeConfig holds the chart colors of a theme.
type themeConfig struct {
	Background string
	Grid       string
	Axis       string
	Text       string
	TextMuted  string
	// Fallback series colors for metrics without a palette color.
	Series []string
}

var lightTheme = themeConfig{
	Background: "#ffffff",
	Grid:       "#e7e5e4", // stone-200.
	Axis:       "#a8a29e", // stone-400.
	Text:       "#44403c", // stone-700.
	TextMuted:  "#78716c", // stone-500.
	Series:     []string{"#3b82f6", "#8b5cf6", "#ec4899", "#14b8a6"},
}

var darkTheme = themeConfig{
	Background: "#1c1917", // stone-900.
	Grid:       "#44403c", // stone-700.
	Axis:       "#57534e", // stone-600.
	Text:       "#d6d3d1", // stone-300.
	TextMuted:  "#a8a29e", // stone-400.
	Series:     []string{"#60a5fa", "#a78bfa", "#f472b6", "#2dd4bf"},
}

func (t Theme) config() themeConfig {
	if t == ThemeDark {
		return darkTheme
	}

	return lightTheme
}

// ParseTheme returns the theme with the given name; unknown names select the light theme.
func ParseTheme(name string) Theme {
	if Theme(name) == ThemeDark {
		return ThemeDark
	}

	return ThemeLight
}
