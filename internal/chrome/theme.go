package chrome

import (
	"strconv"

	"pkt.systems/blinx/schema"
)

type rgb struct {
	r int
	g int
	b int
}

type palette struct {
	Name          schema.ThemeName
	TabBarBG      rgb
	TabActiveBG   rgb
	TabActiveFG   rgb
	TabInactiveBG rgb
	TabInactiveFG rgb
	ErrorFG       rgb
	MetaFG        rgb
	PromptFG      rgb
	AccentFG      rgb
}

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
)

var palettes = map[schema.ThemeName]palette{
	schema.ThemeLight: {
		Name:          schema.ThemeLight,
		TabBarBG:      rgb{r: 222, g: 225, b: 230},
		TabActiveBG:   rgb{r: 255, g: 255, b: 255},
		TabActiveFG:   rgb{r: 32, g: 33, b: 36},
		TabInactiveBG: rgb{r: 222, g: 225, b: 230},
		TabInactiveFG: rgb{r: 95, g: 99, b: 104},
		ErrorFG:       rgb{r: 197, g: 34, b: 31},
		MetaFG:        rgb{r: 128, g: 134, b: 139},
		PromptFG:      rgb{r: 26, g: 115, b: 232},
		AccentFG:      rgb{r: 26, g: 115, b: 232},
	},
	schema.ThemeDark: {
		Name:          schema.ThemeDark,
		TabBarBG:      rgb{r: 32, g: 33, b: 36},
		TabActiveBG:   rgb{r: 53, g: 54, b: 58},
		TabActiveFG:   rgb{r: 232, g: 234, b: 237},
		TabInactiveBG: rgb{r: 32, g: 33, b: 36},
		TabInactiveFG: rgb{r: 154, g: 160, b: 166},
		ErrorFG:       rgb{r: 242, g: 139, b: 130},
		MetaFG:        rgb{r: 128, g: 134, b: 139},
		PromptFG:      rgb{r: 138, g: 180, b: 248},
		AccentFG:      rgb{r: 138, g: 180, b: 248},
	},
}

func paletteFor(name schema.ThemeName) palette {
	if name == "" {
		name = schema.DefaultTheme
	}
	if p, ok := palettes[name]; ok {
		return p
	}
	return palettes[schema.DefaultTheme]
}

// styles holds the escape sequences used by the renderers. The zero value
// renders plain text.
type styles struct {
	color     bool
	bar       string
	active    string
	inactive  string
	indicator string
	errorText string
	meta      string
	accent    string
	dim       string
	reset     string
}

func stylesFor(name schema.ThemeName, color bool) styles {
	if !color {
		return styles{}
	}
	p := paletteFor(name)
	return styles{
		color:     true,
		bar:       ansiBgRGB(p.TabBarBG) + ansiFgRGB(p.TabInactiveFG),
		active:    ansiBgRGB(p.TabActiveBG) + ansiFgRGB(p.TabActiveFG) + ansiBold,
		inactive:  ansiBgRGB(p.TabInactiveBG) + ansiFgRGB(p.TabInactiveFG),
		indicator: ansiBgRGB(p.TabBarBG) + ansiFgRGB(p.TabInactiveFG) + ansiBold,
		errorText: ansiFgRGB(p.ErrorFG),
		meta:      ansiFgRGB(p.MetaFG),
		accent:    ansiFgRGB(p.AccentFG) + ansiBold,
		dim:       ansiDim,
		reset:     ansiReset,
	}
}

func ansiFgRGB(c rgb) string {
	return "\x1b[38;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}

func ansiBgRGB(c rgb) string {
	return "\x1b[48;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}
