package widget

import "strings"

// Color is one of the fixed accent palettes of the character.
type Color string

const (
	Blue   Color = "blue"
	Green  Color = "green"
	Purple Color = "purple"
	Indigo Color = "indigo"
)

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// Palette holds the utility CSS classes for one accent color.
type Palette struct {
	Bg      string
	BgHover string
	Text    string
	Border  string
	Light   string
	Dark    string
}

var palettes = map[Color]Palette{
	Blue:   {"bg-blue-500", "hover:bg-blue-600", "text-blue-500", "border-blue-500", "bg-blue-100", "bg-blue-700"},
	Green:  {"bg-green-500", "hover:bg-green-600", "text-green-500", "border-green-500", "bg-green-100", "bg-green-700"},
	Purple: {"bg-purple-500", "hover:bg-purple-600", "text-purple-500", "border-purple-500", "bg-purple-100", "bg-purple-700"},
	Indigo: {"bg-indigo-500", "hover:bg-indigo-600", "text-indigo-500", "border-indigo-500", "bg-indigo-100", "bg-indigo-700"},
}

// ParseColor maps unknown names to Blue.
func ParseColor(s string) Color {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := palettes[c]; ok {
		return c
	}
	return Blue
}

func (c Color) Palette() Palette {
	if p, ok := palettes[c]; ok {
		return p
	}
	return palettes[Blue]
}

// ParseTheme maps anything but "dark" to Light.
func ParseTheme(s string) Theme {
	if strings.EqualFold(strings.TrimSpace(s), string(Dark)) {
		return Dark
	}
	return Light
}

// Options are fixed when a widget is mounted.
type Options struct {
	PrimaryColor   Color  `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	Theme          Theme  `json:"theme"`
}

func DefaultOptions() Options {
	return Options{PrimaryColor: Blue, SecondaryColor: "white", Theme: Light}
}

func (o Options) normalize() Options {
	o.PrimaryColor = ParseColor(string(o.PrimaryColor))
	o.Theme = ParseTheme(string(o.Theme))
	if o.SecondaryColor == "" {
		o.SecondaryColor = "white"
	}
	return o
}

func (o Options) Palette() Palette { return o.PrimaryColor.Palette() }

func (o Options) IsDark() bool { return o.Theme == Dark }
