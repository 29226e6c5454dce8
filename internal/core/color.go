package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a foreground colour in a form terminal styling libraries accept:
// an ANSI index such as "9" or a "#rrggbb" value. The empty Color is the
// terminal default.
type Color string

// Predefined colors for arena elements.
const (
	ColorDefault       Color = ""
	ColorRed           Color = "1"
	ColorGreen         Color = "2"
	ColorYellow        Color = "3"
	ColorBlue          Color = "4"
	ColorMagenta       Color = "5"
	ColorCyan          Color = "6"
	ColorWhite         Color = "7"
	ColorGray          Color = "8"
	ColorBrightRed     Color = "9"
	ColorBrightGreen   Color = "10"
	ColorBrightYellow  Color = "11"
	ColorBrightBlue    Color = "12"
	ColorBrightMagenta Color = "13"
	ColorBrightCyan    Color = "14"
	ColorBrightWhite   Color = "15"
)

// ParseCSSColor converts a CSS colour of the form "rgb(r, g, b)" or
// "#rrggbb" into a Color. Anything else yields ColorDefault.
func ParseCSSColor(s string) Color {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") && len(s) == 7 {
		if _, err := strconv.ParseUint(s[1:], 16, 32); err == nil {
			return Color(strings.ToLower(s))
		}
		return ColorDefault
	}
	inner, ok := strings.CutPrefix(s, "rgb(")
	if !ok {
		return ColorDefault
	}
	inner, ok = strings.CutSuffix(inner, ")")
	if !ok {
		return ColorDefault
	}
	parts := strings.Split(inner, ",")
	if len(parts) != 3 {
		return ColorDefault
	}
	var rgb [3]uint64
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return ColorDefault
		}
		rgb[i] = v
	}
	return Color(fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2]))
}

// HealthColor picks a colour for a health fraction in [0, 1].
func HealthColor(frac float64) Color {
	switch {
	case frac > 0.6:
		return ColorGreen
	case frac > 0.3:
		return ColorYellow
	default:
		return ColorBrightRed
	}
}
