// Package colorutil scores how well wardrobe colors go together.
package colorutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// HSL holds hue in degrees [0, 360), saturation and lightness in [0, 1].
type HSL struct {
	H float64
	S float64
	L float64
}

// common wardrobe color names resolved to a representative hex value
var namedColors = map[string]string{
	"black":     "#000000",
	"white":     "#ffffff",
	"ivory":     "#fffff0",
	"cream":     "#fffdd0",
	"gray":      "#808080",
	"grey":      "#808080",
	"charcoal":  "#36454f",
	"silver":    "#c0c0c0",
	"navy":      "#000080",
	"blue":      "#0000ff",
	"denim":     "#1560bd",
	"teal":      "#008080",
	"turquoise": "#40e0d0",
	"cyan":      "#00ffff",
	"green":     "#008000",
	"olive":     "#808000",
	"khaki":     "#c3b091",
	"mint":      "#98ff98",
	"red":       "#ff0000",
	"burgundy":  "#800020",
	"maroon":    "#800000",
	"pink":      "#ffc0cb",
	"orange":    "#ffa500",
	"coral":     "#ff7f50",
	"yellow":    "#ffff00",
	"mustard":   "#e1ad01",
	"gold":      "#ffd700",
	"beige":     "#f5f5dc",
	"tan":       "#d2b48c",
	"camel":     "#c19a6b",
	"brown":     "#8b4513",
	"purple":    "#800080",
	"lavender":  "#e6e6fa",
	"violet":    "#ee82ee",
}

// ParseHex parses "#rgb" or "#rrggbb" (the leading # is optional).
func ParseHex(value string) (HSL, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return HSL{}, fmt.Errorf("invalid hex color %q", value)
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return HSL{}, fmt.Errorf("invalid hex color %q: %w", value, err)
	}
	r := float64((rgb>>16)&0xff) / 255
	g := float64((rgb>>8)&0xff) / 255
	b := float64(rgb&0xff) / 255
	return rgbToHSL(r, g, b), nil
}

// ParseColor accepts a hex value or a common color name such as "navy".
func ParseColor(value string) (HSL, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	if hex, ok := namedColors[name]; ok {
		return ParseHex(hex)
	}
	if hsl, err := ParseHex(name); err == nil {
		return hsl, nil
	}
	// "dark navy blue" -> "navy blue" -> "blue"
	words := strings.Fields(name)
	for i := 1; i < len(words); i++ {
		if hex, ok := namedColors[strings.Join(words[i:], " ")]; ok {
			return ParseHex(hex)
		}
	}
	return HSL{}, fmt.Errorf("unknown color %q", value)
}

func rgbToHSL(r, g, b float64) HSL {
	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	l := (maxC + minC) / 2
	if maxC == minC {
		return HSL{H: 0, S: 0, L: l}
	}
	d := maxC - minC
	var s float64
	if l > 0.5 {
		s = d / (2 - maxC - minC)
	} else {
		s = d / (maxC + minC)
	}
	var h float64
	switch maxC {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return HSL{H: math.Mod(h*60, 360), S: s, L: l}
}

// IsNeutral reports colors without a meaningful hue (grays, near black or white).
func (c HSL) IsNeutral() bool {
	return c.S < 0.1 || c.L < 0.08 || c.L > 0.95
}

// Hue returns the hue of a hex color or color name in degrees.
func Hue(value string) (float64, error) {
	c, err := ParseColor(value)
	if err != nil {
		return 0, err
	}
	return c.H, nil
}

func rawHueDifference(a, b HSL) float64 {
	return math.Abs(a.H - b.H)
}

// HueDistance is the shortest distance around the color wheel, in [0, 180].
func HueDistance(a, b HSL) float64 {
	d := rawHueDifference(a, b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// AreMonochromatic is true when the hues are less than 10 degrees apart.
func AreMonochromatic(a, b string) (bool, error) {
	ca, cb, err := parsePair(a, b)
	if err != nil {
		return false, err
	}
	return HueDistance(ca, cb) < 10, nil
}

// AreComplementary is true when the hue difference lies strictly between 150 and 210 degrees.
func AreComplementary(a, b string) (bool, error) {
	ca, cb, err := parsePair(a, b)
	if err != nil {
		return false, err
	}
	d := rawHueDifference(ca, cb)
	return d > 150 && d < 210, nil
}

// AreAnalogous is true for neighbouring hues up to 30 degrees apart.
func AreAnalogous(a, b string) (bool, error) {
	ca, cb, err := parsePair(a, b)
	if err != nil {
		return false, err
	}
	return HueDistance(ca, cb) <= 30, nil
}

func parsePair(a, b string) (HSL, HSL, error) {
	ca, err := ParseColor(a)
	if err != nil {
		return HSL{}, HSL{}, err
	}
	cb, err := ParseColor(b)
	if err != nil {
		return HSL{}, HSL{}, err
	}
	return ca, cb, nil
}

const (
	SchemeNeutral       = "neutral"
	SchemeMonochromatic = "monochromatic"
	SchemeAnalogous     = "analogous"
	SchemeComplementary = "complementary"
	SchemeTriadic       = "triadic"
	SchemeMixed         = "mixed"
)

type Harmony struct {
	Score  float64 `json:"score"`
	Scheme string  `json:"scheme"`
	// colors that could not be parsed are ignored
	Unknown []string `json:"unknown,omitempty"`
}

func pairScore(d float64) float64 {
	switch {
	case d < 10:
		return 1
	case d <= 30:
		return 0.9
	case d > 150:
		return 0.85
	case d >= 110 && d <= 130:
		return 0.8
	default:
		return 0.4
	}
}

// PaletteHarmony rates a set of colors. Neutrals go with everything and only
// chromatic colors are compared pairwise.
func PaletteHarmony(colors []string) Harmony {
	var chromatic []HSL
	var unknown []string
	for _, value := range colors {
		c, err := ParseColor(value)
		if err != nil {
			unknown = append(unknown, value)
			continue
		}
		if !c.IsNeutral() {
			chromatic = append(chromatic, c)
		}
	}
	switch len(chromatic) {
	case 0:
		return Harmony{Score: 1, Scheme: SchemeNeutral, Unknown: unknown}
	case 1:
		return Harmony{Score: 1, Scheme: SchemeMonochromatic, Unknown: unknown}
	}

	total, pairs := 0.0, 0
	allMono, allAnalogous, hasComplement, allTriadic := true, true, false, true
	for i := 0; i < len(chromatic); i++ {
		for j := i + 1; j < len(chromatic); j++ {
			d := HueDistance(chromatic[i], chromatic[j])
			total += pairScore(d)
			pairs++
			allMono = allMono && d < 10
			allAnalogous = allAnalogous && d <= 30
			hasComplement = hasComplement || d > 150
			allTriadic = allTriadic && ((d >= 110 && d <= 130) || d < 10)
		}
	}
	score := math.Round(total/float64(pairs)*100) / 100
	scheme := SchemeMixed
	switch {
	case allMono:
		scheme = SchemeMonochromatic
	case allAnalogous:
		scheme = SchemeAnalogous
	case allTriadic:
		scheme = SchemeTriadic
	case hasComplement:
		scheme = SchemeComplementary
	}
	return Harmony{Score: score, Scheme: scheme, Unknown: unknown}
}
