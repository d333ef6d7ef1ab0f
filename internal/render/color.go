package render

import (
	"image/color"
	"math"
)

// Theme selects a color scheme for power visualization.
type Theme string

const (
	ThemeClassic   Theme = "classic"   // blue to red transition
	ThemeGrayscale Theme = "grayscale" // black to white transition
	ThemeThermal   Theme = "thermal"   // black to red to yellow to white

	colorMapSize = 256
)

// colorMapper maps power values in decibels onto a pre-computed color ramp.
type colorMapper struct {
	colorMap      []color.Color
	minDB         float64
	powerPerIndex float64
}

func newColorMapper(theme Theme, minDB, maxDB float64) *colorMapper {
	if maxDB <= minDB {
		maxDB = minDB + 1
	}

	cm := &colorMapper{
		colorMap:      make([]color.Color, colorMapSize),
		minDB:         minDB,
		powerPerIndex: (maxDB - minDB) / float64(colorMapSize-1),
	}

	fn := themeFunc(theme)
	for i := range cm.colorMap {
		cm.colorMap[i] = fn(float64(i) / float64(colorMapSize-1))
	}
	return cm
}

func (cm *colorMapper) color(powerDB float64) color.Color {
	index := int((powerDB - cm.minDB) / cm.powerPerIndex)
	if index < 0 {
		return cm.colorMap[0]
	}
	if index >= colorMapSize {
		return cm.colorMap[colorMapSize-1]
	}
	return cm.colorMap[index]
}

// hsv is a color in hue/saturation/value space; H in degrees [0,360),
// S and V in [0,1].
type hsv struct {
	H, S, V float64
}

func (c hsv) rgb() color.Color {
	if c.S <= 0 {
		v := uint8(c.V * 255)
		return color.RGBA{R: v, G: v, B: v, A: 255}
	}

	h := c.H
	if h >= 360 {
		h -= 360
	}
	h /= 60

	i := int(h)
	f := h - float64(i)

	v := uint8(c.V * 255)
	p := uint8((c.V * (1 - c.S)) * 255)
	q := uint8((c.V * (1 - (c.S * f))) * 255)
	t := uint8((c.V * (1 - (c.S * (1 - f)))) * 255)

	switch i {
	case 0:
		return color.RGBA{R: v, G: t, B: p, A: 255}
	case 1:
		return color.RGBA{R: q, G: v, B: p, A: 255}
	case 2:
		return color.RGBA{R: p, G: v, B: t, A: 255}
	case 3:
		return color.RGBA{R: p, G: q, B: v, A: 255}
	case 4:
		return color.RGBA{R: t, G: p, B: v, A: 255}
	default:
		return color.RGBA{R: v, G: p, B: q, A: 255}
	}
}

func themeFunc(theme Theme) func(float64) color.Color {
	switch theme {
	case ThemeGrayscale:
		return func(p float64) color.Color {
			v := uint8(math.Pow(p, 0.7) * 255)
			return color.RGBA{R: v, G: v, B: v, A: 255}
		}

	case ThemeThermal:
		return func(p float64) color.Color {
			if p < 0.33 {
				return color.RGBA{R: uint8((p * 3) * 255), A: 255}
			}
			if p < 0.66 {
				return color.RGBA{R: 255, G: uint8(((p - 0.33) * 3) * 255), A: 255}
			}
			return color.RGBA{R: 255, G: 255, B: uint8(((p - 0.66) * 3) * 255), A: 255}
		}

	default: // ThemeClassic
		return func(p float64) color.Color {
			return hsv{
				H: 240 - (p * 240),
				S: 0.9 + (p * 0.1),
				V: math.Pow(p, 0.7),
			}.rgb()
		}
	}
}
