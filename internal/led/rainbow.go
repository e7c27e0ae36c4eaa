package led

import "github.com/lucasb-eyer/go-colorful"

// hueTable maps an 8-bit hue to a fully saturated, full value color.
var hueTable [256]RGBColor

func init() {
	for h := range hueTable {
		c := colorful.Hsv(float64(h)*360/256, 1, 1)
		r, g, b := c.RGB255()
		hueTable[h] = RGBColor{r, g, b}
	}
}

// Hue returns the fully saturated color for the given 8-bit hue.
func Hue(h uint8) RGBColor {
	return hueTable[h]
}

// FillRainbow fills the strip with a rainbow starting at startHue. Each
// following LED's hue is deltaHue further along, wrapping at 256.
func (l LEDs) FillRainbow(startHue, deltaHue uint8) {
	hue := startHue
	for i := range l {
		l[i] = hueTable[hue]
		hue += deltaHue
	}
}
