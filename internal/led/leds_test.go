package led

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLEDsSetOutOfRange(t *testing.T) {
	leds := NewLEDs(4)

	assert.True(t, leds.Set(3, Red))
	assert.False(t, leds.Set(4, Red))
	assert.False(t, leds.Set(-1, Red))
	assert.Equal(t, LEDs{Black, Black, Black, Red}, leds)
}

func TestLEDsHeadTail(t *testing.T) {
	tests := []struct {
		name     string
		length   int
		region   int
		head     [2]int
		tail     [2]int
		expected LEDs
	}{
		{
			name:   "disjoint",
			length: 6, region: 2,
			head:     [2]int{0, 2},
			tail:     [2]int{4, 6},
			expected: LEDs{White, White, Black, Black, White, White},
		},
		{
			name:   "overlapping",
			length: 3, region: 2,
			head:     [2]int{0, 2},
			tail:     [2]int{1, 3},
			expected: LEDs{White, White, White},
		},
		{
			name:   "region larger than strip",
			length: 4, region: 15,
			head:     [2]int{0, 4},
			tail:     [2]int{0, 4},
			expected: LEDs{White, White, White, White},
		},
		{
			name:   "empty region",
			length: 4, region: 0,
			head:     [2]int{0, 0},
			tail:     [2]int{4, 4},
			expected: LEDs{Black, Black, Black, Black},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			leds := NewLEDs(test.length)

			start, end := leds.Head(test.region)
			assert.Equal(t, test.head, [2]int{start, end})

			start, end = leds.Tail(test.region)
			assert.Equal(t, test.tail, [2]int{start, end})

			leds.SetEnds(test.region, White)
			assert.Equal(t, test.expected, leds)
		})
	}
}

func TestLEDsEndsNeverLeaveStrip(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for region := 0; region <= 40; region++ {
			leds := NewLEDs(n)
			assert.NotPanics(t, func() { leds.SetEnds(region, Red) }, "n=%d region=%d", n, region)
			assert.Len(t, leds, n)
		}
	}
}

func TestLEDsSetRangeClamps(t *testing.T) {
	leds := NewLEDs(3)
	leds.SetRange(-5, 2, Blue)
	leds.SetRange(2, 10, Green)
	leds.SetRange(3, 1, Red)
	assert.Equal(t, LEDs{Blue, Blue, Green}, leds)
}

func TestLEDsPixels(t *testing.T) {
	leds := LEDs{RGBColor{1, 2, 3}, RGBColor{4, 5, 6}}
	assert.Equal(t, []uint8{1, 2, 3, 4, 5, 6}, leds.AsPixels())
	assert.Nil(t, NewLEDs(0).AsPixels())

	// The pixels alias the strip.
	leds.AsPixels()[0] = 9
	assert.Equal(t, RGBColor{9, 2, 3}, leds[0])
}

func TestColorScale(t *testing.T) {
	assert.Equal(t, White, White.Scale(255))
	assert.Equal(t, Black, White.Scale(0).Scale(0))
	assert.Equal(t, RGBColor{127, 50, 0}, Amber.Scale(127))

	leds := LEDs{White, Red}
	scaled := leds.Scaled(127)
	assert.Equal(t, LEDs{RGBColor{127, 127, 127}, RGBColor{127, 0, 0}}, scaled)
	assert.Equal(t, LEDs{White, Red}, leds, "source must be untouched")
}

func TestLEDsImage(t *testing.T) {
	img := LEDs{Red, Blue}.Image()
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 1, img.Bounds().Dy())
	assert.Equal(t, Blue.NRGBA(), img.NRGBAAt(1, 0))
}

func TestFillRainbow(t *testing.T) {
	leds := NewLEDs(40)
	leds.FillRainbow(250, 7)

	hue := uint8(250)
	for i, c := range leds {
		assert.Equal(t, Hue(hue), c, "led %d", i)
		hue += 7
	}

	assert.Equal(t, Red, Hue(0))
}
