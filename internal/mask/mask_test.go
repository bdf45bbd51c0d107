package mask

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRGBToHSV(t *testing.T) {
	cases := []struct {
		r, g, b uint8
		h, s, v float64
	}{
		{255, 0, 0, 0, 255, 255},
		{0, 255, 0, 60, 255, 255},
		{0, 0, 255, 120, 255, 255},
		{255, 0, 255, 150, 255, 255},
		{128, 128, 128, 0, 0, 128},
		{0, 0, 0, 0, 0, 0},
	}
	for _, c := range cases {
		h, s, v := RGBToHSV(c.r, c.g, c.b)
		assert.InDelta(t, c.h, h, 1e-9, "hue of %v", c)
		assert.InDelta(t, c.s, s, 1e-9, "saturation of %v", c)
		assert.InDelta(t, c.v, v, 1e-9, "value of %v", c)
	}
}

func TestIsForeground(t *testing.T) {
	cases := map[string]struct {
		c    color.NRGBA
		want bool
	}{
		"red gridline":        {color.NRGBA{200, 60, 60, 255}, true},
		"magenta-red wraps":   {color.NRGBA{220, 40, 120, 255}, true},
		"saturated blue":      {color.NRGBA{60, 90, 220, 255}, true},
		"dark ink":            {color.NRGBA{40, 40, 40, 255}, true},
		"mid gray":            {color.NRGBA{128, 128, 128, 255}, false},
		"white":               {color.NRGBA{255, 255, 255, 255}, false},
		"pale pink":           {color.NRGBA{255, 230, 230, 255}, false},
		"faint warm beige":    {color.NRGBA{230, 220, 200, 255}, false},
		"dim red low value":   {color.NRGBA{38, 20, 20, 255}, true}, // dark wins
		"light gray near ink": {color.NRGBA{70, 70, 70, 255}, false},
	}
	for name, c := range cases {
		assert.Equal(t, c.want, IsForeground(c.c.R, c.c.G, c.c.B), name)
	}
}

func TestIsForegroundRedAlone(t *testing.T) {
	// s≈40.8 and gray≈177.6: neither saturated nor dark, red hue decides.
	h, s, v := RGBToHSV(200, 168, 168)
	assert.InDelta(t, 0, h, 1e-9)
	assert.InDelta(t, 40.8, s, 1e-9)
	assert.InDelta(t, 200, v, 1e-9)
	require.False(t, s > MinSaturation)
	require.False(t, Gray(200, 168, 168) < MaxGray)

	assert.True(t, IsForeground(200, 168, 168), "pale red, hue 0")
	assert.True(t, IsForeground(200, 168, 180), "pale red wrapping past 165")
	assert.False(t, IsForeground(168, 200, 168), "same saturation, green hue")
	assert.False(t, IsForeground(168, 168, 200), "same saturation, blue hue")
}

func TestForegroundBoundaries(t *testing.T) {
	cases := map[string]struct {
		h, s, v, gray float64
		want          bool
	}{
		"hue 15 is red":             {15, 45, 200, 180, true},
		"hue just above 15":         {15.01, 45, 200, 180, false},
		"hue 165 is red":            {165, 45, 200, 180, true},
		"hue just below 165":        {164.99, 45, 200, 180, false},
		"red saturation exactly 40": {0, 40, 200, 180, false},
		"red saturation above 40":   {0, 40.01, 200, 180, true},
		"red value exactly 40":      {0, 45, 40, 180, false},
		"red value above 40":        {0, 45, 40.01, 180, true},
		"saturation exactly 50":     {90, 50, 200, 180, false},
		"saturation above 50":       {90, 50.01, 200, 180, true},
		"gray exactly 60":           {90, 0, 60, 60, false},
		"gray below 60":             {90, 0, 59.99, 59.99, true},
	}
	for name, c := range cases {
		assert.Equal(t, c.want, foreground(c.h, c.s, c.v, c.gray), name)
	}
}

func TestBinarizeGrayImageIsEmpty(t *testing.T) {
	img := imaging.New(40, 20, color.NRGBA{150, 150, 150, 255})
	m := RemoveGrid(img)
	assert.Equal(t, 40, m.Width)
	assert.Equal(t, 20, m.Height)
	assert.Zero(t, m.Count())
}

func TestBinarizeMarksRedGrid(t *testing.T) {
	img := imaging.New(10, 10, color.White)
	for x := 0; x < 10; x++ {
		img.Set(x, 4, color.NRGBA{220, 30, 30, 255})
	}
	m := Binarize(img)
	assert.Equal(t, 10, m.Count())
	for x := 0; x < 10; x++ {
		assert.Equal(t, Foreground, m.At(x, 4))
	}
}

func TestBinarizeSubImage(t *testing.T) {
	img := imaging.New(10, 10, color.White)
	img.Set(6, 6, color.Black)
	sub := img.SubImage(image.Rect(5, 5, 10, 10)).(*image.NRGBA)
	m := Binarize(sub)
	require.Equal(t, 5, m.Width)
	assert.Equal(t, Foreground, m.At(1, 1))
	assert.Equal(t, 1, m.Count())
}

func TestDenoiseRemovesIsolatedPixel(t *testing.T) {
	m := New(5, 5)
	m.Set(2, 2, Foreground)
	out := m.Denoise()
	assert.Zero(t, out.Count())
	// the input is left untouched
	assert.Equal(t, Foreground, m.At(2, 2))
}

func TestDenoiseKeepsTwoPixelCluster(t *testing.T) {
	for _, second := range [][2]int{{3, 2}, {2, 3}, {3, 3}} {
		m := New(6, 6)
		m.Set(2, 2, Foreground)
		m.Set(second[0], second[1], Foreground)
		assert.Equal(t, 2, m.Denoise().Count())
	}
}

func TestDenoiseLeavesBorder(t *testing.T) {
	m := New(5, 5)
	m.Set(0, 0, Foreground)
	m.Set(4, 2, Foreground)
	m.Set(2, 4, Foreground)
	assert.Equal(t, 3, m.Denoise().Count())
}
