package segment

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sparsh-ui/captcha-solver/internal/mask"
)

func fill(m *mask.Mask, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			m.Set(x, y, mask.Foreground)
		}
	}
}

func TestSegmentEmptyMask(t *testing.T) {
	assert.Nil(t, Segment(mask.New(60, 20), 6))
}

func TestSegmentFullWidthBlob(t *testing.T) {
	m := mask.New(60, 20)
	fill(m, 0, 5, 60, 15)

	tiles := Segment(m, 6)
	require.Len(t, tiles, 6)
	for i, tile := range tiles {
		require.Len(t, tile, TileSize*TileSize)
		// each band is a solid 10×10 square, scaled to 22×22 and centred
		for y := 0; y < TileSize; y++ {
			for x := 0; x < TileSize; x++ {
				want := float32(0)
				if x >= 3 && x < 25 && y >= 3 && y < 25 {
					want = 1
				}
				if tile[y*TileSize+x] != want {
					t.Fatalf("tile %d (%d,%d) = %v, want %v", i, x, y, tile[y*TileSize+x], want)
				}
			}
		}
	}
}

func TestSegmentBlankBand(t *testing.T) {
	m := mask.New(60, 20)
	fill(m, 0, 5, 10, 15)  // band 0
	fill(m, 50, 5, 60, 15) // band 5

	tiles := Segment(m, 6)
	require.Len(t, tiles, 6)
	blank := make([]float32, TileSize*TileSize)
	for i := 1; i < 5; i++ {
		if diff := cmp.Diff(blank, tiles[i]); diff != "" {
			t.Errorf("tile %d is not blank (-want +got):\n%s", i, diff)
		}
	}
	assert.NotEqual(t, blank, tiles[0])
	assert.NotEqual(t, blank, tiles[5])
}

func TestBands(t *testing.T) {
	// 20 pixels into 6 bands of 3.33: boundaries floor independently
	bands := Bands(Box{Left: 5, Right: 24}, 6)
	assert.Equal(t, [][2]int{{5, 8}, {8, 11}, {11, 15}, {15, 18}, {18, 21}, {21, 25}}, bands)
}

func TestBoundingBox(t *testing.T) {
	m := mask.New(30, 30)
	m.Set(4, 7, mask.Foreground)
	m.Set(20, 3, mask.Foreground)
	m.Set(11, 25, mask.Foreground)

	box, ok := BoundingBox(m, 0, 0, 30, 30)
	require.True(t, ok)
	assert.Equal(t, Box{Left: 4, Top: 3, Right: 20, Bottom: 25}, box)
	assert.Equal(t, 17, box.Width())
	assert.Equal(t, 23, box.Height())

	box, ok = BoundingBox(m, 10, 0, 15, 30)
	require.True(t, ok)
	assert.Equal(t, Box{Left: 11, Top: 25, Right: 11, Bottom: 25}, box)

	_, ok = BoundingBox(m, 12, 0, 19, 30)
	assert.False(t, ok)
}

func TestCanvasKeepsAspectRatio(t *testing.T) {
	// an 11 wide, 44 tall bar scales by 0.5 to 6×22 (5.5 rounds up)
	m := mask.New(20, 50)
	fill(m, 2, 3, 13, 47)
	canvas := Canvas(m, Box{Left: 2, Top: 3, Right: 12, Bottom: 46})

	ink := 0
	for y := 0; y < TileSize; y++ {
		for x := 0; x < TileSize; x++ {
			if canvas[y*TileSize+x] == mask.Foreground {
				ink++
				assert.True(t, x >= 11 && x < 17 && y >= 3 && y < 25, "ink at (%d,%d)", x, y)
			}
		}
	}
	assert.Equal(t, 6*22, ink)
}

func TestCanvasSinglePixel(t *testing.T) {
	m := mask.New(5, 5)
	m.Set(2, 2, mask.Foreground)
	canvas := Canvas(m, Box{Left: 2, Top: 2, Right: 2, Bottom: 2})
	count := 0
	for _, v := range canvas {
		if v == mask.Foreground {
			count++
		}
	}
	assert.Equal(t, 22*22, count)
}

func TestNormalizeRoundTrip(t *testing.T) {
	canvas := make([]byte, TileSize*TileSize)
	for i := range canvas {
		if i%3 == 0 {
			canvas[i] = mask.Background
		}
	}
	tile := Normalize(canvas)
	for i, v := range tile {
		if canvas[i] == mask.Foreground {
			assert.Equal(t, float32(1), v)
		} else {
			assert.Equal(t, float32(0), v)
		}
	}
	assert.Equal(t, canvas, Denormalize(tile))
}
