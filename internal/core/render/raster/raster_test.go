package raster

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/viewport"
)

func testFrame() render.Frame {
	return render.Frame{
		Transform: viewport.Transform{Scale: 1, PanX: -50, PanY: -50},
		Width:     100,
		Height:    100,
		Items: []render.Item{
			{Key: render.KeyOf(render.KindObjective, 1), Props: render.Props{Shape: render.ShapeSquare, Radius: 5, Fill: "#ff0000", Opacity: 1}},
		},
	}
}

func TestRender_PaintsItems(t *testing.T) {
	img := Render(testFrame())
	assert.Equal(t, 100, img.Bounds().Dx())

	r, g, b, _ := img.At(50, 50).RGBA()
	assert.Greater(t, r, uint32(0xf000))
	assert.Less(t, g, uint32(0x1000))
	assert.Less(t, b, uint32(0x1000))

	r, _, _, _ = img.At(5, 5).RGBA()
	assert.Less(t, r, uint32(0x3000), "background")
}

func TestDrawer_WritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.png")
	d := NewDrawer(path)
	assert.Nil(t, d.PNG())

	require.NoError(t, d.Draw(testFrame()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, d.PNG(), data)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dy())
}
