package cocogt

// Polygon scan-fill rasterization.

import (
	"image"
	"image/color"

	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
)

// PolygonMask rasterizes the polygon rings (flat x,y vertex pairs in
// absolute pixel coordinates) into a mask of size height by width. The
// rings of one annotation are unioned. Filling uses the even-odd rule;
// pixels with at least half anti-aliased coverage are foreground.
func PolygonMask(rings [][]float64, height, width int) *Mask {
	mask := NewMask(height, width)
	for _, ring := range rings {
		if len(ring) < 6 {
			// Fewer than three vertices encloses no area.
			continue
		}
		fillRing(mask, ring)
	}
	return mask
}

// fillRing draws the closed ring onto an alpha canvas and ORs the covered
// pixels into mask.
func fillRing(mask *Mask, ring []float64) {
	canvas := image.NewRGBA(image.Rect(0, 0, mask.W, mask.H))
	gc := draw2dimg.NewGraphicContext(canvas)
	gc.SetFillRule(draw2d.FillRuleEvenOdd)
	gc.SetFillColor(color.RGBA{A: 255})

	gc.MoveTo(ring[0], ring[1])
	for i := 2; i+1 < len(ring); i += 2 {
		gc.LineTo(ring[i], ring[i+1])
	}
	gc.Close()
	gc.Fill()

	for y := 0; y < mask.H; y++ {
		for x := 0; x < mask.W; x++ {
			if canvas.Pix[canvas.PixOffset(x, y)+3] >= 128 {
				mask.Set(y, x)
			}
		}
	}
}
