package cocogt

// The binary mask representation and bounding box rasterization.

import "math"

// Mask is a binary mask at image resolution, stored row-major with one byte
// per pixel holding 0 or 1. Masks are never mutated after rasterization.
type Mask struct {
	H, W int
	Pix  []uint8
}

// NewMask returns an all-background mask of size h by w.
func NewMask(h, w int) *Mask {
	return &Mask{H: h, W: w, Pix: make([]uint8, h*w)}
}

// At reports whether the pixel at row y, column x is foreground.
func (m *Mask) At(y, x int) bool {
	return m.Pix[y*m.W+x] != 0
}

// Set marks the pixel at row y, column x as foreground.
func (m *Mask) Set(y, x int) {
	m.Pix[y*m.W+x] = 1
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, p := range m.Pix {
		if p != 0 {
			n++
		}
	}
	return n
}

// Bounds returns the tight half-open bounding box [x0,x1)x[y0,y1) of the
// foreground. ok is false for an all-background mask.
func (m *Mask) Bounds() (x0, y0, x1, y1 int, ok bool) {
	x0, y0 = m.W, m.H
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.Pix[y*m.W+x] == 0 {
				continue
			}
			if x < x0 {
				x0 = x
			}
			if y < y0 {
				y0 = y
			}
			if x+1 > x1 {
				x1 = x + 1
			}
			if y+1 > y1 {
				y1 = y + 1
			}
			ok = true
		}
	}
	if !ok {
		return 0, 0, 0, 0, false
	}
	return x0, y0, x1, y1, true
}

// Equal reports whether two masks have identical size and pixels.
func (m *Mask) Equal(o *Mask) bool {
	if m.H != o.H || m.W != o.W {
		return false
	}
	for i := range m.Pix {
		if m.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// BoxMask rasterizes the bounding box [x, y, w, h] into a mask of size h by
// w pixels. Both endpoints of the half-open pixel interval are rounded to
// the nearest integer (x0=round(x), x1=round(x+w), likewise for y) and
// clipped to the image bounds, so an integral w by h box covers exactly
// w*h pixels.
func BoxMask(bbox [4]float64, height, width int) *Mask {
	mask := NewMask(height, width)

	x0 := clip(int(math.Round(bbox[0])), 0, width)
	x1 := clip(int(math.Round(bbox[0]+bbox[2])), 0, width)
	y0 := clip(int(math.Round(bbox[1])), 0, height)
	y1 := clip(int(math.Round(bbox[1]+bbox[3])), 0, height)

	for y := y0; y < y1; y++ {
		row := mask.Pix[y*width : y*width+width]
		for x := x0; x < x1; x++ {
			row[x] = 1
		}
	}
	return mask
}

func clip(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
