package cocogt

// The COCO run-length mask codec.
//
// Runs are stored in column-major order (all of column 0 top to bottom, then
// column 1, and so on) and alternate between background and foreground,
// starting with background. This matches the encoding of the COCO mask
// tools, which the crowd-region masks in the annotation files come from.

import "fmt"

// RLE is a run-length encoded binary mask.
type RLE struct {
	H, W   int
	Counts []int
}

// Decode expands the run lengths into a mask of size r.H by r.W. An empty
// run list is a valid encoding of the all-background mask.
func (r *RLE) Decode() (*Mask, error) {
	mask := NewMask(r.H, r.W)
	if len(r.Counts) == 0 {
		return mask, nil
	}
	total := r.H * r.W
	pos := 0
	val := uint8(0)
	for _, n := range r.Counts {
		if n < 0 || pos+n > total {
			return nil, fmt.Errorf("run of %d pixels overflows a %dx%d mask", n, r.H, r.W)
		}
		if val == 1 {
			for i := pos; i < pos+n; i++ {
				// Column-major pixel i sits at row i%H, column i/H.
				mask.Pix[(i%r.H)*r.W+i/r.H] = 1
			}
		}
		pos += n
		val = 1 - val
	}
	if pos != total {
		return nil, fmt.Errorf("run lengths cover %d of %d pixels", pos, total)
	}
	return mask, nil
}

// EncodeRLE run-length encodes the mask in column-major order. The first
// count is the length of the leading background run and may be zero.
func EncodeRLE(m *Mask) *RLE {
	counts := make([]int, 0, 16)
	run := 0
	val := uint8(0)
	for x := 0; x < m.W; x++ {
		for y := 0; y < m.H; y++ {
			if p := m.Pix[y*m.W+x]; p == val {
				run++
			} else {
				counts = append(counts, run)
				val = p
				run = 1
			}
		}
	}
	counts = append(counts, run)
	return &RLE{H: m.H, W: m.W, Counts: counts}
}

// decodeCountsString decodes the compressed count string used for crowd
// region masks. Each count is stored as a sequence of 6-bit chunks offset
// by 48, five value bits per chunk with 0x20 as the continuation bit and
// 0x10 on the final chunk carrying the sign. Counts after the second are
// deltas from the count two positions back.
func decodeCountsString(s string) ([]int, error) {
	var counts []int
	for p := 0; p < len(s); {
		x, k, more := 0, 0, true
		for more {
			if p >= len(s) {
				return nil, fmt.Errorf("truncated count string")
			}
			c := int(s[p]) - 48
			if c < 0 || c > 63 {
				return nil, fmt.Errorf("invalid character %q in count string", s[p])
			}
			x |= (c & 0x1f) << uint(5*k)
			more = c&0x20 != 0
			p++
			k++
			if !more && c&0x10 != 0 {
				x |= -1 << uint(5*k)
			}
		}
		if len(counts) > 2 {
			x += counts[len(counts)-2]
		}
		counts = append(counts, x)
	}
	return counts, nil
}
