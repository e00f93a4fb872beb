package cocogt

// NPZ emission, the canonical per-image ground truth artifact.
//
// Each image produces one NPZ file holding three NumPy arrays:
//
//	masks      uint8 (count, height, width)  stacked binary masks
//	class_ids  int64 (count,)                dense class indices
//	ids        int64 (count,)                annotation or segment ids
//
// NPZ is a plain zip of .npy members; shape and dtype live in each member's
// header, so the artifact is self-describing and loads directly with
// numpy.load.

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// maskStack flattens an image's masks into one contiguous uint8 buffer of
// shape (count, height, width) plus the parallel class and id arrays.
func maskStack(gt ImageGroundTruth) (masks []uint8, classIDs, ids []int64, err error) {
	n := len(gt.Instances)
	h, w := gt.Image.Height, gt.Image.Width

	masks = make([]uint8, n*h*w)
	classIDs = make([]int64, n)
	ids = make([]int64, n)
	for i, inst := range gt.Instances {
		if inst.Mask.H != h || inst.Mask.W != w {
			return nil, nil, nil, &DimensionMismatchError{ImageID: gt.Image.ID,
				AnnotationID: inst.ID, WantH: h, WantW: w, GotH: inst.Mask.H, GotW: inst.Mask.W}
		}
		copy(masks[i*h*w:(i+1)*h*w], inst.Mask.Pix)
		classIDs[i] = int64(inst.ClassIndex)
		ids[i] = inst.ID
	}
	return masks, classIDs, ids, nil
}

// WriteNPZ writes the ground truth for one image into dir, named after the
// source image's file stem. Instances are already in deterministic order
// and the zip metadata is fixed, so re-running overwrites the prior
// artifact byte-for-byte.
func WriteNPZ(dir string, gt ImageGroundTruth) error {
	masks, classIDs, ids, err := maskStack(gt)
	if err != nil {
		return err
	}
	n, h, w := len(gt.Instances), gt.Image.Height, gt.Image.Width

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	members := []struct {
		name    string
		backing interface{}
		shape   tensor.Shape
		dtype   string
	}{
		{"masks.npy", masks, tensor.Shape{n, h, w}, "u1"},
		{"class_ids.npy", classIDs, tensor.Shape{n}, "i8"},
		{"ids.npy", ids, tensor.Shape{n}, "i8"},
	}
	for _, m := range members {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: m.name, Method: zip.Store})
		if err != nil {
			return err
		}
		if err := writeNpy(f, m.backing, m.shape, m.dtype); err != nil {
			return errors.Wrapf(err, "member %s", m.name)
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}

	path := filepath.Join(dir, artifactStem(gt.Image)+".npz")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "cannot write %q", path)
	}
	return nil
}

// artifactStem names an image's output artifact after its source file stem,
// falling back to the image id when the file name carries no extension.
func artifactStem(img ImageInfo) string {
	if _, stem, _, err := splitPath(img.FileName); err == nil {
		return stem
	}
	return fmt.Sprintf("%d", img.ID)
}

// writeNpy serialises one array in NumPy .npy format. Non-empty arrays go
// through the tensor writer; zero-length arrays (images without annotations
// are valid inputs) need a hand-built header because a dense tensor cannot
// be empty.
func writeNpy(w io.Writer, backing interface{}, shape tensor.Shape, dtype string) error {
	if shape.TotalSize() == 0 {
		return writeEmptyNpy(w, shape, dtype)
	}
	t := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
	return t.WriteNpy(w)
}

// writeEmptyNpy emits a valid npy header for a zero-element array of the
// given shape and little-endian dtype code (e.g. "u1", "i8").
func writeEmptyNpy(w io.Writer, shape tensor.Shape, dtype string) error {
	var tuple strings.Builder
	tuple.WriteByte('(')
	for i, d := range shape {
		if i > 0 {
			tuple.WriteString(", ")
		}
		fmt.Fprintf(&tuple, "%d", d)
	}
	if len(shape) == 1 {
		tuple.WriteByte(',')
	}
	tuple.WriteByte(')')

	header := fmt.Sprintf("{'descr': '<%s', 'fortran_order': False, 'shape': %s}",
		dtype, tuple.String())
	// Pad so the preamble plus the newline-terminated header is a multiple
	// of 16 bytes.
	if pad := 16 - (10+len(header)+1)%16; pad < 16 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"

	buf := make([]byte, 0, 10+len(header))
	buf = append(buf, "\x93NUMPY"...)
	buf = append(buf, 1, 0)
	buf = append(buf, byte(len(header)%256), byte(len(header)/256))
	buf = append(buf, header...)
	_, err := w.Write(buf)
	return err
}
