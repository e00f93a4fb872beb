package cocogt

// Error types for annotation loading and rasterization failures.

import "fmt"

// SchemaError reports a malformed or incomplete annotation file, e.g. a
// missing required field or an annotation referencing an unknown category.
type SchemaError struct {
	Path   string // The annotation file.
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid annotation file %q: %s", e.Path, e.Detail)
}

// DimensionMismatchError reports an annotation or mask image whose declared
// size disagrees with the owning image record.
type DimensionMismatchError struct {
	ImageID      int64
	AnnotationID int64 // Zero when the mismatch is not tied to one annotation.
	WantH, WantW int
	GotH, GotW   int
}

func (e *DimensionMismatchError) Error() string {
	if e.AnnotationID != 0 {
		return fmt.Sprintf("annotation %d of image %d: size %dx%d does not match image size %dx%d",
			e.AnnotationID, e.ImageID, e.GotH, e.GotW, e.WantH, e.WantW)
	}
	return fmt.Sprintf("image %d: mask size %dx%d does not match image size %dx%d",
		e.ImageID, e.GotH, e.GotW, e.WantH, e.WantW)
}

// ColorCollisionError reports two panoptic segments of one image sharing an
// RGB color key. The segments cannot be told apart in the mask, so the input
// is rejected rather than silently merged.
type ColorCollisionError struct {
	ImageID   int64
	SegmentID int64
}

func (e *ColorCollisionError) Error() string {
	return fmt.Sprintf("image %d: duplicate panoptic segment id %d", e.ImageID, e.SegmentID)
}
