package cocogt

// Per-image ground truth records and the three task conversions. Each
// conversion is a pure function of the loaded annotation set and one image
// id, so images can be processed on any number of workers without
// synchronization.

import (
	"fmt"
	"log"

	"github.com/pkg/errors"
)

// Instance is one (mask, class index, id) triple of an image's ground
// truth. The id is the annotation id for the detection and instance tasks
// and the segment id for the panoptic task.
type Instance struct {
	ID         int64
	ClassIndex int
	Mask       *Mask
}

// ImageGroundTruth is the canonical per-image output record. Instances are
// ordered by ascending id.
type ImageGroundTruth struct {
	Image     ImageInfo
	Instances []Instance
	Unlabeled int // Pixels covered by no segment (panoptic only).
}

// DetectionGroundTruth builds the detection view for one image: one
// rectangular mask per bounding box annotation.
func DetectionGroundTruth(set *InstanceSet, imageID int64) (ImageGroundTruth, error) {
	img, ok := set.Image(imageID)
	if !ok {
		return ImageGroundTruth{}, fmt.Errorf("unknown image id %d", imageID)
	}

	anns := set.Annotations[imageID]
	gt := ImageGroundTruth{Image: img, Instances: make([]Instance, 0, len(anns))}
	for _, a := range anns {
		classIdx, _ := set.Classes.Dense(a.CategoryID)
		gt.Instances = append(gt.Instances, Instance{
			ID:         a.ID,
			ClassIndex: classIdx,
			Mask:       BoxMask(a.BBox, img.Height, img.Width),
		})
	}
	return gt, nil
}

// InstanceGroundTruth builds the instance segmentation view for one image:
// one mask per polygon or RLE annotation. Annotations whose RLE size
// disagrees with the image record are skipped with a log line; the rest of
// the image is still converted.
func InstanceGroundTruth(set *InstanceSet, imageID int64) (ImageGroundTruth, error) {
	img, ok := set.Image(imageID)
	if !ok {
		return ImageGroundTruth{}, fmt.Errorf("unknown image id %d", imageID)
	}

	anns := set.Annotations[imageID]
	gt := ImageGroundTruth{Image: img, Instances: make([]Instance, 0, len(anns))}
	for _, a := range anns {
		classIdx, _ := set.Classes.Dense(a.CategoryID)

		mask, err := segmentationMask(a, img)
		if err != nil {
			var dim *DimensionMismatchError
			if errors.As(err, &dim) {
				log.Printf("Skipping annotation %d of image %d: %v", a.ID, img.ID, err)
				continue
			}
			return ImageGroundTruth{}, err
		}

		gt.Instances = append(gt.Instances, Instance{ID: a.ID, ClassIndex: classIdx, Mask: mask})
	}
	return gt, nil
}

// segmentationMask rasterizes one annotation's shape payload at the owning
// image's resolution. Empty payloads yield an all-background mask.
func segmentationMask(a Annotation, img ImageInfo) (*Mask, error) {
	seg := a.Segmentation
	switch {
	case seg == nil:
		return NewMask(img.Height, img.Width), nil
	case seg.RLE != nil:
		if seg.RLE.H != img.Height || seg.RLE.W != img.Width {
			return nil, &DimensionMismatchError{ImageID: img.ID, AnnotationID: a.ID,
				WantH: img.Height, WantW: img.Width, GotH: seg.RLE.H, GotW: seg.RLE.W}
		}
		return seg.RLE.Decode()
	default:
		return PolygonMask(seg.Polygons, img.Height, img.Width), nil
	}
}

// PanopticGroundTruth builds the panoptic view for one image: one equality
// mask per segment of the RGB panoptic PNG. The masks of distinct segments
// are disjoint since every pixel decodes to exactly one id. Pixels covered
// by no segment (the VOID region, id 0, or an id missing from the segment
// list) are counted in Unlabeled and reported, never folded into a segment.
func PanopticGroundTruth(set *PanopticSet, imageID int64) (ImageGroundTruth, error) {
	img, ok := set.Image(imageID)
	if !ok {
		return ImageGroundTruth{}, fmt.Errorf("unknown image id %d", imageID)
	}
	ann, ok := set.Annotations[imageID]
	if !ok {
		return ImageGroundTruth{}, fmt.Errorf("no panoptic annotation for image %d", imageID)
	}

	ids, err := set.loadSegmentIDMap(img, ann)
	if err != nil {
		return ImageGroundTruth{}, err
	}

	known := make(map[int64]bool, len(ann.Segments))
	gt := ImageGroundTruth{Image: img, Instances: make([]Instance, 0, len(ann.Segments))}
	for _, seg := range ann.Segments {
		classIdx, _ := set.Classes.Dense(seg.CategoryID)

		mask := NewMask(img.Height, img.Width)
		for i, id := range ids {
			if id == seg.ID {
				mask.Pix[i] = 1
			}
		}

		known[seg.ID] = true
		gt.Instances = append(gt.Instances, Instance{ID: seg.ID, ClassIndex: classIdx, Mask: mask})
	}

	for _, id := range ids {
		if !known[id] {
			gt.Unlabeled++
		}
	}
	if gt.Unlabeled > 0 {
		log.Printf("Image %d: %d unlabeled pixels", img.ID, gt.Unlabeled)
	}
	return gt, nil
}
