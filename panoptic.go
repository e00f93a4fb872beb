package cocogt

// COCO panoptic annotation schema, RGB mask decoding and loading.

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// SegmentInfo describes one segment of an image's panoptic mask. The segment
// id doubles as the RGB color key within the PNG:
//
//	id = R + 256*G + 256*256*B
type SegmentInfo struct {
	ID         int64      `json:"id"`
	CategoryID int64      `json:"category_id"`
	Area       int64      `json:"area,omitempty"`
	BBox       [4]float64 `json:"bbox,omitempty"`
	IsCrowd    int        `json:"iscrowd,omitempty"`
}

// PanopticAnnotation is the per-image entry of the panoptic annotation file.
type PanopticAnnotation struct {
	ImageID  int64         `json:"image_id"`
	FileName string        `json:"file_name"` // The PNG in the panoptic mask directory.
	Segments []SegmentInfo `json:"segments_info"`
}

type panopticFile struct {
	Images      []ImageInfo          `json:"images"`
	Annotations []PanopticAnnotation `json:"annotations"`
	Categories  []Category           `json:"categories"`
}

// PanopticSet is the loaded content of a panoptic annotation file plus the
// location of the per-image RGB mask PNGs. The class mapping spans the
// unified things+stuff category list.
type PanopticSet struct {
	Images      []ImageInfo
	Annotations map[int64]PanopticAnnotation // Keyed by image id, segments sorted by id.
	Classes     *ClassMap
	MaskDir     string

	imageByID map[int64]ImageInfo
}

// LoadPanoptic reads and indexes a COCO panoptic annotation file. maskDir
// must hold one RGB panoptic PNG per image, named as in the annotation
// records.
//
// Segments referencing an unknown category fail with a SchemaError;
// duplicate segment ids within one image fail with a ColorCollisionError,
// since the color key could not identify a unique segment.
func LoadPanoptic(jsonPath, maskDir string) (*PanopticSet, error) {
	enc, err := readFile(jsonPath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read annotation file %q", jsonPath)
	}

	var file panopticFile
	if err := json.Unmarshal(enc, &file); err != nil {
		return nil, &SchemaError{Path: jsonPath, Detail: err.Error()}
	}
	if len(file.Images) == 0 {
		return nil, &SchemaError{Path: jsonPath, Detail: "no image records"}
	}
	if len(file.Categories) == 0 {
		return nil, &SchemaError{Path: jsonPath, Detail: "no category records"}
	}

	set := &PanopticSet{
		Images:      file.Images,
		Annotations: make(map[int64]PanopticAnnotation, len(file.Annotations)),
		Classes:     NewClassMap(file.Categories),
		MaskDir:     maskDir,
		imageByID:   make(map[int64]ImageInfo, len(file.Images)),
	}
	for _, img := range file.Images {
		set.imageByID[img.ID] = img
	}

	for _, ann := range file.Annotations {
		if _, ok := set.imageByID[ann.ImageID]; !ok {
			return nil, &SchemaError{Path: jsonPath,
				Detail: fmt.Sprintf("panoptic annotation references unknown image %d", ann.ImageID)}
		}

		seen := make(map[int64]bool, len(ann.Segments))
		for _, seg := range ann.Segments {
			if _, ok := set.Classes.Dense(seg.CategoryID); !ok {
				return nil, &SchemaError{Path: jsonPath,
					Detail: fmt.Sprintf("segment %d of image %d references unknown category %d",
						seg.ID, ann.ImageID, seg.CategoryID)}
			}
			if seen[seg.ID] {
				return nil, &ColorCollisionError{ImageID: ann.ImageID, SegmentID: seg.ID}
			}
			seen[seg.ID] = true
		}

		sort.Slice(ann.Segments, func(i, j int) bool { return ann.Segments[i].ID < ann.Segments[j].ID })
		set.Annotations[ann.ImageID] = ann
	}

	log.Printf("Loaded %d images, %d panoptic annotations, %d categories from %s",
		len(file.Images), len(file.Annotations), set.Classes.Len(), jsonPath)
	return set, nil
}

// Image returns the image record for id.
func (s *PanopticSet) Image(id int64) (ImageInfo, bool) {
	img, ok := s.imageByID[id]
	return img, ok
}

// SegmentIDMap decodes an RGB panoptic mask image into per-pixel segment
// ids, row-major.
func SegmentIDMap(img image.Image) []int64 {
	b := img.Bounds()
	ids := make([]int64, b.Dx()*b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			ids[i] = int64(r>>8) + 256*int64(g>>8) + 256*256*int64(bl>>8)
			i++
		}
	}
	return ids
}

// loadSegmentIDMap reads and decodes the panoptic PNG for one image,
// checking its dimensions against the image record.
func (s *PanopticSet) loadSegmentIDMap(img ImageInfo, ann PanopticAnnotation) ([]int64, error) {
	path := filepath.Join(s.MaskDir, ann.FileName)
	src, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read panoptic mask %q", path)
	}

	b := src.Bounds()
	if b.Dy() != img.Height || b.Dx() != img.Width {
		return nil, &DimensionMismatchError{ImageID: img.ID,
			WantH: img.Height, WantW: img.Width, GotH: b.Dy(), GotW: b.Dx()}
	}
	return SegmentIDMap(src), nil
}
