package cocogt

// COCO detection/instance annotation schema and loading.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// Category is one entry of the category list in a COCO annotation file.
type Category struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory,omitempty"`
}

// ImageInfo identifies one image of the dataset and records its dimensions.
type ImageInfo struct {
	ID       int64  `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileName string `json:"file_name"`
}

// Annotation is a single object annotation.
type Annotation struct {
	ID           int64         `json:"id"`
	ImageID      int64         `json:"image_id"`
	CategoryID   int64         `json:"category_id"`
	BBox         [4]float64    `json:"bbox"` // x, y, width, height in absolute pixels.
	Segmentation *Segmentation `json:"segmentation,omitempty"`
	Area         float64       `json:"area,omitempty"`
	IsCrowd      int           `json:"iscrowd,omitempty"`
}

// Segmentation is the shape payload of an annotation: either a list of
// polygon rings (flat x,y vertex pairs) or a run-length encoded bitmap.
// Exactly one of the two fields is set after unmarshalling.
type Segmentation struct {
	Polygons [][]float64
	RLE      *RLE
}

// UnmarshalJSON accepts both COCO encodings: a JSON array of polygon rings,
// or an object with "size" and "counts", where the counts are either a plain
// integer list or the compressed string form.
func (s *Segmentation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		return json.Unmarshal(data, &s.Polygons)
	}

	var enc struct {
		Counts json.RawMessage `json:"counts"`
		Size   [2]int          `json:"size"`
	}
	if err := json.Unmarshal(data, &enc); err != nil {
		return err
	}
	rle := &RLE{H: enc.Size[0], W: enc.Size[1]}

	cts := bytes.TrimSpace(enc.Counts)
	if len(cts) > 0 && cts[0] == '"' {
		var compressed string
		if err := json.Unmarshal(cts, &compressed); err != nil {
			return err
		}
		counts, err := decodeCountsString(compressed)
		if err != nil {
			return err
		}
		rle.Counts = counts
	} else if err := json.Unmarshal(cts, &rle.Counts); err != nil {
		return err
	}

	s.RLE = rle
	return nil
}

// ClassMap is the bijection between the sparse COCO category ids and a
// dense zero-based class index. Categories are ordered by ascending id, so
// the mapping is reproducible across runs. Immutable once built.
type ClassMap struct {
	dense      map[int64]int
	categories []Category // Sorted by id; the slice index is the dense class index.
}

// NewClassMap builds the mapping from the category list of an annotation
// file.
func NewClassMap(categories []Category) *ClassMap {
	sorted := append([]Category(nil), categories...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	m := &ClassMap{dense: make(map[int64]int, len(sorted)), categories: sorted}
	for i, c := range sorted {
		m.dense[c.ID] = i
	}
	return m
}

// Len returns the number of classes.
func (m *ClassMap) Len() int { return len(m.categories) }

// Dense returns the dense class index for a COCO category id.
func (m *ClassMap) Dense(categoryID int64) (int, bool) {
	idx, ok := m.dense[categoryID]
	return idx, ok
}

// Category returns the category assigned to a dense class index.
func (m *ClassMap) Category(index int) Category { return m.categories[index] }

// WriteJSON writes the dense-index to category mapping to path, so the
// remapping is recoverable downstream.
func (m *ClassMap) WriteJSON(path string) error {
	type entry struct {
		Index      int    `json:"index"`
		CategoryID int64  `json:"category_id"`
		Name       string `json:"name"`
	}
	entries := make([]entry, len(m.categories))
	for i, c := range m.categories {
		entries[i] = entry{Index: i, CategoryID: c.ID, Name: c.Name}
	}
	enc, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, enc, 0644); err != nil {
		return errors.Wrapf(err, "cannot write class map %q", path)
	}
	return nil
}

// InstanceSet is the loaded content of a detection/instance annotation
// file: the image index, the per-image annotation lists and the class
// mapping.
type InstanceSet struct {
	Images      []ImageInfo
	Annotations map[int64][]Annotation // Keyed by image id, sorted by annotation id.
	Classes     *ClassMap

	imageByID map[int64]ImageInfo
}

type instanceFile struct {
	Images      []ImageInfo  `json:"images"`
	Annotations []Annotation `json:"annotations"`
	Categories  []Category   `json:"categories"`
}

// LoadInstances reads and indexes a COCO detection/instance annotation file.
//
// Annotations referencing a category or image missing from the file's index
// fail with a SchemaError. Zero-area boxes and empty segmentations are kept
// unchanged; they rasterize to all-background masks.
func LoadInstances(path string) (*InstanceSet, error) {
	enc, err := readFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read annotation file %q", path)
	}

	var file instanceFile
	if err := json.Unmarshal(enc, &file); err != nil {
		return nil, &SchemaError{Path: path, Detail: err.Error()}
	}
	if len(file.Images) == 0 {
		return nil, &SchemaError{Path: path, Detail: "no image records"}
	}
	if len(file.Categories) == 0 {
		return nil, &SchemaError{Path: path, Detail: "no category records"}
	}

	set := &InstanceSet{
		Images:      file.Images,
		Annotations: make(map[int64][]Annotation, len(file.Images)),
		Classes:     NewClassMap(file.Categories),
		imageByID:   make(map[int64]ImageInfo, len(file.Images)),
	}
	for _, img := range file.Images {
		set.imageByID[img.ID] = img
	}

	for _, a := range file.Annotations {
		if _, ok := set.Classes.Dense(a.CategoryID); !ok {
			return nil, &SchemaError{Path: path,
				Detail: fmt.Sprintf("annotation %d references unknown category %d", a.ID, a.CategoryID)}
		}
		if _, ok := set.imageByID[a.ImageID]; !ok {
			return nil, &SchemaError{Path: path,
				Detail: fmt.Sprintf("annotation %d references unknown image %d", a.ID, a.ImageID)}
		}
		set.Annotations[a.ImageID] = append(set.Annotations[a.ImageID], a)
	}

	// Deterministic per-image order, so emission is byte-for-byte
	// reproducible across runs.
	for id := range set.Annotations {
		anns := set.Annotations[id]
		sort.Slice(anns, func(i, j int) bool { return anns[i].ID < anns[j].ID })
	}

	log.Printf("Loaded %d images, %d annotations, %d categories from %s",
		len(file.Images), len(file.Annotations), set.Classes.Len(), path)
	return set, nil
}

// Image returns the image record for id.
func (s *InstanceSet) Image(id int64) (ImageInfo, bool) {
	img, ok := s.imageByID[id]
	return img, ok
}

// ImageIDs returns the ids of the given images sorted ascending.
func ImageIDs(images []ImageInfo) []int64 {
	ids := make([]int64, len(images))
	for i, img := range images {
		ids[i] = img.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
