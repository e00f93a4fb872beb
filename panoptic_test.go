package cocogt

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePanopticPNG writes a 4x4 RGB mask: the left half color-keyed as
// segment 5 (5,0,0) and the right half as segment 300 (44,1,0), except that
// voidPixels top-left pixels are painted black (segment id 0, VOID).
func writePanopticPNG(t *testing.T, dir, name string, voidPixels int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				img.SetRGBA(x, y, color.RGBA{R: 5, A: 255}) // id 5
			} else {
				img.SetRGBA(x, y, color.RGBA{R: 44, G: 1, A: 255}) // id 300
			}
		}
	}
	for i := 0; i < voidPixels; i++ {
		img.SetRGBA(i%4, i/4, color.RGBA{A: 255})
	}

	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func panopticJSON(height, width int, segments string) string {
	return fmt.Sprintf(`{
		"images": [{"id": 9, "width": %d, "height": %d, "file_name": "000000000009.jpg"}],
		"annotations": [{"image_id": 9, "file_name": "000000000009.png",
			"segments_info": %s}],
		"categories": [{"id": 1, "name": "person"}, {"id": 200, "name": "sky"}]
	}`, width, height, segments)
}

func TestPanopticGroundTruthEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writePanopticPNG(t, dir, "000000000009.png", 0)
	jsonPath := filepath.Join(dir, "panoptic.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(panopticJSON(4, 4,
		`[{"id": 300, "category_id": 200}, {"id": 5, "category_id": 1}]`)), 0644))

	set, err := LoadPanoptic(jsonPath, dir)
	require.NoError(t, err)

	gt, err := PanopticGroundTruth(set, 9)
	require.NoError(t, err)
	require.Len(t, gt.Instances, 2)
	assert.Equal(t, 0, gt.Unlabeled)

	// Segments come out sorted by id.
	left, right := gt.Instances[0], gt.Instances[1]
	assert.EqualValues(t, 5, left.ID)
	assert.Equal(t, 0, left.ClassIndex) // category 1 -> dense 0
	assert.EqualValues(t, 300, right.ID)
	assert.Equal(t, 1, right.ClassIndex) // category 200 -> dense 1

	// Each mask matches its color's pixels.
	assert.Equal(t, 8, left.Mask.Count())
	assert.Equal(t, 8, right.Mask.Count())
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, x < 2, left.Mask.At(y, x))
			assert.Equal(t, x >= 2, right.Mask.At(y, x))
		}
	}

	// Masks are pairwise disjoint and together cover the image.
	for i := range left.Mask.Pix {
		assert.EqualValues(t, 1, left.Mask.Pix[i]+right.Mask.Pix[i])
	}
}

func TestPanopticGroundTruthReportsUnlabeled(t *testing.T) {
	dir := t.TempDir()
	writePanopticPNG(t, dir, "000000000009.png", 3)
	jsonPath := filepath.Join(dir, "panoptic.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(panopticJSON(4, 4,
		`[{"id": 300, "category_id": 200}, {"id": 5, "category_id": 1}]`)), 0644))

	set, err := LoadPanoptic(jsonPath, dir)
	require.NoError(t, err)

	gt, err := PanopticGroundTruth(set, 9)
	require.NoError(t, err)
	assert.Equal(t, 3, gt.Unlabeled)

	// Void pixels belong to no segment.
	total := 0
	for _, inst := range gt.Instances {
		total += inst.Mask.Count()
	}
	assert.Equal(t, 16-3, total)
}

func TestPanopticGroundTruthDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	writePanopticPNG(t, dir, "000000000009.png", 0)
	jsonPath := filepath.Join(dir, "panoptic.json")
	// The image record claims 5x5 but the PNG is 4x4.
	require.NoError(t, os.WriteFile(jsonPath, []byte(panopticJSON(5, 5,
		`[{"id": 5, "category_id": 1}]`)), 0644))

	set, err := LoadPanoptic(jsonPath, dir)
	require.NoError(t, err)

	_, err = PanopticGroundTruth(set, 9)
	require.Error(t, err)
	var dim *DimensionMismatchError
	assert.True(t, errors.As(err, &dim), "want DimensionMismatchError, got %v", err)
}

func TestLoadPanopticColorCollision(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "panoptic.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(panopticJSON(4, 4,
		`[{"id": 5, "category_id": 1}, {"id": 5, "category_id": 200}]`)), 0644))

	_, err := LoadPanoptic(jsonPath, dir)
	require.Error(t, err)
	var collision *ColorCollisionError
	require.True(t, errors.As(err, &collision), "want ColorCollisionError, got %v", err)
	assert.EqualValues(t, 5, collision.SegmentID)
}

func TestLoadPanopticSchemaError(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "panoptic.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(panopticJSON(4, 4,
		`[{"id": 5, "category_id": 77}]`)), 0644))

	_, err := LoadPanoptic(jsonPath, dir)
	require.Error(t, err)
	var schemaErr *SchemaError
	assert.True(t, errors.As(err, &schemaErr), "want SchemaError, got %v", err)
}

func TestSegmentIDMap(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	img.SetRGBA(1, 0, color.RGBA{A: 255})

	ids := SegmentIDMap(img)
	require.Len(t, ids, 2)
	assert.EqualValues(t, 1+256*2+256*256*3, ids[0])
	assert.EqualValues(t, 0, ids[1])
}
