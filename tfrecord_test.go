package cocogt

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/protobuf/proto"
	tensorflow "github.com/ryszard/tfutils/proto/tensorflow/core/example"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readTFRecords parses the TFRecord framing: a little-endian uint64 payload
// length, a length crc, the payload and a payload crc per record.
func readTFRecords(t *testing.T, path string) [][]byte {
	t.Helper()
	enc, err := os.ReadFile(path)
	require.NoError(t, err)

	var records [][]byte
	r := bytes.NewReader(enc)
	for r.Len() > 0 {
		var length uint64
		require.NoError(t, binary.Read(r, binary.LittleEndian, &length))
		_, err := r.Seek(4, io.SeekCurrent) // length crc
		require.NoError(t, err)

		payload := make([]byte, length)
		_, err = io.ReadFull(r, payload)
		require.NoError(t, err)
		_, err = r.Seek(4, io.SeekCurrent) // payload crc
		require.NoError(t, err)

		records = append(records, payload)
	}
	return records
}

func TestWriteTFRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "instance.tfrecord")
	gt := sampleGroundTruth()

	require.NoError(t, WriteTFRecord(path, []ImageGroundTruth{gt}, 1))

	records := readTFRecords(t, path)
	require.Len(t, records, 1)

	var ex tensorflow.Example
	require.NoError(t, proto.Unmarshal(records[0], &ex))
	features := ex.GetFeatures().GetFeature()

	assert.Equal(t, []int64{3}, features["image/height"].GetInt64List().Value)
	assert.Equal(t, []int64{4}, features["image/width"].GetInt64List().Value)
	assert.Equal(t, []int64{0, 2}, features["image/object/class/label"].GetInt64List().Value)
	assert.Equal(t, []int64{11, 12}, features["image/object/id"].GetInt64List().Value)

	sourceID := features["image/source_id"].GetBytesList().Value
	require.Len(t, sourceID, 1)
	assert.Equal(t, "7", string(sourceID[0]))

	// The mask stack is a self-describing npy blob.
	npy := features["image/object/mask/npy"].GetBytesList().Value
	require.Len(t, npy, 1)
	assert.True(t, bytes.HasPrefix(npy[0], []byte("\x93NUMPY")))
	assert.Contains(t, string(npy[0][:128]), "(2, 3, 4)")
}

func TestWriteTFRecordSharded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "detection.tfrecord")

	gts := make([]ImageGroundTruth, 4)
	for i := range gts {
		gts[i] = ImageGroundTruth{
			Image: ImageInfo{ID: int64(i + 1), Width: 2, Height: 2,
				FileName: "img.jpg"},
		}
	}
	require.NoError(t, WriteTFRecord(path, gts, 2))

	first := readTFRecords(t, path+"-00000-of-00002")
	second := readTFRecords(t, path+"-00001-of-00002")
	assert.Len(t, first, 2)
	assert.Len(t, second, 2)
}

func TestWriteTFRecordClampsShardCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "detection.tfrecord")

	gts := []ImageGroundTruth{
		{Image: ImageInfo{ID: 1, Width: 2, Height: 2, FileName: "img.jpg"}},
		{Image: ImageInfo{ID: 2, Width: 2, Height: 2, FileName: "img.jpg"}},
	}
	require.NoError(t, WriteTFRecord(path, gts, 5))

	// Two records cannot fill five shards; the suffixes reflect the two
	// files actually written.
	assert.Len(t, readTFRecords(t, path+"-00000-of-00002"), 1)
	assert.Len(t, readTFRecords(t, path+"-00001-of-00002"), 1)
	_, err := os.Stat(path + "-00002-of-00005")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteTFRecordEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.tfrecord")
	require.NoError(t, WriteTFRecord(path, nil, 1))
}
