package cocogt

// TFRecord export for TensorFlow input pipelines.

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"github.com/golang/protobuf/proto"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
	"gorgonia.org/tensor"
)

// toTFFeatures converts one image's ground truth into a tf.Example feature
// map. The mask stack travels as a single npy blob whose own header carries
// the shape and dtype.
func toTFFeatures(gt ImageGroundTruth) (map[string]interface{}, error) {
	masks, classIDs, ids, err := maskStack(gt)
	if err != nil {
		return nil, err
	}

	var npy bytes.Buffer
	n, h, w := len(gt.Instances), gt.Image.Height, gt.Image.Width
	if err := writeNpy(&npy, masks, tensor.Shape{n, h, w}, "u1"); err != nil {
		return nil, err
	}

	f := make(map[string]interface{}, 8)
	f["image/height"] = gt.Image.Height
	f["image/width"] = gt.Image.Width
	f["image/source_id"] = fmt.Sprintf("%d", gt.Image.ID)
	f["image/filename"] = gt.Image.FileName
	f["image/object/class/label"] = classIDs
	f["image/object/id"] = ids
	f["image/object/mask/npy"] = npy.Bytes()
	return f, nil
}

// WriteTFRecord serialises the ground truth records into one or more
// TFRecord files stored under recordFilePath (with shard suffixes added
// when numShards > 1). A record that fails to convert is logged and
// skipped; the remaining records are still written.
func WriteTFRecord(recordFilePath string, gts []ImageGroundTruth, numShards int) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	if numShards <= 0 {
		numShards = 1
	}
	// Never claim more shard files than there are records to fill them.
	if len(gts) > 0 && numShards > len(gts) {
		numShards = len(gts)
	}

	fmtShardSuffix := func(idx int) string {
		return fmt.Sprintf("-%05d-of-%05d", idx, numShards)
	}

	var shardFile *os.File
	shardSize := int(math.Ceil(float64(len(gts)) / float64(numShards)))
	shardIdx := -1

	for i, gt := range gts {
		// Check if a new shard file needs to be opened for writing.
		if shardSize > 0 && i%shardSize == 0 {
			shardIdx++

			if shardFile != nil {
				_ = shardFile.Close()
				shardFile = nil
			}

			shardPath := recordFilePath
			if numShards > 1 {
				shardPath += fmtShardSuffix(shardIdx)
			}
			f, err := os.Create(shardPath)
			if err != nil {
				return fmt.Errorf("failed to create shard at %q: %v", shardPath, err)
			}
			shardFile = f
		}

		features, err := toTFFeatures(gt)
		if err != nil {
			log.Printf("Failed to convert image %d: %v", gt.Image.ID, err)
			continue
		}
		tfExample := example.New(features)

		if err := writeTFRecordExample(shardFile, tfExample); err != nil {
			return fmt.Errorf("failed to write example for image %d: %v", gt.Image.ID, err)
		}
	}

	if shardFile != nil {
		return shardFile.Close()
	}
	return nil
}

// writeTFRecordExample serialises the example and writes it as a TFRecord
// to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}
	return tfrecord.Write(w, enc)
}
