// Converts COCO 2017 annotations (detection boxes, instance segmentations
// and panoptic masks) into per-image ground truth artifacts: binary mask
// stacks with parallel class index and instance/segment id arrays.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	cocogt "github.com/NacerNasri25/coco-groundtruth"
)

var (
	task          string // detection, instance or panoptic.
	annFilePath   string // The COCO annotation JSON file.
	panopticDir   string // The directory with the RGB panoptic PNGs.
	outDirPath    string // The output directory.
	outFormat     string // npz or tfrecord.
	numShardFiles int    // The number of TFRecord shard files to create.
	numWorkers    int    // Worker goroutines; 1 processes images sequentially.
	limitImages   int    // Convert only the first N images (0 = all).
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func init() {
	// A .env file may provide defaults for the flags; a missing file is fine.
	_ = godotenv.Load()

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage of %s:\n", filepath.Base(os.Args[0]))
		_, _ = fmt.Fprintln(os.Stderr, "  detection/instance input:\t-annotations <instances json>")
		_, _ = fmt.Fprintln(os.Stderr, "  panoptic input:\t\t-annotations <panoptic json> -panoptic-masks <dir>")
		_, _ = fmt.Fprintln(os.Stderr, "  output options:\t\t-out <dir> [-format npz|tfrecord] [-num-shards]")
		_, _ = fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}

	printUsageAndExit := func(msg ...interface{}) {
		log.Print(msg...)
		flag.Usage()
		os.Exit(1)
	}

	flag.StringVar(&task, "task", envOr("COCOGT_TASK", "detection"),
		"The conversion `task` {detection, instance, panoptic}")
	flag.StringVar(&annFilePath, "annotations", envOr("COCOGT_ANNOTATIONS", ""),
		"The `path` to the COCO annotation JSON file")
	flag.StringVar(&panopticDir, "panoptic-masks", envOr("COCOGT_PANOPTIC_MASKS", ""),
		"The `path` to the directory with the RGB panoptic mask PNGs (panoptic only)")
	flag.StringVar(&outDirPath, "out", envOr("COCOGT_OUT", ""),
		"The `path` to the output directory")
	flag.StringVar(&outFormat, "format", envOr("COCOGT_FORMAT", "npz"),
		"The output `format` {npz, tfrecord}")
	flag.IntVar(&numShardFiles, "num-shards", envIntOr("COCOGT_NUM_SHARDS", 1),
		"The number of shard files to create (tfrecord only)")
	flag.IntVar(&numWorkers, "workers", envIntOr("COCOGT_WORKERS", 0),
		"The number of worker goroutines (0 uses all CPUs, 1 is sequential)")
	flag.IntVar(&limitImages, "limit", 0,
		"Convert only the first `n` images (0 converts all)")

	flag.Parse()

	switch task {
	case "detection", "instance", "panoptic":
	default:
		printUsageAndExit("Unsupported task: ", task)
	}
	if annFilePath == "" || outDirPath == "" {
		printUsageAndExit("Missing -annotations or -out path argument")
	}
	if task == "panoptic" && panopticDir == "" {
		printUsageAndExit("Missing -panoptic-masks path argument")
	}
	switch outFormat {
	case "npz", "tfrecord":
	default:
		printUsageAndExit("Unsupported output format: ", outFormat)
	}

	// Clean path arguments.
	annFilePath = filepath.Clean(annFilePath)
	outDirPath = filepath.Clean(outDirPath)
	if panopticDir != "" {
		panopticDir = filepath.Clean(panopticDir)
	}
}

func main() {
	if err := os.MkdirAll(outDirPath, 0755); err != nil {
		log.Fatal("Cannot create the output directory: ", err)
	}

	// Load the annotations and bind the per-image conversion for the task.
	var (
		images  []cocogt.ImageInfo
		classes *cocogt.ClassMap
		convert cocogt.ConvertFn
	)
	switch task {
	case "detection", "instance":
		set, err := cocogt.LoadInstances(annFilePath)
		if err != nil {
			log.Fatal("Failed to load the annotations: ", err)
		}
		images, classes = set.Images, set.Classes
		if task == "detection" {
			convert = func(id int64) (cocogt.ImageGroundTruth, error) {
				return cocogt.DetectionGroundTruth(set, id)
			}
		} else {
			convert = func(id int64) (cocogt.ImageGroundTruth, error) {
				return cocogt.InstanceGroundTruth(set, id)
			}
		}
	case "panoptic":
		set, err := cocogt.LoadPanoptic(annFilePath, panopticDir)
		if err != nil {
			log.Fatal("Failed to load the annotations: ", err)
		}
		images, classes = set.Images, set.Classes
		convert = func(id int64) (cocogt.ImageGroundTruth, error) {
			return cocogt.PanopticGroundTruth(set, id)
		}
	}

	if err := classes.WriteJSON(filepath.Join(outDirPath, "classes.json")); err != nil {
		log.Fatal("Failed to write the class map: ", err)
	}

	ids := cocogt.ImageIDs(images)
	if limitImages > 0 && limitImages < len(ids) {
		ids = ids[:limitImages]
	}

	var written int
	switch outFormat {
	case "npz":
		written = cocogt.ConvertImages(ids, numWorkers, convert,
			func(gt cocogt.ImageGroundTruth) error {
				return cocogt.WriteNPZ(outDirPath, gt)
			})
	case "tfrecord":
		// Shards are written sequentially from the converted records.
		gts := cocogt.ConvertAll(ids, numWorkers, convert)
		recordPath := filepath.Join(outDirPath, task+".tfrecord")
		if err := cocogt.WriteTFRecord(recordPath, gts, numShardFiles); err != nil {
			log.Fatal("TFRecord conversion failed: ", err)
		}
		written = len(gts)
	}

	log.Printf("Successfully wrote ground truth for %d of %d images to %s",
		written, len(ids), outDirPath)
}
