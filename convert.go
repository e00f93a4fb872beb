package cocogt

// The batch conversion driver.

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"
)

// ConvertFn produces the ground truth for one image. Conversions share no
// mutable state, so a ConvertFn may be called from multiple goroutines.
type ConvertFn func(imageID int64) (ImageGroundTruth, error)

// EmitFn writes one image's ground truth artifact.
type EmitFn func(gt ImageGroundTruth) error

// poolSize clamps the requested worker count to the amount of work.
func poolSize(workers, items int) int {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if items > 0 && workers > items {
		workers = items
	}
	return workers
}

// ConvertImages runs convert and emit for every image id on a pool of
// workers. A failed image is logged and does not stop the batch. Returns
// the number of images written successfully.
func ConvertImages(imageIDs []int64, workers int, convert ConvertFn, emit EmitFn) int {
	workers = poolSize(workers, len(imageIDs))
	queue := make(chan int64, 2*workers)

	var written atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for id := range queue {
				gt, err := convert(id)
				if err != nil {
					log.Printf("Skipping image %d: %v", id, err)
					continue
				}
				if err := emit(gt); err != nil {
					log.Printf("Failed to write image %d: %v", id, err)
					continue
				}
				written.Add(1)
			}
		}()
	}

	for _, id := range imageIDs {
		queue <- id
	}
	close(queue)
	wg.Wait()

	return int(written.Load())
}

// ConvertAll converts every image and returns the records in the order of
// imageIDs. Failed images are logged and omitted from the result. Unlike
// ConvertImages this holds all masks in memory, which record-file emitters
// need for their sequential writes.
func ConvertAll(imageIDs []int64, workers int, convert ConvertFn) []ImageGroundTruth {
	workers = poolSize(workers, len(imageIDs))
	queue := make(chan int, 2*workers)
	results := make([]*ImageGroundTruth, len(imageIDs))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range queue {
				gt, err := convert(imageIDs[idx])
				if err != nil {
					log.Printf("Skipping image %d: %v", imageIDs[idx], err)
					continue
				}
				results[idx] = &gt
			}
		}()
	}

	for idx := range imageIDs {
		queue <- idx
	}
	close(queue)
	wg.Wait()

	gts := make([]ImageGroundTruth, 0, len(imageIDs))
	for _, r := range results {
		if r != nil {
			gts = append(gts, *r)
		}
	}
	return gts
}
