package classfile

import (
	"bytes"
	"sync"
	"testing"
)

// TestBatchParseWorkerPool exercises many independent Parser/ClassFile
// pipelines concurrently over a jobs-channel worker pool, the same
// jobs-chan/sync.WaitGroup shape the teacher's cmd/dump.go uses to fan a
// directory tree of files out across workers. Disjoint classfile pipelines
// share no mutable state, so this documents that guarantee with a passing
// test rather than changing the single-threaded-per-instance contract.
func TestBatchParseWorkerPool(t *testing.T) {
	const workers = 8
	const jobCount = 64

	class := buildSampleClass(t)
	jobs := make(chan []byte)
	results := make(chan error, jobCount)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for data := range jobs {
				cf, err := Load(bytes.NewReader(data), &ParseOptions{})
				if err != nil {
					results <- err
					continue
				}
				_, err = cf.Bytes(&WriteOptions{})
				results <- err
			}
		}()
	}

	go func() {
		for i := 0; i < jobCount; i++ {
			jobs <- class
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	count := 0
	for err := range results {
		if err != nil {
			t.Errorf("worker pipeline failed: %v", err)
		}
		count++
	}
	if count != jobCount {
		t.Fatalf("processed %d jobs, want %d", count, jobCount)
	}
}
