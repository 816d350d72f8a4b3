// Package scheduler drives the two-level work breakdown shared by the
// Downloader and XCopy: an outer per-file budget weighted by each
// file's own chunk count, and an inner per-chunk fan-out awaited in
// submission order.
package scheduler

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Source fetches a byte range of one file's content, from wherever the
// caller has decided it should come from — the network or a local
// path already on disk. Both the Downloader's remote source and its
// local-reuse source, and XCopy's local source, implement this.
type Source interface {
	Fetch(ctx context.Context, skip, take uint64) ([]byte, error)
}

// Job is one file's unit of work: how many parts to split it into, the
// part size to request, and where its bytes come from.
type Job struct {
	Size     uint64
	Parts    uint64
	PartSize uint64
	Source   Source
}

// Part is one chunk result, in submission order.
type Part struct {
	Skip  uint64
	Bytes []byte
}

// RunFile fetches every part of one job concurrently and returns their
// results in ascending-offset (submission) order, regardless of
// completion order.
func RunFile(ctx context.Context, job Job) ([]Part, error) {
	parts := make([]Part, job.Parts)
	errs := make([]error, job.Parts)

	sem := semaphore.NewWeighted(int64(job.Parts))
	done := make(chan uint64, job.Parts)

	for i := uint64(0); i < job.Parts; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("scheduler: acquire chunk slot: %w", err)
		}
		go func(idx uint64) {
			defer sem.Release(1)
			defer func() { done <- idx }()

			skip := idx * job.PartSize
			take := job.PartSize
			if skip+take > job.Size {
				take = job.Size - skip
			}
			bytes, err := job.Source.Fetch(ctx, skip, take)
			if err != nil {
				errs[idx] = fmt.Errorf("scheduler: fetch chunk at %d: %w", skip, err)
				return
			}
			parts[idx] = Part{Skip: skip, Bytes: bytes}
		}(i)
	}

	for i := uint64(0); i < job.Parts; i++ {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return parts, nil
}

// Batcher admits files up to a total chunk-count budget: each
// admission consumes parts(file) tokens rather than one, so a single
// large file can occupy the whole budget. Batches are filled until the
// budget is met or the input is exhausted, then drained to completion
// before the next batch starts.
type Batcher struct {
	maxTasks int64
}

// NewBatcher builds a Batcher with the given total chunk-count budget.
func NewBatcher(maxTasks int) *Batcher {
	if maxTasks < 1 {
		maxTasks = 1
	}
	return &Batcher{maxTasks: int64(maxTasks)}
}

// FileJob pairs a Job with an index identifying it to the caller, so
// results can be reported back in manifest/submission order.
type FileJob struct {
	Index uint64
	Job   Job
}

// FileResult is one file's outcome, carried back to the caller in
// submission order within its batch.
type FileResult struct {
	Index uint64
	Parts []Part
	Err   error
}

// Run processes jobs in manifest order, in budget-bounded batches. fn
// is invoked once per job inside the batch and must itself call
// RunFile (or equivalent); Run only owns the batching and ordering
// contract, not the per-file transfer logic.
func (b *Batcher) Run(ctx context.Context, jobs []FileJob, fn func(context.Context, FileJob) FileResult) []FileResult {
	results := make([]FileResult, len(jobs))
	i := 0
	for i < len(jobs) {
		var budget int64
		batch := make([]FileJob, 0)
		for i < len(jobs) {
			parts := int64(jobs[i].Job.Parts)
			if parts < 1 {
				parts = 1
			}
			batch = append(batch, jobs[i])
			budget += parts
			i++
			if budget >= b.maxTasks {
				break
			}
		}

		done := make(chan struct{}, len(batch))
		for _, fj := range batch {
			go func(fj FileJob) {
				defer func() { done <- struct{}{} }()
				results[fj.Index] = fn(ctx, fj)
			}(fj)
		}
		for range batch {
			<-done
		}
	}
	return results
}
