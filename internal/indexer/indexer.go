// Package indexer walks a catalog directory and produces its manifest:
// every file's size and BLAKE3 digest, computed with bounded
// concurrency at both the file and chunk level.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hdsync/filer-sync/internal/blake3digest"
	"github.com/hdsync/filer-sync/internal/chunkio"
	"github.com/hdsync/filer-sync/internal/manifest"
	"golang.org/x/sync/semaphore"
)

// Options tunes the chunking and concurrency of an indexing run.
type Options struct {
	PartSize uint64
	MaxTasks int
}

// CalcParts doubles partSize until the resulting part count is at most
// cap, returning the part count and the effective part size used to
// reach it. cap and partSize must be positive; size may be zero, in
// which case one empty part is reported.
func CalcParts(size, partSize uint64, cap int) (parts int, effectivePartSize uint64) {
	if partSize == 0 {
		partSize = 1
	}
	if cap < 1 {
		cap = 1
	}
	effectivePartSize = partSize
	for {
		parts = int(ceilDiv(size, effectivePartSize))
		if parts <= cap {
			break
		}
		next := effectivePartSize * 2
		if next <= effectivePartSize {
			break // overflow guard; effectivePartSize already covers the whole file
		}
		effectivePartSize = next
	}
	if parts == 0 {
		parts = 1
	}
	return parts, effectivePartSize
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Walk enumerates every regular file under root, in directory-walk
// order, excluding the manifest file itself. Paths are relative to
// root with forward slashes.
func Walk(root string) ([]string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == manifest.ListFileName {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: walk %s: %w", root, err)
	}
	return paths, nil
}

// digestFile computes the BLAKE3 digest of one file using up to `parts`
// concurrent chunk reads, fed into a single hasher in ascending-offset
// order so the digest matches a plain sequential read.
func digestFile(ctx context.Context, path string, size uint64, opts Options) (string, error) {
	cap := opts.MaxTasks / 2
	if cap < 1 {
		cap = 1
	}
	parts, partSize := CalcParts(size, opts.PartSize, cap)

	type chunk struct {
		bytes []byte
		err   error
	}
	chunks := make([]chunk, parts)
	sem := semaphore.NewWeighted(int64(parts))
	var wg sync.WaitGroup

	for i := 0; i < parts; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			return "", fmt.Errorf("indexer: acquire chunk slot: %w", err)
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			skip := uint64(idx) * partSize
			take := partSize
			if skip+take > size {
				take = size - skip
			}
			part, err := chunkio.ReadRange(path, skip, take)
			if err != nil {
				chunks[idx].err = err
				return
			}
			chunks[idx].bytes = part.Bytes
		}(i)
	}
	wg.Wait()

	h := blake3digest.New()
	for _, c := range chunks {
		if c.err != nil {
			return "", fmt.Errorf("indexer: digest %s: %w", path, c.err)
		}
		h.Write(c.bytes)
	}
	return h.Sum(), nil
}

// Run walks root and computes a Manifest, one entry per file in
// enumeration order, with file-level work bounded by opts.MaxTasks.
func Run(ctx context.Context, root string, opts Options) (manifest.Manifest, error) {
	relPaths, err := Walk(root)
	if err != nil {
		return nil, err
	}

	entries := make(manifest.Manifest, len(relPaths))
	errs := make([]error, len(relPaths))
	maxTasks := opts.MaxTasks
	if maxTasks < 1 {
		maxTasks = 1
	}
	sem := semaphore.NewWeighted(int64(maxTasks))
	var wg sync.WaitGroup

	for i, rel := range relPaths {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("indexer: acquire file slot: %w", err)
		}
		wg.Add(1)
		go func(idx int, rel string) {
			defer wg.Done()
			defer sem.Release(1)

			full := filepath.Join(root, filepath.FromSlash(rel))
			size, err := chunkio.Size(full)
			if err != nil {
				errs[idx] = err
				return
			}
			digest, err := digestFile(ctx, full, size, opts)
			if err != nil {
				errs[idx] = err
				return
			}
			entries[idx] = manifest.Entry{Digest: digest, Size: size, Path: rel}
		}(i, rel)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// FormatDuplicates renders one line per duplicate-digest group, each
// listing the shared digest and its member paths, for the --repeat CLI
// flag.
func FormatDuplicates(groups []manifest.Group) string {
	sorted := make([]manifest.Group, len(groups))
	copy(sorted, groups)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Digest < sorted[j].Digest })

	var b strings.Builder
	for _, g := range sorted {
		fmt.Fprintf(&b, "%s (%d bytes, %d members): %s\n", g.Digest, g.Size, len(g.Paths), strings.Join(g.Paths, ", "))
	}
	return b.String()
}
