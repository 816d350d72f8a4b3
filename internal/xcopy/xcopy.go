// Package xcopy runs the same chunked-transfer engine as the
// Downloader but entirely against local paths, with no manifest and
// no digest verification — only a size check, since there is nothing
// to diff against.
package xcopy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/hdsync/filer-sync/internal/chunkio"
	"github.com/hdsync/filer-sync/internal/downloader"
	"github.com/hdsync/filer-sync/internal/indexer"
	"github.com/hdsync/filer-sync/internal/killproc"
	"github.com/hdsync/filer-sync/internal/metrics"
	"github.com/hdsync/filer-sync/internal/scheduler"
)

// ErrSizeMismatch reports that a copied file's size did not match its source.
var ErrSizeMismatch = errors.New("xcopy: size mismatch")

// Config tunes one xcopy run.
type Config struct {
	Src            string
	Dst            string
	PartSize       uint64
	MaxTasks       int
	KillRunningExe bool
}

// job is one file to copy: its path relative to Src/Dst and its size.
type job struct {
	relPath string
	size    uint64
}

// Outcome is one file's terminal result.
type Outcome struct {
	Path string
	Size uint64
	Err  error
}

// Summary is the end-of-run report.
type Summary struct {
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Bytes     uint64
}

// String renders a human-readable summary.
func (s Summary) String() string {
	var b strings.Builder
	for i, o := range s.Outcomes {
		result := "ok"
		if o.Err != nil {
			result = o.Err.Error()
		}
		fmt.Fprintf(&b, ">> %d %s %s\n", i+1, o.Path, result)
	}
	fmt.Fprintf(&b, "succeeded=%d failed=%d copied=%s\n", s.Succeeded, s.Failed, units.HumanSize(float64(s.Bytes)))
	return b.String()
}

// localSource copies chunks from a source file on disk.
type localSource struct {
	path string
}

func (l localSource) Fetch(_ context.Context, skip, take uint64) ([]byte, error) {
	part, err := chunkio.ReadRange(l.path, skip, take)
	if err != nil {
		return nil, err
	}
	return part.Bytes, nil
}

// jobList enumerates what to copy. If src is a single file, the list
// has one entry whose relative path is the file's name, i.e. rebased
// against the file's parent directory; if a directory,
// it is the recursive file listing.
func jobList(src string) ([]job, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("xcopy: stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return []job{{relPath: filepath.Base(src), size: uint64(info.Size())}}, nil
	}

	relPaths, err := indexer.Walk(src)
	if err != nil {
		return nil, fmt.Errorf("xcopy: walk %s: %w", src, err)
	}
	jobs := make([]job, len(relPaths))
	for i, rel := range relPaths {
		size, err := chunkio.Size(filepath.Join(src, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		jobs[i] = job{relPath: rel, size: size}
	}
	return jobs, nil
}

func sourcePath(src string, info os.FileInfo, rel string) string {
	if !info.IsDir() {
		return src
	}
	return filepath.Join(src, filepath.FromSlash(rel))
}

func destPath(dst, rel string) (string, bool) {
	renamed := strings.HasSuffix(strings.ToLower(rel), "filer.exe")
	if renamed {
		return filepath.Join(dst, filepath.FromSlash(rel)+".new"), true
	}
	return filepath.Join(dst, filepath.FromSlash(rel)), false
}

// Run copies cfg.Src to cfg.Dst using the shared scheduler, checking
// only size on completion.
func Run(ctx context.Context, cfg Config) (Summary, error) {
	srcInfo, err := os.Stat(cfg.Src)
	if err != nil {
		return Summary{}, fmt.Errorf("xcopy: stat %s: %w", cfg.Src, err)
	}
	jobs, err := jobList(cfg.Src)
	if err != nil {
		return Summary{}, err
	}

	if cfg.KillRunningExe {
		paths := make([]string, len(jobs))
		for i, j := range jobs {
			paths[i] = j.relPath
		}
		for _, name := range killproc.ImageNames(paths, "filer.exe") {
			if err := killproc.ByImageName(name); err != nil {
				slog.Warn("failed to terminate running process", "image", name, "err", err)
			}
		}
	}

	maxTasks := cfg.MaxTasks
	if maxTasks < 1 {
		maxTasks = 1
	}
	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = 65536
	}

	fileJobs := make([]scheduler.FileJob, len(jobs))
	for i, j := range jobs {
		parts, effective := indexer.CalcParts(j.size, partSize, downloader.MaxSplitParts)
		fileJobs[i] = scheduler.FileJob{Index: uint64(i), Job: scheduler.Job{Size: j.size, Parts: uint64(parts), PartSize: effective}}
	}

	outcomes := make([]Outcome, len(jobs))
	copyOne := func(ctx context.Context, j job) Outcome {
		metrics.FilesInFlight.Inc()
		defer metrics.FilesInFlight.Dec()

		src := sourcePath(cfg.Src, srcInfo, j.relPath)
		parts, effective := indexer.CalcParts(j.size, partSize, downloader.MaxSplitParts)
		fetchJob := scheduler.Job{Size: j.size, Parts: uint64(parts), PartSize: effective, Source: localSource{path: src}}

		fetched, err := scheduler.RunFile(ctx, fetchJob)
		if err != nil {
			return Outcome{Path: j.relPath, Err: err}
		}

		dest, _ := destPath(cfg.Dst, j.relPath)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return Outcome{Path: j.relPath, Err: fmt.Errorf("mkdir: %w", err)}
		}
		f, err := chunkio.Create(dest)
		if err != nil {
			return Outcome{Path: j.relPath, Err: err}
		}

		var total uint64
		for _, p := range fetched {
			if err := chunkio.WriteAt(f, p.Skip, p.Bytes); err != nil {
				_ = f.Close()
				return Outcome{Path: j.relPath, Err: err}
			}
			total += uint64(len(p.Bytes))
		}
		_ = f.Close()

		if total != j.size {
			return Outcome{Path: j.relPath, Err: fmt.Errorf("%w: %s", ErrSizeMismatch, j.relPath)}
		}
		return Outcome{Path: j.relPath, Size: j.size}
	}

	batcher := scheduler.NewBatcher(maxTasks)
	batcher.Run(ctx, fileJobs, func(ctx context.Context, fj scheduler.FileJob) scheduler.FileResult {
		outcome := copyOne(ctx, jobs[fj.Index])
		outcomes[fj.Index] = outcome
		return scheduler.FileResult{Index: fj.Index, Err: outcome.Err}
	})

	var succeeded int
	var bytes uint64
	for _, o := range outcomes {
		if o.Err == nil {
			succeeded++
			bytes += o.Size
		}
	}
	return Summary{Outcomes: outcomes, Succeeded: succeeded, Failed: len(outcomes) - succeeded, Bytes: bytes}, nil
}
