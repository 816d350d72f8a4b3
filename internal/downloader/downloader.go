// Package downloader drives a sync run: diff the remote manifest
// against the local one, fetch everything that differs through the
// Scheduler, verify each file end-to-end, and replace the local
// manifest once at least one file has succeeded.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/hdsync/filer-sync/internal/blake3digest"
	"github.com/hdsync/filer-sync/internal/chunkio"
	"github.com/hdsync/filer-sync/internal/digestgroup"
	"github.com/hdsync/filer-sync/internal/indexer"
	"github.com/hdsync/filer-sync/internal/killproc"
	"github.com/hdsync/filer-sync/internal/manifest"
	"github.com/hdsync/filer-sync/internal/metrics"
	"github.com/hdsync/filer-sync/internal/scheduler"
	"github.com/hdsync/filer-sync/internal/transport"
)

// ErrIntegrity reports that a downloaded file's size or digest did not
// match its manifest entry.
var ErrIntegrity = errors.New("downloader: integrity check failed")

// MaxSplitParts caps the chunk count calc_parts may settle on for a
// single file during a download run. The Indexer uses a different cap
// (max_tasks/2); the asymmetry is intentional and preserved.
const MaxSplitParts = 128

// Config tunes one download run.
type Config struct {
	Catalog        string
	LocalPath      string
	PartSize       uint64
	MaxTasks       int
	KillRunningExe bool
	DownloadAll    bool
}

// Outcome is one file's terminal result.
type Outcome struct {
	Path      string
	Size      uint64
	FromLocal bool
	Err       error
}

// Summary is the end-of-run report.
type Summary struct {
	Outcomes         []Outcome
	Succeeded        int
	Failed           int
	NetworkBytes     uint64
	ManifestReplaced bool
}

// String renders a human-readable trailing summary.
func (s Summary) String() string {
	var b strings.Builder
	for i, o := range s.Outcomes {
		result := "ok"
		if o.Err != nil {
			result = o.Err.Error()
		}
		fmt.Fprintf(&b, ">> %d %s %s\n", i+1, o.Path, result)
	}
	fmt.Fprintf(&b, "succeeded=%d failed=%d transferred=%s manifest_replaced=%v\n",
		s.Succeeded, s.Failed, units.HumanSize(float64(s.NetworkBytes)), s.ManifestReplaced)
	return b.String()
}

func excludedFromSync(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, "filer.json") || strings.HasSuffix(lower, "filer.exe.new")
}

// DiffSet computes the set of remote entries to transfer, in remote
// manifest order.
func DiffSet(remote manifest.Manifest, local map[string]manifest.Entry, downloadAll bool) manifest.Manifest {
	out := make(manifest.Manifest, 0, len(remote))
	for _, e := range remote {
		if excludedFromSync(e.Path) {
			continue
		}
		if downloadAll {
			out = append(out, e)
			continue
		}
		if l, ok := local[e.Path]; ok && l.Digest == e.Digest && l.Size == e.Size {
			continue
		}
		out = append(out, e)
	}
	return out
}

func destPath(root, relPath string) (string, bool) {
	renamed := strings.HasSuffix(strings.ToLower(relPath), "filer.exe")
	if renamed {
		return filepath.Join(root, filepath.FromSlash(relPath)+".new"), true
	}
	return filepath.Join(root, filepath.FromSlash(relPath)), false
}

// remoteSource fetches chunks of one remote file over HTTP.
type remoteSource struct {
	client  *transport.Client
	catalog string
	file    string
}

func (r remoteSource) Fetch(ctx context.Context, skip, take uint64) ([]byte, error) {
	_, _, body, err := r.client.GetRange(ctx, r.catalog, r.file, skip, take)
	if err != nil {
		return nil, err
	}
	metrics.BytesTransferred.Add(float64(len(body)))
	return body, nil
}

// localSource copies chunks from an already-written local file.
type localSource struct {
	path string
}

func (l localSource) Fetch(_ context.Context, skip, take uint64) ([]byte, error) {
	part, err := chunkio.ReadRange(l.path, skip, take)
	if err != nil {
		return nil, err
	}
	metrics.BytesReusedLocally.Add(float64(len(part.Bytes)))
	return part.Bytes, nil
}

// Run executes one full sync: fetch the remote manifest, diff it
// against the local one, transfer the download set, verify, and
// conditionally replace the local manifest.
func Run(ctx context.Context, client *transport.Client, cfg Config) (Summary, error) {
	_, _, remoteRaw, err := client.GetRange(ctx, cfg.Catalog, manifest.ListFileName, 0, 0)
	if err != nil {
		return Summary{}, fmt.Errorf("downloader: fetch remote manifest: %w", err)
	}
	remote, err := manifest.Parse(string(remoteRaw))
	if err != nil {
		return Summary{}, fmt.Errorf("downloader: parse remote manifest: %w", err)
	}

	localRaw, err := os.ReadFile(filepath.Join(cfg.LocalPath, manifest.ListFileName))
	var localByPath map[string]manifest.Entry
	if err == nil {
		local, perr := manifest.Parse(string(localRaw))
		if perr != nil {
			return Summary{}, fmt.Errorf("downloader: parse local manifest: %w", perr)
		}
		localByPath = manifest.ByPath(local)
	} else {
		localByPath = map[string]manifest.Entry{}
	}

	downloadSet := DiffSet(remote, localByPath, cfg.DownloadAll)

	if cfg.KillRunningExe {
		paths := make([]string, len(downloadSet))
		for i, e := range downloadSet {
			paths[i] = e.Path
		}
		for _, name := range killproc.ImageNames(paths, "filer.exe") {
			if err := killproc.ByImageName(name); err != nil {
				slog.Warn("failed to terminate running process", "image", name, "err", err)
			}
		}
	}

	groups := digestgroup.New()
	for _, e := range downloadSet {
		groups.Add(e.Digest, e.Size, e.Path)
	}

	maxTasks := cfg.MaxTasks
	if maxTasks < 1 {
		maxTasks = 1
	}
	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = 65536
	}

	jobs := make([]scheduler.FileJob, len(downloadSet))
	for i, e := range downloadSet {
		parts, effective := indexer.CalcParts(e.Size, partSize, MaxSplitParts)
		jobs[i] = scheduler.FileJob{Index: uint64(i), Job: scheduler.Job{
			Size: e.Size, Parts: uint64(parts), PartSize: effective,
		}}
	}

	// writeAndVerify runs entirely inside one batch's concurrent fan-out,
	// so groups.SetFetched takes effect before the next batch consults
	// groups.Source — matching the spec's "before dispatch, consult the
	// DigestGroup" ordering across batches.
	writeAndVerify := func(ctx context.Context, e manifest.Entry) Outcome {
		metrics.FilesInFlight.Inc()
		defer metrics.FilesInFlight.Dec()

		sourcePath, fromLocal := groups.Source(e.Digest, e.Path)

		parts, effective := indexer.CalcParts(e.Size, partSize, MaxSplitParts)
		job := scheduler.Job{Size: e.Size, Parts: uint64(parts), PartSize: effective}
		if fromLocal {
			job.Source = localSource{path: filepath.Join(cfg.LocalPath, filepath.FromSlash(sourcePath))}
		} else {
			job.Source = remoteSource{client: client, catalog: cfg.Catalog, file: e.Path}
		}

		fetched, err := scheduler.RunFile(ctx, job)
		if err != nil {
			return Outcome{Path: e.Path, Err: err}
		}

		dest, _ := destPath(cfg.LocalPath, e.Path)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return Outcome{Path: e.Path, Err: fmt.Errorf("mkdir: %w", err)}
		}
		f, err := chunkio.Create(dest)
		if err != nil {
			return Outcome{Path: e.Path, Err: err}
		}

		h := blake3digest.New()
		var total uint64
		for _, p := range fetched {
			if err := chunkio.WriteAt(f, p.Skip, p.Bytes); err != nil {
				_ = f.Close()
				return Outcome{Path: e.Path, Err: err}
			}
			h.Write(p.Bytes)
			total += uint64(len(p.Bytes))
		}
		_ = f.Close()

		if total != e.Size || h.Sum() != e.Digest {
			metrics.IntegrityFailures.Inc()
			return Outcome{Path: e.Path, Err: fmt.Errorf("%w: %s", ErrIntegrity, e.Path)}
		}

		groups.SetFetched(e.Digest)
		if fromLocal {
			metrics.LocalReuseTotal.Inc()
		}
		return Outcome{Path: e.Path, Size: e.Size, FromLocal: fromLocal}
	}

	// outcomes is written directly by the batch's goroutines, one slot
	// per index — safe without a lock since each goroutine owns a
	// distinct index.
	outcomes := make([]Outcome, len(downloadSet))
	batcher := scheduler.NewBatcher(maxTasks)
	batcher.Run(ctx, jobs, func(ctx context.Context, fj scheduler.FileJob) scheduler.FileResult {
		outcome := writeAndVerify(ctx, downloadSet[fj.Index])
		outcomes[fj.Index] = outcome
		return scheduler.FileResult{Index: fj.Index, Err: outcome.Err}
	})

	var succeeded int
	for _, o := range outcomes {
		if o.Err == nil {
			succeeded++
		}
	}

	summary := Summary{Outcomes: outcomes, Succeeded: succeeded, Failed: len(outcomes) - succeeded}
	for _, o := range outcomes {
		if o.Err == nil && !o.FromLocal {
			summary.NetworkBytes += o.Size
		}
	}

	if succeeded > 0 {
		dst := filepath.Join(cfg.LocalPath, manifest.ListFileName)
		if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
			return summary, fmt.Errorf("downloader: create catalog dir: %w", err)
		}
		if err := os.WriteFile(dst, remoteRaw, 0o644); err != nil {
			return summary, fmt.Errorf("downloader: write local manifest: %w", err)
		}
		summary.ManifestReplaced = true
	}
	return summary, nil
}
