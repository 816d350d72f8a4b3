package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/hdsync/filer-sync/internal/blake3digest"
	"github.com/hdsync/filer-sync/internal/envelope"
	"github.com/hdsync/filer-sync/internal/manifest"
	"github.com/hdsync/filer-sync/internal/transport"
	"github.com/stretchr/testify/require"
)

// fileServer serves files out of a root directory, decoding the same
// request envelope the real server does, so downloader tests exercise
// the actual wire contract without importing internal/server.
func fileServer(t *testing.T, root string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.URL.Path, "/api/download/")
		req, err := envelope.Decode(raw)
		require.NoError(t, err)

		full := filepath.Join(root, req.File)
		data, err := os.ReadFile(full)
		if err != nil {
			w.Header().Set("x-body-is-error", "yes")
			w.WriteHeader(http.StatusNotAcceptable)
			_, _ = w.Write([]byte("not found"))
			return
		}

		skip, take := req.Skip, req.Take
		if take == 0 {
			take = uint64(len(data))
		}
		end := skip + take
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		if skip > uint64(len(data)) {
			skip = uint64(len(data))
		}
		body := data[skip:end]

		w.Header().Set("x-skip", strconv.FormatUint(skip, 10))
		w.Header().Set("x-take", strconv.FormatUint(uint64(len(body)), 10))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
}

func TestDiffSetExcludesIdenticalEntriesUnderUpdate(t *testing.T) {
	remote := manifest.Manifest{
		{Digest: strings.Repeat("a", 64), Size: 5, Path: "x.txt"},
	}
	local := map[string]manifest.Entry{
		"x.txt": {Digest: strings.Repeat("a", 64), Size: 5, Path: "x.txt"},
	}
	require.Empty(t, DiffSet(remote, local, false))
	require.Len(t, DiffSet(remote, local, true), 1)
}

func TestDiffSetIncludesChangedDigest(t *testing.T) {
	remote := manifest.Manifest{
		{Digest: strings.Repeat("b", 64), Size: 5, Path: "x.txt"},
	}
	local := map[string]manifest.Entry{
		"x.txt": {Digest: strings.Repeat("a", 64), Size: 5, Path: "x.txt"},
	}
	require.Len(t, DiffSet(remote, local, false), 1)
}

func TestDiffSetExcludesReservedSuffixes(t *testing.T) {
	remote := manifest.Manifest{
		{Digest: strings.Repeat("a", 64), Size: 1, Path: "cfg/filer.json"},
		{Digest: strings.Repeat("a", 64), Size: 1, Path: "filer.exe.new"},
		{Digest: strings.Repeat("a", 64), Size: 1, Path: "keep.bin"},
	}
	out := DiffSet(remote, map[string]manifest.Entry{}, true)
	require.Len(t, out, 1)
	require.Equal(t, "keep.bin", out[0].Path)
}

func TestDestPathRenamesFilerExe(t *testing.T) {
	dest, renamed := destPath("/root", "filer.exe")
	require.True(t, renamed)
	require.Equal(t, filepath.Join("/root", "filer.exe.new"), dest)

	dest, renamed = destPath("/root", "data.bin")
	require.False(t, renamed)
	require.Equal(t, filepath.Join("/root", "data.bin"), dest)
}

func TestRunDownloadsDistinctFilesAndReusesDuplicates(t *testing.T) {
	remoteRoot := t.TempDir()
	aContent := make([]byte, 1_048_577)
	for i := range aContent {
		aContent[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(remoteRoot, "a.bin"), aContent, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(remoteRoot, "b.bin"), aContent, 0o644))

	digest := blake3digest.Of(aContent)
	remoteManifest := manifest.Manifest{
		{Digest: digest, Size: uint64(len(aContent)), Path: "a.bin"},
		{Digest: digest, Size: uint64(len(aContent)), Path: "b.bin"},
	}
	require.NoError(t, os.WriteFile(filepath.Join(remoteRoot, "filelist.txt"), manifest.Emit(remoteManifest), 0o644))

	srv := fileServer(t, remoteRoot)
	defer srv.Close()
	client := transport.New(srv.URL, nil)

	localRoot := t.TempDir()
	summary, err := Run(context.Background(), client, Config{
		Catalog: "default", LocalPath: localRoot, PartSize: 65536, MaxTasks: 8, DownloadAll: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Succeeded)
	require.True(t, summary.ManifestReplaced)
	require.False(t, summary.Outcomes[0].FromLocal)
	require.True(t, summary.Outcomes[1].FromLocal)
	require.Equal(t, uint64(len(aContent)), summary.NetworkBytes)

	gotA, err := os.ReadFile(filepath.Join(localRoot, "a.bin"))
	require.NoError(t, err)
	require.Equal(t, aContent, gotA)

	gotB, err := os.ReadFile(filepath.Join(localRoot, "b.bin"))
	require.NoError(t, err)
	require.Equal(t, aContent, gotB)
}

func TestRunUpdateSkipsUnchangedFile(t *testing.T) {
	remoteRoot := t.TempDir()
	content := []byte("hello")
	require.NoError(t, os.WriteFile(filepath.Join(remoteRoot, "x.txt"), content, 0o644))
	digest := blake3digest.Of(content)
	remoteManifest := manifest.Manifest{{Digest: digest, Size: uint64(len(content)), Path: "x.txt"}}
	require.NoError(t, os.WriteFile(filepath.Join(remoteRoot, "filelist.txt"), manifest.Emit(remoteManifest), 0o644))

	srv := fileServer(t, remoteRoot)
	defer srv.Close()
	client := transport.New(srv.URL, nil)

	localRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(localRoot, "filelist.txt"), manifest.Emit(remoteManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(localRoot, "x.txt"), content, 0o644))

	summary, err := Run(context.Background(), client, Config{
		Catalog: "default", LocalPath: localRoot, PartSize: 4096, MaxTasks: 4, DownloadAll: false,
	})
	require.NoError(t, err)
	require.Equal(t, 0, summary.Succeeded)
	require.False(t, summary.ManifestReplaced)
}
