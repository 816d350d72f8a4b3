package xcopy

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunSingleFile(t *testing.T) {
	srcDir := t.TempDir()
	content := make([]byte, 10*1024*1024)
	_, err := rand.Read(content)
	require.NoError(t, err)
	srcFile := filepath.Join(srcDir, "big.bin")
	require.NoError(t, os.WriteFile(srcFile, content, 0o644))

	dstDir := t.TempDir()
	summary, err := Run(context.Background(), Config{Src: srcFile, Dst: dstDir, PartSize: 1024 * 1024, MaxTasks: 8})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 0, summary.Failed)

	got, err := os.ReadFile(filepath.Join(dstDir, "big.bin"))
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestRunDirectory(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sub", "b.txt"), []byte("bbbbb"), 0o644))

	dstDir := t.TempDir()
	summary, err := Run(context.Background(), Config{Src: srcDir, Dst: dstDir, PartSize: 4096, MaxTasks: 4})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Succeeded)

	a, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "aaa", string(a))

	b, err := os.ReadFile(filepath.Join(dstDir, "sub", "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "bbbbb", string(b))
}

func TestRunKillRunningExeDoesNotBlockCopy(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "tool.exe"), []byte("binary"), 0o644))

	dstDir := t.TempDir()
	summary, err := Run(context.Background(), Config{
		Src: srcDir, Dst: dstDir, PartSize: 4096, MaxTasks: 2, KillRunningExe: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)

	got, err := os.ReadFile(filepath.Join(dstDir, "tool.exe"))
	require.NoError(t, err)
	require.Equal(t, "binary", string(got))
}

func TestRunRenamesFilerExe(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "filer.exe"), []byte("binary"), 0o644))

	dstDir := t.TempDir()
	_, err := Run(context.Background(), Config{Src: srcDir, Dst: dstDir, PartSize: 4096, MaxTasks: 2})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dstDir, "filer.exe"))
	require.True(t, os.IsNotExist(err))

	got, err := os.ReadFile(filepath.Join(dstDir, "filer.exe.new"))
	require.NoError(t, err)
	require.Equal(t, "binary", string(got))
}
