package artifacts

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkspace_CreateUniqueNames(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	const n = 32
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		paths = make(map[string]struct{}, n)
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := ws.Create("chart swing", ".png")
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			_ = f.Close()

			mu.Lock()
			paths[f.Name()] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, paths, n)
	for p := range paths {
		base := filepath.Base(p)
		assert.True(t, strings.HasPrefix(base, "chart_swing-"), base)
		assert.True(t, strings.HasSuffix(base, ".png"), base)
	}
}

func TestArtifact_RemoveIsIdempotent(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	f, err := ws.Create("export", "csv")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	a := Artifact{Kind: KindDocument, Path: f.Name(), FileName: "export.csv"}
	require.NoError(t, a.Remove())
	require.NoError(t, a.Remove())

	_, err = os.Stat(f.Name())
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, Artifact{}.Remove())
}

func TestSweeper_RemovesOnlyOldFiles(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	oldFile, err := ws.Create("old", ".png")
	require.NoError(t, err)
	require.NoError(t, oldFile.Close())

	freshFile, err := ws.Create("fresh", ".png")
	require.NoError(t, err)
	require.NoError(t, freshFile.Close())

	now := time.Now()
	require.NoError(t, os.Chtimes(oldFile.Name(), now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Mkdir(filepath.Join(ws.Dir(), "nested"), 0o700))

	sweeper := NewSweeper(ws, time.Hour, testLogger())
	sweeper.now = func() time.Time { return now }

	removed, err := sweeper.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(oldFile.Name())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshFile.Name())
	assert.NoError(t, err)
}

func TestSweeper_StartRejectsBadSchedule(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	sweeper := NewSweeper(ws, time.Hour, testLogger())
	assert.Error(t, sweeper.Start("not a schedule"))

	require.NoError(t, sweeper.Schedule("@every 1h", "noop", func() {}))
	require.NoError(t, sweeper.Start("@every 1h"))
	sweeper.Stop()
}
