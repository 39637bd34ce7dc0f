package engine

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
	"github.com/varshith-Git/valori/model"
	"github.com/varshith-Git/valori/snapshot"
	"github.com/varshith-Git/valori/wal"
)

func TestRestartRecoversFromLogOnly(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := openEngine(t, dir)
	for i := 0; i < 3; i++ {
		_, err := e.Apply(ctx, model.InsertRecord(unit(i), uint64(i), nil))
		require.NoError(t, err)
	}
	want := e.StateHash()
	require.NoError(t, e.Close())

	e2 := openEngine(t, dir)
	defer e2.Close()
	assert.Equal(t, want, e2.StateHash())
	assert.Equal(t, core.Version(3), e2.Version())
	require.NoError(t, e2.CheckInvariants())
}

func TestRestartRecoversSnapshotPlusLogTail(t *testing.T) {
	// Checkpoint mid-history, keep writing, "crash" (close), reopen: the
	// recovered hash must equal the pre-crash hash.
	dir := t.TempDir()
	ctx := context.Background()

	e := openEngine(t, dir)
	_, err := e.ApplyBatch(ctx, []model.Command{
		model.InsertRecord(unit(0), 0, []byte("a")),
		model.InsertRecord(unit(1), 0, nil),
		model.CreateNode(1, 1),
		model.CreateNode(2, core.NoRecord),
		model.CreateEdge(1, 0, 1),
	})
	require.NoError(t, err)
	require.NoError(t, e.Checkpoint())

	_, err = e.Apply(ctx, model.SoftDeleteRecord(1))
	require.NoError(t, err)
	_, err = e.Apply(ctx, model.SetMetadata(0, []byte("b")))
	require.NoError(t, err)

	want := e.StateHash()
	require.NoError(t, e.Close())

	e2 := openEngine(t, dir)
	defer e2.Close()
	assert.Equal(t, want, e2.StateHash())
	assert.Equal(t, core.Version(7), e2.Version())

	// The soft-deleted record stays a tombstone after recovery.
	r, err := e2.GetRecord(1)
	require.NoError(t, err)
	assert.True(t, r.Deleted)
}

func TestTruncatedLogTailLosesOnlyLastFrame(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := openEngine(t, dir)
	for i := 0; i < 3; i++ {
		_, err := e.Apply(ctx, model.InsertRecord(unit(i), 0, nil))
		require.NoError(t, err)
	}
	require.NoError(t, e.Close())

	logPath := filepath.Join(dir, wal.DefaultFileName)
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(logPath, data[:len(data)-1], 0o600))

	e2 := openEngine(t, dir)
	defer e2.Close()
	assert.Equal(t, core.Version(2), e2.Version())
	assert.Equal(t, uint32(2), e2.RecordCount())
}

func TestCorruptLogFailsClosed(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := openEngine(t, dir)
	_, err := e.Apply(ctx, model.InsertRecord(unit(0), 0, nil))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	logPath := filepath.Join(dir, wal.DefaultFileName)
	f, err := os.OpenFile(logPath, os.O_RDWR, 0o600)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0x7F}, wal.HeaderSize) // frame version byte
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(dir, testConfig(), Options{})
	require.Error(t, err)
	assert.True(t, core.IsCorrupt(err))
}

func TestCorruptSnapshotFailsClosed(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := openEngine(t, dir)
	_, err := e.Apply(ctx, model.InsertRecord(unit(0), 0, nil))
	require.NoError(t, err)
	require.NoError(t, e.Checkpoint())
	require.NoError(t, e.Close())

	snapPath := filepath.Join(dir, snapshot.DefaultFileName)
	data, err := os.ReadFile(snapPath)
	require.NoError(t, err)
	data[40] ^= 0x01
	require.NoError(t, os.WriteFile(snapPath, data, 0o600))

	_, err = Open(dir, testConfig(), Options{})
	require.Error(t, err)
}

func TestInterruptedCheckpointBeforeRotationDiscardsStagedSnapshot(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := openEngine(t, dir)
	_, err := e.Apply(ctx, model.InsertRecord(unit(0), 0, nil))
	require.NoError(t, err)
	want := e.StateHash()

	// Simulate a crash between staging and rotation: the staged snapshot
	// exists but the live log still holds every frame.
	staged, err := e.SnapshotEncode(nil)
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotTmpName), staged, 0o644))

	e2 := openEngine(t, dir)
	defer e2.Close()
	assert.Equal(t, want, e2.StateHash())
	_, err = os.Stat(filepath.Join(dir, snapshotTmpName))
	assert.True(t, os.IsNotExist(err))
}

func TestInterruptedCheckpointAfterRotationIsCompleted(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := openEngine(t, dir)
	_, err := e.Apply(ctx, model.InsertRecord(unit(0), 0, nil))
	require.NoError(t, err)
	want := e.StateHash()

	staged, err := e.SnapshotEncode(nil)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// Simulate a crash after log rotation but before the staged snapshot
	// was published: rotate by hand and leave the staged file behind.
	logPath := filepath.Join(dir, wal.DefaultFileName)
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotTmpName), staged, 0o644))
	require.NoError(t, os.Rename(logPath, logPath+wal.PrevSuffix))
	fresh, err := wal.Create(logPath, testConfig().Dim)
	require.NoError(t, err)
	require.NoError(t, fresh.Close())

	e2 := openEngine(t, dir)
	defer e2.Close()
	assert.Equal(t, want, e2.StateHash())
	assert.Equal(t, core.Version(1), e2.Version())

	// The staged snapshot was published.
	_, err = os.Stat(filepath.Join(dir, snapshot.DefaultFileName))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, snapshotTmpName))
	assert.True(t, os.IsNotExist(err))
}

func TestCheckpointArchivesSupersededGenerations(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")
	ctx := context.Background()

	e, err := Open(dir, testConfig(), Options{
		Archive: &ArchiveOptions{Dir: archiveDir, Codec: ArchiveLZ4},
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Apply(ctx, model.InsertRecord(unit(0), 0, nil))
	require.NoError(t, err)
	require.NoError(t, e.Checkpoint())

	_, err = e.Apply(ctx, model.InsertRecord(unit(1), 0, nil))
	require.NoError(t, err)
	require.NoError(t, e.Checkpoint())

	entries, err := os.ReadDir(archiveDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	for _, entry := range entries {
		assert.Contains(t, entry.Name(), ".lz4")
	}
}

func TestDeterministicHistoriesConverge(t *testing.T) {
	// Two engines driven by the same seeded integer PRNG over the command
	// space must end bit-identical. The PRNG chooses commands and raw
	// integer vector values; no floating point is involved.
	runHistory := func(dir string) [32]byte {
		e := openEngine(t, dir)
		defer e.Close()
		ctx := context.Background()
		rng := rand.New(rand.NewSource(1234))

		for i := 0; i < 100; i++ {
			switch rng.Intn(6) {
			case 0, 1, 2:
				vec := make(fxp.Vector, 4)
				for j := range vec {
					vec[j] = fxp.Scalar(int32(rng.Intn(1<<20) - 1<<19))
				}
				_, _ = e.Apply(ctx, model.InsertRecord(vec, uint64(rng.Intn(4)), nil))
			case 3:
				_, _ = e.Apply(ctx, model.SoftDeleteRecord(core.RecordID(rng.Intn(8))))
			case 4:
				_, _ = e.Apply(ctx, model.CreateNode(uint8(rng.Intn(4)), core.NoRecord))
			case 5:
				_, _ = e.Apply(ctx, model.CreateEdge(uint8(rng.Intn(4)),
					core.NodeID(rng.Intn(8)), core.NodeID(rng.Intn(8))))
			}
		}
		return e.StateHash()
	}

	h1 := runHistory(t.TempDir())
	h2 := runHistory(t.TempDir())
	assert.Equal(t, h1, h2)
}
