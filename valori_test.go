package valori

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
	"github.com/varshith-Git/valori/model"
	"github.com/varshith-Git/valori/snapshot"
)

func testConfig() Config {
	return Config{Dim: 4, CapRecords: 8, CapNodes: 8, CapEdges: 8}
}

func openDB(t *testing.T, dir string, optFns ...Option) *Valori {
	t.Helper()
	db, err := Open(dir, testConfig(), optFns...)
	require.NoError(t, err)
	return db
}

func TestInsertSearchDeleteScenario(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	ctx := context.Background()

	// Three axis-aligned unit vectors get IDs 0,1,2 in order.
	for i := 0; i < 3; i++ {
		vec := make([]float32, 4)
		vec[i] = 1
		id, err := db.InsertFloat32(ctx, vec, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, core.RecordID(i), id)
	}
	assert.Equal(t, uint32(3), db.RecordCount())

	// Exact hit first, then the 1-vs-2 tie broken by ID with score 2.0.
	results, err := db.SearchFloat32(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, model.SearchResult{Score: 0, ID: 0}, results[0])
	assert.Equal(t, model.SearchResult{Score: 2 * fxp.Scale, ID: 1}, results[1])

	// After a soft delete only {1,2} remain, equal scores, ascending IDs.
	require.NoError(t, db.SoftDelete(ctx, 0))
	results, err = db.SearchFloat32(ctx, []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.RecordID(1), results[0].ID)
	assert.Equal(t, core.RecordID(2), results[1].ID)
	assert.Equal(t, results[0].Score, results[1].Score)
}

func TestCrashRecoveryMatchesPreCrashHash(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db := openDB(t, dir)
	_, err := db.ApplyBatch(ctx, []model.Command{
		model.InsertRecord(fxp.Vector{fxp.One, 0, 0, 0}, 0, nil),
		model.InsertRecord(fxp.Vector{0, fxp.One, 0, 0}, 0, nil),
		model.InsertRecord(fxp.Vector{0, 0, fxp.One, 0}, 0, nil),
		model.CreateNode(1, 1),
		model.CreateNode(2, core.NoRecord),
		model.CreateEdge(1, 0, 1),
	})
	require.NoError(t, err)
	require.NoError(t, db.Checkpoint())

	require.NoError(t, db.SoftDelete(ctx, 2))
	want := db.StateHash()

	// Kill the process (close without checkpointing the tail).
	require.NoError(t, db.Close())

	db2 := openDB(t, dir)
	defer db2.Close()
	assert.Equal(t, want, db2.StateHash())
	require.NoError(t, db2.CheckInvariants())
}

func TestSnapshotEncodeDecodeEquivalence(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	defer db.Close()
	ctx := context.Background()

	_, err := db.InsertFloat32(ctx, []float32{0.5, -0.25, 0, 1}, 3, []byte("m"))
	require.NoError(t, err)

	buf, err := db.SnapshotEncode(nil)
	require.NoError(t, err)

	restored, err := snapshot.NewCodec(testConfig()).Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, db.StateHash(), restored.StateHash())
}

func TestBoundaryConversionRange(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	ctx := context.Background()

	_, err := db.InsertFloat32(ctx, []float32{1e9, 0, 0, 0}, 0, nil)
	assert.ErrorIs(t, err, core.ErrValueOutOfRange)
	assert.Equal(t, uint32(0), db.RecordCount())
}

func TestMetadataLifecycle(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	ctx := context.Background()

	id, err := db.InsertFloat32(ctx, []float32{1, 0, 0, 0}, 0, []byte("first"))
	require.NoError(t, err)

	got, ok := db.GetMetadata(id)
	require.True(t, ok)
	assert.Equal(t, []byte("first"), got)

	require.NoError(t, db.SetMetadata(ctx, id, []byte("second")))
	got, ok = db.GetMetadata(id)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), got)
}

func TestTagSearchAndGraphReads(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	ctx := context.Background()

	a, err := db.InsertFloat32(ctx, []float32{1, 0, 0, 0}, 7, nil)
	require.NoError(t, err)
	_, err = db.InsertFloat32(ctx, []float32{0, 1, 0, 0}, 9, nil)
	require.NoError(t, err)

	q, err := VectorFromFloat32([]float32{1, 0, 0, 0})
	require.NoError(t, err)
	results, err := db.SearchByTag(ctx, q, 4, 7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a, results[0].ID)

	n0, err := db.Apply(ctx, model.CreateNode(1, a))
	require.NoError(t, err)
	n1, err := db.Apply(ctx, model.CreateNode(1, core.NoRecord))
	require.NoError(t, err)
	_, err = db.Apply(ctx, model.CreateEdge(2, n0.Node, n1.Node))
	require.NoError(t, err)

	node, err := db.GetNode(n0.Node)
	require.NoError(t, err)
	assert.Equal(t, a, node.Record)

	edges, err := db.OutgoingEdges(n0.Node)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, n1.Node, edges[0].To)
	assert.Equal(t, uint32(2), db.NodeCount())
	assert.Equal(t, uint32(1), db.EdgeCount())
}

func TestMetricsCollectorObservesOperations(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	db := openDB(t, t.TempDir(), WithMetricsCollector(metrics))
	defer db.Close()
	ctx := context.Background()

	_, err := db.InsertFloat32(ctx, []float32{1, 0, 0, 0}, 0, nil)
	require.NoError(t, err)
	_, err = db.SearchFloat32(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.NoError(t, db.Checkpoint())

	assert.Equal(t, int64(1), metrics.ApplyCount.Load())
	assert.Equal(t, int64(1), metrics.SearchCount.Load())
	assert.Equal(t, int64(1), metrics.CheckpointCount.Load())
	assert.Equal(t, int64(0), metrics.ApplyErrors.Load())
}

func TestLogHashChangesWithCommits(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	ctx := context.Background()

	before, err := db.LogHash()
	require.NoError(t, err)
	_, err = db.InsertFloat32(ctx, []float32{1, 0, 0, 0}, 0, nil)
	require.NoError(t, err)
	after, err := db.LogHash()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestCheckpointRotatesFiles(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	defer db.Close()
	ctx := context.Background()

	_, err := db.InsertFloat32(ctx, []float32{1, 0, 0, 0}, 0, nil)
	require.NoError(t, err)
	require.NoError(t, db.Checkpoint())

	_, err = os.Stat(filepath.Join(dir, "snapshot.val"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "events.log"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "events.log.prev"))
	require.NoError(t, err)
}

func TestVectorConversionRoundTrip(t *testing.T) {
	in := []float32{0.5, -0.25, 1, 0}
	vec, err := VectorFromFloat32(in)
	require.NoError(t, err)
	assert.Equal(t, in, VectorToFloat32(vec))
}
