package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
	"github.com/varshith-Git/valori/kernel"
	"github.com/varshith-Git/valori/model"
)

func testConfig() kernel.Config {
	return kernel.Config{Dim: 4, CapRecords: 8, CapNodes: 8, CapEdges: 8}
}

func unit(axis int) fxp.Vector {
	v := make(fxp.Vector, 4)
	v[axis] = fxp.One
	return v
}

func openEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := Open(dir, testConfig(), Options{})
	require.NoError(t, err)
	return e
}

func TestApplyAssignsIDsAndSearches(t *testing.T) {
	e := openEngine(t, t.TempDir())
	defer e.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		asn, err := e.Apply(ctx, model.InsertRecord(unit(i), 0, nil))
		require.NoError(t, err)
		assert.Equal(t, core.RecordID(i), asn.Record)
	}
	assert.Equal(t, uint32(3), e.RecordCount())
	assert.Equal(t, core.Version(3), e.Version())

	results, err := e.Search(unit(0), 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.RecordID(0), results[0].ID)
	assert.Equal(t, fxp.Zero, results[0].Score)
	assert.Equal(t, core.RecordID(1), results[1].ID)
	assert.Equal(t, fxp.Scalar(2*fxp.Scale), results[1].Score)
}

func TestBatchAtomicity(t *testing.T) {
	e := openEngine(t, t.TempDir())
	defer e.Close()
	ctx := context.Background()

	_, err := e.Apply(ctx, model.InsertRecord(unit(0), 0, nil))
	require.NoError(t, err)

	hashBefore := e.StateHash()
	versionBefore := e.Version()
	logHashBefore, err := e.LogHash()
	require.NoError(t, err)

	// Second command references a nonexistent record: the whole batch
	// must be rejected with no trace in state or log.
	_, err = e.ApplyBatch(ctx, []model.Command{
		model.InsertRecord(unit(1), 0, nil),
		model.SoftDeleteRecord(42),
	})
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))

	assert.Equal(t, hashBefore, e.StateHash())
	assert.Equal(t, versionBefore, e.Version())
	logHashAfter, err := e.LogHash()
	require.NoError(t, err)
	assert.Equal(t, logHashBefore, logHashAfter)
}

func TestBatchAppliesAllOrNothing(t *testing.T) {
	e := openEngine(t, t.TempDir())
	defer e.Close()
	ctx := context.Background()

	asns, err := e.ApplyBatch(ctx, []model.Command{
		model.InsertRecord(unit(0), 0, nil),
		model.InsertRecord(unit(1), 0, nil),
		model.CreateNode(1, 0),
		model.CreateNode(1, core.NoRecord),
		model.CreateEdge(1, 0, 1),
	})
	require.NoError(t, err)
	require.Len(t, asns, 5)
	assert.Equal(t, core.RecordID(0), asns[0].Record)
	assert.Equal(t, core.RecordID(1), asns[1].Record)
	assert.Equal(t, core.NodeID(0), asns[2].Node)
	assert.Equal(t, core.NodeID(1), asns[3].Node)
	assert.Equal(t, core.EdgeID(0), asns[4].Edge)
	assert.Equal(t, core.Version(5), e.Version())
	require.NoError(t, e.CheckInvariants())
}

func TestGraphScenario(t *testing.T) {
	// CreateNode/CreateEdge lifecycle with deletion ordering.
	e := openEngine(t, t.TempDir())
	defer e.Close()
	ctx := context.Background()

	_, err := e.Apply(ctx, model.InsertRecord(unit(1), 0, nil))
	require.NoError(t, err)

	n0, err := e.Apply(ctx, model.CreateNode(1, 0))
	require.NoError(t, err)
	assert.Equal(t, core.NodeID(0), n0.Node)

	n1, err := e.Apply(ctx, model.CreateNode(2, core.NoRecord))
	require.NoError(t, err)
	assert.Equal(t, core.NodeID(1), n1.Node)

	e0, err := e.Apply(ctx, model.CreateEdge(1, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, core.EdgeID(0), e0.Edge)

	edges, err := e.OutgoingEdges(0)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, core.EdgeID(0), edges[0].ID)

	_, err = e.Apply(ctx, model.DeleteNode(0))
	assert.True(t, core.IsInvariantViolation(err))

	_, err = e.Apply(ctx, model.DeleteEdge(0))
	require.NoError(t, err)
	_, err = e.Apply(ctx, model.DeleteNode(0))
	require.NoError(t, err)
}

func TestSearchByTag(t *testing.T) {
	e := openEngine(t, t.TempDir())
	defer e.Close()
	ctx := context.Background()

	_, err := e.Apply(ctx, model.InsertRecord(unit(0), 7, nil))
	require.NoError(t, err)
	_, err = e.Apply(ctx, model.InsertRecord(unit(1), 8, nil))
	require.NoError(t, err)

	results, err := e.SearchByTag(unit(0), 4, 7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.RecordID(0), results[0].ID)
}

func TestIngestLimiterStillCommits(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, testConfig(), Options{IngestLimit: rate.Limit(1000), IngestBurst: 4})
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := e.Apply(ctx, model.InsertRecord(unit(i%4), 0, nil))
		require.NoError(t, err)
	}
	assert.Equal(t, uint32(4), e.RecordCount())
}

func TestClosedEngineRejectsOperations(t *testing.T) {
	e := openEngine(t, t.TempDir())
	require.NoError(t, e.Close())
	require.NoError(t, e.Close()) // idempotent

	_, err := e.Apply(context.Background(), model.InsertRecord(unit(0), 0, nil))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.Search(unit(0), 1, nil)
	assert.ErrorIs(t, err, ErrClosed)
}
