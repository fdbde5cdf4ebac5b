package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ringdb/ringdb/internal/schema"
	"github.com/ringdb/ringdb/pkg/types"
)

var (
	oldRow = []string{"k", "old", "2024-01-01T00:00:00Z"}
	newRow = []string{"k", "new", "2024-06-01T00:00:00Z"}
)

func TestReconcileFirstWinsForOne(t *testing.T) {
	responses := [][][]string{{oldRow}, {newRow}}
	assert.Equal(t, [][]string{oldRow}, reconcile(types.ConsistencyOne, responses))
	assert.Equal(t, [][]string{oldRow}, reconcile(types.ConsistencyAny, responses))
}

func TestReconcileUnanimousShortcut(t *testing.T) {
	responses := [][][]string{{oldRow}, {oldRow}, {oldRow}}
	assert.Equal(t, [][]string{oldRow}, reconcile(types.ConsistencyQuorum, responses))
}

func TestReconcileFresherMinorityWins(t *testing.T) {
	// Two stale replicas against one fresh one: the fresh copy wins even
	// though the stale set holds the majority.
	responses := [][][]string{{oldRow}, {newRow}, {oldRow}}
	assert.Equal(t, [][]string{newRow}, reconcile(types.ConsistencyQuorum, responses))
}

func TestReconcileLatestWinsAcrossThreeVersions(t *testing.T) {
	middle := []string{"k", "mid", "2024-03-01T00:00:00Z"}
	responses := [][][]string{{oldRow}, {middle}, {newRow}}
	assert.Equal(t, [][]string{newRow}, reconcile(types.ConsistencyQuorum, responses))
}

func TestReconcileAll(t *testing.T) {
	agree := [][][]string{{newRow}, {newRow}, {newRow}}
	assert.Equal(t, [][]string{newRow}, reconcile(types.ConsistencyAll, agree))

	diverge := [][][]string{{oldRow}, {oldRow}, {newRow}}
	assert.Equal(t, [][]string{newRow}, reconcile(types.ConsistencyAll, diverge))
}

func TestReconcileEmpty(t *testing.T) {
	assert.Nil(t, reconcile(types.ConsistencyQuorum, nil))
}

func TestLatestPerRowUnevenLengths(t *testing.T) {
	short := [][]string{oldRow}
	long := [][]string{oldRow, newRow}
	got := latestPerRow([][][]string{short, long})
	assert.Equal(t, [][]string{oldRow, newRow}, got)
}

func TestRowSetsEqual(t *testing.T) {
	assert.True(t, rowSetsEqual([][]string{oldRow}, [][]string{{"k", "old", "2024-01-01T00:00:00Z"}}))
	assert.False(t, rowSetsEqual([][]string{oldRow}, [][]string{newRow}))
	assert.False(t, rowSetsEqual([][]string{oldRow}, nil))
}

func TestStripLastUpdate(t *testing.T) {
	cols := []string{"id", "name", schema.LastUpdateColumn}
	rows := [][]string{{"1", "ada", "2024-01-01T00:00:00Z"}}

	outCols, outRows := stripLastUpdate(cols, rows)
	assert.Equal(t, []string{"id", "name"}, outCols)
	assert.Equal(t, [][]string{{"1", "ada"}}, outRows)
}

func TestStripLastUpdateWithoutTrailingColumn(t *testing.T) {
	cols := []string{"id", "name"}
	rows := [][]string{{"1", "ada"}}

	outCols, outRows := stripLastUpdate(cols, rows)
	assert.Equal(t, cols, outCols)
	assert.Equal(t, rows, outRows)
}
