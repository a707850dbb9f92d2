package hmalloc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_Dump(t *testing.T) {
	s := Stats{PagesMapped: 12345, PagesUnmapped: 2, ChunksAllocated: 7, ChunksFreed: 5, FreeLength: 1}

	var buf bytes.Buffer
	require.NoError(t, s.Dump(&buf))
	assert.Equal(t, "\n== hmalloc stats ==\n"+
		"Mapped:   12,345\n"+
		"Unmapped: 2\n"+
		"Allocs:   7\n"+
		"Frees:    5\n"+
		"Freelen:  1\n", buf.String())
}

func TestStats_JSON(t *testing.T) {
	s := Stats{PagesMapped: 3, PagesUnmapped: 2, ChunksAllocated: 10, ChunksFreed: 4, FreeLength: 2}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"pages_mapped": 3,
		"pages_unmapped": 2,
		"chunks_allocated": 10,
		"chunks_freed": 4,
		"free_length": 2
	}`, string(data))
	assert.Equal(t, int64(6), s.Outstanding())
}

func TestFreeList_DumpStats(t *testing.T) {
	f := NewFreeList(newCountingSource())
	a, err := f.Allocate(100)
	require.NoError(t, err)
	b, err := f.Allocate(100)
	require.NoError(t, err)
	f.Free(a)

	var buf bytes.Buffer
	require.NoError(t, f.DumpStats(&buf))
	out := buf.String()
	assert.Contains(t, out, "Mapped:   1\n")
	assert.Contains(t, out, "Allocs:   2\n")
	assert.Contains(t, out, "Frees:    1\n")
	assert.Contains(t, out, "Freelen:  2\n")

	f.Free(b)
	assert.Equal(t, int64(1), f.Stats().FreeLength)
	assert.NotPanics(t, f.PrintStats)
}
