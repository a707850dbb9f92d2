package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leslie-fei/hmalloc"
	"github.com/leslie-fei/hmalloc/mmap"
)

func TestRun(t *testing.T) {
	f := hmalloc.NewFreeList(mmap.NewSource())
	total, err := run(f, 4, 2000, 3*hmalloc.PageSize)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), total)

	s := f.Stats()
	assert.Zero(t, s.Outstanding())
	assert.GreaterOrEqual(t, s.PagesMapped, s.PagesUnmapped)
}

func TestRun_Thread(t *testing.T) {
	th := hmalloc.NewBins(mmap.NewSource()).NewThread()
	total, err := run(th, 1, 2000, 4000)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), total)
}
