package hmalloc

import (
	"io"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats is a snapshot of the coalescing strategy's counters. Counters start
// at zero and are never reset.
//
// ChunksAllocated counts successful allocations only: a call that fails
// with ErrOutOfMemory or ErrSizeOverflow leaves it untouched, so
// Outstanding never counts blocks that were not handed out.
type Stats struct {
	PagesMapped     int64
	PagesUnmapped   int64
	ChunksAllocated int64
	ChunksFreed     int64
	// FreeLength is recomputed by walking the free list for every snapshot
	FreeLength int64
}

// Outstanding is the number of blocks handed out and not yet freed.
func (s Stats) Outstanding() int64 {
	return s.ChunksAllocated - s.ChunksFreed
}

// Dump writes the human readable report.
func (s Stats) Dump(w io.Writer) error {
	p := message.NewPrinter(language.English)
	_, err := p.Fprintf(w, "\n== hmalloc stats ==\n"+
		"Mapped:   %d\n"+
		"Unmapped: %d\n"+
		"Allocs:   %d\n"+
		"Frees:    %d\n"+
		"Freelen:  %d\n",
		s.PagesMapped, s.PagesUnmapped, s.ChunksAllocated, s.ChunksFreed, s.FreeLength)
	return err
}

func (s Stats) MarshalJSON() ([]byte, error) {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("pages_mapped").Int(int(s.PagesMapped))
	obj.Name("pages_unmapped").Int(int(s.PagesUnmapped))
	obj.Name("chunks_allocated").Int(int(s.ChunksAllocated))
	obj.Name("chunks_freed").Int(int(s.ChunksFreed))
	obj.Name("free_length").Int(int(s.FreeLength))
	obj.End()
	return w.Bytes(), w.Error()
}
