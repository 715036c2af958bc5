package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/samogod/blockforge/pkg/domain"
)

const TimestampLayout = "2006-01-02 15:04 MST"

// Header is the metadata written above the entries of every rendered list.
type Header struct {
	Title       string
	Description string
	Homepage    string
	// Expires is only meaningful to adblock consumers and is omitted from
	// other formats.
	Expires     string
	Sources     []string
	GeneratedAt time.Time
	Location    *time.Location
}

// RenderedList is the final text of one list in one format.
type RenderedList struct {
	Format string
	Count  int
	Body   []byte
}

// Render writes the header and one line per domain in ascending order.
// The set is only read.
func Render(set *domain.Set, f Format, h Header) RenderedList {
	domains := set.Sorted()

	var buf bytes.Buffer
	writeHeader(&buf, f, h, len(domains))
	for _, d := range domains {
		buf.WriteString(f.Line(d))
		buf.WriteByte('\n')
	}

	return RenderedList{
		Format: f.Name(),
		Count:  len(domains),
		Body:   buf.Bytes(),
	}
}

func writeHeader(buf *bytes.Buffer, f Format, h Header, count int) {
	c := f.CommentPrefix()
	line := func(format string, args ...interface{}) {
		buf.WriteString(c)
		buf.WriteByte(' ')
		fmt.Fprintf(buf, format, args...)
		buf.WriteByte('\n')
	}

	line("Title: %s", h.Title)
	if h.Description != "" {
		line("Description: %s", h.Description)
	}
	if h.Homepage != "" {
		line("Homepage: %s", h.Homepage)
	}
	if h.Expires != "" && f.Name() == "adblock" {
		line("Expires: %s", h.Expires)
	}
	line("Last modified: %s", Timestamp(h.GeneratedAt, h.Location))
	line("Number of unique domains: %d", count)
	line("%s", f.SyntaxHint())
	if len(h.Sources) > 0 {
		line("Sources:")
		for _, s := range h.Sources {
			line("  %s", s)
		}
	}
	buf.WriteString(c)
	buf.WriteByte('\n')
}

// Timestamp formats t to the minute in loc, UTC when loc is nil.
func Timestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimestampLayout)
}
