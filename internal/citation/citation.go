// Package citation carries source attributions through model output as an
// inline text protocol. Tools append a marker line listing the documents a
// response drew on; the UI boundary strips the marker back out and renders
// the sources separately.
package citation

import (
	"fmt"
	"regexp"
	"strings"
)

// Marker precedes the comma-joined source list on its own line.
const Marker = "METADATA_SOURCES:"

// DebugMarker precedes optional diagnostic text after the source list.
const DebugMarker = "DEBUG_INFO:"

// Source identifies one cited location inside an indexed document.
type Source struct {
	Filename string
	Page     int
}

// String renders the source in the wire form, e.g. "refunds.pdf (p. 3)".
func (s Source) String() string {
	return fmt.Sprintf("%s (p. %d)", s.Filename, s.Page)
}

// Encode renders the marker line for the given sources. Duplicates are
// dropped, first occurrence wins, order is otherwise preserved. An empty
// source list encodes to an empty string.
func Encode(sources []Source) string {
	if len(sources) == 0 {
		return ""
	}

	seen := make(map[Source]bool, len(sources))
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		if seen[src] {
			continue
		}
		seen[src] = true
		parts = append(parts, src.String())
	}
	return Marker + " " + strings.Join(parts, ", ")
}

// entryPattern matches one "filename (p. N)" source entry.
var entryPattern = regexp.MustCompile(`^(.+?)\s+\(p\.\s*(\d+)\)$`)

// Message is the result of splitting model output at the UI boundary.
type Message struct {
	Answer  string
	Sources []Source
	Debug   string
}

// Split separates an agent response into the user-facing answer, the cited
// sources, and any debug text. Text without a marker line passes through
// unchanged as the answer. Unparseable source entries are skipped rather
// than failing the whole message.
func Split(text string) Message {
	idx := strings.Index(text, Marker)
	if idx < 0 {
		return Message{Answer: strings.TrimSpace(text)}
	}

	msg := Message{Answer: strings.TrimSpace(text[:idx])}

	rest := text[idx+len(Marker):]
	if di := strings.Index(rest, DebugMarker); di >= 0 {
		msg.Debug = strings.TrimSpace(rest[di+len(DebugMarker):])
		rest = rest[:di]
	}

	// The source list runs to the end of its line; anything after belongs
	// to the answer no longer, so it is dropped with the marker.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}

	for _, entry := range strings.Split(rest, ",") {
		entry = strings.TrimSpace(entry)
		entry = strings.Trim(entry, `"`)
		if entry == "" {
			continue
		}
		m := entryPattern.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		var page int
		fmt.Sscanf(m[2], "%d", &page)
		msg.Sources = append(msg.Sources, Source{Filename: m[1], Page: page})
	}
	return msg
}
