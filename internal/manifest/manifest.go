// Package manifest parses and emits filelist.txt, the CRLF-delimited
// manifest of (digest, size, relative_path) entries that describes a
// catalog's contents.
package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hdsync/filer-sync/internal/blake3digest"
)

// EOL is the manifest's line terminator. It is CRLF regardless of host OS.
const EOL = "\r\n"

// ListFileName is the reserved manifest file name; it never appears as
// an entry within its own manifest.
const ListFileName = "filelist.txt"

// Entry describes one file in a catalog.
type Entry struct {
	Digest string // 64 lowercase hex characters, BLAKE3-256
	Size   uint64
	Path   string // relative to the catalog root, forward-slash separated
}

// Manifest is an ordered sequence of Entry, in the order the Indexer
// walked the catalog (not sorted).
type Manifest []Entry

// Parse splits raw CRLF-delimited manifest bytes into entries. Blank
// lines are tolerated and dropped. Each non-empty line splits on its
// last two commas — counting from the right — into (digest, size,
// path): the path is everything after the final comma (and so, by
// construction, contains no comma itself), size is the field between
// the last two commas, and digest is everything before that.
func Parse(raw string) (Manifest, error) {
	lines := strings.Split(raw, EOL)
	out := make(Manifest, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		lastComma := strings.LastIndexByte(line, ',')
		if lastComma < 0 {
			return nil, fmt.Errorf("manifest: malformed line %q", line)
		}
		head := line[:lastComma]
		path := line[lastComma+1:]

		secondComma := strings.LastIndexByte(head, ',')
		if secondComma < 0 {
			return nil, fmt.Errorf("manifest: malformed line %q", line)
		}
		digest := head[:secondComma]
		sizeStr := head[secondComma+1:]

		if path == "" {
			return nil, fmt.Errorf("manifest: empty path in line %q", line)
		}
		size, err := strconv.ParseUint(sizeStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("manifest: bad size in line %q: %w", line, err)
		}
		if !blake3digest.Valid(digest) {
			return nil, fmt.Errorf("manifest: bad digest in line %q", line)
		}
		out = append(out, Entry{Digest: digest, Size: size, Path: path})
	}
	return out, nil
}

// Emit serializes entries to CRLF-joined lines with no trailing CRLF.
func Emit(m Manifest) []byte {
	lines := make([]string, 0, len(m))
	for _, e := range m {
		lines = append(lines, fmt.Sprintf("%s,%d,%s", e.Digest, e.Size, e.Path))
	}
	return []byte(strings.Join(lines, EOL))
}

// Group is the set of entries sharing one digest.
type Group struct {
	Digest string
	Size   uint64
	Paths  []string
}

// Duplicates returns one Group per digest that appears more than once in
// m, in first-seen order. It is a consistency check, not a runtime
// recovery path: a size mismatch within a group is a programming error
// in the caller (the manifest it handed us is internally inconsistent)
// and is reported via the returned error rather than silently ignored.
func Duplicates(m Manifest) ([]Group, error) {
	index := make(map[string]int)
	var groups []Group
	for _, e := range m {
		if i, ok := index[e.Digest]; ok {
			g := &groups[i]
			if g.Size != e.Size {
				return nil, fmt.Errorf("manifest: digest %s has inconsistent sizes %d and %d", e.Digest, g.Size, e.Size)
			}
			g.Paths = append(g.Paths, e.Path)
			continue
		}
		index[e.Digest] = len(groups)
		groups = append(groups, Group{Digest: e.Digest, Size: e.Size, Paths: []string{e.Path}})
	}
	out := groups[:0]
	for _, g := range groups {
		if len(g.Paths) > 1 {
			out = append(out, g)
		}
	}
	return out, nil
}

// ByPath indexes a Manifest by relative path for diffing, skipping any
// entry whose path is empty.
func ByPath(m Manifest) map[string]Entry {
	idx := make(map[string]Entry, len(m))
	for _, e := range m {
		if e.Path == "" {
			continue
		}
		idx[e.Path] = e
	}
	return idx
}
