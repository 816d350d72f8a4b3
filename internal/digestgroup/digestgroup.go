// Package digestgroup tracks, for one download run, which files share a
// digest so that after the first member is fetched the rest can be
// copied from the local disk instead of the network.
package digestgroup

import "sync"

// Index maps a digest to the set of paths that share it and whether any
// of them has been fetched yet. It is safe for concurrent use; the lock
// is never held across an I/O await — callers clone out what they need
// and release the lock before doing any blocking work.
type Index struct {
	mu     sync.Mutex
	groups map[string]*groupState
}

type groupState struct {
	size    uint64
	paths   []string
	fetched bool
}

// New returns an empty Index; files are registered with Add. All paths
// for a given digest must agree on size; Add does not itself verify that —
// callers are expected to have already validated the manifest (see
// manifest.Duplicates).
func New() *Index {
	return &Index{groups: make(map[string]*groupState)}
}

// Add registers one file under its digest.
func (idx *Index) Add(digest string, size uint64, path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	g, ok := idx.groups[digest]
	if !ok {
		idx.groups[digest] = &groupState{size: size, paths: []string{path}}
		return
	}
	g.paths = append(g.paths, path)
}

// Source reports where a file's bytes should come from: the path is
// either the file itself (if it is the only/first member of its digest
// group) or another member that is already known to be fetched, and
// fromLocal is true exactly when the returned path is not the
// requested one — i.e., when local copy is to be used instead of the
// network.
func (idx *Index) Source(digest, path string) (sourcePath string, fromLocal bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	g, ok := idx.groups[digest]
	if !ok || len(g.paths) == 0 {
		return path, false
	}
	first := g.paths[0]
	if g.fetched && first != path {
		return first, true
	}
	return path, false
}

// SetFetched marks digest's group as having a local copy available.
// Returns false if the digest is unknown.
func (idx *Index) SetFetched(digest string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	g, ok := idx.groups[digest]
	if !ok {
		return false
	}
	g.fetched = true
	return true
}
