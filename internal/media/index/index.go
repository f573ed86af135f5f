// Package index implements the process-wide media index: a bidirectional
// mapping between opaque node ids and the elements that back them.
package index

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"sync"

	"github.com/medley-server/medley/internal/media"
)

// Element is the index's storage record for one node. All fields take part
// in equality; two equal elements always map to the same id.
type Element struct {
	ParentID  string
	MediaType media.MediaType
	MimeType  string
	// Path is a filesystem path when LocalPath is set, a remote URL otherwise.
	Path      string
	Name      string
	LocalPath bool
	Directory bool
}

// Index owns all elements. A single mutex guards both directions so that
// Add's check-then-insert is atomic: concurrent Adds of equal elements can
// never mint two ids.
type Index struct {
	mu        sync.RWMutex
	byID      map[string]Element
	byElement map[Element]string
}

// New creates an empty index.
func New() *Index {
	return &Index{
		byID:      make(map[string]Element),
		byElement: make(map[Element]string),
	}
}

// Get returns the element stored under id. Absence is not an error.
func (x *Index) Get(id string) (Element, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	el, ok := x.byID[id]
	return el, ok
}

// Add inserts el and returns its id. If an equal element is already indexed
// its existing id is returned and nothing is inserted.
func (x *Index) Add(el Element) string {
	x.mu.Lock()
	defer x.mu.Unlock()

	if id, ok := x.byElement[el]; ok {
		return id
	}
	id := newID()
	x.byID[id] = el
	x.byElement[el] = id
	return id
}

// Put inserts el under a caller-chosen id, used to seed configuration-derived
// elements whose ids are assigned statically. It is a no-op when the id is
// already taken.
func (x *Index) Put(id string, el Element) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.byID[id]; ok {
		return
	}
	x.byID[id] = el
	if _, ok := x.byElement[el]; !ok {
		x.byElement[el] = id
	}
}

// Remove drops the element stored under id, if any.
func (x *Index) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.remove(id)
}

// RemoveChildren drops every element transitively reachable as a descendant
// of parentID. Used to flush a volatile subtree before re-enumerating it.
func (x *Index) RemoveChildren(parentID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	doomed := map[string]bool{parentID: true}
	for {
		grew := false
		for id, el := range x.byID {
			if doomed[id] {
				continue
			}
			if doomed[el.ParentID] {
				doomed[id] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}
	for id := range doomed {
		if id != parentID {
			x.remove(id)
		}
	}
}

// Clean removes every element whose parent chain is broken (parent neither a
// root nor indexed) and every filesystem-backed element whose path no longer
// exists on disk. Orphan detection iterates to a fixed point so multi-level
// chains are fully reclaimed in a single call. Returns the number of removed
// elements.
func (x *Index) Clean() int {
	x.mu.Lock()
	defer x.mu.Unlock()

	removed := 0
	for {
		var doomed []string
		for id, el := range x.byID {
			if media.IsRootID(id) {
				continue
			}
			if !media.IsRootID(el.ParentID) {
				if _, ok := x.byID[el.ParentID]; !ok {
					doomed = append(doomed, id)
					continue
				}
			}
			if el.LocalPath && !pathExists(el.Path) {
				doomed = append(doomed, id)
			}
		}
		if len(doomed) == 0 {
			return removed
		}
		for _, id := range doomed {
			x.remove(id)
		}
		removed += len(doomed)
	}
}

// Len returns the number of indexed elements.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID)
}

// remove must be called with the write lock held.
func (x *Index) remove(id string) {
	el, ok := x.byID[id]
	if !ok {
		return
	}
	delete(x.byID, id)
	// Only clear the reverse entry if it still points at this id; Put can
	// map one element to a second, seeded id.
	if x.byElement[el] == id {
		delete(x.byElement, el)
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// newID returns a random, collision-resistant token. Ids are opaque and not
// derived from element content; the element itself is the dedup key.
func newID() string {
	var b [16]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
