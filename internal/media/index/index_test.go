package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/medley-server/medley/internal/media"
)

func TestIndex_AddDeduplicates(t *testing.T) {
	idx := New()

	el := Element{ParentID: media.RootAudioID, MediaType: media.TypeAudio, Path: "/music", LocalPath: true, Directory: true}
	first := idx.Add(el)
	second := idx.Add(el)

	if first == "" {
		t.Fatal("Add returned empty id")
	}
	if first != second {
		t.Errorf("equal elements got distinct ids: %q vs %q", first, second)
	}
	if idx.Len() != 1 {
		t.Errorf("Len = %d, want 1", idx.Len())
	}

	other := el
	other.Path = "/music/rock"
	third := idx.Add(other)
	if third == first {
		t.Error("distinct elements shared an id")
	}
	if idx.Len() != 2 {
		t.Errorf("Len = %d, want 2", idx.Len())
	}
}

func TestIndex_Get(t *testing.T) {
	idx := New()
	el := Element{ParentID: media.RootVideoID, MediaType: media.TypeVideo, Path: "/video", LocalPath: true, Directory: true}
	id := idx.Add(el)

	got, ok := idx.Get(id)
	if !ok {
		t.Fatal("Get returned not ok for indexed element")
	}
	if got != el {
		t.Errorf("Get = %+v, want %+v", got, el)
	}

	if _, ok := idx.Get("missing"); ok {
		t.Error("Get returned ok for unknown id")
	}
}

func TestIndex_PutKeepsExisting(t *testing.T) {
	idx := New()
	first := Element{ParentID: media.RootAudioID, MediaType: media.TypeAudio, Path: "/a", Name: "A", LocalPath: true, Directory: true}
	second := Element{ParentID: media.RootAudioID, MediaType: media.TypeAudio, Path: "/b", Name: "B", LocalPath: true, Directory: true}

	idx.Put("audio-1", first)
	idx.Put("audio-1", second)

	got, ok := idx.Get("audio-1")
	if !ok {
		t.Fatal("seeded id missing")
	}
	if got != first {
		t.Errorf("Put overwrote existing element: got %+v", got)
	}
}

func TestIndex_PutDoesNotStealAddedID(t *testing.T) {
	idx := New()
	el := Element{ParentID: media.RootAudioID, MediaType: media.TypeAudio, Path: "/a", LocalPath: true, Directory: true}

	id := idx.Add(el)
	idx.Put("seeded", el)

	if got := idx.Add(el); got != id {
		t.Errorf("Add after Put returned %q, want original id %q", got, id)
	}

	// Removing the seeded copy must not break the original mapping.
	idx.Remove("seeded")
	if got := idx.Add(el); got != id {
		t.Errorf("Add after Remove(seeded) returned %q, want %q", got, id)
	}
}

func TestIndex_RemoveChildren(t *testing.T) {
	idx := New()

	podcast := idx.Add(Element{ParentID: media.RootPodcastID, MediaType: media.TypePodcast, Path: "http://example.com/feed"})
	entry1 := idx.Add(Element{ParentID: podcast, MediaType: media.TypeRawURL, Path: "http://example.com/1.mp3", Name: "one"})
	entry2 := idx.Add(Element{ParentID: podcast, MediaType: media.TypeRawURL, Path: "http://example.com/2.mp3", Name: "two"})
	grandchild := idx.Add(Element{ParentID: entry1, MediaType: media.TypeRawURL, Path: "http://example.com/x.mp3", Name: "x"})
	sibling := idx.Add(Element{ParentID: media.RootPodcastID, MediaType: media.TypePodcast, Path: "http://example.com/other"})

	idx.RemoveChildren(podcast)

	if _, ok := idx.Get(podcast); !ok {
		t.Error("parent itself was removed")
	}
	for _, id := range []string{entry1, entry2, grandchild} {
		if _, ok := idx.Get(id); ok {
			t.Errorf("descendant %q survived RemoveChildren", id)
		}
	}
	if _, ok := idx.Get(sibling); !ok {
		t.Error("sibling was removed")
	}
}

func TestIndex_CleanOrphanChain(t *testing.T) {
	idx := New()

	folder := idx.Add(Element{ParentID: "gone", MediaType: media.TypeAudio, Path: "/x", Directory: true})
	child := idx.Add(Element{ParentID: folder, MediaType: media.TypeAudio, Path: "/x/y", Directory: true})
	grandchild := idx.Add(Element{ParentID: child, MediaType: media.TypeAudio, Path: "/x/y/z.mp3"})

	removed := idx.Clean()
	if removed != 3 {
		t.Errorf("Clean removed %d, want 3", removed)
	}
	for _, id := range []string{folder, child, grandchild} {
		if _, ok := idx.Get(id); ok {
			t.Errorf("orphan %q survived Clean", id)
		}
	}
}

func TestIndex_CleanDeadLocalPath(t *testing.T) {
	idx := New()
	dir := t.TempDir()

	live := filepath.Join(dir, "keep.mp3")
	if err := os.WriteFile(live, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dead := filepath.Join(dir, "gone.mp3")

	liveID := idx.Add(Element{ParentID: media.RootAudioID, MediaType: media.TypeAudio, Path: live, LocalPath: true})
	deadID := idx.Add(Element{ParentID: media.RootAudioID, MediaType: media.TypeAudio, Path: dead, LocalPath: true})

	removed := idx.Clean()
	if removed != 1 {
		t.Errorf("Clean removed %d, want 1", removed)
	}
	if _, ok := idx.Get(liveID); !ok {
		t.Error("element with existing path was removed")
	}
	if _, ok := idx.Get(deadID); ok {
		t.Error("element with missing path survived")
	}
}

func TestIndex_CleanSparesRootChildren(t *testing.T) {
	idx := New()

	// Remote elements under a root have no local path and must survive.
	id := idx.Add(Element{ParentID: media.RootPodcastID, MediaType: media.TypePodcast, Path: "http://example.com/feed"})

	if removed := idx.Clean(); removed != 0 {
		t.Errorf("Clean removed %d, want 0", removed)
	}
	if _, ok := idx.Get(id); !ok {
		t.Error("root child was removed")
	}
}
