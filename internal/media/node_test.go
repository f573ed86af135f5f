package media

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSort_FoldersFirst(t *testing.T) {
	nodes := []Node{
		NewContentNode("c2", "p", "beta.mp3", "/m/beta.mp3", "audio/mpeg", 10, time.Time{}),
		NewFolderNode("f2", "p", "zeta", "/m/zeta", time.Time{}),
		NewContentNode("c1", "p", "alpha.mp3", "/m/alpha.mp3", "audio/mpeg", 10, time.Time{}),
		NewFolderNode("f1", "p", "alpha", "/m/alpha", time.Time{}),
	}

	Sort(nodes)

	want := []string{"alpha", "zeta", "alpha.mp3", "beta.mp3"}
	for i, name := range want {
		if nodes[i].Name != name {
			t.Errorf("position %d = %q, want %q", i, nodes[i].Name, name)
		}
	}
}

func TestSort_CaseSensitiveNames(t *testing.T) {
	nodes := []Node{
		NewFolderNode("1", "p", "banana", "", time.Time{}),
		NewFolderNode("2", "p", "Apple", "", time.Time{}),
		NewFolderNode("3", "p", "apple", "", time.Time{}),
	}

	Sort(nodes)

	// Uppercase sorts before lowercase in byte order.
	want := []string{"Apple", "apple", "banana"}
	for i, name := range want {
		if nodes[i].Name != name {
			t.Errorf("position %d = %q, want %q", i, nodes[i].Name, name)
		}
	}
}

func TestKind_JSON(t *testing.T) {
	node := NewPodcastNode("p1", RootPodcastID, "Daily", "http://example.com/feed")

	data, err := json.Marshal(node)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["kind"] != "podcast" {
		t.Errorf("kind = %v, want %q", decoded["kind"], "podcast")
	}
	if decoded["feedUrl"] != "http://example.com/feed" {
		t.Errorf("feedUrl = %v", decoded["feedUrl"])
	}
	if _, ok := decoded["size"]; ok {
		t.Error("podcast node serialized a size")
	}
}

func TestNode_PathNotSerialized(t *testing.T) {
	node := NewContentNode("c1", "p", "song.mp3", "/music/song.mp3", "audio/mpeg", 42, time.Now())

	data, err := json.Marshal(node)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded["Path"]; ok {
		t.Error("local path leaked into the JSON encoding")
	}
	if decoded["mimeType"] != "audio/mpeg" {
		t.Errorf("mimeType = %v", decoded["mimeType"])
	}
}

func TestRoots_Order(t *testing.T) {
	got := Roots()
	want := []string{RootAudioID, RootVideoID, RootPictureID, RootPodcastID}
	if len(got) != len(want) {
		t.Fatalf("Roots returned %d entries, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d = %q, want %q", i, got[i].ID, id)
		}
	}
}
