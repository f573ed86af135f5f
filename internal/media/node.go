// Package media defines the node model exposed to browsing clients.
package media

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Kind identifies the variant of a Node.
type Kind int

const (
	KindFolder Kind = iota
	KindContent
	KindPodcast
	KindPodcastEntry
	KindPlaylist
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindContent:
		return "content"
	case KindPodcast:
		return "podcast"
	case KindPodcastEntry:
		return "podcastEntry"
	case KindPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its wire name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", k.String())), nil
}

// UnmarshalJSON decodes a wire name back into a kind.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "folder":
		*k = KindFolder
	case "content":
		*k = KindContent
	case "podcast":
		*k = KindPodcast
	case "podcastEntry":
		*k = KindPodcastEntry
	case "playlist":
		*k = KindPlaylist
	default:
		return fmt.Errorf("unknown node kind %q", name)
	}
	return nil
}

// Node is a single entry of the virtual media tree. It is a closed tagged
// variant: Kind selects which of the optional fields are meaningful. Nodes
// are ephemeral read-only views derived on each resolution; they are never
// stored.
type Node struct {
	ID         string    `json:"id"`
	ParentID   string    `json:"parentId"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	ModifiedAt time.Time `json:"modifiedAt"`
	IconURL    string    `json:"iconUrl,omitempty"`

	// Content and podcast entries
	MimeType string `json:"mimeType,omitempty"`
	Size     *int64 `json:"size,omitempty"`

	// Folders and content
	Path string `json:"-"`

	// Podcasts
	FeedURL string `json:"feedUrl,omitempty"`

	// Podcast entries
	RemoteURL string `json:"remoteUrl,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// NewFolderNode builds a folder node for a filesystem directory.
func NewFolderNode(id, parentID, name, path string, modified time.Time) Node {
	return Node{
		ID:         id,
		ParentID:   parentID,
		Name:       name,
		Kind:       KindFolder,
		Path:       path,
		ModifiedAt: modified,
	}
}

// NewContentNode builds a content node for a playable local file.
func NewContentNode(id, parentID, name, path, mimeType string, size int64, modified time.Time) Node {
	return Node{
		ID:         id,
		ParentID:   parentID,
		Name:       name,
		Kind:       KindContent,
		Path:       path,
		MimeType:   mimeType,
		Size:       &size,
		ModifiedAt: modified,
	}
}

// NewPodcastNode builds a podcast node for a configured feed.
func NewPodcastNode(id, parentID, name, feedURL string) Node {
	return Node{
		ID:       id,
		ParentID: parentID,
		Name:     name,
		Kind:     KindPodcast,
		FeedURL:  feedURL,
	}
}

// NewPodcastEntryNode builds a podcast entry node for a remote enclosure.
// Size is nil when the feed does not report one.
func NewPodcastEntryNode(id, parentID, name, remoteURL, mimeType string, size *int64) Node {
	return Node{
		ID:        id,
		ParentID:  parentID,
		Name:      name,
		Kind:      KindPodcastEntry,
		RemoteURL: remoteURL,
		MimeType:  mimeType,
		Size:      size,
	}
}

// Less reports whether a sorts before b in the canonical child ordering:
// folders before anything else, then case-sensitive name order.
func Less(a, b Node) bool {
	aFolder := a.Kind == KindFolder
	bFolder := b.Kind == KindFolder
	if aFolder != bFolder {
		return aFolder
	}
	return a.Name < b.Name
}

// Sort orders nodes in place using the canonical child ordering.
func Sort(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return Less(nodes[i], nodes[j])
	})
}
