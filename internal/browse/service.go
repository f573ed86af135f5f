// Package browse implements the directory resolution engine: it resolves
// node ids against the media index and enumerates children on demand from
// the configured roots, the filesystem, or podcast feeds.
package browse

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/medley-server/medley/internal/config"
	"github.com/medley-server/medley/internal/logging"
	"github.com/medley-server/medley/internal/media"
	"github.com/medley-server/medley/internal/media/index"
	"github.com/medley-server/medley/internal/media/podcast"
	"github.com/medley-server/medley/internal/metrics"
	"github.com/medley-server/medley/internal/mimetype"
)

// topRootParent is the parent id reported for the top root node.
const topRootParent = "-1"

// Feeder fetches and parses a podcast feed.
type Feeder interface {
	Fetch(ctx context.Context, url string) ([]podcast.FeedEntry, error)
}

// Service resolves nodes and children. It is safe for concurrent use; the
// index and podcast cache carry their own locks, sweepMu only serializes
// maintenance sweeps.
type Service struct {
	cfg   *config.Config
	idx   *index.Index
	cache *podcast.Cache
	feeds Feeder

	sweepMu sync.Mutex
}

// New creates a resolution service over the given index and podcast cache.
func New(cfg *config.Config, idx *index.Index, cache *podcast.Cache, feeds Feeder) *Service {
	return &Service{cfg: cfg, idx: idx, cache: cache, feeds: feeds}
}

// Node resolves a node id. The second return is false when the id is
// unknown, expired, or backed by a file that is gone or filtered out; browse
// clients probe such ids routinely, so this is not an error.
func (s *Service) Node(ctx context.Context, id string) (media.Node, bool) {
	if root, ok := media.RootByID(id); ok {
		return s.rootNode(root), true
	}

	el, ok := s.idx.Get(id)
	if !ok {
		logging.Warn("node not found in media index", zap.String("id", id))
		return media.Node{}, false
	}

	switch el.MediaType {
	case media.TypePodcast:
		return media.NewPodcastNode(id, el.ParentID, el.Name, el.Path), true
	case media.TypeRawURL:
		return media.NewPodcastEntryNode(id, el.ParentID, el.Name, el.Path, el.MimeType, nil), true
	default:
		return s.fileNode(id, el)
	}
}

// Children enumerates the ordered child list of a node. It never fails: any
// resolution problem yields an empty list.
func (s *Service) Children(ctx context.Context, id string) []media.Node {
	metrics.RecordBrowse()

	var nodes []media.Node
	if root, ok := media.RootByID(id); ok {
		nodes = s.rootChildren(root)
	} else if el, ok := s.idx.Get(id); ok {
		switch el.MediaType {
		case media.TypePodcast:
			nodes = s.podcastEntries(ctx, id, el.Path)
		case media.TypeRawURL:
			// Terminal leaf.
		default:
			nodes = s.folderChildren(id, el)
		}
	} else {
		logging.Warn("children of unindexed node requested", zap.String("id", id))
	}

	if nodes == nil {
		nodes = []media.Node{}
	}
	media.Sort(nodes)
	return nodes
}

// CleanUpCache expires podcast cache entries and sweeps the index. Sweeps
// are serialized; callers may invoke this from timers and watchers freely.
func (s *Service) CleanUpCache() {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	s.cache.CleanUp()
	removed := s.idx.Clean()
	metrics.RecordSweep(removed)
	metrics.SetIndexSize(s.idx.Len())
	if removed > 0 {
		logging.Info("index sweep completed",
			zap.Int("removed", removed),
			zap.Int("remaining", s.idx.Len()))
	}
}

func (s *Service) rootNode(root media.Root) media.Node {
	parent := media.RootID
	if root.ID == media.RootID {
		parent = topRootParent
	}
	return media.NewFolderNode(root.ID, parent, root.Name, "", time.Time{})
}

func (s *Service) rootChildren(root media.Root) []media.Node {
	if root.ID == media.RootID {
		var nodes []media.Node
		for _, r := range media.Roots() {
			nodes = append(nodes, s.rootNode(r))
		}
		return nodes
	}

	sources := s.cfg.SourcesFor(root.ID)
	nodes := make([]media.Node, 0, len(sources))
	for _, src := range sources {
		if root.ID == media.RootPodcastID {
			s.idx.Put(src.ID, index.Element{
				ParentID:  root.ID,
				MediaType: media.TypePodcast,
				Path:      src.URL,
				Name:      src.Label,
				Directory: true,
			})
			nodes = append(nodes, media.NewPodcastNode(src.ID, root.ID, src.Label, src.URL))
			continue
		}

		info, err := os.Stat(src.Path)
		if err != nil || !info.IsDir() {
			logging.Warn("configured folder unavailable",
				zap.String("id", src.ID),
				zap.String("path", src.Path),
				zap.Error(err))
			continue
		}
		s.idx.Put(src.ID, index.Element{
			ParentID:  root.ID,
			MediaType: root.MediaType,
			Path:      src.Path,
			Name:      src.Label,
			LocalPath: true,
			Directory: true,
		})
		nodes = append(nodes, media.NewFolderNode(src.ID, root.ID, src.Label, src.Path, info.ModTime()))
	}
	return nodes
}

// fileNode resolves a filesystem-backed element into a folder or content
// node. Hidden or vanished paths and files whose mime category does not fit
// the element's media type resolve to nothing.
func (s *Service) fileNode(id string, el index.Element) (media.Node, bool) {
	info, err := os.Stat(el.Path)
	if err != nil || hidden(filepath.Base(el.Path)) {
		logging.Debug("backing path unavailable", zap.String("id", id), zap.String("path", el.Path))
		return media.Node{}, false
	}

	if info.IsDir() {
		name := el.Name
		if name == "" {
			name = filepath.Base(el.Path)
		}
		return media.NewFolderNode(id, el.ParentID, name, el.Path, info.ModTime()), true
	}
	if !info.Mode().IsRegular() {
		return media.Node{}, false
	}

	name := filepath.Base(el.Path)
	mt, ok := mimetype.Classify(name)
	if !ok {
		return media.Node{}, false
	}
	if mt.Category != string(el.MediaType) && !mt.IsSubtitle() {
		return media.Node{}, false
	}
	return media.NewContentNode(id, el.ParentID, name, el.Path, mt.Value, info.Size(), info.ModTime()), true
}

func (s *Service) folderChildren(parentID string, el index.Element) []media.Node {
	entries, err := os.ReadDir(el.Path)
	if err != nil {
		logging.Warn("folder listing failed", zap.String("path", el.Path), zap.Error(err))
		return nil
	}

	var nodes []media.Node
	for _, entry := range entries {
		name := entry.Name()
		if hidden(name) {
			continue
		}
		full := filepath.Join(el.Path, name)
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if entry.IsDir() {
			childID := s.idx.Add(index.Element{
				ParentID:  parentID,
				MediaType: el.MediaType,
				Path:      full,
				LocalPath: true,
				Directory: true,
			})
			nodes = append(nodes, media.NewFolderNode(childID, parentID, name, full, info.ModTime()))
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		mt, ok := mimetype.Classify(name)
		if !ok {
			continue
		}
		if mt.Category != string(el.MediaType) && !mt.IsSubtitle() {
			continue
		}
		childID := s.idx.Add(index.Element{
			ParentID:  parentID,
			MediaType: el.MediaType,
			MimeType:  mt.Value,
			Path:      full,
			LocalPath: true,
		})
		nodes = append(nodes, media.NewContentNode(childID, parentID, name, full, mt.Value, info.Size(), info.ModTime()))
	}
	return nodes
}

// podcastEntries returns the entry nodes of a feed, from the cache or by
// fetching. Fetch failures are swallowed: the empty result is cached so the
// feed is retried only after the TTL expires.
func (s *Service) podcastEntries(ctx context.Context, podcastID, feedURL string) []media.Node {
	if nodes, ok := s.cache.Get(feedURL); ok {
		metrics.RecordPodcastCacheLookup(true)
		return nodes
	}
	metrics.RecordPodcastCacheLookup(false)

	// Stale entries from the previous fetch must not survive a republish.
	s.idx.RemoveChildren(podcastID)

	start := time.Now()
	entries, err := s.feeds.Fetch(ctx, feedURL)
	metrics.RecordFeedFetch(time.Since(start), err)
	if err != nil {
		logging.Error("feed fetch failed", zap.String("url", feedURL), zap.Error(err))
		s.cache.Put(feedURL, []media.Node{})
		return nil
	}

	nodes := make([]media.Node, 0, len(entries))
	for _, entry := range entries {
		mt := mimetype.Parse(entry.MimeType)
		if !mt.IsMedia() {
			continue
		}
		entryID := s.idx.Add(index.Element{
			ParentID:  podcastID,
			MediaType: media.TypeRawURL,
			MimeType:  mt.Value,
			Path:      entry.URL,
			Name:      entry.Title,
		})
		node := media.NewPodcastEntryNode(entryID, podcastID, entry.Title, entry.URL, mt.Value, entry.Length)
		node.Duration = entry.Duration
		node.IconURL = entry.IconURL
		node.ModifiedAt = entry.Published
		nodes = append(nodes, node)
	}
	s.cache.Put(feedURL, nodes)
	return nodes
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
