package media

// Type hints stored on index elements. They steer child resolution and mime
// category filtering.
type MediaType string

const (
	TypeAny     MediaType = "any"
	TypeAudio   MediaType = "audio"
	TypeVideo   MediaType = "video"
	TypeImage   MediaType = "image"
	TypePodcast MediaType = "podcast"
	TypeRawURL  MediaType = "rawUrl"
)

// Well-known root node ids. Roots are fixed for the process lifetime, seed
// the tree and are never garbage collected.
const (
	RootID        = "0"
	RootAudioID   = "AUDIO"
	RootVideoID   = "VIDEO"
	RootPictureID = "PICTURE"
	RootPodcastID = "PODCAST"
)

// Root describes one well-known entry point of the tree.
type Root struct {
	ID        string
	Name      string
	MediaType MediaType
}

var roots = map[string]Root{
	RootID:        {ID: RootID, Name: "Medley", MediaType: TypeAny},
	RootAudioID:   {ID: RootAudioID, Name: "Audio", MediaType: TypeAudio},
	RootVideoID:   {ID: RootVideoID, Name: "Video", MediaType: TypeVideo},
	RootPictureID: {ID: RootPictureID, Name: "Pictures", MediaType: TypeImage},
	RootPodcastID: {ID: RootPodcastID, Name: "Podcasts", MediaType: TypePodcast},
}

// rootOrder fixes the listing order of the top-level roots.
var rootOrder = []string{RootAudioID, RootVideoID, RootPictureID, RootPodcastID}

// RootByID returns the root definition for id.
func RootByID(id string) (Root, bool) {
	r, ok := roots[id]
	return r, ok
}

// IsRootID reports whether id names a well-known root.
func IsRootID(id string) bool {
	_, ok := roots[id]
	return ok
}

// Roots returns the browsable category roots in their fixed listing order.
func Roots() []Root {
	out := make([]Root, 0, len(rootOrder))
	for _, id := range rootOrder {
		out = append(out, roots[id])
	}
	return out
}
