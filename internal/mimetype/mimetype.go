// Package mimetype classifies file names and enclosure types into mime types.
// Classification is extension based; file contents are never inspected.
package mimetype

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

// MimeType is a classified mime type. Category is the major type ("audio",
// "video", "image", ...), used to match files against a folder's media type.
type MimeType struct {
	Value    string
	Category string
}

// Subtitle mime values. Subtitles accompany any video and are accepted by
// the resolution engine regardless of category.
var subtitleTypes = map[string]string{
	".srt": "application/x-subrip",
	".sub": "application/x-subviewer",
	".ssa": "text/x-ssa",
	".ass": "text/x-ssa",
	".smi": "application/smil",
	".vtt": "text/vtt",
}

// Extensions the underlying matchers miss but media clients expect.
var fallbackTypes = map[string]string{
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".ts":   "video/mp2t",
}

var subtitleValues = func() map[string]bool {
	out := make(map[string]bool, len(subtitleTypes))
	for _, v := range subtitleTypes {
		out[v] = true
	}
	return out
}()

// IsSubtitle reports whether the mime type is a subtitle type.
func (m MimeType) IsSubtitle() bool {
	return subtitleValues[m.Value]
}

// IsMedia reports whether the mime type is playable media.
func (m MimeType) IsMedia() bool {
	switch m.Category {
	case "audio", "video", "image":
		return true
	}
	return false
}

// Classify maps a file name to a mime type by extension. The second return
// is false when the extension is unknown; callers silently skip such files.
func Classify(name string) (MimeType, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return MimeType{}, false
	}

	if v, ok := subtitleTypes[ext]; ok {
		return Parse(v), true
	}
	if t := filetype.GetType(strings.TrimPrefix(ext, ".")); t != types.Unknown {
		return MimeType{Value: t.MIME.Value, Category: t.MIME.Type}, true
	}
	if v := mime.TypeByExtension(ext); v != "" {
		return Parse(v), true
	}
	if v, ok := fallbackTypes[ext]; ok {
		return Parse(v), true
	}
	return MimeType{}, false
}

// Parse builds a MimeType from a raw mime value such as an RSS enclosure
// type attribute. Parameters after ";" are dropped.
func Parse(value string) MimeType {
	value = strings.TrimSpace(value)
	if i := strings.Index(value, ";"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	category := value
	if i := strings.Index(value, "/"); i >= 0 {
		category = value[:i]
	}
	return MimeType{Value: value, Category: category}
}
