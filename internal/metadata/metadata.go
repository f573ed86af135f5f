// Package metadata extracts tag and duration details from local audio files.
package metadata

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

// Detail is the tag snapshot of a local audio file. Pointer fields are nil
// when the file carries no usable value.
type Detail struct {
	Title           string    `json:"title"`
	Artist          *string   `json:"artist,omitempty"`
	Album           *string   `json:"album,omitempty"`
	Genre           *string   `json:"genre,omitempty"`
	Year            *int      `json:"year,omitempty"`
	DurationSeconds *float64  `json:"durationSeconds,omitempty"`
	BitrateKbps     *int      `json:"bitrateKbps,omitempty"`
	SizeBytes       int64     `json:"sizeBytes"`
	ModifiedAt      time.Time `json:"modifiedAt"`
}

// Read builds the metadata detail for the audio file at path.
func Read(path string) (Detail, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Detail{}, err
	}

	detail := Detail{
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime().UTC().Round(time.Second),
	}
	readTags(path, &detail)
	if detail.Title == "" {
		detail.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		dur, err := mp3Duration(path)
		if err == nil && dur > 0 {
			duration := dur
			detail.DurationSeconds = &duration

			bitrate := int(math.Round((float64(info.Size()) * 8) / duration / 1000))
			if bitrate > 0 {
				detail.BitrateKbps = &bitrate
			}
		}
	}

	return detail, nil
}

func readTags(path string, detail *Detail) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return
	}

	detail.Title = strings.TrimSpace(meta.Title())
	detail.Artist = optionalString(meta.Artist())
	detail.Album = optionalString(meta.Album())
	detail.Genre = optionalString(meta.Genre())
	if year := meta.Year(); year > 0 {
		detail.Year = &year
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}

	return total, nil
}
