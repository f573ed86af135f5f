// Package podcast fetches RSS feeds and caches their parsed entries.
package podcast

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Feeds larger than this are cut off; a malicious or broken feed must not
// exhaust memory.
const maxFeedBytes = 8 << 20

// FeedEntry is one playable enclosure parsed from a feed.
type FeedEntry struct {
	Title     string
	URL       string
	MimeType  string
	Length    *int64
	Duration  string
	IconURL   string
	Published time.Time
}

// Fetcher retrieves and parses RSS feeds over HTTP with retries and a
// bounded per-fetch timeout.
type Fetcher struct {
	client *retryablehttp.Client
}

// NewFetcher creates a feed fetcher. A zero timeout defaults to 30s.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return &Fetcher{client: client}
}

// Fetch downloads and parses the feed at url, returning one entry per
// enclosure. Entries without an enclosure URL are dropped; mime filtering is
// the caller's concern.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]FeedEntry, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", url, err)
	}
	return parseFeed(data)
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title          string         `xml:"title"`
	Enclosures     []rssEnclosure `xml:"enclosure"`
	PubDate        string         `xml:"pubDate"`
	ITunesDuration string         `xml:"itunes:duration"`
	Duration       string         `xml:"duration"`
	Thumbnails     []rssThumb     `xml:"thumbnail"`
	ITunesImage    rssImage       `xml:"image"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

type rssThumb struct {
	URL string `xml:"url,attr"`
}

type rssImage struct {
	Href string `xml:"href,attr"`
}

func parseFeed(data []byte) ([]FeedEntry, error) {
	var doc rssDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var entries []FeedEntry
	for _, item := range doc.Channel.Items {
		icon := ""
		if len(item.Thumbnails) > 0 {
			icon = item.Thumbnails[0].URL
		} else if item.ITunesImage.Href != "" {
			icon = item.ITunesImage.Href
		}
		// Namespace-prefixed tags do not match once the feed declares the
		// itunes namespace; the plain local-name field does.
		duration := item.ITunesDuration
		if duration == "" {
			duration = item.Duration
		}
		published, _ := parsePubDate(item.PubDate)

		for _, enc := range item.Enclosures {
			if enc.URL == "" {
				continue
			}
			entry := FeedEntry{
				Title:     strings.TrimSpace(item.Title),
				URL:       enc.URL,
				MimeType:  strings.TrimSpace(enc.Type),
				Duration:  normalizeDuration(duration),
				IconURL:   icon,
				Published: published,
			}
			if n, err := strconv.ParseInt(strings.TrimSpace(enc.Length), 10, 64); err == nil && n > 0 {
				length := n
				entry.Length = &length
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05Z07:00",
}

func parsePubDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", value)
}

// normalizeDuration renders feed durations as HH:MM:SS. Feeds report either
// plain seconds or colon-separated clock values.
func normalizeDuration(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
	}
	parts := strings.Split(value, ":")
	if len(parts) == 2 || len(parts) == 3 {
		nums := make([]int, len(parts))
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 {
				return ""
			}
			nums[i] = n
		}
		if len(nums) == 2 {
			return fmt.Sprintf("00:%02d:%02d", nums[0], nums[1])
		}
		return fmt.Sprintf("%02d:%02d:%02d", nums[0], nums[1], nums[2])
	}
	return ""
}
