package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/medley-server/medley/internal/browse"
	"github.com/medley-server/medley/internal/config"
	"github.com/medley-server/medley/internal/logging"
	"github.com/medley-server/medley/internal/media"
	"github.com/medley-server/medley/internal/media/index"
	"github.com/medley-server/medley/internal/media/podcast"
)

type noFeeds struct{}

func (noFeeds) Fetch(ctx context.Context, url string) ([]podcast.FeedEntry, error) {
	return nil, nil
}

// newTestServer builds a server over one video folder holding a 100-byte
// file and one picture folder holding an image, and returns the content ids.
func newTestServer(t *testing.T) (*httptest.Server, map[string]string) {
	t.Helper()

	videoDir := t.TempDir()
	body := make([]byte, 100)
	for i := range body {
		body[i] = byte(i)
	}
	if err := os.WriteFile(filepath.Join(videoDir, "movie.avi"), body, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	picDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(picDir, "photo.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := &config.Config{
		HTTPCacheSeconds: 3600,
		VideoFolders:     []config.Source{{ID: "video-1", Label: "Movies", Path: videoDir}},
		PictureFolders:   []config.Source{{ID: "picture-1", Label: "Photos", Path: picDir}},
	}
	svc := browse.New(cfg, index.New(), podcast.NewCache(10, time.Hour), noFeeds{})

	ids := map[string]string{}
	ctx := context.Background()
	svc.Children(ctx, media.RootVideoID)
	for _, c := range svc.Children(ctx, "video-1") {
		ids[c.Name] = c.ID
	}
	svc.Children(ctx, media.RootPictureID)
	for _, c := range svc.Children(ctx, "picture-1") {
		ids[c.Name] = c.ID
	}

	ts := httptest.NewServer(New(cfg, svc).Handler())
	t.Cleanup(ts.Close)
	return ts, ids
}

func TestServer_ContentFull(t *testing.T) {
	ts, ids := newTestServer(t)

	resp, err := http.Get(ts.URL + "/content?id=" + ids["movie.avi"])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Length"); got != "100" {
		t.Errorf("Content-Length = %q, want 100", got)
	}
	if got := resp.Header.Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
	if got := resp.Header.Get("Content-Type"); got != "video/x-msvideo" {
		t.Errorf("Content-Type = %q", got)
	}
	if resp.Header.Get("Last-Modified") == "" {
		t.Error("Last-Modified missing")
	}
	if resp.Header.Get("Cache-Control") != "" {
		t.Error("video content carried cache headers")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) != 100 || data[0] != 0 || data[99] != 99 {
		t.Errorf("body length %d", len(data))
	}
}

func TestServer_ContentRange(t *testing.T) {
	ts, ids := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/content?id="+ids["movie.avi"], nil)
	req.Header.Set("Range", "bytes=50-")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 50-99/100" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := resp.Header.Get("Content-Length"); got != "50" {
		t.Errorf("Content-Length = %q, want 50", got)
	}

	data, _ := io.ReadAll(resp.Body)
	if len(data) != 50 || data[0] != 50 || data[49] != 99 {
		t.Errorf("partial body length %d", len(data))
	}
}

func TestServer_ContentRangeBeyondEnd(t *testing.T) {
	ts, ids := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/content?id="+ids["movie.avi"], nil)
	req.Header.Set("Range", "bytes=150-")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("status = %d, want 416", resp.StatusCode)
	}
}

func TestServer_ContentMalformedRange(t *testing.T) {
	ts, ids := newTestServer(t)

	for _, header := range []string{"bytes=abc-def", "bytes=-50", "items=0-"} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/content?id="+ids["movie.avi"], nil)
		req.Header.Set("Range", header)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
			t.Errorf("Range %q status = %d, want 416", header, resp.StatusCode)
		}
	}
}

func TestServer_UnsatisfiableRangeLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logging.L()
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(prev) })

	ts, ids := newTestServer(t)

	for header, message := range map[string]string{
		"items=0-":   "unsupported range request",
		"bytes=150-": "range start beyond file length",
	} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/content?id="+ids["movie.avi"], nil)
		req.Header.Set("Range", header)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusRequestedRangeNotSatisfiable {
			t.Fatalf("Range %q status = %d, want 416", header, resp.StatusCode)
		}
		if logs.FilterMessage(message).Len() == 0 {
			t.Errorf("Range %q logged no %q entry", header, message)
		}
	}
}

func TestServer_ContentRangeFromZero(t *testing.T) {
	ts, ids := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/content?id="+ids["movie.avi"], nil)
	req.Header.Set("Range", "bytes=0-")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 0-99/100" {
		t.Errorf("Content-Range = %q", got)
	}
	data, _ := io.ReadAll(resp.Body)
	if len(data) != 100 {
		t.Errorf("body length %d, want 100", len(data))
	}
}

func TestServer_ContentNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, url := range []string{"/content", "/content?id=bogus"} {
		resp, err := http.Get(ts.URL + url)
		if err != nil {
			t.Fatalf("Get %s: %v", url, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", url, resp.StatusCode)
		}
	}
}

func TestServer_ImageCacheHeaders(t *testing.T) {
	ts, ids := newTestServer(t)

	resp, err := http.Get(ts.URL + "/content?id=" + ids["photo.jpg"])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Cache-Control"); got != "private, max-age=3600" {
		t.Errorf("Cache-Control = %q", got)
	}
	if resp.Header.Get("Expires") == "" {
		t.Error("Expires missing")
	}
}

func TestServer_BrowseAPI(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/browse/" + media.RootID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		ID       string       `json:"id"`
		Children []media.Node `json:"children"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.ID != media.RootID {
		t.Errorf("id = %q", body.ID)
	}
	if len(body.Children) != 4 {
		t.Errorf("got %d roots, want 4", len(body.Children))
	}
}

func TestServer_NodeAPI(t *testing.T) {
	ts, ids := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/node/" + ids["movie.avi"])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var node map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if node["kind"] != "content" {
		t.Errorf("kind = %v", node["kind"])
	}

	missing, err := http.Get(ts.URL + "/api/node/bogus")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing node status = %d, want 404", missing.StatusCode)
	}
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
