// Package server provides the HTTP surface: the browse API and the
// range-capable content streamer.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medley-server/medley/internal/browse"
	"github.com/medley-server/medley/internal/config"
	"github.com/medley-server/medley/internal/logging"
	"github.com/medley-server/medley/internal/media"
	"github.com/medley-server/medley/internal/metadata"
	"github.com/medley-server/medley/internal/metrics"
)

const streamChunkSize = 8192

// rangePattern accepts the open-ended byte range form only. Suffix and
// multi-range requests are rejected as unsatisfiable.
var rangePattern = regexp.MustCompile(`(?i)^\s*bytes\s*=\s*(\d+)\s*-`)

// Server serves the browse API and streams content files.
type Server struct {
	cfg *config.Config
	svc *browse.Service
}

// New creates a server over the given resolution service.
func New(cfg *config.Config, svc *browse.Service) *Server {
	return &Server{cfg: cfg, svc: svc}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/browse/{id}", s.handleBrowse)
	mux.HandleFunc("GET /api/node/{id}", s.handleNode)
	mux.HandleFunc("GET /api/detail/{id}", s.handleDetail)

	mux.HandleFunc("GET /content", s.handleContent)

	return logging.Middleware(metrics.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type browseResponse struct {
	ID       string       `json:"id"`
	Children []media.Node `json:"children"`
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	children := s.svc.Children(r.Context(), id)
	writeJSON(w, http.StatusOK, browseResponse{ID: id, Children: children})
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	node, ok := s.svc.Node(r.Context(), id)
	if !ok {
		s.sendError(w, http.StatusNotFound, "node not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	node, ok := s.svc.Node(r.Context(), id)
	if !ok || node.Kind != media.KindContent {
		s.sendError(w, http.StatusNotFound, "content not found: "+id)
		return
	}
	if !strings.HasPrefix(node.MimeType, "audio/") {
		s.sendError(w, http.StatusUnsupportedMediaType, "detail available for audio content only")
		return
	}

	detail, err := metadata.Read(node.Path)
	if err != nil {
		logging.Warn("metadata read failed", zap.String("path", node.Path), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "metadata unavailable")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleContent streams a local content file, honoring open-ended byte
// ranges. Image content gets private cache headers; audio and video are
// served uncached so seeks always hit the live file.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		s.contentError(w, http.StatusNotFound, "missing content id")
		return
	}

	node, ok := s.svc.Node(r.Context(), id)
	if !ok || node.Kind != media.KindContent || node.Path == "" {
		s.contentError(w, http.StatusNotFound, "content not found: "+id)
		return
	}

	cacheable := strings.HasPrefix(node.MimeType, "image/")
	s.serveFile(w, r, node.Path, node.MimeType, cacheable)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path, mimeType string, cacheable bool) {
	f, err := os.Open(path)
	if err != nil {
		s.contentError(w, http.StatusNotFound, "file not found or unreadable")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		s.contentError(w, http.StatusInternalServerError, "file not readable")
		return
	}
	size := info.Size()

	var start int64
	var hasRange bool
	if header := r.Header.Get("Range"); header != "" {
		m := rangePattern.FindStringSubmatch(header)
		if m == nil {
			logging.Debug("unsupported range request", zap.String("range", header), zap.String("path", path))
			s.contentError(w, http.StatusRequestedRangeNotSatisfiable, "unsupported range request")
			return
		}
		offset, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || offset >= size {
			logging.Debug("range start beyond file length", zap.String("range", header), zap.Int64("size", size))
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			s.contentError(w, http.StatusRequestedRangeNotSatisfiable, "range start beyond file length")
			return
		}
		start = offset
		hasRange = true
	}

	now := time.Now().UTC()
	h := w.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Length", strconv.FormatInt(size-start, 10))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Date", now.Format(http.TimeFormat))
	h.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	if cacheable {
		maxAge := s.cfg.HTTPCacheSeconds
		h.Set("Expires", now.Add(time.Duration(maxAge)*time.Second).Format(http.TimeFormat))
		h.Set("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAge))
	}

	status := http.StatusOK
	if hasRange {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, size-1, size))
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			logging.Error("seek failed", zap.String("path", path), zap.Error(err))
			return
		}
	}

	streamed := s.stream(w, r, f)
	metrics.RecordContentRequest(status, streamed)
}

// stream copies the file to the client in fixed-size chunks so a cancelled
// request stops promptly instead of finishing a large transfer.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, f *os.File) int64 {
	ctx := r.Context()
	buf := make([]byte, streamChunkSize)
	var total int64

	for {
		select {
		case <-ctx.Done():
			logging.Debug("content stream aborted", zap.Int64("bytes", total))
			return total
		default:
		}

		n, err := f.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				logging.Debug("client closed connection", zap.Int64("bytes", total))
				return total
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logging.Error("content read failed", zap.Error(err))
			}
			return total
		}
	}
}

// contentError writes a plain-text error and asks the client to drop the
// connection, since the advertised content length will not be honored.
func (s *Server) contentError(w http.ResponseWriter, code int, message string) {
	body := fmt.Sprintf("Failure: %s (%d)\r\n", message, code)
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Connection", "close")
	w.WriteHeader(code)
	io.WriteString(w, body)
	metrics.RecordContentRequest(code, 0)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"error": message, "code": code})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("response encoding failed", zap.Error(err))
	}
}
