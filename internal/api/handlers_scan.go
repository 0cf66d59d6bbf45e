package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/dgallion1/wikirefs/internal/article"
	"github.com/dgallion1/wikirefs/internal/citation"
	"github.com/dgallion1/wikirefs/internal/pipeline"
	"github.com/dgallion1/wikirefs/internal/wiki"
	"github.com/go-chi/chi/v5"
)

// handleScan scans an uploaded article: either a multipart "file" field or
// the raw request body.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead
	withRefs := r.URL.Query().Get("references") != "false"

	var src io.Reader = r.Body
	filename := ""
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		src = file
		filename = sanitizeFilename(header.Filename)
	}

	data, err := io.ReadAll(io.LimitReader(src, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read document: "+err.Error(), http.StatusBadRequest)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("document exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		jsonError(w, "empty document", http.StatusBadRequest)
		return
	}

	a, err := article.FromHTML(bytes.NewReader(data))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	rep, err := pipeline.Scan(a, pipeline.SourceUpload, withRefs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rep.Title == "" && filename != "" {
		rep.Title = strings.TrimSuffix(strings.TrimSuffix(filename, ".html"), ".htm")
	}
	writeJSON(w, http.StatusOK, rep)
}

type articleResponse struct {
	*article.Report
	RevID     int64  `json:"revid,omitempty"`
	Permalink string `json:"permalink,omitempty"`
}

// handleArticle fetches a title from the wiki and scans it. The title is the
// rest of the path so that titles containing "/" still route here.
func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when the path carries escapes that Path cannot
	// represent (such as %2F); only then is the parameter still escaped.
	title := chi.URLParam(r, "*")
	var err error
	if r.URL.RawPath != "" {
		title, err = url.PathUnescape(title)
	}
	if err != nil || strings.TrimSpace(title) == "" {
		jsonError(w, "title is required", http.StatusBadRequest)
		return
	}
	withRefs := r.URL.Query().Get("references") != "false"

	page, rep, err := s.scanTitle(r, title, withRefs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articleResponse{
		Report:    rep,
		RevID:     page.RevID,
		Permalink: page.Permalink,
	})
}

func (s *Server) scanTitle(r *http.Request, title string, withRefs bool) (*wiki.Page, *article.Report, error) {
	page, err := s.fetcher.FetchParsed(r.Context(), title)
	if err != nil {
		return nil, nil, err
	}
	a, err := article.FromString(page.HTML)
	if err != nil {
		return nil, nil, err
	}
	rep, err := pipeline.Scan(a, pipeline.SourceWiki, withRefs)
	if err != nil {
		return nil, nil, err
	}
	if rep.Title == "" {
		rep.Title = page.Title
	}
	return page, rep, nil
}

// statusFor maps scan and fetch failures onto HTTP status codes.
func statusFor(err error) int {
	var parseErr *citation.ParseError
	var refErr *article.ReferenceNotFoundError
	var notFound *wiki.NotFoundError
	switch {
	case errors.As(err, &parseErr), errors.As(err, &refErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusBadGateway {
		s.log.Error("scan failed", "path", r.URL.Path, "error", err)
	}
	jsonError(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
