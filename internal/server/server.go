// Package server implements the single download route a filer
// instance exposes: decode the envelope, resolve the catalog, and
// return the requested byte range.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hdsync/filer-sync/internal/chunkio"
	"github.com/hdsync/filer-sync/internal/config"
	"github.com/hdsync/filer-sync/internal/envelope"
	"github.com/hdsync/filer-sync/internal/manifest"
	"github.com/hdsync/filer-sync/internal/metrics"
)

// Server resolves catalogs against cfg and serves byte ranges from disk.
type Server struct {
	Config         config.Config
	DefaultCatalog string
}

// New builds a Server.
func New(cfg config.Config, defaultCatalog string) *Server {
	return &Server{Config: cfg, DefaultCatalog: defaultCatalog}
}

// Routes registers the download route on mux. Static file serving and
// any other route lives outside this package and must not be
// registered under /api/.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/download/", s.handleDownload)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	metrics.Register()

	raw := strings.TrimPrefix(r.URL.Path, "/api/download/")
	req, err := envelope.Decode(raw)
	if err != nil {
		s.fail(w, fmt.Sprintf("malformed envelope; example: %s (encodes %s)",
			envelope.EncodeRaw([]byte(envelope.Example)), envelope.Example))
		metrics.RequestsTotal.WithLabelValues("malformed_envelope").Inc()
		return
	}

	cat := s.Config.Catalog(req.Catalog, s.DefaultCatalog)

	root := cat.Path
	if root == "" {
		root = config.DefaultCatalogPath
	}
	full := filepath.Join(root, filepath.FromSlash(req.File))

	if req.File == manifest.ListFileName {
		slog.Info("filelist access", "addr", r.RemoteAddr, "catalog", req.Catalog)
	}

	var part chunkio.Part
	if req.Take == 0 {
		part, err = chunkio.ReadFull(full)
	} else {
		part, err = chunkio.ReadRange(full, req.Skip, req.Take)
	}
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("error").Inc()
		switch {
		case errors.Is(err, chunkio.ErrNotFound):
			s.fail(w, fmt.Sprintf("not found: %s", req.File))
		case errors.Is(err, chunkio.ErrOutOfRange):
			s.fail(w, fmt.Sprintf("out of range: %s", req.File))
		default:
			s.fail(w, fmt.Sprintf("io error: %v", err))
		}
		return
	}

	w.Header().Set("x-skip", strconv.FormatUint(part.Skip, 10))
	w.Header().Set("x-take", strconv.FormatUint(part.Take, 10))
	w.Header().Set("content-type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(part.Bytes)
	metrics.RequestsTotal.WithLabelValues("ok").Inc()
	metrics.BytesTransferred.Add(float64(part.Take))
}

func (s *Server) fail(w http.ResponseWriter, msg string) {
	w.Header().Set("x-body-is-error", "yes")
	w.Header().Set("content-type", "text/plain;charset=utf-8")
	w.WriteHeader(http.StatusNotAcceptable)
	_, _ = w.Write([]byte(msg))
}
