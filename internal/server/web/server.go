// Package web serves query results over HTTP: HTML tables, CSV and
// spreadsheet exports, a JSON API for dashboards, and server-sent events
// for browser consoles.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/quantdb/internal/render"
	"github.com/leapstack-labs/quantdb/internal/watch"
	"github.com/leapstack-labs/quantdb/pkg/frame"
	"github.com/starfederation/datastar-go/datastar"
	"golang.org/x/sync/errgroup"
)

const (
	contentJSON = "application/json"
	contentCSV  = "text/comma-separated-values"
	contentXLS  = "application/vnd.ms-excel"
)

// Processor is the query processor as seen by the HTTP server.
type Processor interface {
	Query(ctx context.Context, command string) (*frame.Frame, error)
	Tables(ctx context.Context) ([]string, error)
}

// Config holds configuration for the HTTP server.
type Config struct {
	Processor Processor
	Port      int
	// HTMLDir holds static files served for unmatched paths.
	HTMLDir string
	// Notifier, when set, drives the /api/updates event stream.
	Notifier *watch.Notifier
	Logger   *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	proc     Processor
	port     int
	htmlDir  string
	notifier *watch.Notifier
	logger   *slog.Logger
}

// NewServer creates a new HTTP server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = watch.NewNotifier()
	}
	return &Server{
		proc:     cfg.Processor,
		port:     cfg.Port,
		htmlDir:  cfg.HTMLDir,
		notifier: notifier,
		logger:   logger,
	}
}

// Query URL-unescapes raw and runs it. Text that is not valid escaping is
// run as is.
func (s *Server) Query(ctx context.Context, raw string) (*frame.Frame, error) {
	q, err := url.PathUnescape(raw)
	if err != nil {
		q = raw
	}
	s.logger.Debug("web query", "query", q)
	return s.proc.Query(ctx, q)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
		cors,
	)

	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/", s.handlePost)
	r.Get("/api/servertree", s.handleServerTree)
	r.Post("/api/query", s.handleQuerySSE)
	r.Get("/api/updates", s.handleUpdatesSSE)
	r.Handle("/console/*", consoleHandler())
	for _, name := range []string{"file", "t"} {
		r.Get("/"+name+".csv", s.handleExport(render.FormatCSV, contentCSV))
		r.Get("/"+name+".xls", s.handleExport(render.FormatTSV, contentXLS))
	}
	r.Get("/*", s.handleGet)

	return r
}

// Serve starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting web server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("web server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down web server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Requested-With")
		h.Set("Access-Control-Allow-Methods", "GET,PUT,POST,DELETE,OPTIONS")
		next.ServeHTTP(w, r)
	})
}

// handleGet answers /?]<query> with an HTML table and serves static
// files otherwise.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" && strings.HasPrefix(r.URL.RawQuery, "]") {
		f, err := s.Query(r.Context(), r.URL.RawQuery[1:])
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = resultsView(r.URL.RawQuery[1:], nil, err).Render(r.Context(), w)
			return
		}
		_ = render.HTML(w, f)
		return
	}

	if file, ok := s.staticFile(r.URL.Path); ok {
		http.ServeFile(w, r, file)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Hello, World!")
}

// staticFile maps a URL path into the html directory. "/" maps to
// index.html.
func (s *Server) staticFile(urlPath string) (string, bool) {
	if s.htmlDir == "" {
		return "", false
	}
	clean := path.Clean("/" + urlPath)
	if clean == "/" {
		clean = "/index.html"
	}
	file := filepath.Join(s.htmlDir, filepath.FromSlash(clean))
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return "", false
	}
	return file, true
}

// handleExport returns the query in the URL's raw query string as a file
// attachment.
func (s *Server) handleExport(format render.Format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := s.Query(r.Context(), r.URL.RawQuery)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", "attachment")
		if err := render.Render(w, f, format); err != nil {
			s.logger.Error("export failed", "error", err)
		}
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handlePost runs a JSON {"query": ...} body, or the raw body for any
// other content type, and answers with the dashboard JSON table.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("failed to read body: %w", err))
		return
	}

	q := string(body)
	if strings.HasPrefix(r.Header.Get("Content-Type"), contentJSON) {
		var req queryRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
			return
		}
		q = req.Query
	}

	f, err := s.Query(r.Context(), q)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	w.Header().Set("Content-Type", contentJSON)
	if err := render.JSON(w, f); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", contentJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

// treeNode is one entry of the dashboard server tree.
type treeNode struct {
	Server    string `json:"server"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	FullName  string `json:"fullName"`
	Type      string `json:"type"`
	Query     string `json:"query"`
}

func tableQuery(table string) string {
	return "dk>SELECT * FROM " + table + " LIMIT 1000"
}

func (s *Server) handleServerTree(w http.ResponseWriter, r *http.Request) {
	tables, err := s.proc.Tables(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	nodes := make([]treeNode, len(tables))
	for i, t := range tables {
		nodes[i] = treeNode{
			Server:   "pythondb",
			Name:     t,
			FullName: t,
			Type:     "table",
			Query:    tableQuery(t),
		}
	}
	w.Header().Set("Content-Type", contentJSON)
	_ = json.NewEncoder(w).Encode(nodes)
}

// QuerySignals represents the signals sent from a browser console.
type QuerySignals struct {
	Query string `json:"query"`
}

// handleQuerySSE runs the query signal and patches #results.
func (s *Server) handleQuerySSE(w http.ResponseWriter, r *http.Request) {
	// Read signals BEFORE creating SSE (SSE consumes the request body)
	var signals QuerySignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		sse := datastar.NewSSE(w, r)
		_ = sse.PatchElementTempl(resultsView("", nil, fmt.Errorf("failed to read signals: %w", err)))
		return
	}

	sse := datastar.NewSSE(w, r)

	q := strings.TrimSpace(signals.Query)
	if q == "" {
		_ = sse.PatchElementTempl(resultsView(q, nil, fmt.Errorf("query cannot be empty")))
		return
	}

	f, err := s.proc.Query(r.Context(), q)
	if err := sse.PatchElementTempl(resultsView(q, f, err)); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// handleUpdatesSSE is the long-lived stream that re-sends the table list
// whenever a watched file is re-run.
func (s *Server) handleUpdatesSSE(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-updates:
			if ev.Err != nil {
				_ = sse.ConsoleError(fmt.Errorf("%s: %w", ev.Path, ev.Err))
				continue
			}
			tables, err := s.proc.Tables(ctx)
			if err != nil {
				_ = sse.ConsoleError(err)
				continue
			}
			if err := sse.PatchElementTempl(tablesView(tables)); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}
