// Package server is the local web UI: stored trails with like toggles, the
// latest run's topic report, and recommendation queries answered from the
// persisted bundle.
package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"

	"github.com/KalinMeier/TrailScout/internal/database"
	"github.com/KalinMeier/TrailScout/internal/pipeline"
	"github.com/KalinMeier/TrailScout/internal/recommend"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// defaultCount is how many recommendations a query returns unless the form
// asks for a different count.
const defaultCount = 5

// Server is the HTTP server for browsing trails and recommendations.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux

	// engine cache for the latest run's bundle; reloaded when a newer run
	// appears. The engine itself is immutable, so only the swap is locked.
	mu     sync.Mutex
	runID  string
	engine *recommend.Engine
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":   renderMarkdown,
		"pathescape": url.PathEscape,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "trails.html", "report.html", "recommend.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /trails", s.handleTrails)
	s.mux.HandleFunc("POST /like/{name}", s.handleLike)
	s.mux.HandleFunc("GET /report", s.handleReport)
	s.mux.HandleFunc("GET /recommend", s.handleRecommend)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	run, err := s.db.GetLatestRun()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Run":   run,
		"Stats": stats,
	})
}

func (s *Server) handleTrails(w http.ResponseWriter, r *http.Request) {
	trails, err := s.db.GetAllTrails()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	liked, _ := s.db.GetLikedSet()

	s.render(w, "trails.html", map[string]any{
		"Trails": trails,
		"Liked":  liked,
	})
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name != "" {
		existing, err := s.db.GetLike(name)
		if err == nil {
			if existing != nil {
				s.db.DeleteLike(name)
			} else {
				s.db.UpsertLike(name)
			}
		}
	}

	back := r.FormValue("back")
	if back == "" || !strings.HasPrefix(back, "/") {
		back = "/trails"
	}
	http.Redirect(w, r, back, http.StatusFound)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	run, err := s.db.GetLatestRun()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "report.html", map[string]any{
		"Run": run,
	})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Seed":  r.FormValue("seed"),
		"Count": countParam(r),
	}

	engine, run, err := s.latestEngine()
	if err != nil {
		log.Error().Err(err).Msg("loading recommendation engine")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if engine == nil {
		s.render(w, "recommend.html", data)
		return
	}
	data["Run"] = run
	data["Names"] = engine.Names()

	count := data["Count"].(int)
	if seed := r.FormValue("seed"); seed != "" {
		recs, err := engine.FromSeed(seed, count)
		if err != nil {
			if errors.Is(err, recommend.ErrUnknownTrail) {
				data["Error"] = fmt.Sprintf("No trail named %q in the current model.", seed)
			} else {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
		}
		data["Results"] = recs
	}

	// "For you" section from liked trails, restricted to names the current
	// model knows; a liked trail dropped by a later run is skipped, not fatal.
	if liked, err := s.db.GetLikedNames(); err == nil && len(liked) > 0 {
		known := make([]string, 0, len(liked))
		for _, name := range liked {
			if engine.Has(name) {
				known = append(known, name)
			}
		}
		data["LikedSkipped"] = len(liked) - len(known)
		if len(known) > 0 {
			profile, err := engine.FromProfile(known, count)
			if err == nil {
				data["Profile"] = profile
				data["LikedCount"] = len(known)
			} else {
				log.Warn().Err(err).Msg("profile recommendation failed")
			}
		}
	}

	s.render(w, "recommend.html", data)
}

// latestEngine returns the engine for the newest run, rebuilding it from the
// run's bundle only when the run changed since the last call. A nil engine
// with nil error means no run exists yet.
func (s *Server) latestEngine() (*recommend.Engine, *database.Run, error) {
	run, err := s.db.GetLatestRun()
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil && s.runID == run.ID {
		return s.engine, run, nil
	}

	bundle, err := pipeline.LoadBundle(run.BundlePath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading bundle for run %s: %w", run.ID, err)
	}
	engine, err := bundle.Engine()
	if err != nil {
		return nil, nil, fmt.Errorf("rebuilding engine for run %s: %w", run.ID, err)
	}
	s.engine = engine
	s.runID = run.ID
	return engine, run, nil
}

func countParam(r *http.Request) int {
	if v := r.FormValue("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			return n
		}
	}
	return defaultCount
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Error().Str("template", name).Msg("template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("rendering template")
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Info().Str("addr", "http://"+addr).Msg("server listening")
	return http.ListenAndServe(addr, srv.Handler())
}
