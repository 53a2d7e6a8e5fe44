// Package options serves the settings page and its JSON API on a local
// address. Stored API keys never leave the server unmasked: forms and
// responses carry horosafe.MaskSecret values, and a masked value sent back
// means "keep the stored key".
package options

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/tldr/horosafe"
	"github.com/hazyhaar/tldr/observability"
	"github.com/hazyhaar/tldr/settings"
	"github.com/hazyhaar/tldr/shield"
)

// SavedMessage is the confirmation shown after a successful save.
const SavedMessage = "Settings saved!"

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/options.js
var optionsJS []byte

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Store reads and writes settings.
type Store interface {
	Get(ctx context.Context) (settings.Settings, error)
	Save(ctx context.Context, s settings.Settings) error
}

// UsageSource reports usage totals for the page footer.
type UsageSource interface {
	Totals(ctx context.Context) ([]observability.Totals, error)
}

// Config configures a Server.
type Config struct {
	Store  Store
	Usage  UsageSource // optional
	Logger *slog.Logger
}

// Server is the options UI.
type Server struct {
	store  Store
	usage  UsageSource
	logger *slog.Logger
}

// New creates a Server. Store is required.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("options: Store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{store: cfg.Store, usage: cfg.Usage, logger: cfg.Logger}, nil
}

// Handler returns the router with the shield middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.Stack(s.logger) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/", s.handlePage)
	r.Post("/", s.handleForm)
	r.Get("/options.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Write(optionsJS)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		if s.usage != nil {
			r.Get("/usage", s.handleUsage)
		}
	})
	return r
}

// View is the masked projection of Settings shown to clients.
type View struct {
	OpenAIKey    string `json:"openai_api_key"`
	AnthropicKey string `json:"anthropic_api_key"`
	Provider     string `json:"ai_provider"`
	ShowCost     bool   `json:"show_token_cost"`
}

func viewOf(st settings.Settings) View {
	return View{
		OpenAIKey:    horosafe.MaskSecret(st.PrimaryAPIKey),
		AnthropicKey: horosafe.MaskSecret(st.SecondaryAPIKey),
		Provider:     st.Provider,
		ShowCost:     st.ShowCost,
	}
}

// merge applies v over the stored settings, keeping stored keys for masked
// values.
func merge(stored settings.Settings, v View) settings.Settings {
	out := settings.Settings{
		PrimaryAPIKey:   v.OpenAIKey,
		SecondaryAPIKey: v.AnthropicKey,
		Provider:        v.Provider,
		ShowCost:        v.ShowCost,
	}
	if horosafe.IsMasked(v.OpenAIKey) {
		out.PrimaryAPIKey = stored.PrimaryAPIKey
	}
	if horosafe.IsMasked(v.AnthropicKey) {
		out.SecondaryAPIKey = stored.SecondaryAPIKey
	}
	return out
}

type pageData struct {
	View
	Flash *shield.FlashMessage
	Usage []observability.Totals
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Error("options: load settings", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	data := pageData{View: viewOf(st), Flash: shield.GetFlash(ctx)}
	if s.usage != nil {
		if data.Usage, err = s.usage.Totals(ctx); err != nil {
			s.logger.Warn("options: usage totals", "error", err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTmpl.ExecuteTemplate(w, "options", data); err != nil {
		s.logger.Error("options: render", "error", err)
	}
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	showCost, _ := strconv.ParseBool(r.PostFormValue("show_token_cost"))
	if r.PostFormValue("show_token_cost") == "on" {
		showCost = true
	}
	v := View{
		OpenAIKey:    r.PostFormValue("openai_api_key"),
		AnthropicKey: r.PostFormValue("anthropic_api_key"),
		Provider:     r.PostFormValue("ai_provider"),
		ShowCost:     showCost,
	}
	if err := s.save(r.Context(), v); err != nil {
		shield.SetFlash(w, "error", saveError(err))
	} else {
		shield.SetFlash(w, "success", SavedMessage)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Get(r.Context())
	if err != nil {
		s.logger.Error("options: load settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var v View
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.save(r.Context(), v); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, settings.ErrUnknownProvider) {
			status = http.StatusBadRequest
		}
		writeError(w, status, saveError(err))
		return
	}
	s.handleGetSettings(w, r)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	totals, err := s.usage.Totals(r.Context())
	if err != nil {
		s.logger.Error("options: usage totals", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if totals == nil {
		totals = []observability.Totals{}
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) save(ctx context.Context, v View) error {
	stored, err := s.store.Get(ctx)
	if err != nil {
		return err
	}
	next := merge(stored, v)
	if err := s.store.Save(ctx, next); err != nil {
		s.logger.Warn("options: save", "error", err)
		return err
	}
	s.logger.Info("options: saved", "provider", next.Provider, "show_cost", next.ShowCost,
		"openai_key", next.PrimaryAPIKey != "", "anthropic_key", next.SecondaryAPIKey != "")
	return nil
}

func saveError(err error) string {
	if errors.Is(err, settings.ErrUnknownProvider) {
		return "Please choose OpenAI or Anthropic."
	}
	return "Could not save settings."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
