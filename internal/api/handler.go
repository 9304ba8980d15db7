package api

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/xwp/ga4-extensions/internal/content"
	"github.com/xwp/ga4-extensions/internal/observability"
	"github.com/xwp/ga4-extensions/internal/scripts"
	"github.com/xwp/ga4-extensions/internal/settings"
	"github.com/xwp/ga4-extensions/internal/storage"
	"github.com/xwp/ga4-extensions/internal/tag"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

const (
	SettingsPath = "/admin/options-general"
	listingLimit = 20
)

type ContentStore interface {
	PostBySlug(ctx context.Context, slug string) (*content.Post, error)
	ListPosts(ctx context.Context, limit int) ([]content.Post, error)
}

type Emitter interface {
	Emit(ctx context.Context, rc content.RequestContext, reg *scripts.Registry) tag.Result
}

type Handler struct {
	Content  ContentStore
	Settings *settings.Manager
	Emitter  Emitter
}

func NewHandler(store ContentStore, mgr *settings.Manager, emitter Emitter) *Handler {
	return &Handler{Content: store, Settings: mgr, Emitter: emitter}
}

type pageView struct {
	Title  string
	Post   *content.Post
	Posts  []content.Post
	Head   template.HTML
	Footer template.HTML
}

// Home renders the post listing. It is never a single-content view.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	posts, err := h.Content.ListPosts(r.Context(), listingLimit)
	if err != nil {
		log.Error().Err(err).Msg("list posts")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	rc := content.RequestContext{User: UserFrom(r.Context())}
	h.render(w, r, rc, pageView{Title: "Home", Posts: posts})
}

// Post renders one post as a single-content view.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	p, err := h.Content.PostBySlug(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("get post")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	rc := content.RequestContext{Single: true, Post: p, User: UserFrom(r.Context())}
	h.render(w, r, rc, pageView{Title: p.Title, Post: p})
}

// render emits the GA4 assets for rc and prints head and footer scripts
// around the page body.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, rc content.RequestContext, view pageView) {
	reg := scripts.NewRegistry()
	res := h.Emitter.Emit(r.Context(), rc, reg)
	observability.RecordEmission(tag.HandleDataLayer, res.DataLayer, string(res.DataLayerSkip))
	observability.RecordEmission(tag.HandleGtag, res.Gtag, string(res.GtagSkip))
	if res.GtagSkip != tag.SkipNone {
		log.Debug().Str("reason", string(res.GtagSkip)).Msg("gtag not emitted")
	}

	var head, foot bytes.Buffer
	if err := reg.PrintHead(&head); err != nil {
		log.Error().Err(err).Msg("print head scripts")
	}
	if err := reg.PrintFooter(&foot); err != nil {
		log.Error().Err(err).Msg("print footer scripts")
	}
	// registry output is escaped by its own template
	view.Head = template.HTML(head.String())
	view.Footer = template.HTML(foot.String())

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "page", view); err != nil {
		log.Error().Err(err).Msg("render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type adminView struct {
	Action  string
	Updated bool
	Fields  template.HTML
}

// SettingsForm renders the general settings screen.
func (h *Handler) SettingsForm(w http.ResponseWriter, r *http.Request) {
	var fields bytes.Buffer
	if err := h.Settings.RenderGroup(r.Context(), &fields, settings.GroupGeneral); err != nil {
		log.Error().Err(err).Msg("render settings")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "admin", adminView{
		Action:  SettingsPath,
		Updated: r.URL.Query().Get("settings-updated") == "true",
		Fields:  template.HTML(fields.String()),
	})
	if err != nil {
		log.Error().Err(err).Msg("render admin page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// SaveSettings sanitizes and stores the submitted general settings. Invalid
// values are stored as "" and the admin is redirected as on success.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	results, err := h.Settings.Save(r.Context(), settings.GroupGeneral, r.PostForm)
	if err != nil {
		log.Error().Err(err).Msg("save settings")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	for _, res := range results {
		if !res.Accepted && strings.TrimSpace(r.PostForm.Get(res.Name)) != "" {
			observability.SettingsRejected.Inc()
		}
	}
	log.Info().Int("fields", len(results)).Msg("settings saved")
	http.Redirect(w, r, SettingsPath+"?settings-updated=true", http.StatusSeeOther)
}
