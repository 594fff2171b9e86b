package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avolkhin/linkcut/config"
	"github.com/avolkhin/linkcut/internal/auth"
	"github.com/avolkhin/linkcut/internal/middleware"
	"github.com/avolkhin/linkcut/internal/types"
	"github.com/avolkhin/linkcut/internal/urlshort"
)

// Handler maps the HTTP surface onto the link service.
type Handler struct {
	Config      *config.Config
	Service     *urlshort.Service
	AuthManager *auth.Manager
	Logger      *zap.SugaredLogger
}

// CreateLink handles POST /links: create a link from a JSON body with the
// destination URL and an optional custom slug and expiry.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req types.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	link, err := h.Service.CreateLink(r.Context(), req.URL, req.Slug, h.ownerID(w, r), req.ExpiresAt)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, link)
}

// Shorten handles POST /api/shorten: the alternate creation entry point
// that answers with a fully qualified short URL instead of the raw entity.
func (h *Handler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req types.ShortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	link, err := h.Service.CreateLink(r.Context(), req.OriginalURL, req.Slug, h.ownerID(w, r), nil)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, types.ShortenResponse{ShortURL: h.Service.ShortURL(link.Slug)})
}

// Links handles GET /links: the dashboard listing, newest first. With a
// session identity on the context the listing is that owner's.
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	links, err := h.Service.Links(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if links == nil {
		links = []types.ShortLink{}
	}
	writeJSON(w, http.StatusOK, links)
}

// Redirect handles GET /r/{slug}: resolve the slug, record the click and
// send the client to the destination. Missing and expired slugs are
// indistinguishable.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	slugValue := chi.URLParam(r, "slug")

	destination, err := h.Service.Resolve(r.Context(), slugValue, types.ClickMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	http.Redirect(w, r, destination, http.StatusFound)
}

// Ping handles GET /ping: storage reachability.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Ping(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// InternalStats handles GET /api/internal/stats: service totals, restricted
// to the configured trusted subnet.
func (h *Handler) InternalStats(w http.ResponseWriter, r *http.Request) {
	if !h.trustedRequest(r) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ownerID returns the session identity, minting one for first-time creators
// so their dashboard works on the next visit. Links stay anonymous only
// when minting fails.
func (h *Handler) ownerID(w http.ResponseWriter, r *http.Request) string {
	if id := middleware.UserID(r.Context()); id != "" {
		return id
	}

	id := uuid.New().String()
	token, err := h.AuthManager.BuildJWTString(id)
	if err != nil {
		h.Logger.Errorw("failed to issue session cookie", "error", err)
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	return id
}

func (h *Handler) trustedRequest(r *http.Request) bool {
	if h.Config.TrustedSubnet == "" {
		return false
	}

	_, subnet, err := net.ParseCIDR(h.Config.TrustedSubnet)
	if err != nil {
		h.Logger.Errorw("invalid trusted subnet", "subnet", h.Config.TrustedSubnet, "error", err)
		return false
	}

	ip := net.ParseIP(r.Header.Get("X-Real-IP"))
	return ip != nil && subnet.Contains(ip)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *urlshort.ValidationError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, types.ErrSlugTaken):
		writeError(w, http.StatusBadRequest, "slug already taken")
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, "link not found")
	default:
		// Includes ErrUnavailable and exhausted slug generation; neither
		// may ever be presented as a conflict.
		h.Logger.Errorw("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
