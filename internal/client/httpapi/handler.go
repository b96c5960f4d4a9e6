// Package httpapi exposes the declaration service as a local JSON API for
// the registrar's UI.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/services"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/tabs"
	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
	"github.com/Sadman-Ilham/opencrvs-core/internal/logging"
)

const requestTimeout = 30 * time.Second

type Handler struct {
	svc      services.DeclarationService
	log      logging.Logger
	gatherer prometheus.Gatherer
}

// New creates a Handler. gatherer may be nil, in which case /metrics is
// not served.
func New(svc services.DeclarationService, log logging.Logger, gatherer prometheus.Gatherer) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{svc: svc, log: log, gatherer: gatherer}
}

// Register registers the API routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.Recoverer)
	api.Use(middleware.RequestID)
	api.Use(middleware.Timeout(requestTimeout))

	api.Get("/declarations", h.handleList)
	api.Post("/declarations", h.handleCreate)
	api.Get("/declarations/{id}", h.handleGet)
	api.Put("/declarations/{id}", h.handleSave)
	api.Delete("/declarations/{id}", h.handleDiscard)
	api.Post("/declarations/{id}/transition", h.handleTransition)
	api.Post("/declarations/{id}/{action}", h.handleAction)

	api.Get("/tabs", h.handleTabs)
	api.Put("/tabs/{tab}/skip", h.handleSetSkip)
	api.Post("/sync", h.handleSync)
	api.Get("/queue", h.handlePending)

	if h.gatherer != nil {
		api.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Mount("/", api)
}

type createRequest struct {
	Event models.EventType `json:"event"`
}

type saveRequest struct {
	Data models.Data `json:"data"`
}

type transitionRequest struct {
	Status models.Status `json:"status"`
}

type skipRequest struct {
	Skip int `json:"skip"`
}

type tabsResponse struct {
	Tabs   map[tabs.Tab]tabs.Merged `json:"tabs"`
	Counts map[tabs.Tab]int         `json:"counts"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.List(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !req.Event.Valid() {
		writeMessage(w, http.StatusBadRequest, "unknown event")
		return
	}
	d, err := h.svc.Create(r.Context(), req.Event)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.svc.Save(r.Context(), models.Declaration{ID: chi.URLParam(r, "id"), Data: req.Data})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		writeMessage(w, http.StatusBadRequest, "unknown status")
		return
	}
	d, err := h.svc.Transition(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var (
		d   models.Declaration
		err error
	)
	switch chi.URLParam(r, "action") {
	case "submit":
		d, err = h.svc.Submit(ctx, id)
	case "register":
		d, err = h.svc.Register(ctx, id)
	case "reject":
		d, err = h.svc.Reject(ctx, id)
	case "certify":
		d, err = h.svc.Certify(ctx, id)
	case "approve":
		d, err = h.svc.Approve(ctx, id)
	case "retry":
		d, err = h.svc.Retry(ctx, id)
	default:
		writeMessage(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, d)
}

func (h *Handler) handleTabs(w http.ResponseWriter, r *http.Request) {
	view := h.svc.Tabs(r.Context())
	writeJSON(w, http.StatusOK, tabsResponse{Tabs: view, Counts: view.Counts()})
}

func (h *Handler) handleSetSkip(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.SetPage(tabs.Tab(chi.URLParam(r, "tab")), req.Skip); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Sync(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Pending(r.Context()))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.log.Warn(r.Context(), "invalid request body", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeMessage(w, code, err.Error())
}

// StatusFor maps an error of the declaration service to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidStateTransition), errors.Is(err, common.ErrAlreadyQueued):
		return http.StatusConflict
	case errors.Is(err, common.ErrTransientNetworkFailure), errors.Is(err, common.ErrMalformedPage),
		errors.Is(err, common.ErrPermanentRejection):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
