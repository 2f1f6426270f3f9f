package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-sync/internal/model"
	"github.com/BuzzLyutic/todo-sync/internal/notify"
	"github.com/BuzzLyutic/todo-sync/internal/repo"
	"github.com/BuzzLyutic/todo-sync/internal/service"
	"github.com/BuzzLyutic/todo-sync/pkg/respond"
)

// Notifier is told about every successful mutation.
type Notifier interface {
	Broadcast(msg string)
}

type TodoHandler struct {
	service  *service.TodoService
	logger   *zap.Logger
	notifier Notifier
}

func NewTodoHandler(srv *service.TodoService, logger *zap.Logger, notifier Notifier) *TodoHandler {
	return &TodoHandler{
		service:  srv,
		logger:   logger,
		notifier: notifier,
	}
}

// Routes mounts the /todos resource. events may be nil.
func (h *TodoHandler) Routes(r chi.Router, events http.Handler) {
	r.Route("/todos", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Delete("/", h.DeleteCompleted)
		r.Get("/stats", h.Stats)
		if events != nil {
			r.Handle("/events", events)
		}
		r.Patch("/{id}", h.SetCompleted)
		r.Put("/{id}", h.Replace)
	})
}

func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	todos, err := h.service.List(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, todos)
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return
	}

	var req model.Todo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	idempKey := r.Header.Get("Idempotency-Key")
	todo, err := h.service.Create(r.Context(), req, idempKey)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	h.changed()
	w.Header().Set("Location", fmt.Sprintf("/todos/%d", todo.ID))
	respond.JSON(w, r, http.StatusCreated, todo)
}

func (h *TodoHandler) SetCompleted(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var patch model.TodoPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	todo, err := h.service.SetCompleted(r.Context(), id, patch)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	h.changed()
	respond.JSON(w, r, http.StatusOK, todo)
}

func (h *TodoHandler) Replace(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req model.Todo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	todo, err := h.service.Replace(r.Context(), id, req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	h.changed()
	respond.JSON(w, r, http.StatusOK, todo)
}

// DeleteCompleted handles the bodyless DELETE /todos: every completed record goes.
func (h *TodoHandler) DeleteCompleted(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.DeleteCompleted(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	h.logger.Info("deleted completed todos", zap.Int64("count", deleted))
	if deleted > 0 {
		h.changed()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, stats)
}

func (h *TodoHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, r, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *TodoHandler) changed() {
	if h.notifier != nil {
		h.notifier.Broadcast(notify.MessageChanged)
	}
}

func (h *TodoHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
