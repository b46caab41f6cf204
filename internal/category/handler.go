package category

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"toeicbank/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc categoryService
}

type categoryService interface {
	Create(ctx context.Context, in CreateCategoryInput) (*Category, error)
	List(ctx context.Context) ([]Category, error)
	Update(ctx context.Context, in UpdateCategoryInput) (*Category, error)
	Deactivate(ctx context.Context, id int64) error
}

type categoryRequest struct {
	Name       string `json:"name"`
	LayoutKind string `json:"layout_kind"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.svc.Create(r.Context(), CreateCategoryInput{
		Name:       req.Name,
		LayoutKind: req.LayoutKind,
	})
	if err != nil {
		writeCategoryError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, item)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid category id")
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.svc.Update(r.Context(), UpdateCategoryInput{
		ID:         id,
		Name:       req.Name,
		LayoutKind: req.LayoutKind,
	})
	if err != nil {
		writeCategoryError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, item)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid category id")
		return
	}
	if err := h.svc.Deactivate(r.Context(), id); err != nil {
		writeCategoryError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]bool{"deleted": true})
}

func writeCategoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrCategoryNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateName):
		apiresp.WriteError(w, r, http.StatusConflict, err.Error())
	default:
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}
