package exam

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"toeicbank/internal/app/apiresp"
)

type Handler struct {
	svc examService
}

type examService interface {
	Create(ctx context.Context, in CreateExamInput) (*Exam, error)
	List(ctx context.Context) ([]Exam, error)
	Get(ctx context.Context, id int64) (*Exam, []ExamQuestion, error)
	SetPublished(ctx context.Context, id int64, published bool) error
	AttachQuestion(ctx context.Context, examID, questionID int64) error
	DetachQuestion(ctx context.Context, examID, questionID int64) error
	Reorder(ctx context.Context, examID int64, questionIDs []int64) error
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createExamRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DurationMin int    `json:"duration_min"`
}

type publishRequest struct {
	Published bool `json:"published"`
}

type attachRequest struct {
	QuestionID int64 `json:"question_id"`
}

type reorderRequest struct {
	QuestionIDs []int64 `json:"question_ids"`
}

type examDetail struct {
	Exam      *Exam          `json:"exam"`
	Questions []ExamQuestion `json:"questions"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createExamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	exam, err := h.svc.Create(r.Context(), CreateExamInput{
		Title:       req.Title,
		Description: req.Description,
		DurationMin: req.DurationMin,
	})
	if err != nil {
		writeExamError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, exam)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		writeExamError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := examID(w, r)
	if !ok {
		return
	}
	exam, questions, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeExamError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, examDetail{Exam: exam, Questions: questions})
}

func (h *Handler) SetPublished(w http.ResponseWriter, r *http.Request) {
	id, ok := examID(w, r)
	if !ok {
		return
	}
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.SetPublished(r.Context(), id, req.Published); err != nil {
		writeExamError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]bool{"published": req.Published})
}

func (h *Handler) AttachQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := examID(w, r)
	if !ok {
		return
	}
	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.AttachQuestion(r.Context(), id, req.QuestionID); err != nil {
		writeExamError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"status": "attached"})
}

func (h *Handler) DetachQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := examID(w, r)
	if !ok {
		return
	}
	questionID, err := strconv.ParseInt(chi.URLParam(r, "questionID"), 10, 64)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid question id")
		return
	}
	if err := h.svc.DetachQuestion(r.Context(), id, questionID); err != nil {
		writeExamError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"status": "detached"})
}

func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	id, ok := examID(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.Reorder(r.Context(), id, req.QuestionIDs); err != nil {
		writeExamError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"status": "reordered"})
}

func examID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid exam id")
		return 0, false
	}
	return id, true
}

func writeExamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrExamNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, "exam not found")
	case errors.Is(err, ErrQuestionNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, "question not found")
	case errors.Is(err, ErrAlreadyAttached):
		apiresp.WriteError(w, r, http.StatusConflict, "question already attached to exam")
	default:
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}
