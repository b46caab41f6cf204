package exam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

type mockExamService struct {
	createFn       func(ctx context.Context, in CreateExamInput) (*Exam, error)
	listFn         func(ctx context.Context) ([]Exam, error)
	getFn          func(ctx context.Context, id int64) (*Exam, []ExamQuestion, error)
	setPublishedFn func(ctx context.Context, id int64, published bool) error
	attachFn       func(ctx context.Context, examID, questionID int64) error
	detachFn       func(ctx context.Context, examID, questionID int64) error
	reorderFn      func(ctx context.Context, examID int64, questionIDs []int64) error
}

func (m *mockExamService) Create(ctx context.Context, in CreateExamInput) (*Exam, error) {
	return m.createFn(ctx, in)
}

func (m *mockExamService) List(ctx context.Context) ([]Exam, error) {
	return m.listFn(ctx)
}

func (m *mockExamService) Get(ctx context.Context, id int64) (*Exam, []ExamQuestion, error) {
	return m.getFn(ctx, id)
}

func (m *mockExamService) SetPublished(ctx context.Context, id int64, published bool) error {
	return m.setPublishedFn(ctx, id, published)
}

func (m *mockExamService) AttachQuestion(ctx context.Context, examID, questionID int64) error {
	return m.attachFn(ctx, examID, questionID)
}

func (m *mockExamService) DetachQuestion(ctx context.Context, examID, questionID int64) error {
	return m.detachFn(ctx, examID, questionID)
}

func (m *mockExamService) Reorder(ctx context.Context, examID int64, questionIDs []int64) error {
	return m.reorderFn(ctx, examID, questionIDs)
}

func newExamRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/exams", h.Create)
	r.Get("/exams", h.List)
	r.Get("/exams/{id}", h.Get)
	r.Post("/exams/{id}/publish", h.SetPublished)
	r.Post("/exams/{id}/questions", h.AttachQuestion)
	r.Delete("/exams/{id}/questions/{questionID}", h.DetachQuestion)
	r.Put("/exams/{id}/questions/order", h.Reorder)
	return r
}

func TestHandlerCreate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
	}{
		{name: "created", body: `{"title":"Mock Test 1","duration_min":120}`, wantStatus: http.StatusCreated},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "invalid input", body: `{"title":"","duration_min":0}`, svcErr: ErrInvalidInput, wantStatus: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &Handler{svc: &mockExamService{
				createFn: func(ctx context.Context, in CreateExamInput) (*Exam, error) {
					if tc.svcErr != nil {
						return nil, tc.svcErr
					}
					return &Exam{ID: 1, Title: in.Title, DurationMin: in.DurationMin}, nil
				},
			}}

			req := httptest.NewRequest(http.MethodPost, "/exams", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			newExamRouter(h).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandlerGet(t *testing.T) {
	groupID := int64(3)
	h := &Handler{svc: &mockExamService{
		getFn: func(ctx context.Context, id int64) (*Exam, []ExamQuestion, error) {
			if id != 7 {
				t.Errorf("get id = %d, want 7", id)
			}
			return &Exam{ID: id, Title: "Mock Test 1", QuestionCount: 2}, []ExamQuestion{
				{QuestionID: 11, Position: 1, Content: "first"},
				{QuestionID: 12, Position: 2, Content: "second", GroupID: &groupID},
			}, nil
		},
	}}

	req := httptest.NewRequest(http.MethodGet, "/exams/7", nil)
	rec := httptest.NewRecorder()
	newExamRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var env struct {
		OK   bool       `json:"ok"`
		Data examDetail `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !env.OK || env.Data.Exam == nil || len(env.Data.Questions) != 2 {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Data.Questions[1].GroupID == nil || *env.Data.Questions[1].GroupID != 3 {
		t.Errorf("question 2 group id = %v", env.Data.Questions[1].GroupID)
	}
}

func TestHandlerAttachDetach(t *testing.T) {
	h := &Handler{svc: &mockExamService{
		attachFn: func(ctx context.Context, examID, questionID int64) error {
			if examID != 7 || questionID != 42 {
				t.Errorf("attach (%d, %d), want (7, 42)", examID, questionID)
			}
			return nil
		},
		detachFn: func(ctx context.Context, examID, questionID int64) error {
			return ErrQuestionNotFound
		},
	}}
	router := newExamRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/exams/7/questions", strings.NewReader(`{"question_id":42}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("attach status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/exams/7/questions/42", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("detach status = %d, want 404", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/exams/7/questions/abc", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad question id status = %d, want 400", rec.Code)
	}
}

func TestHandlerAttachConflict(t *testing.T) {
	h := &Handler{svc: &mockExamService{
		attachFn: func(ctx context.Context, examID, questionID int64) error {
			return ErrAlreadyAttached
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/exams/7/questions", strings.NewReader(`{"question_id":42}`))
	rec := httptest.NewRecorder()
	newExamRouter(h).ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandlerReorder(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		body       string
		svcErr     error
		wantStatus int
	}{
		{name: "reordered", url: "/exams/7/questions/order", body: `{"question_ids":[3,1,2]}`, wantStatus: http.StatusOK},
		{name: "count mismatch", url: "/exams/7/questions/order", body: `{"question_ids":[3,1]}`, svcErr: ErrInvalidInput, wantStatus: http.StatusBadRequest},
		{name: "bad exam id", url: "/exams/zero/questions/order", body: `{"question_ids":[1]}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", url: "/exams/7/questions/order", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &Handler{svc: &mockExamService{
				reorderFn: func(ctx context.Context, examID int64, questionIDs []int64) error {
					return tc.svcErr
				},
			}}

			req := httptest.NewRequest(http.MethodPut, tc.url, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			newExamRouter(h).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandlerSetPublished(t *testing.T) {
	h := &Handler{svc: &mockExamService{
		setPublishedFn: func(ctx context.Context, id int64, published bool) error {
			if id != 5 || !published {
				t.Errorf("SetPublished(%d, %v), want (5, true)", id, published)
			}
			return nil
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/exams/5/publish", strings.NewReader(`{"published":true}`))
	rec := httptest.NewRecorder()
	newExamRouter(h).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
}
