package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrExamNotFound     = errors.New("exam not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAlreadyAttached  = errors.New("question already attached to exam")
)

type Exam struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	DurationMin   int       `json:"duration_min"`
	IsPublished   bool      `json:"is_published"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ExamQuestion is one slot on an exam's question sheet. Grouped questions
// keep their group id so clients can render the shared passage once.
type ExamQuestion struct {
	QuestionID int64  `json:"question_id"`
	Position   int    `json:"position"`
	Content    string `json:"content"`
	CategoryID int64  `json:"category_id"`
	GroupID    *int64 `json:"group_id,omitempty"`
}

type CreateExamInput struct {
	Title       string
	Description string
	DurationMin int
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, in CreateExamInput) (*Exam, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || in.DurationMin <= 0 {
		return nil, ErrInvalidInput
	}

	var exam Exam
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO exams (title, description, duration_min, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, now(), now())
		RETURNING id, title, description, duration_min, is_published, created_at, updated_at
	`, in.Title, strings.TrimSpace(in.Description), in.DurationMin).Scan(
		&exam.ID, &exam.Title, &exam.Description, &exam.DurationMin, &exam.IsPublished, &exam.CreatedAt, &exam.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert exam: %w", err)
	}
	return &exam, nil
}

func (s *Service) List(ctx context.Context) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.title, e.description, e.duration_min, e.is_published, e.created_at, e.updated_at,
			(SELECT COUNT(*) FROM exam_questions eq WHERE eq.exam_id = e.id) AS question_count
		FROM exams e
		ORDER BY e.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query exams: %w", err)
	}
	defer rows.Close()

	items := make([]Exam, 0)
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.DurationMin, &e.IsPublished, &e.CreatedAt, &e.UpdatedAt, &e.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exams: %w", err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Exam, []ExamQuestion, error) {
	if id <= 0 {
		return nil, nil, ErrInvalidInput
	}

	var exam Exam
	err := s.db.QueryRowContext(ctx, `
		SELECT e.id, e.title, e.description, e.duration_min, e.is_published, e.created_at, e.updated_at,
			(SELECT COUNT(*) FROM exam_questions eq WHERE eq.exam_id = e.id) AS question_count
		FROM exams e
		WHERE e.id = $1
	`, id).Scan(&exam.ID, &exam.Title, &exam.Description, &exam.DurationMin, &exam.IsPublished, &exam.CreatedAt, &exam.UpdatedAt, &exam.QuestionCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrExamNotFound
		}
		return nil, nil, fmt.Errorf("load exam: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT eq.question_id, eq.position, q.content, q.category_id, q.group_id
		FROM exam_questions eq
		JOIN questions q ON q.id = eq.question_id
		WHERE eq.exam_id = $1
		ORDER BY eq.position ASC
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query exam questions: %w", err)
	}
	defer rows.Close()

	questions := make([]ExamQuestion, 0)
	for rows.Next() {
		var q ExamQuestion
		var groupID sql.NullInt64
		if err := rows.Scan(&q.QuestionID, &q.Position, &q.Content, &q.CategoryID, &groupID); err != nil {
			return nil, nil, fmt.Errorf("scan exam question: %w", err)
		}
		if groupID.Valid {
			q.GroupID = &groupID.Int64
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate exam questions: %w", err)
	}
	return &exam, questions, nil
}

func (s *Service) SetPublished(ctx context.Context, id int64, published bool) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	var updated int64
	if err := s.db.QueryRowContext(ctx, `
		UPDATE exams SET is_published = $2, updated_at = now()
		WHERE id = $1
		RETURNING id
	`, id, published).Scan(&updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrExamNotFound
		}
		return fmt.Errorf("publish exam: %w", err)
	}
	return nil
}

// AttachQuestion appends a question to the end of the exam sheet.
func (s *Service) AttachQuestion(ctx context.Context, examID, questionID int64) error {
	if examID <= 0 || questionID <= 0 {
		return ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockExam(ctx, tx, examID); err != nil {
		return err
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM questions WHERE id = $1)
	`, questionID).Scan(&exists); err != nil {
		return fmt.Errorf("check question: %w", err)
	}
	if !exists {
		return ErrQuestionNotFound
	}

	var attached bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM exam_questions WHERE exam_id = $1 AND question_id = $2)
	`, examID, questionID).Scan(&attached); err != nil {
		return fmt.Errorf("check attachment: %w", err)
	}
	if attached {
		return ErrAlreadyAttached
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO exam_questions (exam_id, question_id, position)
		SELECT $1, $2, COALESCE(MAX(position), 0) + 1
		FROM exam_questions WHERE exam_id = $1
	`, examID, questionID); err != nil {
		return fmt.Errorf("attach question: %w", err)
	}
	return tx.Commit()
}

func (s *Service) DetachQuestion(ctx context.Context, examID, questionID int64) error {
	if examID <= 0 || questionID <= 0 {
		return ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockExam(ctx, tx, examID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM exam_questions WHERE exam_id = $1 AND question_id = $2
	`, examID, questionID)
	if err != nil {
		return fmt.Errorf("detach question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuestionNotFound
	}

	// Close the gap so positions stay dense.
	if _, err := tx.ExecContext(ctx, `
		UPDATE exam_questions eq
		SET position = ranked.rn
		FROM (
			SELECT question_id, ROW_NUMBER() OVER (ORDER BY position ASC) AS rn
			FROM exam_questions WHERE exam_id = $1
		) ranked
		WHERE eq.exam_id = $1 AND eq.question_id = ranked.question_id
	`, examID); err != nil {
		return fmt.Errorf("compact positions: %w", err)
	}
	return tx.Commit()
}

// Reorder replaces the full ordering. The slice must contain exactly the
// attached question ids, each once.
func (s *Service) Reorder(ctx context.Context, examID int64, questionIDs []int64) error {
	if examID <= 0 || len(questionIDs) == 0 {
		return ErrInvalidInput
	}
	seen := make(map[int64]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		if id <= 0 {
			return ErrInvalidInput
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate question id %d", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockExam(ctx, tx, examID); err != nil {
		return err
	}

	var attached int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM exam_questions WHERE exam_id = $1
	`, examID).Scan(&attached); err != nil {
		return fmt.Errorf("count attachments: %w", err)
	}
	if attached != len(questionIDs) {
		return fmt.Errorf("%w: ordering lists %d questions, exam has %d", ErrInvalidInput, len(questionIDs), attached)
	}

	for i, questionID := range questionIDs {
		res, err := tx.ExecContext(ctx, `
			UPDATE exam_questions SET position = $3
			WHERE exam_id = $1 AND question_id = $2
		`, examID, questionID, i+1)
		if err != nil {
			return fmt.Errorf("reorder question %d: %w", questionID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: question %d not attached", ErrQuestionNotFound, questionID)
		}
	}
	return tx.Commit()
}

func lockExam(ctx context.Context, tx *sql.Tx, examID int64) error {
	var id int64
	if err := tx.QueryRowContext(ctx, `
		SELECT id FROM exams WHERE id = $1 FOR UPDATE
	`, examID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrExamNotFound
		}
		return fmt.Errorf("lock exam: %w", err)
	}
	return nil
}
