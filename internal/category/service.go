package category

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
	ErrCategoryNotFound = errors.New("category not found")
	ErrDuplicateName    = errors.New("category name already exists")
)

type Category struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	LayoutKind LayoutKind `json:"layout_kind"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type CreateCategoryInput struct {
	Name       string
	LayoutKind string
}

type UpdateCategoryInput struct {
	ID         int64
	Name       string
	LayoutKind string
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, in CreateCategoryInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	kind, err := ParseLayoutKind(strings.TrimSpace(in.LayoutKind))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM categories WHERE lower(name) = lower($1) AND is_active = TRUE)
	`, name).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check category name: %w", err)
	}
	if exists {
		return nil, ErrDuplicateName
	}

	var out Category
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, layout_kind, is_active, created_at, updated_at)
		VALUES ($1, $2, TRUE, now(), now())
		RETURNING id, name, layout_kind, is_active, created_at, updated_at
	`, name, string(kind)).Scan(&out.ID, &out.Name, &out.LayoutKind, &out.IsActive, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return &out, nil
}

func (s *Service) List(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, layout_kind, is_active, created_at, updated_at
		FROM categories
		WHERE is_active = TRUE
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	items := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.LayoutKind, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return items, nil
}

func (s *Service) Update(ctx context.Context, in UpdateCategoryInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if in.ID <= 0 || name == "" {
		return nil, ErrInvalidInput
	}
	kind, err := ParseLayoutKind(strings.TrimSpace(in.LayoutKind))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var out Category
	if err := s.db.QueryRowContext(ctx, `
		UPDATE categories
		SET name = $2, layout_kind = $3, updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING id, name, layout_kind, is_active, created_at, updated_at
	`, in.ID, name, string(kind)).Scan(&out.ID, &out.Name, &out.LayoutKind, &out.IsActive, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	return &out, nil
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	var deletedID int64
	if err := s.db.QueryRowContext(ctx, `
		UPDATE categories
		SET is_active = FALSE, updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING id
	`, id).Scan(&deletedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("deactivate category: %w", err)
	}
	return nil
}
