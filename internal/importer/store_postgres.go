package importer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"toeicbank/internal/category"
)

// PostgresStore implements Store over database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ActiveCategories(ctx context.Context) ([]category.Category, error) {
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

	items := make([]category.Category, 0)
	for rows.Next() {
		var c category.Category
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

func (s *PostgresStore) RecentQuestions(ctx context.Context, categoryID int64, limit int) ([]ExistingQuestionLite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category_id, COALESCE(content, '')
		FROM questions
		WHERE category_id = $1 AND group_id IS NULL
		ORDER BY id DESC
		LIMIT $2
	`, categoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent questions: %w", err)
	}
	defer rows.Close()

	items := make([]ExistingQuestionLite, 0)
	for rows.Next() {
		var q ExistingQuestionLite
		if err := rows.Scan(&q.ID, &q.CategoryID, &q.Content); err != nil {
			return nil, fmt.Errorf("scan recent question: %w", err)
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent questions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RecentGroups(ctx context.Context, categoryID int64, limit int) ([]ExistingGroupLite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category_id, COALESCE(content, '')
		FROM question_groups
		WHERE category_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, categoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent groups: %w", err)
	}
	defer rows.Close()

	items := make([]ExistingGroupLite, 0)
	for rows.Next() {
		var g ExistingGroupLite
		if err := rows.Scan(&g.ID, &g.CategoryID, &g.Content); err != nil {
			return nil, fmt.Errorf("scan recent group: %w", err)
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent groups: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RecentAnswerSets(ctx context.Context, categoryID int64, limit int) ([]ExistingAnswerSetLite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, a.content
		FROM (
			SELECT id FROM questions
			WHERE category_id = $1
			ORDER BY id DESC
			LIMIT $2
		) q
		JOIN answers a ON a.question_id = q.id
		ORDER BY q.id DESC, a.order_index ASC
	`, categoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent answer sets: %w", err)
	}
	defer rows.Close()

	items := make([]ExistingAnswerSetLite, 0)
	var current *ExistingAnswerSetLite
	for rows.Next() {
		var questionID int64
		var content string
		if err := rows.Scan(&questionID, &content); err != nil {
			return nil, fmt.Errorf("scan recent answer set: %w", err)
		}
		if current == nil || current.QuestionID != questionID {
			items = append(items, ExistingAnswerSetLite{QuestionID: questionID})
			current = &items[len(items)-1]
		}
		current.Answers = append(current.Answers, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent answer sets: %w", err)
	}
	return items, nil
}

// SaveBatch persists the whole entity graph in one transaction: groups and
// their questions first, then standalone questions, media rows, and the
// staging rows that make phase-1 uploads reconcilable.
func (s *PostgresStore) SaveBatch(ctx context.Context, batch *EntityBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for gi := range batch.Groups {
		g := &batch.Groups[gi]
		var groupID int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO question_groups (category_id, title, content, audio_url, image_url, import_batch_id, created_at)
			VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), $6, now())
			RETURNING id
		`, g.CategoryID, g.Title, g.Content, g.AudioURL, g.ImageURL, batch.BatchID).Scan(&groupID); err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		for qi := range g.Questions {
			if err := s.insertQuestion(ctx, tx, &g.Questions[qi], &groupID, batch.BatchID); err != nil {
				return err
			}
		}
		for _, m := range g.Media {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO question_media (group_id, file_name, url, public_id, media_type, created_at)
				VALUES ($1, $2, $3, $4, $5, now())
			`, groupID, m.FileName, m.URL, m.PublicID, m.Kind); err != nil {
				return fmt.Errorf("insert group media: %w", err)
			}
		}
	}

	for qi := range batch.Questions {
		if err := s.insertQuestion(ctx, tx, &batch.Questions[qi], nil, batch.BatchID); err != nil {
			return err
		}
	}

	for _, m := range batch.Staging {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO import_media_staging (batch_id, file_name, url, public_id, media_type, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, batch.BatchID, m.FileName, m.URL, m.PublicID, m.Kind); err != nil {
			return fmt.Errorf("insert staged media: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) insertQuestion(ctx context.Context, tx *sql.Tx, q *NewQuestion, groupID *int64, batchID string) error {
	var questionID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO questions (category_id, group_id, sub_number, content, explanation, tags, audio_url, image_url, import_batch_id, created_at)
		VALUES ($1, $2, NULLIF($3, 0), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), $9, now())
		RETURNING id
	`, q.CategoryID, nullableGroupID(groupID), q.SubNumber, q.Content, q.Explanation, q.Tags, q.AudioURL, q.ImageURL, batchID).Scan(&questionID); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	for _, a := range q.Answers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO answers (question_id, content, is_correct, order_index)
			VALUES ($1, $2, $3, $4)
		`, questionID, a.Content, a.IsCorrect, a.OrderIndex); err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}

	for _, m := range q.Media {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO question_media (question_id, file_name, url, public_id, media_type, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, questionID, m.FileName, m.URL, m.PublicID, m.Kind); err != nil {
			return fmt.Errorf("insert question media: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) OrphanStagedMedia(ctx context.Context, olderThan time.Time) ([]StagedMedia, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.public_id, s.media_type
		FROM import_media_staging s
		WHERE s.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM question_media m WHERE m.public_id = s.public_id)
	`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("query orphan staged media: %w", err)
	}
	defer rows.Close()

	items := make([]StagedMedia, 0)
	for rows.Next() {
		var m StagedMedia
		if err := rows.Scan(&m.ID, &m.PublicID, &m.Kind); err != nil {
			return nil, fmt.Errorf("scan staged media: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staged media: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteStagedMedia(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM import_media_staging WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete staged media %d: %w", id, err)
		}
	}
	return nil
}

func nullableGroupID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
