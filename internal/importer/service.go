package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"toeicbank/internal/app/logger"
	"toeicbank/internal/category"
	"toeicbank/internal/media"
)

// Config carries the import tuning knobs. Threshold and window sizes encode
// product decisions, not algorithmic necessities, so they stay configurable.
type Config struct {
	SimilarityThreshold float64
	DuplicateWindow     int
	LengthRatio         float64
	UploadConcurrency   int
	UploadFolder        string
	StagingSweepAfter   time.Duration
}

func (c Config) withDefaults() Config {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		c.SimilarityThreshold = 0.85
	}
	if c.DuplicateWindow <= 0 {
		c.DuplicateWindow = 500
	}
	if c.LengthRatio <= 0 || c.LengthRatio >= 1 {
		c.LengthRatio = 0.25
	}
	if c.UploadConcurrency <= 0 {
		c.UploadConcurrency = 8
	}
	if c.UploadFolder == "" {
		c.UploadFolder = "question-bank"
	}
	if c.StagingSweepAfter <= 0 {
		c.StagingSweepAfter = 24 * time.Hour
	}
	return c
}

// StagedMedia is an upload recorded in the reconciliation table whose batch
// may or may not have committed.
type StagedMedia struct {
	ID       int64
	PublicID string
	Kind     string
}

// Store is the relational side of the pipeline: read-only projections for
// duplicate checks plus the single-transaction batch insert.
type Store interface {
	ActiveCategories(ctx context.Context) ([]category.Category, error)
	RecentQuestions(ctx context.Context, categoryID int64, limit int) ([]ExistingQuestionLite, error)
	RecentGroups(ctx context.Context, categoryID int64, limit int) ([]ExistingGroupLite, error)
	RecentAnswerSets(ctx context.Context, categoryID int64, limit int) ([]ExistingAnswerSetLite, error)
	SaveBatch(ctx context.Context, batch *EntityBatch) error
	OrphanStagedMedia(ctx context.Context, olderThan time.Time) ([]StagedMedia, error)
	DeleteStagedMedia(ctx context.Context, ids []int64) error
}

// ImportMetrics receives the totals of every committed batch.
type ImportMetrics interface {
	RecordImport(questions, groups, skipped int)
}

type Service struct {
	store    Store
	uploader media.Uploader
	cfg      Config
	log      *logger.Logger
	metrics  ImportMetrics
}

func NewService(store Store, uploader media.Uploader, cfg Config, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		uploader: uploader,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// WithMetrics attaches an optional batch counter sink.
func (s *Service) WithMetrics(m ImportMetrics) *Service {
	s.metrics = m
	return s
}

// PreviewReport is the read-only review document returned before commit.
// TotalQuestions counts group sub-questions individually so reviewers see
// how many questions the batch really carries.
type PreviewReport struct {
	Sheets         []SheetPreview `json:"sheets"`
	HasError       bool           `json:"has_error"`
	TotalItems     int            `json:"total_items"`
	TotalQuestions int            `json:"total_questions"`
	MissingMedia   []string       `json:"missing_media"`
	Fatal          *ImportError   `json:"fatal,omitempty"`
}

// Preview parses and validates an uploaded archive without side effects.
// It always returns a full report, even when every item carries errors.
func (s *Service) Preview(ctx context.Context, archive []byte) (*PreviewReport, error) {
	res, err := s.parseAndValidate(ctx, archive)
	if err != nil {
		return nil, err
	}
	return assemblePreview(res), nil
}

// Import runs the same parse/validate path as Preview, then hands the
// result to the executor. A batch with any unresolved error is refused
// before any upload or database call.
func (s *Service) Import(ctx context.Context, archive []byte) (*ImportResult, error) {
	res, err := s.parseAndValidate(ctx, archive)
	if err != nil {
		return nil, err
	}
	if res.HasError() {
		return blockedResult(res), nil
	}
	return s.executeImport(ctx, res)
}

// parseAndValidate is the shared pipeline stage: extract, index media,
// locate and parse the workbook, validate. Preview and import both go
// through here so the committed batch is exactly what was previewed.
func (s *Service) parseAndValidate(ctx context.Context, archive []byte) (*ParseResult, error) {
	categories, err := s.store.ActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	res := &ParseResult{MissingMedia: []string{}}
	err = extractArchive(archive, func(root string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		wbPath, err := locateWorkbook(root)
		if err != nil {
			if errors.Is(err, ErrWorkbookNotFound) {
				e := fatalError(CodeMissingWorkbook, "archive contains no spreadsheet")
				res.Fatal = &e
				return nil
			}
			return err
		}

		index, err := buildMediaIndex(root)
		if err != nil {
			return err
		}

		wb, err := excelize.OpenFile(wbPath)
		if err != nil {
			return fmt.Errorf("open workbook: %w", err)
		}
		defer func() { _ = wb.Close() }()

		sheets, err := parseWorkbook(wb, categories)
		if err != nil {
			return err
		}
		res.Sheets = sheets

		if err := ctx.Err(); err != nil {
			return err
		}

		questions, groups, answerSets, err := s.loadExisting(ctx, res)
		if err != nil {
			return err
		}
		newValidator(s.cfg, index, questions, groups, answerSets).validate(res)

		// Snapshot media bytes before the extraction dir disappears.
		res.Media, res.MediaKinds, err = index.Snapshot()
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidArchive) {
			e := fatalError(CodeInvalidArchive, "%v", err)
			return &ParseResult{MissingMedia: []string{}, Fatal: &e}, nil
		}
		return nil, err
	}
	return res, nil
}

// loadExisting pulls the bounded recent window of stored content for every
// category the workbook touched.
func (s *Service) loadExisting(ctx context.Context, res *ParseResult) ([]ExistingQuestionLite, []ExistingGroupLite, []ExistingAnswerSetLite, error) {
	seen := make(map[int64]struct{})
	var questions []ExistingQuestionLite
	var groups []ExistingGroupLite
	var answerSets []ExistingAnswerSetLite
	for i := range res.Sheets {
		catID := res.Sheets[i].CategoryID
		if catID <= 0 {
			continue
		}
		if _, ok := seen[catID]; ok {
			continue
		}
		seen[catID] = struct{}{}

		qs, err := s.store.RecentQuestions(ctx, catID, s.cfg.DuplicateWindow)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load recent questions: %w", err)
		}
		questions = append(questions, qs...)

		gs, err := s.store.RecentGroups(ctx, catID, s.cfg.DuplicateWindow)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load recent groups: %w", err)
		}
		groups = append(groups, gs...)

		as, err := s.store.RecentAnswerSets(ctx, catID, s.cfg.DuplicateWindow)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load recent answer sets: %w", err)
		}
		answerSets = append(answerSets, as...)
	}
	return questions, groups, answerSets, nil
}

func assemblePreview(res *ParseResult) *PreviewReport {
	report := &PreviewReport{
		Sheets:       res.Sheets,
		HasError:     res.HasError(),
		TotalItems:   res.TotalItems(),
		MissingMedia: res.sortedMissingMedia(),
		Fatal:        res.Fatal,
	}
	for i := range res.Sheets {
		for _, item := range res.Sheets[i].Items {
			switch it := item.(type) {
			case *SingleQuestion:
				report.TotalQuestions++
			case *QuestionGroup:
				report.TotalQuestions += len(it.Subs)
			}
		}
	}
	return report
}

func blockedResult(res *ParseResult) *ImportResult {
	result := &ImportResult{
		Success: false,
		Message: "import blocked: the batch contains unresolved validation errors",
	}
	if res.Fatal != nil {
		result.Failures = append(result.Failures, ImportFailure{
			Reason:  res.Fatal.Code,
			Details: []string{res.Fatal.Message},
		})
		result.TotalFailed++
	}
	for i := range res.Sheets {
		sheet := &res.Sheets[i]
		if sheet.FatalError != nil {
			result.Failures = append(result.Failures, ImportFailure{
				Sheet:   sheet.SheetName,
				Reason:  sheet.FatalError.Code,
				Details: []string{sheet.FatalError.Message},
			})
			result.TotalFailed++
			continue
		}
		for _, item := range sheet.Items {
			if !item.HasError() {
				continue
			}
			result.TotalFailed++
			result.Failures = append(result.Failures, ImportFailure{
				Sheet:   sheet.SheetName,
				Reason:  "validation",
				Details: itemErrorMessages(item),
			})
		}
	}
	return result
}

func itemErrorMessages(item PreviewItem) []string {
	var out []string
	switch it := item.(type) {
	case *SingleQuestion:
		for _, e := range it.Errors {
			out = append(out, fmt.Sprintf("row %d: %s", e.Row, e.Message))
		}
	case *QuestionGroup:
		for _, e := range it.Errors {
			out = append(out, fmt.Sprintf("row %d: %s", e.Row, e.Message))
		}
		for i := range it.Subs {
			for _, e := range it.Subs[i].Errors {
				out = append(out, fmt.Sprintf("row %d: %s", e.Row, e.Message))
			}
		}
	}
	return out
}
