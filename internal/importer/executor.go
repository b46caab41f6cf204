package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"toeicbank/internal/media"
)

// ErrBatchHasErrors guards the all-or-nothing gate: an errored batch is
// refused before any upload or persistence call.
var ErrBatchHasErrors = errors.New("batch has unresolved errors")

type MediaRow struct {
	FileName string
	URL      string
	PublicID string
	Kind     string
}

type NewAnswer struct {
	Content    string
	IsCorrect  bool
	OrderIndex int
}

type NewQuestion struct {
	CategoryID  int64
	SubNumber   int
	Content     string
	Explanation string
	Tags        string
	AudioURL    string
	ImageURL    string
	Answers     []NewAnswer
	Media       []MediaRow
}

type NewGroup struct {
	CategoryID int64
	Title      string
	Content    string
	AudioURL   string
	ImageURL   string
	Questions  []NewQuestion
	Media      []MediaRow
}

// EntityBatch is the in-memory entity graph committed in one transaction.
// Staging mirrors every phase-1 upload so a later sweep can reconcile
// uploads whose batch never committed.
type EntityBatch struct {
	BatchID   string
	Questions []NewQuestion
	Groups    []NewGroup
	Staging   []MediaRow
}

type ImportFailure struct {
	Sheet   string   `json:"sheet,omitempty"`
	Reason  string   `json:"reason"`
	Details []string `json:"details,omitempty"`
}

// ImportResult counts one group as one import regardless of how many
// sub-questions it carries.
type ImportResult struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	TotalImported int             `json:"total_imported"`
	TotalSkipped  int             `json:"total_skipped"`
	TotalFailed   int             `json:"total_failed"`
	Failures      []ImportFailure `json:"failures,omitempty"`
}

type mediaUpload struct {
	url      string
	publicID string
	kind     string
}

// executeImport turns a validated parse result into persisted entities:
// phase 1 uploads media concurrently outside any transaction, phase 2
// builds the entity graph in memory, phase 3 commits it atomically.
// Media uploaded in phase 1 is not deleted when phase 3 fails; the staging
// table plus SweepOrphanMedia reconcile that window.
func (s *Service) executeImport(ctx context.Context, res *ParseResult) (*ImportResult, error) {
	if res.HasError() {
		return nil, ErrBatchHasErrors
	}

	uploads, err := s.uploadMedia(ctx, res)
	if err != nil {
		return nil, err
	}

	batch, result := s.buildBatch(res, uploads)
	batch.BatchID = uuid.NewString()

	if err := s.store.SaveBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("commit import batch: %w", err)
	}

	result.Success = true
	result.Message = fmt.Sprintf("imported %d items (%d skipped)", result.TotalImported, result.TotalSkipped)
	if s.metrics != nil {
		s.metrics.RecordImport(len(batch.Questions), len(batch.Groups), result.TotalSkipped)
	}
	if s.log != nil {
		s.log.Info("import committed",
			"batch_id", batch.BatchID,
			"imported", result.TotalImported,
			"skipped", result.TotalSkipped,
			"media", len(uploads))
	}
	return result, nil
}

// uploadMedia pushes every distinct archive media file to the remote store
// with a bounded fan-out. Individual failures are collected rather than
// aborting the group; any failure at all fails the whole import before an
// entity is built.
func (s *Service) uploadMedia(ctx context.Context, res *ParseResult) (map[string]mediaUpload, error) {
	names := make([]string, 0, len(res.Media))
	for name := range res.Media {
		names = append(names, name)
	}
	sort.Strings(names)

	var mu sync.Mutex
	uploads := make(map[string]mediaUpload, len(names))
	var failures []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.UploadConcurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			kind := media.KindImage
			if res.MediaKinds[name] == "audio" {
				kind = media.KindAudio
			}
			result, err := s.uploader.Upload(gctx, kind, bytes.NewReader(res.Media[name]), s.cfg.UploadFolder)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", name, err))
				return nil
			}
			uploads[name] = mediaUpload{url: result.URL, publicID: result.PublicID, kind: string(kind)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(uploads) != len(names) {
		sort.Strings(failures)
		return nil, fmt.Errorf("media upload failed for %d of %d files: %s",
			len(names)-len(uploads), len(names), strings.Join(failures, "; "))
	}
	return uploads, nil
}

// buildBatch is pure: it walks the validated preview tree and synthesizes
// the entity graph, resolving media references against phase-1 uploads
// with the same key-then-extension lookup validation used.
func (s *Service) buildBatch(res *ParseResult, uploads map[string]mediaUpload) (*EntityBatch, *ImportResult) {
	batch := &EntityBatch{}
	result := &ImportResult{}

	for name, up := range uploads {
		batch.Staging = append(batch.Staging, MediaRow{
			FileName: name,
			URL:      up.url,
			PublicID: up.publicID,
			Kind:     up.kind,
		})
	}
	sort.Slice(batch.Staging, func(i, j int) bool { return batch.Staging[i].FileName < batch.Staging[j].FileName })

	for i := range res.Sheets {
		sheet := &res.Sheets[i]
		if sheet.FatalError != nil {
			continue
		}
		for _, item := range sheet.Items {
			// The gate already refused errored batches; anything still
			// carrying an error here is skipped and reported, never
			// silently dropped.
			if item.HasError() {
				result.TotalSkipped++
				result.Failures = append(result.Failures, ImportFailure{
					Sheet:   sheet.SheetName,
					Reason:  "residual validation errors",
					Details: itemErrorMessages(item),
				})
				continue
			}
			switch it := item.(type) {
			case *SingleQuestion:
				batch.Questions = append(batch.Questions, s.buildQuestion(it, uploads))
				result.TotalImported++
			case *QuestionGroup:
				batch.Groups = append(batch.Groups, s.buildGroup(it, uploads))
				result.TotalImported++
			}
		}
	}
	return batch, result
}

func (s *Service) buildQuestion(q *SingleQuestion, uploads map[string]mediaUpload) NewQuestion {
	out := NewQuestion{
		CategoryID:  q.CategoryID,
		Content:     q.Content,
		Explanation: q.Explanation,
		Tags:        q.Tags,
	}
	out.AudioURL, out.Media = attachMedia(out.Media, q.AudioRef, uploads)
	out.ImageURL, out.Media = attachMedia(out.Media, q.ImageRef, uploads)
	for _, a := range q.Answers {
		out.Answers = append(out.Answers, NewAnswer{Content: a.Content, IsCorrect: a.IsCorrect, OrderIndex: a.OrderIndex})
	}
	return out
}

func (s *Service) buildGroup(g *QuestionGroup, uploads map[string]mediaUpload) NewGroup {
	out := NewGroup{
		CategoryID: g.CategoryID,
		Title:      g.Title,
		Content:    g.Content,
	}
	out.AudioURL, out.Media = attachMedia(out.Media, g.AudioRef, uploads)
	out.ImageURL, out.Media = attachMedia(out.Media, g.ImageRef, uploads)
	for _, sub := range g.Subs {
		q := NewQuestion{
			CategoryID:  g.CategoryID,
			SubNumber:   sub.Number,
			Content:     sub.Content,
			Explanation: sub.Explanation,
		}
		for _, a := range sub.Answers {
			q.Answers = append(q.Answers, NewAnswer{Content: a.Content, IsCorrect: a.IsCorrect, OrderIndex: a.OrderIndex})
		}
		out.Questions = append(out.Questions, q)
	}
	return out
}

// attachMedia resolves one reference: inline URLs pass through, file names
// resolve to their phase-1 upload and produce a media row.
func attachMedia(rows []MediaRow, ref string, uploads map[string]mediaUpload) (string, []MediaRow) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", rows
	}
	if isInlineURL(ref) {
		return ref, rows
	}
	key, up, ok := resolveUpload(uploads, ref)
	if !ok {
		return "", rows
	}
	rows = append(rows, MediaRow{FileName: key, URL: up.url, PublicID: up.publicID, Kind: up.kind})
	return up.url, rows
}

// resolveUpload mirrors MediaIndex.Resolve over the upload result map:
// exact normalized key first, then the name with each allowed extension.
func resolveUpload(uploads map[string]mediaUpload, ref string) (string, mediaUpload, bool) {
	key := normalizeMediaKey(ref)
	if up, ok := uploads[key]; ok {
		return key, up, true
	}
	for ext := range audioExts {
		if up, ok := uploads[key+ext]; ok {
			return key + ext, up, true
		}
	}
	for ext := range imageExts {
		if up, ok := uploads[key+ext]; ok {
			return key + ext, up, true
		}
	}
	return "", mediaUpload{}, false
}

// SweepOrphanMedia deletes remote media whose staging rows are older than
// the configured threshold and no longer referenced by any entity, then
// clears the staging rows. Returns the number of assets removed.
func (s *Service) SweepOrphanMedia(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.StagingSweepAfter)
	orphans, err := s.store.OrphanStagedMedia(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list orphan media: %w", err)
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	deleted := make([]int64, 0, len(orphans))
	for _, o := range orphans {
		if err := ctx.Err(); err != nil {
			break
		}
		kind := media.KindImage
		if o.Kind == "audio" {
			kind = media.KindAudio
		}
		if err := s.uploader.Delete(ctx, kind, o.PublicID); err != nil {
			if s.log != nil {
				s.log.Warn("orphan media delete failed", "public_id", o.PublicID, "error", err)
			}
			continue
		}
		deleted = append(deleted, o.ID)
	}
	if len(deleted) == 0 {
		return 0, nil
	}
	if err := s.store.DeleteStagedMedia(ctx, deleted); err != nil {
		return len(deleted), fmt.Errorf("clear staged media rows: %w", err)
	}
	return len(deleted), nil
}
