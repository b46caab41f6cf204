package importer

import (
	"context"
	"errors"
	"io"
	"net/http"

	"toeicbank/internal/app/apiresp"
)

// maxArchiveBytes bounds the uploaded archive; typical batches with audio
// run tens of megabytes.
const maxArchiveBytes = 256 << 20

type Handler struct {
	svc importService
}

type importService interface {
	Preview(ctx context.Context, archive []byte) (*PreviewReport, error)
	Import(ctx context.Context, archive []byte) (*ImportResult, error)
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Preview parses and validates the uploaded archive and returns the full
// report, whatever its error count. 200 even for fully-errored batches:
// the report is the product.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	blob, ok := readArchive(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Preview(r.Context(), blob)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "preview failed")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, report)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	blob, ok := readArchive(w, r)
	if !ok {
		return
	}
	result, err := h.svc.Import(r.Context(), blob)
	if err != nil {
		if errors.Is(err, ErrBatchHasErrors) {
			apiresp.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	if !result.Success {
		apiresp.WriteOK(w, r, http.StatusUnprocessableEntity, result)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, result)
}

func readArchive(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxArchiveBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid multipart body")
		return nil, false
	}
	file, _, err := r.FormFile("archive")
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "archive file is required")
		return nil, false
	}
	defer func() { _ = file.Close() }()

	blob, err := io.ReadAll(file)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "could not read archive")
		return nil, false
	}
	if len(blob) == 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "archive is empty")
		return nil, false
	}
	return blob, true
}
