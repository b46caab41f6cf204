package importer

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidArchive = errors.New("invalid archive")

var (
	spreadsheetExts = map[string]struct{}{".xlsx": {}, ".xls": {}}
	audioExts       = map[string]struct{}{".mp3": {}, ".wav": {}, ".m4a": {}, ".ogg": {}}
	imageExts       = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}}
)

func isSpreadsheetExt(ext string) bool { _, ok := spreadsheetExts[ext]; return ok }
func isAudioExt(ext string) bool       { _, ok := audioExts[ext]; return ok }
func isImageExt(ext string) bool       { _, ok := imageExts[ext]; return ok }

func isAllowedExt(ext string) bool {
	return isSpreadsheetExt(ext) || isAudioExt(ext) || isImageExt(ext)
}

// extractArchive unpacks the uploaded zip into a fresh temporary directory
// and hands the directory to fn. The directory is removed on every exit
// path, so nothing downstream may keep paths into it.
func extractArchive(blob []byte, fn func(root string) error) error {
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	root, err := os.MkdirTemp("", "qbank-import-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(root) }()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rel, err := safeRelPath(f.Name)
		if err != nil {
			return err
		}
		if !isAllowedExt(strings.ToLower(filepath.Ext(rel))) {
			continue
		}
		if err := writeEntry(f, filepath.Join(root, rel)); err != nil {
			return err
		}
	}

	return fn(root)
}

// safeRelPath rejects any entry whose normalized path escapes the
// extraction root.
func safeRelPath(name string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: unsafe entry path %q", ErrInvalidArchive, name)
	}
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if seg == ".." {
			return "", fmt.Errorf("%w: unsafe entry path %q", ErrInvalidArchive, name)
		}
	}
	return rel, nil
}

func writeEntry(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create entry dir: %w", err)
	}
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", f.Name, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create extracted file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close extracted file: %w", err)
	}
	return nil
}
