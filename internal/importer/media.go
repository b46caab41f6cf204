package importer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrWorkbookNotFound = errors.New("workbook not found")

// canonicalWorkbookName is looked for at the archive root before falling
// back to the first spreadsheet found anywhere in the tree.
const canonicalWorkbookName = "questions.xlsx"

// MediaIndex maps normalized media file names to their extracted paths.
// Keys always carry their extension; stem references are handled at lookup
// time by Resolve's extension probe. First registration wins.
type MediaIndex struct {
	paths map[string]string
}

func normalizeMediaKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// buildMediaIndex walks the extracted tree collecting audio and image files.
func buildMediaIndex(root string) (*MediaIndex, error) {
	idx := &MediaIndex{paths: make(map[string]string)}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !isAudioExt(ext) && !isImageExt(ext) {
			return nil
		}
		idx.register(filepath.Base(path), path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk media tree: %w", err)
	}
	return idx, nil
}

func (m *MediaIndex) register(name, path string) {
	key := normalizeMediaKey(name)
	if key == "" {
		return
	}
	if _, exists := m.paths[key]; exists {
		return
	}
	m.paths[key] = path
}

// Resolve returns the registered key a reference maps to, trying the exact
// normalized name first and then the name with each allowed media extension
// appended. The returned key always carries its extension, so stem
// references come back as the full file name.
func (m *MediaIndex) Resolve(ref string) (string, bool) {
	key := normalizeMediaKey(ref)
	if key == "" {
		return "", false
	}
	if _, ok := m.paths[key]; ok {
		return key, true
	}
	for ext := range audioExts {
		if _, ok := m.paths[key+ext]; ok {
			return key + ext, true
		}
	}
	for ext := range imageExts {
		if _, ok := m.paths[key+ext]; ok {
			return key + ext, true
		}
	}
	return "", false
}

// Snapshot reads every indexed file into memory, keyed by its normalized
// full name. Called before the temp dir is removed.
func (m *MediaIndex) Snapshot() (map[string][]byte, map[string]string, error) {
	bytesByName := make(map[string][]byte)
	kinds := make(map[string]string)
	for key, path := range m.paths {
		ext := strings.ToLower(filepath.Ext(key))
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read media %s: %w", key, err)
		}
		bytesByName[key] = data
		if isAudioExt(ext) {
			kinds[key] = "audio"
		} else {
			kinds[key] = "image"
		}
	}
	return bytesByName, kinds, nil
}

// locateWorkbook finds the single spreadsheet to parse: the canonical name
// at the root if present, otherwise the first spreadsheet found, preferring
// .xlsx over legacy .xls.
func locateWorkbook(root string) (string, error) {
	canonical := filepath.Join(root, canonicalWorkbookName)
	if _, err := os.Stat(canonical); err == nil {
		return canonical, nil
	}

	var firstXLSX, firstXLS string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			if firstXLSX == "" {
				firstXLSX = path
			}
		case ".xls":
			if firstXLS == "" {
				firstXLS = path
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk for workbook: %w", err)
	}
	if firstXLSX != "" {
		return firstXLSX, nil
	}
	if firstXLS != "" {
		return firstXLS, nil
	}
	return "", ErrWorkbookNotFound
}
