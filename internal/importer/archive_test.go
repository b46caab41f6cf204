package importer

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractArchive(t *testing.T) {
	blob := buildZip(t, map[string]string{
		"questions.xlsx":  "workbook",
		"audio/q1.mp3":    "audio",
		"images/p1.jpg":   "image",
		"readme.txt":      "skipped extension",
		"scripts/run.exe": "skipped extension",
	})

	var seen []string
	err := extractArchive(blob, func(root string) error {
		return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				rel, _ := filepath.Rel(root, path)
				seen = append(seen, filepath.ToSlash(rel))
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("extractArchive: %v", err)
	}

	want := map[string]bool{"questions.xlsx": true, "audio/q1.mp3": true, "images/p1.jpg": true}
	if len(seen) != len(want) {
		t.Fatalf("extracted %v, want exactly %v", seen, want)
	}
	for _, rel := range seen {
		if !want[rel] {
			t.Errorf("unexpected extracted file %s", rel)
		}
	}
}

func TestExtractArchiveRemovesTempDir(t *testing.T) {
	blob := buildZip(t, map[string]string{"questions.xlsx": "wb"})

	var root string
	if err := extractArchive(blob, func(r string) error {
		root = r
		return nil
	}); err != nil {
		t.Fatalf("extractArchive: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("extraction dir %s still exists after return", root)
	}
}

func TestExtractArchiveRejectsTraversal(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{name: "dotdot prefix", entry: "../evil.mp3"},
		{name: "dotdot inside", entry: "audio/../../evil.mp3"},
		{name: "absolute path", entry: "/tmp/evil.mp3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			blob := buildZip(t, map[string]string{tc.entry: "x"})
			err := extractArchive(blob, func(string) error { return nil })
			if !errors.Is(err, ErrInvalidArchive) {
				t.Fatalf("extractArchive(%q) error = %v, want ErrInvalidArchive", tc.entry, err)
			}
		})
	}
}

func TestExtractArchiveRejectsGarbage(t *testing.T) {
	err := extractArchive([]byte("this is not a zip file"), func(string) error {
		t.Fatal("callback must not run for an invalid archive")
		return nil
	})
	if !errors.Is(err, ErrInvalidArchive) {
		t.Fatalf("error = %v, want ErrInvalidArchive", err)
	}
}
