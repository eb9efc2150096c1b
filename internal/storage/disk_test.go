package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(manifest, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	kw := filepath.Join(dir, "keyword.bleve")
	if err := os.MkdirAll(filepath.Join(kw, "store"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(kw, "meta"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(kw, "store", "seg"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"file", []string{manifest}, 5},
		{"directory", []string{kw}, 3},
		{"file and directory", []string{manifest, kw}, 8},
		{"missing skipped", []string{manifest, filepath.Join(dir, "nonexistent"), kw}, 8},
		{"empty skipped", []string{"", manifest}, 5},
		{"none", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}
