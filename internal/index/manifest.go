package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/astrabot/internal/models"
)

// File layout of a persisted collection store.
const (
	ManifestFile = "manifest.yaml"
	PassagesFile = "passages.db"
	VectorsFile  = "vectors.bin"
	KeywordDir   = "keyword.bleve"
)

// Manifest describes a persisted store. It is written last, so a store without one is incomplete.
type Manifest struct {
	Collection    string    `yaml:"collection" json:"collection"`
	Fingerprint   string    `yaml:"fingerprint" json:"fingerprint"`
	EmbedderModel string    `yaml:"embedder_model" json:"embedder_model"`
	Dimensions    int       `yaml:"dimensions" json:"dimensions"`
	UnitCount     int       `yaml:"unit_count" json:"unit_count"`
	Keyword       bool      `yaml:"keyword" json:"keyword"`
	CreatedAt     time.Time `yaml:"created_at" json:"created_at"`
}

// Fingerprint hashes every unit's source ID and content in order.
func Fingerprint(units []*models.DocumentUnit) string {
	h := sha256.New()
	for _, u := range units {
		h.Write([]byte(u.SourceID))
		h.Write([]byte{0})
		h.Write([]byte(u.Content))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ReadManifest reads the manifest in dir. A missing file wraps os.ErrNotExist.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Collection == "" || m.Fingerprint == "" || m.Dimensions <= 0 || m.UnitCount <= 0 {
		return nil, fmt.Errorf("incomplete manifest in %s", dir)
	}
	return &m, nil
}

func writeManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644)
}
