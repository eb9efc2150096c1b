package index

import (
	"errors"
	"os"

	"github.com/hyperjump/astrabot/internal/storage"
)

// Status summarizes the persisted store of one collection.
type Status struct {
	Collection string    `json:"collection"`
	Dir        string    `json:"dir"`
	Present    bool      `json:"present"`
	Manifest   *Manifest `json:"manifest,omitempty"`
	DiskBytes  int64     `json:"disk_bytes"`
	Error      string    `json:"error,omitempty"`
}

// Inspect reads the store of collection without opening it.
func (b *Builder) Inspect(collection string) Status {
	dir := b.Dir(collection)
	st := Status{Collection: collection, Dir: dir}
	m, err := ReadManifest(dir)
	switch {
	case err == nil:
		st.Present = true
		st.Manifest = m
	case !errors.Is(err, os.ErrNotExist):
		st.Error = err.Error()
	}
	if n, err := storage.DiskUsageBytes(dir); err == nil {
		st.DiskBytes = n
	}
	return st
}
