// Package models defines core data structures for document units, passages, conversation turns
// and the error taxonomy shared across the assistant.
package models

import "time"

// DocumentUnit is a normalized chunk of source text plus its provenance.
// Units are produced by the loader and never mutated afterwards.
type DocumentUnit struct {
	ID         string    `json:"id" db:"id"`
	Collection string    `json:"collection" db:"collection"`
	SourceID   string    `json:"source_id" db:"source_id"`
	SourcePath string    `json:"source_path" db:"source_path"`
	Title      string    `json:"title" db:"title"`
	Content    string    `json:"content" db:"content"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Collection describes a named group of source documents and the capability built over it.
type Collection struct {
	Name        string   `json:"name" yaml:"name"`
	FullName    string   `json:"full_name" yaml:"full_name"`
	Description string   `json:"description" yaml:"description"`
	SourceDir   string   `json:"source_dir" yaml:"source_dir"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords"`
}
