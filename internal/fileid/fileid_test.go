package fileid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSourceID(t *testing.T) {
	id1 := SourceID("lynparza", "fachinfo.pdf")
	id2 := SourceID("lynparza", "fachinfo.pdf")
	if id1 != id2 {
		t.Errorf("same input should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if len(id1) != len(prefix)+32 {
		t.Errorf("unexpected ID length: %q", id1)
	}
}

func TestSourceID_distinct(t *testing.T) {
	tests := []struct {
		name       string
		colA, relA string
		colB, relB string
	}{
		{"different files", "kfe", "a.txt", "kfe", "b.txt"},
		{"different collections", "kfe", "a.txt", "vu_gc", "a.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if SourceID(tt.colA, tt.relA) == SourceID(tt.colB, tt.relB) {
				t.Error("expected different IDs")
			}
		})
	}
}

func TestSourceID_normalized(t *testing.T) {
	want := SourceID("kfe", "sub/doc.txt")
	for _, p := range []string{"sub/./doc.txt", "sub//doc.txt", "./sub/doc.txt"} {
		if got := SourceID("kfe", p); got != want {
			t.Errorf("SourceID(%q) = %q, want %q", p, got, want)
		}
	}
}

func TestUnitID(t *testing.T) {
	src := SourceID("lynparza", "info.txt")
	a := UnitID(src, 0)
	if a != UnitID(src, 0) {
		t.Error("UnitID should be deterministic")
	}
	if a == UnitID(src, 1) {
		t.Error("different ordinals should give different IDs")
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("UnitID is not a UUID: %v", err)
	}
	if parsed.Version() != 5 {
		t.Errorf("expected name-based v5 UUID, got version %d", parsed.Version())
	}
}
