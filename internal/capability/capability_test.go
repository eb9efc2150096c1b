package capability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hyperjump/astrabot/internal/models"
)

type fakeIndex struct {
	passages int
	err      error
	lastK    int
}

func (f *fakeIndex) Search(ctx context.Context, text string, k int) ([]*models.Passage, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.Passage, f.passages)
	for i := range out {
		out[i] = &models.Passage{Unit: &models.DocumentUnit{ID: fmt.Sprint(i), Content: text}, Rank: i + 1}
	}
	return out, nil
}

func TestCapability_Query(t *testing.T) {
	idx := &fakeIndex{passages: 5}
	c, err := New("lynparza", "Liefert Informationen über Lynparza.", idx,
		WithFullName("Lynparza"), WithKeywords(" Olaparib ", "", "PARP"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != "lynparza" || c.FullName() != "Lynparza" || c.TopK() != DefaultTopK {
		t.Errorf("unexpected capability %+v", c)
	}
	if kw := c.Keywords(); len(kw) != 2 || kw[0] != "olaparib" || kw[1] != "parp" {
		t.Errorf("Keywords = %v", kw)
	}

	passages, err := c.Query(context.Background(), "Nebenwirkungen")
	if err != nil {
		t.Fatal(err)
	}
	if len(passages) != 3 || idx.lastK != 3 {
		t.Errorf("got %d passages with k=%d, want 3", len(passages), idx.lastK)
	}
}

func TestCapability_QueryErrors(t *testing.T) {
	cause := errors.New("disk gone")
	c, _ := New("kfe", "d", &fakeIndex{err: cause})
	_, err := c.Query(context.Background(), "Darmkrebs")
	if !errors.Is(err, models.ErrToolQueryFailure) || !errors.Is(err, cause) {
		t.Errorf("expected wrapped tool failure, got %v", err)
	}

	c, _ = New("kfe", "d", &fakeIndex{})
	if _, err := c.Query(context.Background(), "  "); !errors.Is(err, models.ErrToolQueryFailure) {
		t.Errorf("empty query: %v", err)
	}
}

func TestNew_validation(t *testing.T) {
	if _, err := New("", "d", &fakeIndex{}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := New("x", "d", nil); err == nil {
		t.Error("expected error for nil index")
	}
	c, _ := New("x", "d", &fakeIndex{passages: 10}, WithTopK(5))
	if c.TopK() != 5 {
		t.Errorf("TopK = %d", c.TopK())
	}
}

func TestRegistry(t *testing.T) {
	a, _ := New("lynparza", "a", &fakeIndex{})
	b, _ := New("kfe", "b", &fakeIndex{})
	r, err := NewRegistry(a, nil, b)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 2 || fmt.Sprint(r.Names()) != "[lynparza kfe]" {
		t.Errorf("registry = %v", r.Names())
	}
	if got, ok := r.Get("kfe"); !ok || got != b {
		t.Error("Get(kfe) failed")
	}
	if _, ok := r.Get("vu_gc"); ok {
		t.Error("Get(vu_gc) should miss")
	}
	all := r.All()
	all[0] = nil
	if r.All()[0] == nil {
		t.Error("All must return a copy")
	}

	dup, _ := New("kfe", "again", &fakeIndex{})
	if _, err := NewRegistry(a, b, dup); err == nil {
		t.Error("expected duplicate name error")
	}
}
