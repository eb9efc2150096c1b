package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// fileMagic opens every persisted index file; the trailing byte is the format version.
var fileMagic = [4]byte{'A', 'V', 'X', 1}

// maxIDLen bounds ID lengths read from disk so a corrupt header cannot trigger huge allocations.
const maxIDLen = 1 << 12

// MemoryIndex is an in-memory vector index using brute-force cosine search.
// Collections hold at most a few thousand units, so exhaustive search is fast enough.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Add appends vectors with the given IDs. Vectors are copied.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for i := range vectors {
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, append([]float32(nil), vectors[i]...))
	}
	return nil
}

// Search returns the top-k vectors by cosine similarity, so remote embeddings that are not
// unit length rank the same as normalized ones. Ties keep insertion order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	results := make([]*VectorResult, 0, len(m.ids))
	for i, vec := range m.vectors {
		score := CosineSimilarity(query, vec)
		if math.IsNaN(score) {
			continue
		}
		results = append(results, &VectorResult{ID: m.ids[i], Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Save persists the index atomically: it writes path+".tmp" and renames it into place.
// Format (little endian): magic[4], dimensions u32, count u32, then per vector
// idLen u32, id bytes, dimensions*float32; followed by a CRC-32 of everything before it.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := m.writeTo(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

func (m *MemoryIndex) writeTo(f io.Writer) error {
	crc := crc32.NewIEEE()
	w := bufio.NewWriter(io.MultiWriter(f, crc))
	if _, err := w.Write(fileMagic[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	var u32 [4]byte
	putU32 := func(v uint32) error {
		binary.LittleEndian.PutUint32(u32[:], v)
		_, err := w.Write(u32[:])
		return err
	}
	if err := putU32(uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := putU32(uint32(len(m.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range m.ids {
		if err := putU32(uint32(len(id))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := w.WriteString(id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(m.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	binary.LittleEndian.PutUint32(u32[:], crc.Sum32())
	if _, err := f.Write(u32[:]); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	return nil
}

// Load replaces the in-memory contents with the index stored at path.
// Truncated files, bad checksums and dimension mismatches are reported as ErrCorrupt.
func (m *MemoryIndex) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read index file: %w", err)
	}
	if len(data) < len(fileMagic)+12 {
		return fmt.Errorf("%w: file too short", ErrCorrupt)
	}
	body, sum := data[:len(data)-4], binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	if [4]byte(body[:4]) != fileMagic {
		return fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	r := body[4:]
	next := func(n int) ([]byte, error) {
		if n > len(r) {
			return nil, fmt.Errorf("%w: unexpected end of file", ErrCorrupt)
		}
		b := r[:n]
		r = r[n:]
		return b, nil
	}
	hdr, _ := next(8)
	dim, n := binary.LittleEndian.Uint32(hdr[:4]), binary.LittleEndian.Uint32(hdr[4:])
	if int(dim) != m.dimensions {
		return fmt.Errorf("%w: file has %d dimensions, index expects %d", ErrCorrupt, dim, m.dimensions)
	}

	ids := make([]string, 0, n)
	vectors := make([][]float32, 0, n)
	for i := uint32(0); i < n; i++ {
		lenBytes, err := next(4)
		if err != nil {
			return err
		}
		idLen := binary.LittleEndian.Uint32(lenBytes)
		if idLen > maxIDLen {
			return fmt.Errorf("%w: id length %d", ErrCorrupt, idLen)
		}
		id, err := next(int(idLen))
		if err != nil {
			return err
		}
		vec, err := next(m.dimensions * 4)
		if err != nil {
			return err
		}
		ids = append(ids, string(id))
		vectors = append(vectors, bytesToFloat32Slice(vec))
	}
	if len(r) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(r))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids, m.vectors = ids, vectors
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	out := make([]byte, len(s)*4)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Dimensions returns the vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
