// Package fileid derives stable identifiers for source documents and the units cut from them.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

const prefix = "src:"

// unitNamespace scopes unit UUIDs so they never collide with other name-based UUIDs.
var unitNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("astrabot/document-unit"))

// SourceID returns a stable ID for a file inside a collection. The path is taken relative to
// the collection root and slash-normalized, so moving the whole collection keeps IDs unchanged.
func SourceID(collection, relPath string) string {
	normalized := filepath.ToSlash(filepath.Clean(relPath))
	hash := sha256.Sum256([]byte(collection + "/" + normalized))
	return prefix + hex.EncodeToString(hash[:16])
}

// UnitID returns a deterministic UUID for the n-th unit of a source.
func UnitID(sourceID string, n int) string {
	return uuid.NewSHA1(unitNamespace, []byte(sourceID+"#"+strconv.Itoa(n))).String()
}
