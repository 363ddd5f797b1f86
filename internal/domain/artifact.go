package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Artifact is an ingested document; identity is (graph, source, content hash).
type Artifact struct {
	ArtifactID  string `json:"artifact_id"`
	GraphID     string `json:"graph_id"`
	SourceID    string `json:"source_id"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	ContentHash string `json:"content_hash"`
}

// ContentHash hashes whitespace-normalized lowercase text, so identical
// normalized content always yields the same artifact identity.
func ContentHash(text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	h := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(h[:])
}
