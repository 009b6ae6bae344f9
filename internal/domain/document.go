package domain

// SparseVector holds term-level index/weight pairs produced by the sparse
// embedder (BM42-style attention weights).
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// ChunkMetadata carries the well-known citation fields of an indexed chunk.
// Anything else stored in the index payload lands in Extra.
type ChunkMetadata struct {
	SourceFile  string
	DocType     string
	Description string
	Extra       map[string]string
}

// ScoredDocument is a retrieved chunk with the score of the stage that
// produced it. Scores from different stages (dense similarity, hybrid
// rescoring, cross-encoder) are never comparable; each stage derives its own
// ordering.
type ScoredDocument struct {
	ID       string
	Content  string
	Metadata ChunkMetadata
	Score    float32
}

const (
	payloadContentField     = "content"
	payloadSourceFileField  = "source_file"
	payloadDocTypeField     = "doc_type"
	payloadDescriptionField = "description"
)

// DocumentFromPayload builds a ScoredDocument from a raw index point payload.
// A chunk without a source_file identifier falls back to its point id so that
// deduplication and citation always have a non-empty key.
func DocumentFromPayload(id string, score float32, payload map[string]any) ScoredDocument {
	meta := ChunkMetadata{
		SourceFile:  payloadString(payload, payloadSourceFileField),
		DocType:     payloadString(payload, payloadDocTypeField),
		Description: payloadString(payload, payloadDescriptionField),
	}
	if meta.SourceFile == "" {
		meta.SourceFile = id
	}

	for key, value := range payload {
		switch key {
		case payloadContentField, payloadSourceFileField, payloadDocTypeField, payloadDescriptionField:
			continue
		}
		if s, ok := value.(string); ok {
			if meta.Extra == nil {
				meta.Extra = make(map[string]string)
			}
			meta.Extra[key] = s
		}
	}

	return ScoredDocument{
		ID:       id,
		Content:  payloadString(payload, payloadContentField),
		Metadata: meta,
		Score:    score,
	}
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
