package embedding

import (
	"context"
	"strings"
)

// MockEmbedder produces deterministic vectors from token hashes. Texts sharing
// vocabulary produce nearby vectors, which is enough for dedup tests and
// offline runs without the embedding API.
type MockEmbedder struct {
	MinLength int
	// Fail forces every call to return this error when set.
	Fail error
}

// Embed implements Embedder with a bag-of-words projection into 768 dims.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if m.Fail != nil {
		return nil, m.Fail
	}
	cleaned := strings.TrimSpace(text)
	minLength := m.MinLength
	if minLength <= 0 {
		minLength = 75
	}
	if len(cleaned) < minLength {
		return nil, ErrTextTooShort
	}

	vector := make([]float64, Dimensions)
	for _, token := range strings.Fields(strings.ToLower(cleaned)) {
		token = strings.Trim(token, ".,:;!?\"'()[]")
		if token == "" {
			continue
		}
		var h uint32 = 2166136261
		for i := 0; i < len(token); i++ {
			h ^= uint32(token[i])
			h *= 16777619
		}
		vector[h%uint32(Dimensions)] += 1
	}
	return vector, nil
}
