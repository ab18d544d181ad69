package agent

import (
	"sort"
	"strings"
	"sync"
)

// MemoryIndexer is the vector-memory collaborator surface: the orchestrator
// feeds it per-card text and pulls back the top-K snippets relevant to a
// query when building chat context.
type MemoryIndexer interface {
	IndexCard(cardID, text string)
	Search(query string, k int) []string
}

// KeywordMemory is the in-process stand-in for the external memory service.
// Ranking is lexical token overlap rather than embeddings; the interface is
// what the orchestrator depends on, not the scoring.
type KeywordMemory struct {
	mu      sync.RWMutex
	entries map[string]string // cardID -> indexed text
}

// NewKeywordMemory creates an empty memory.
func NewKeywordMemory() *KeywordMemory {
	return &KeywordMemory{entries: make(map[string]string)}
}

// IndexCard stores or replaces the snippet for a card.
func (m *KeywordMemory) IndexCard(cardID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cardID] = text
}

// Search returns up to k snippets ranked by token overlap with the query.
// Snippets with no overlap are not returned.
func (m *KeywordMemory) Search(query string, k int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	type scored struct {
		text  string
		score int
	}
	var ranked []scored
	for _, text := range m.entries {
		score := overlap(queryTokens, tokenize(text))
		if score > 0 {
			ranked = append(ranked, scored{text: text, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	result := make([]string, 0, len(ranked))
	for _, r := range ranked {
		result = append(result, r.text)
	}
	return result
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(s)) {
		field = strings.Trim(field, ".,:;!?()[]\"'")
		if len(field) > 2 {
			tokens[field] = true
		}
	}
	return tokens
}

func overlap(a, b map[string]bool) int {
	count := 0
	for token := range a {
		if b[token] {
			count++
		}
	}
	return count
}
