package crawler

import "sync"

// TagRegistry hands out dense integer ids to tag labels in first-seen order,
// starting at 1. Ids are only meaningful within one crawl run.
type TagRegistry struct {
	mu      sync.Mutex
	ids     map[string]int
	entries []TagEntry
}

// NewTagRegistry returns an empty registry.
func NewTagRegistry() *TagRegistry {
	return &TagRegistry{ids: make(map[string]int)}
}

// IDOf returns the id for label, allocating the next one on first sight.
func (r *TagRegistry) IDOf(label string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[label]; ok {
		return id
	}
	id := len(r.entries) + 1
	r.ids[label] = id
	r.entries = append(r.entries, TagEntry{ID: id, Text: label})
	return id
}

// Len reports how many distinct labels have been seen.
func (r *TagRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a copy of the registered tags ordered by id.
func (r *TagRegistry) Entries() []TagEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TagEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Mapping returns a copy of the label to id mapping.
func (r *TagRegistry) Mapping() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.ids))
	for label, id := range r.ids {
		out[label] = id
	}
	return out
}

// Reset forgets every label so the next IDOf starts again at 1.
func (r *TagRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = make(map[string]int)
	r.entries = nil
}
