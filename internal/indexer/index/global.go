package index

import (
	"encoding/json"
	"slices"
	"sort"
)

// GlobalIndex maps token -> collection ID -> postings across every collection
// of a build. Absence of a token or of a collection under a token means zero
// occurrences; the index never stores an empty postings list.
type GlobalIndex struct {
	tokens      map[string]map[string]Postings
	occurrences int
}

func NewGlobalIndex() *GlobalIndex {
	return &GlobalIndex{tokens: make(map[string]map[string]Postings)}
}

// bucketsFor returns the per-collection map for token, creating it if needed.
func (g *GlobalIndex) bucketsFor(token string) map[string]Postings {
	buckets, ok := g.tokens[token]
	if !ok {
		buckets = make(map[string]Postings)
		g.tokens[token] = buckets
	}
	return buckets
}

// add appends a copy of p to the (token, collection) bucket.
func (g *GlobalIndex) add(token, collection string, p Postings) {
	if len(p) == 0 {
		return
	}
	buckets := g.bucketsFor(token)
	buckets[collection] = append(buckets[collection], p...)
	g.occurrences += len(p)
}

// Clone returns a deep copy.
func (g *GlobalIndex) Clone() *GlobalIndex {
	out := NewGlobalIndex()
	if g == nil {
		return out
	}
	for token, buckets := range g.tokens {
		copied := make(map[string]Postings, len(buckets))
		for coll, p := range buckets {
			copied[coll] = slices.Clone(p)
		}
		out.tokens[token] = copied
	}
	out.occurrences = g.occurrences
	return out
}

// Merge returns a new index holding acc plus local filed under collectionID.
// Neither acc nor local is modified, and the result shares no postings
// storage with either. A nil acc is treated as empty.
func Merge(acc *GlobalIndex, collectionID string, local LocalIndex) *GlobalIndex {
	out := acc.Clone()
	for token, p := range local {
		out.add(token, collectionID, p)
	}
	return out
}

// Union returns a new index holding every bucket of a followed by every
// bucket of b. Inputs are not modified.
func Union(a, b *GlobalIndex) *GlobalIndex {
	out := a.Clone()
	if b == nil {
		return out
	}
	for token, buckets := range b.tokens {
		for coll, p := range buckets {
			out.add(token, coll, p)
		}
	}
	return out
}

// Fold merges results in order into one fresh index. It is equivalent to
// repeated Merge calls without cloning the accumulator at every step.
func Fold(results []Result) *GlobalIndex {
	out := NewGlobalIndex()
	for _, r := range results {
		for token, p := range r.Index {
			out.add(token, r.CollectionID, p)
		}
	}
	return out
}

// Postings returns a copy of the postings for token in collection, or nil if
// the token does not occur there.
func (g *GlobalIndex) Postings(token, collection string) Postings {
	return slices.Clone(g.tokens[token][collection])
}

// Tokens returns every indexed token, sorted.
func (g *GlobalIndex) Tokens() []string {
	tokens := make([]string, 0, len(g.tokens))
	for t := range g.tokens {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// Collections returns the collections token occurs in, sorted.
func (g *GlobalIndex) Collections(token string) []string {
	buckets := g.tokens[token]
	colls := make([]string, 0, len(buckets))
	for c := range buckets {
		colls = append(colls, c)
	}
	sort.Strings(colls)
	return colls
}

func (g *GlobalIndex) Len() int {
	return len(g.tokens)
}

// Stats summarises the size of an index.
type Stats struct {
	Tokens      int `json:"tokens"`
	Collections int `json:"collections"`
	Occurrences int `json:"occurrences"`
}

func (g *GlobalIndex) Stats() Stats {
	colls := make(map[string]struct{})
	for _, buckets := range g.tokens {
		for c := range buckets {
			colls[c] = struct{}{}
		}
	}
	return Stats{
		Tokens:      len(g.tokens),
		Collections: len(colls),
		Occurrences: g.occurrences,
	}
}

// TokenEntry is one token with its per-collection postings.
type TokenEntry struct {
	Token       string
	Collections map[string]Postings
}

// Snapshot lists every token with its buckets, sorted by token. The returned
// maps are fresh but their postings are shared with g and must be treated as
// read-only.
func (g *GlobalIndex) Snapshot() []TokenEntry {
	entries := make([]TokenEntry, 0, len(g.tokens))
	for _, token := range g.Tokens() {
		buckets := g.tokens[token]
		copied := make(map[string]Postings, len(buckets))
		for c, p := range buckets {
			copied[c] = p
		}
		entries = append(entries, TokenEntry{Token: token, Collections: copied})
	}
	return entries
}

// Occurrences returns the flat form of token's postings: collections in
// sorted order, postings in stored order within each collection.
func (g *GlobalIndex) Occurrences(token string) []Occurrence {
	var out []Occurrence
	for _, coll := range g.Collections(token) {
		for _, loc := range g.tokens[token][coll] {
			out = append(out, Occurrence{Collection: coll, Doc: loc.Doc, Sentence: loc.Sentence})
		}
	}
	return out
}

// Flat converts the whole index to token -> occurrences.
func (g *GlobalIndex) Flat() map[string][]Occurrence {
	out := make(map[string][]Occurrence, len(g.tokens))
	for token := range g.tokens {
		out[token] = g.Occurrences(token)
	}
	return out
}

// FromFlat rebuilds an index from its flat form.
func FromFlat(flat map[string][]Occurrence) *GlobalIndex {
	g := NewGlobalIndex()
	for token, occs := range flat {
		for _, o := range occs {
			g.add(token, o.Collection, Postings{{Doc: o.Doc, Sentence: o.Sentence}})
		}
	}
	return g
}

// MarshalJSON writes the nested token -> collection -> postings form.
func (g *GlobalIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.tokens)
}

func (g *GlobalIndex) UnmarshalJSON(data []byte) error {
	var nested map[string]map[string]Postings
	if err := json.Unmarshal(data, &nested); err != nil {
		return err
	}
	*g = *FromNested(nested)
	return nil
}

// FromNested builds an index from token -> collection -> postings. The
// postings are copied.
func FromNested(nested map[string]map[string]Postings) *GlobalIndex {
	g := NewGlobalIndex()
	for token, buckets := range nested {
		for coll, p := range buckets {
			g.add(token, coll, p)
		}
	}
	return g
}
