package index

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Location identifies one sentence of one document within a collection.
// It serialises as the pair [doc, sentence].
type Location struct {
	Doc      int
	Sentence int
}

func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{l.Doc, l.Sentence})
}

func (l *Location) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("location: expected [doc, sentence], got %d values", len(pair))
	}
	l.Doc, l.Sentence = pair[0], pair[1]
	return nil
}

func (l Location) Less(o Location) bool {
	if l.Doc != o.Doc {
		return l.Doc < o.Doc
	}
	return l.Sentence < o.Sentence
}

// Postings is an ordered list of locations for one token in one collection.
type Postings []Location

// Sorted returns a sorted copy.
func (p Postings) Sorted() Postings {
	out := slices.Clone(p)
	slices.SortFunc(out, func(a, b Location) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return out
}

// LocalIndex maps token to postings within a single collection. A missing
// key means zero occurrences.
type LocalIndex map[string]Postings

// Result pairs a LocalIndex with the collection it was built from.
type Result struct {
	CollectionID string
	Index        LocalIndex
}

// Occurrence is the flat form of a posting: collection, document and
// sentence in one value. It serialises as [collection, doc, sentence].
type Occurrence struct {
	Collection string
	Doc        int
	Sentence   int
}

func (o Occurrence) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{o.Collection, o.Doc, o.Sentence})
}

func (o *Occurrence) UnmarshalJSON(data []byte) error {
	var triple []json.RawMessage
	if err := json.Unmarshal(data, &triple); err != nil {
		return err
	}
	if len(triple) != 3 {
		return fmt.Errorf("occurrence: expected [collection, doc, sentence], got %d values", len(triple))
	}
	if err := json.Unmarshal(triple[0], &o.Collection); err != nil {
		return fmt.Errorf("occurrence collection: %w", err)
	}
	if err := json.Unmarshal(triple[1], &o.Doc); err != nil {
		return fmt.Errorf("occurrence doc: %w", err)
	}
	if err := json.Unmarshal(triple[2], &o.Sentence); err != nil {
		return fmt.Errorf("occurrence sentence: %w", err)
	}
	return nil
}

// TokenFilter restricts indexing to a set of tokens. The zero value, and a
// filter built from an empty list, accepts every token.
type TokenFilter struct {
	tokens map[string]struct{}
}

func NewTokenFilter(tokens []string) TokenFilter {
	if len(tokens) == 0 {
		return TokenFilter{}
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return TokenFilter{tokens: set}
}

func (f TokenFilter) Accepts(token string) bool {
	if len(f.tokens) == 0 {
		return true
	}
	_, ok := f.tokens[token]
	return ok
}

func (f TokenFilter) IsWildcard() bool {
	return len(f.tokens) == 0
}

// Len returns the number of tokens of interest, 0 for the wildcard.
func (f TokenFilter) Len() int {
	return len(f.tokens)
}
