package index

import "github.com/ryanbrate/inverted-index/internal/corpus"

// Build indexes one collection. Each token is recorded at most once per
// sentence, and postings are appended in (document, sentence) order.
func Build(c corpus.Collection, filter TokenFilter) LocalIndex {
	idx := make(LocalIndex)
	seen := make(map[string]struct{})
	for i, doc := range c.Documents {
		for j, sent := range doc.Sentences {
			clear(seen)
			for _, token := range sent {
				if _, dup := seen[token]; dup {
					continue
				}
				seen[token] = struct{}{}
				if !filter.Accepts(token) {
					continue
				}
				idx[token] = append(idx[token], Location{Doc: i, Sentence: j})
			}
		}
	}
	return idx
}
