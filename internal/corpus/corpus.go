// Package corpus holds the pre-tokenized collection model and reads
// collection files from disk.
//
// A collection file is a JSON array of documents, each a two-element array of
// a string label and a list of sentences, each sentence a list of token
// strings:
//
//	[["doc1", [["a", "b", "a"], ["b", "c"]]], ...]
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
)

// Sentence is an ordered sequence of tokens.
type Sentence []string

// Document is a labelled ordered sequence of sentences.
type Document struct {
	Label     string
	Sentences []Sentence
}

// Collection is the unit of parallel indexing. ID is the path it was read
// from.
type Collection struct {
	ID        string
	Documents []Document
}

// Load reads and parses the collection file at path.
func Load(path string) (Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Collection{}, apperrors.Wrap(apperrors.ErrIO, path, err, "reading collection")
	}
	return Parse(path, data)
}

// Parse decodes a collection file body. Any structural mismatch fails the
// whole collection with a parse error giving the document, sentence and
// token position.
func Parse(id string, data []byte) (Collection, error) {
	var docs []json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		return Collection{}, apperrors.Wrap(apperrors.ErrParse, id, err, "collection is not a list of documents")
	}
	if isNull(bytes.TrimSpace(data)) {
		return Collection{}, apperrors.New(apperrors.ErrParse, id, "collection is not a list of documents")
	}
	c := Collection{
		ID:        id,
		Documents: make([]Document, 0, len(docs)),
	}
	for i, raw := range docs {
		doc, err := parseDocument(raw)
		if err != nil {
			return Collection{}, apperrors.Newf(apperrors.ErrParse, id, "document %d: %v", i, err)
		}
		c.Documents = append(c.Documents, doc)
	}
	return c, nil
}

func parseDocument(raw json.RawMessage) (Document, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
		return Document{}, fmt.Errorf("expected [label, sentences]")
	}
	var doc Document
	if isNull(pair[0]) || json.Unmarshal(pair[0], &doc.Label) != nil {
		return Document{}, fmt.Errorf("label is not a string")
	}
	var sentences []json.RawMessage
	if isNull(pair[1]) || json.Unmarshal(pair[1], &sentences) != nil {
		return Document{}, fmt.Errorf("sentences is not a list")
	}
	doc.Sentences = make([]Sentence, 0, len(sentences))
	for j, rawSent := range sentences {
		var tokens []json.RawMessage
		if isNull(rawSent) || json.Unmarshal(rawSent, &tokens) != nil {
			return Document{}, fmt.Errorf("sentence %d: expected a list of tokens", j)
		}
		sent := make(Sentence, len(tokens))
		for k, rawTok := range tokens {
			if isNull(rawTok) || json.Unmarshal(rawTok, &sent[k]) != nil {
				return Document{}, fmt.Errorf("sentence %d token %d: token is not a string", j, k)
			}
		}
		doc.Sentences = append(doc.Sentences, sent)
	}
	return doc, nil
}

// json.Unmarshal treats null as a no-op, so it has to be rejected up front.
func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

// Enumerate lists the collection files (*.json) directly inside dir, skipping
// the reserved metadata file. Paths are returned sorted.
func Enumerate(dir string, metadataFile string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrIO, dir, err, "listing input directory")
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || name == metadataFile {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}
