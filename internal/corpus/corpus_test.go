package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
)

func TestParse_WorkedExample(t *testing.T) {
	c, err := Parse("C1", []byte(`[["doc1", [["a", "b", "a"], ["b", "c"]]]]`))
	require.NoError(t, err)

	assert.Equal(t, "C1", c.ID)
	require.Len(t, c.Documents, 1)
	assert.Equal(t, "doc1", c.Documents[0].Label)
	assert.Equal(t, []Sentence{{"a", "b", "a"}, {"b", "c"}}, c.Documents[0].Sentences)
}

func TestParse_EmptyStructures(t *testing.T) {
	c, err := Parse("empty", []byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, c.Documents)

	c, err = Parse("hollow", []byte(`[["d", []], ["e", [[]]]]`))
	require.NoError(t, err)
	require.Len(t, c.Documents, 2)
	assert.Empty(t, c.Documents[0].Sentences)
	assert.Equal(t, []Sentence{{}}, c.Documents[1].Sentences)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `[[`, "not a list of documents"},
		{"top level object", `{"a": 1}`, "not a list of documents"},
		{"top level null", `null`, "not a list of documents"},
		{"document not a pair", `[["d"]]`, "document 0: expected [label, sentences]"},
		{"document with three items", `[["d", [], 1]]`, "document 0: expected [label, sentences]"},
		{"label not string", `[[1, []]]`, "document 0: label is not a string"},
		{"label null", `[[null, []]]`, "document 0: label is not a string"},
		{"sentences not list", `[["d", "x"]]`, "document 0: sentences is not a list"},
		{"sentence not list", `[["ok", [["a"]]], ["d", ["a b"]]]`, "document 1: sentence 0: expected a list of tokens"},
		{"token not string", `[["d", [["a"], ["b", 3]]]]`, "document 0: sentence 1 token 1: token is not a string"},
		{"token null", `[["d", [[null]]]]`, "document 0: sentence 0 token 0: token is not a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("/data/bad.json", []byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrParse))
			assert.Contains(t, err.Error(), "/data/bad.json")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.json")
	require.NoError(t, os.WriteFile(path, []byte(`[["x", [["t"]]]]`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, c.ID)

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIO))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestEnumerate(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "config.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`[]`), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))

	paths, err := Enumerate(dir, "config.json")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}, paths)

	_, err = Enumerate(filepath.Join(dir, "absent"), "config.json")
	assert.True(t, errors.Is(err, apperrors.ErrIO))
}
