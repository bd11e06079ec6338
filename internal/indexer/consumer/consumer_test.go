package consumer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanbrate/inverted-index/internal/indexer"
	"github.com/ryanbrate/inverted-index/pkg/config"
	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
	"github.com/ryanbrate/inverted-index/pkg/kafka"
)

type fakeProcessor struct {
	got []config.BuildConfig
	err error
}

func (f *fakeProcessor) Process(ctx context.Context, bc config.BuildConfig) (indexer.Outcome, error) {
	f.got = append(f.got, bc)
	if f.err != nil {
		return indexer.OutcomeFailed, f.err
	}
	return indexer.OutcomeBuilt, nil
}

const request = `{"name": "news", "input_dir": "/in", "output_dir": "/out", "n_processes": 4, "tokens_of_interest": ["a", "b"]}`

func TestHandleBuildRequest(t *testing.T) {
	p := &fakeProcessor{}
	require.NoError(t, HandleBuildRequest(p)(context.Background(), []byte("news"), []byte(request)))

	require.Len(t, p.got, 1)
	assert.Equal(t, "news", p.got[0].Name)
	assert.Equal(t, 4, p.got[0].Processes)
	assert.Equal(t, []string{"a", "b"}, p.got[0].TokensOfInterest)
}

func TestHandleBuildRequest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		procErr  error
		skip     bool
		wantCall bool
	}{
		{name: "malformed json", value: `{"name": `, skip: true},
		{name: "invalid record", value: `{"name": "x", "input_dir": "/in", "output_dir": "/out", "n_processes": 0}`, skip: true},
		{name: "parse failure", value: request, procErr: apperrors.New(apperrors.ErrParse, "/in/c.json", "bad"), skip: true, wantCall: true},
		{name: "io failure", value: request, procErr: apperrors.New(apperrors.ErrIO, "/out", "disk full"), skip: false, wantCall: true},
		{name: "missing path", value: request, procErr: apperrors.Wrap(apperrors.ErrIO, "/in", fs.ErrNotExist, "listing input directory"), skip: true, wantCall: true},
		{name: "permission denied", value: request, procErr: apperrors.Wrap(apperrors.ErrIO, "/out", fs.ErrPermission, "creating output directory"), skip: true, wantCall: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{err: tt.procErr}
			err := HandleBuildRequest(p)(context.Background(), nil, []byte(tt.value))
			require.Error(t, err)
			assert.Equal(t, tt.skip, errors.Is(err, kafka.ErrSkip))
			assert.Equal(t, tt.wantCall, len(p.got) == 1)
		})
	}
}

func TestHandleBuildRequest_MissingInputDirIsCommitted(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	value := `{"name": "gone", "input_dir": "` + filepath.Join(dir, "missing") + `", "output_dir": "` + out + `", "n_processes": 1}`

	b := indexer.NewBuilder(config.DefaultIndexerConfig())
	err := HandleBuildRequest(b)(context.Background(), []byte("gone"), []byte(value))
	require.Error(t, err)
	assert.True(t, errors.Is(err, kafka.ErrSkip))
	assert.True(t, errors.Is(err, apperrors.ErrIO))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}
