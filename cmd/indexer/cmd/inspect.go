package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ryanbrate/inverted-index/internal/indexer/index"
	"github.com/ryanbrate/inverted-index/internal/indexer/segment"
	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
)

func newInspectCmd(opts *globalOptions) *cobra.Command {
	var indexFile string

	cmd := &cobra.Command{
		Use:   "inspect <output_dir> [token...]",
		Short: "Print statistics of a built index and the postings of given tokens",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := indexFile
			if name == "" {
				name = opts.cfg.Indexer.IndexFile
			}
			path := filepath.Join(args[0], name)
			g, err := segment.ReadIndex(path)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrIO, path, err, "loading index")
			}
			return printIndex(cmd.OutOrStdout(), g, args[1:])
		},
	}
	cmd.Flags().StringVar(&indexFile, "file", "", "index file name inside the output directory (default from config)")
	return cmd
}

func printIndex(w io.Writer, g *index.GlobalIndex, tokens []string) error {
	stats := g.Stats()
	if _, err := fmt.Fprintf(w, "tokens=%d collections=%d occurrences=%d\n",
		stats.Tokens, stats.Collections, stats.Occurrences); err != nil {
		return err
	}
	for _, token := range tokens {
		colls := g.Collections(token)
		if len(colls) == 0 {
			fmt.Fprintf(w, "%s: not indexed\n", token)
			continue
		}
		fmt.Fprintf(w, "%s:\n", token)
		for _, c := range colls {
			p := g.Postings(token, c)
			fmt.Fprintf(w, "  %s (%d):", c, len(p))
			for _, loc := range p {
				fmt.Fprintf(w, " [%d,%d]", loc.Doc, loc.Sentence)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}
