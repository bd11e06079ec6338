// Command indexer builds token inverted indices from batches of build
// configurations.
package main

import (
	"os"

	"github.com/ryanbrate/inverted-index/cmd/indexer/cmd"
	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(apperrors.ExitCode(err))
	}
}
