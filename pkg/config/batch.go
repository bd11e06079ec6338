package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
)

// BuildConfig is one record of a batch: which collections to index, where to
// write the result, and with how many workers.
type BuildConfig struct {
	Name             string   `yaml:"name" json:"name"`
	InputDir         string   `yaml:"input_dir" json:"input_dir"`
	OutputDir        string   `yaml:"output_dir" json:"output_dir"`
	Processes        int      `yaml:"n_processes" json:"n_processes"`
	TokensOfInterest []string `yaml:"tokens_of_interest" json:"tokens_of_interest"`

	// Raw is the record exactly as decoded, kept for the provenance snapshot.
	Raw map[string]any `yaml:"-" json:"-"`
}

// Snapshot returns the record as JSON for writing next to the built index.
func (b BuildConfig) Snapshot() ([]byte, error) {
	if b.Raw != nil {
		return json.Marshal(b.Raw)
	}
	return json.Marshal(b)
}

// LoadBatch reads a batch file. JSON and YAML are both accepted since every
// JSON document is valid YAML. A record that fails to decode or validate does
// not stop the others: the valid records are returned together with the
// joined per-record errors. A file that cannot be read or is not a list
// yields no records at all.
func LoadBatch(path string) ([]BuildConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrIO, path, err, "reading batch file")
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrParse, path, err, "decoding batch file")
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, apperrors.Newf(apperrors.ErrParse, path, "line %d: expected a list of configurations", root.Line)
	}
	configs := make([]BuildConfig, 0, len(root.Content))
	var errs []error
	for i, node := range root.Content {
		bc, err := decodeRecord(node)
		if err != nil {
			ie := apperrors.Wrap(apperrors.ErrInvalidConfig, path, err, fmt.Sprintf("record %d (line %d)", i, node.Line))
			ie.Config = recordName(node)
			errs = append(errs, ie)
			continue
		}
		configs = append(configs, bc)
	}
	return configs, errors.Join(errs...)
}

// recordName returns the record's name field if it has a usable one.
func recordName(node *yaml.Node) string {
	if node.Kind != yaml.MappingNode {
		return ""
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "name" && node.Content[i+1].Kind == yaml.ScalarNode {
			return node.Content[i+1].Value
		}
	}
	return ""
}

// ParseBuildConfig decodes a single record, as carried by a build request
// message.
func ParseBuildConfig(data []byte) (BuildConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return BuildConfig{}, apperrors.Wrap(apperrors.ErrParse, "", err, "decoding build config")
	}
	if len(doc.Content) == 0 {
		return BuildConfig{}, apperrors.New(apperrors.ErrInvalidConfig, "", "empty build config")
	}
	bc, err := decodeRecord(doc.Content[0])
	if err != nil {
		return BuildConfig{}, apperrors.Wrap(apperrors.ErrInvalidConfig, "", err, "decoding build config")
	}
	return bc, nil
}

func decodeRecord(node *yaml.Node) (BuildConfig, error) {
	if node.Kind != yaml.MappingNode {
		return BuildConfig{}, fmt.Errorf("expected a mapping")
	}
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return BuildConfig{}, err
	}
	normalizeProcesses(node)
	var bc BuildConfig
	if err := node.Decode(&bc); err != nil {
		return BuildConfig{}, err
	}
	bc.Raw = raw
	if err := bc.Validate(); err != nil {
		return BuildConfig{}, err
	}
	bc.InputDir = expandHome(bc.InputDir)
	bc.OutputDir = expandHome(bc.OutputDir)
	return bc, nil
}

// normalizeProcesses retags a quoted integer n_processes ("4") as an int so
// batch files written with string counts still decode. The raw snapshot is
// taken before this and keeps the original string.
func normalizeProcesses(node *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Value != "n_processes" || value.Kind != yaml.ScalarNode || value.Tag != "!!str" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value.Value))
		if err != nil {
			return
		}
		value.Tag = "!!int"
		value.Style = 0
		value.Value = strconv.Itoa(n)
	}
}

// Validate checks the fields every build needs.
func (b BuildConfig) Validate() error {
	switch {
	case b.Name == "":
		return fmt.Errorf("name is required")
	case b.InputDir == "":
		return fmt.Errorf("%s: input_dir is required", b.Name)
	case b.OutputDir == "":
		return fmt.Errorf("%s: output_dir is required", b.Name)
	case b.Processes < 1:
		return fmt.Errorf("%s: n_processes must be >= 1, got %d", b.Name, b.Processes)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
