// Package segment persists a built index. Three layouts are supported: the
// nested JSON map token -> collection -> [[doc, sentence]], a flat JSON variant
// with one [collection, doc, sentence] triple per occurrence, and a binary
// segment file with a sorted token dictionary for direct lookup.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ryanbrate/inverted-index/internal/indexer/index"
	"github.com/ryanbrate/inverted-index/pkg/config"
	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
)

// MagicBytes identifies a segment file.
const (
	MagicBytes    uint32 = 0x49495844
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// SegmentHeader is the 64-byte header at the start of a segment file.
type SegmentHeader struct {
	Magic           uint32
	Version         uint32
	TokenCount      uint32
	CollectionCount uint32
	DictOffset      int64
	DictSize        int64
	PostOffset      int64
	PostSize        int64
	CreatedAt       int64
}

// DictEntry locates one token's postings block in the segment file.
type DictEntry struct {
	Token       string `json:"t"`
	PostOffset  int64  `json:"o"`
	PostLen     int    `json:"l"`
	Collections int    `json:"c"`
	Occurrences int    `json:"n"`
}

// Writer writes a built index in one of the configured formats.
type Writer struct {
	format string
	logger *slog.Logger
}

func NewWriter(format string) *Writer {
	return &Writer{
		format: format,
		logger: slog.Default().With("component", "segment", "format", format),
	}
}

// WriteIndex writes g to path. The file appears atomically: it is written to
// path+".tmp" and renamed on success.
func (w *Writer) WriteIndex(path string, g *index.GlobalIndex) error {
	var err error
	switch w.format {
	case config.FormatNested, "":
		err = writeAtomic(path, func(f *os.File) error {
			return json.NewEncoder(f).Encode(g)
		})
	case config.FormatFlat:
		err = writeAtomic(path, func(f *os.File) error {
			return json.NewEncoder(f).Encode(g.Flat())
		})
	case config.FormatSegment:
		err = writeAtomic(path, func(f *os.File) error {
			return writeSegment(f, g)
		})
	default:
		return apperrors.Newf(apperrors.ErrInvalidConfig, path, "unknown index format %q", w.format)
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrIO, path, err, "writing index")
	}
	stats := g.Stats()
	w.logger.Info("index written",
		"path", path,
		"tokens", stats.Tokens,
		"collections", stats.Collections,
		"occurrences", stats.Occurrences,
	)
	return nil
}

// WriteSnapshot writes the configuration snapshot next to the index.
func WriteSnapshot(path string, data []byte) error {
	err := writeAtomic(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrIO, path, err, "writing config snapshot")
	}
	return nil
}

func writeAtomic(path string, write func(f *os.File) error) error {
	tmpPath := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("syncing file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming file: %w", err)
	}
	return nil
}

// writeSegment lays out header, one JSON postings block per token, the JSON
// dictionary sorted by token, and a footer carrying the dictionary CRC.
func writeSegment(f *os.File, g *index.GlobalIndex) error {
	entries := g.Snapshot()
	stats := g.Stats()
	header := SegmentHeader{
		Magic:           MagicBytes,
		Version:         FormatVersion,
		TokenCount:      uint32(len(entries)),
		CollectionCount: uint32(stats.Collections),
		CreatedAt:       time.Now().Unix(),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	postingsStart, _ := f.Seek(0, io.SeekCurrent)
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		offset, _ := f.Seek(0, io.SeekCurrent)
		data, err := json.Marshal(entry.Collections)
		if err != nil {
			return fmt.Errorf("marshaling postings for token %q: %w", entry.Token, err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("writing postings for token %q: %w", entry.Token, err)
		}
		occurrences := 0
		for _, p := range entry.Collections {
			occurrences += len(p)
		}
		dict = append(dict, DictEntry{
			Token:       entry.Token,
			PostOffset:  offset - postingsStart,
			PostLen:     len(data),
			Collections: len(entry.Collections),
			Occurrences: occurrences,
		})
	}

	postingsEnd, _ := f.Seek(0, io.SeekCurrent)
	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}
	header.PostOffset = postingsStart
	header.PostSize = postingsEnd - postingsStart
	header.DictOffset = postingsEnd
	header.DictSize = int64(len(dictData))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], header.CollectionCount)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(header.DictOffset))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(header.DictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(header.PostSize))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	return nil
}

func encodeHeader(h SegmentHeader) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TokenCount)
	binary.LittleEndian.PutUint32(b[12:16], h.CollectionCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.CreatedAt))
	return b
}

func decodeHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:           binary.LittleEndian.Uint32(b[0:4]),
		Version:         binary.LittleEndian.Uint32(b[4:8]),
		TokenCount:      binary.LittleEndian.Uint32(b[8:12]),
		CollectionCount: binary.LittleEndian.Uint32(b[12:16]),
		DictOffset:      int64(binary.LittleEndian.Uint64(b[16:24])),
		DictSize:        int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset:      int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:        int64(binary.LittleEndian.Uint64(b[40:48])),
		CreatedAt:       int64(binary.LittleEndian.Uint64(b[48:56])),
	}
}
