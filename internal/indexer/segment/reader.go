package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/ryanbrate/inverted-index/internal/indexer/index"
)

// Reader looks tokens up in a segment file without loading every postings
// block.
type Reader struct {
	file   *os.File
	header SegmentHeader
	dict   []DictEntry
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	if err := checkBounds(header, info.Size()); err != nil {
		f.Close()
		return nil, err
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DictOffset+header.DictSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if want, got := binary.LittleEndian.Uint32(footer[0:4]), crc32.ChecksumIEEE(dictBytes); want != got {
		f.Close()
		return nil, fmt.Errorf("dictionary checksum mismatch: want %08x, got %08x", want, got)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	return &Reader{file: f, header: header, dict: dict}, nil
}

// checkBounds rejects a header whose sections do not fit inside a file of
// size bytes, so a corrupt size never drives an allocation.
func checkBounds(h SegmentHeader, size int64) error {
	headerEnd := int64(HeaderSize)
	switch {
	case h.PostOffset < headerEnd || h.PostSize < 0 || h.PostSize > size:
		return fmt.Errorf("corrupt segment header: postings section %d+%d", h.PostOffset, h.PostSize)
	case h.DictOffset < h.PostOffset+h.PostSize || h.DictSize < 0 || h.DictSize > size:
		return fmt.Errorf("corrupt segment header: dictionary section %d+%d", h.DictOffset, h.DictSize)
	case h.DictOffset > size-h.DictSize-int64(FooterSize):
		return fmt.Errorf("corrupt segment header: sections exceed file size %d", size)
	}
	return nil
}

// Lookup returns token's postings by collection, or nil if the token is not
// in the segment.
func (r *Reader) Lookup(token string) (map[string]index.Postings, error) {
	i := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Token >= token
	})
	if i >= len(r.dict) || r.dict[i].Token != token {
		return nil, nil
	}
	return r.readBlock(r.dict[i])
}

func (r *Reader) readBlock(entry DictEntry) (map[string]index.Postings, error) {
	if entry.PostOffset < 0 || entry.PostLen < 0 || entry.PostOffset > r.header.PostSize-int64(entry.PostLen) {
		return nil, fmt.Errorf("corrupt dictionary entry for %q: block %d+%d outside postings", entry.Token, entry.PostOffset, entry.PostLen)
	}
	data := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(data, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", entry.Token, err)
	}
	var buckets map[string]index.Postings
	if err := json.Unmarshal(data, &buckets); err != nil {
		return nil, fmt.Errorf("parsing postings for %q: %w", entry.Token, err)
	}
	return buckets, nil
}

// Load reads every postings block back into a GlobalIndex.
func (r *Reader) Load() (*index.GlobalIndex, error) {
	nested := make(map[string]map[string]index.Postings, len(r.dict))
	for _, entry := range r.dict {
		buckets, err := r.readBlock(entry)
		if err != nil {
			return nil, err
		}
		nested[entry.Token] = buckets
	}
	return index.FromNested(nested), nil
}

func (r *Reader) Tokens() int {
	return len(r.dict)
}

func (r *Reader) Collections() uint32 {
	return r.header.CollectionCount
}

func (r *Reader) Header() SegmentHeader {
	return r.header
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadIndex loads an index file written in any supported format. Segment
// files are recognised by their magic bytes; JSON files are told apart by
// the shape of their first token's value.
func ReadIndex(path string) (*index.GlobalIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	if len(data) >= 4 && binary.LittleEndian.Uint32(data[0:4]) == MagicBytes {
		r, err := OpenReader(path)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return r.Load()
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	if isFlat(probe) {
		var flat map[string][]index.Occurrence
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("parsing flat index: %w", err)
		}
		return index.FromFlat(flat), nil
	}
	g := index.NewGlobalIndex()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("parsing nested index: %w", err)
	}
	return g, nil
}

// isFlat reports whether token values are occurrence lists rather than
// collection maps. An empty index reads the same either way.
func isFlat(probe map[string]json.RawMessage) bool {
	for _, v := range probe {
		return bytes.HasPrefix(bytes.TrimSpace(v), []byte("["))
	}
	return false
}
