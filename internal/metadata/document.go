package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/pkg/file"
)

// SegmentName returns the document key for the i-th segment (0-based), e.g. "segment 1".
func SegmentName(i int) string {
	return fmt.Sprintf("segment %d", i+1)
}

// Document is the per-run metadata collection keyed by segment name.
// It keeps insertion order in memory and in its JSON form.
type Document struct {
	names    []string
	segments map[string]*SegmentMetadata
}

func NewDocument() *Document {
	return &Document{segments: make(map[string]*SegmentMetadata)}
}

// Set inserts or replaces a segment. Replacing keeps the original position.
func (d *Document) Set(name string, seg *SegmentMetadata) {
	if d.segments == nil {
		d.segments = make(map[string]*SegmentMetadata)
	}
	if _, ok := d.segments[name]; !ok {
		d.names = append(d.names, name)
	}
	d.segments[name] = seg
}

func (d *Document) Get(name string) (*SegmentMetadata, bool) {
	seg, ok := d.segments[name]
	return seg, ok
}

// Names returns segment names in insertion order.
func (d *Document) Names() []string {
	return append([]string(nil), d.names...)
}

func (d *Document) Len() int {
	return len(d.names)
}

// Each calls fn for every segment in insertion order and stops at the first error.
func (d *Document) Each(fn func(name string, seg *SegmentMetadata) error) error {
	for _, name := range d.names {
		if err := fn(name, d.segments[name]); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	out := NewDocument()
	for _, name := range d.names {
		out.Set(name, d.segments[name].clone())
	}
	return out
}

func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range d.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d.segments[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metadata document must be a JSON object")
	}

	d.names = nil
	d.segments = make(map[string]*SegmentMetadata)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", tok)
		}
		var seg SegmentMetadata
		if err := dec.Decode(&seg); err != nil {
			return fmt.Errorf("segment %q: %w", name, err)
		}
		d.Set(name, &seg)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Load reads a metadata document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(err, apperr.ErrFileNotFound, "metadata document %s not found", path)
		}
		return nil, err
	}
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrInputValidation, "parse metadata document %s", path)
	}
	return doc, nil
}

// Save writes the document atomically (temp file then rename).
func (d *Document) Save(path string) error {
	if err := file.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".metadata-*.json")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp metadata file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp metadata file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace metadata file: %w", err)
	}
	return nil
}
