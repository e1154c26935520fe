// Package source loads grid rows from CSV, JSON and NDJSON files and follows
// appended NDJSON files.
package source

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/xkilldash9x/vgrid/internal/columns"
	"github.com/xkilldash9x/vgrid/internal/pipeline"
)

var (
	// ErrDuplicateID is returned when two rows carry the same explicit identity.
	ErrDuplicateID = errors.New("duplicate row id")
	// ErrUnsupportedFormat is returned for files whose format cannot be determined.
	ErrUnsupportedFormat = errors.New("unsupported source format")
)

// recordNamespace seeds the content-derived identities of rows that have no id field.
var recordNamespace = uuid.MustParse("6f1c3c1e-5d3a-4f0b-9a57-3f7f0c2f9e11")

// Record is one row of a loaded dataset.
type Record struct {
	ID     string
	Values map[string]any
}

// Get returns the value of field, or nil when the record lacks it.
func (r Record) Get(field string) any { return r.Values[field] }

// Key is the grid identity function for records.
func Key(r Record) string { return r.ID }

// Dataset is a loaded set of records. Fields lists every field seen, in the
// order of first appearance.
type Dataset struct {
	Fields  []string
	Records []Record
}

// Columns derives grid columns for every field, each sortable and filterable.
func (d *Dataset) Columns(width float64) []columns.Column[Record] {
	cols := make([]columns.Column[Record], 0, len(d.Fields))
	for _, f := range d.Fields {
		field := f
		cols = append(cols, columns.Column[Record]{
			Key:        field,
			Title:      field,
			Width:      width,
			MinWidth:   24,
			Sortable:   true,
			Filterable: true,
			Accessor:   func(r Record) any { return r.Values[field] },
		})
	}
	return cols
}

// Builder accumulates records while tracking field order and identities.
// Loaders outside this package use it to produce datasets with the same
// identity rules as file sources.
type Builder struct {
	idColumn string
	limit    int

	fields   []string
	fieldSet map[string]struct{}
	records  []Record
	explicit map[string]int
	derived  map[uuid.UUID]int
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts Options) *Builder {
	return &Builder{
		idColumn: opts.IDColumn,
		limit:    opts.Limit,
		fieldSet: make(map[string]struct{}),
		explicit: make(map[string]int),
		derived:  make(map[uuid.UUID]int),
	}
}

// Full reports whether the row limit has been reached.
func (b *Builder) Full() bool { return b.limit > 0 && len(b.records) >= b.limit }

func (b *Builder) noteFields(names []string) {
	for _, name := range names {
		if _, ok := b.fieldSet[name]; !ok {
			b.fieldSet[name] = struct{}{}
			b.fields = append(b.fields, name)
		}
	}
}

// Add appends a record. keys gives the field order of this row.
func (b *Builder) Add(keys []string, values map[string]any) error {
	b.noteFields(keys)
	id, err := b.identify(values)
	if err != nil {
		return err
	}
	b.records = append(b.records, Record{ID: id, Values: values})
	return nil
}

func (b *Builder) identify(values map[string]any) (string, error) {
	if id, ok := b.explicitID(values); ok {
		if _, dup := b.explicit[id]; dup {
			return "", fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
		b.explicit[id] = len(b.records)
		return id, nil
	}
	return b.deriveID(values), nil
}

func (b *Builder) explicitID(values map[string]any) (string, bool) {
	if b.idColumn == "" {
		return "", false
	}
	v, ok := values[b.idColumn]
	if !ok || v == nil {
		return "", false
	}
	return pipeline.Text(v), true
}

// Upsert replaces the record sharing values' explicit id, or appends a new one.
func (b *Builder) Upsert(keys []string, values map[string]any) (replaced bool, err error) {
	if id, ok := b.explicitID(values); ok {
		if pos, exists := b.explicit[id]; exists {
			b.noteFields(keys)
			b.records[pos] = Record{ID: id, Values: values}
			return true, nil
		}
	}
	return false, b.Add(keys, values)
}

// deriveID hashes the row content. Identical rows are told apart by their
// occurrence count so that each keeps a distinct, reproducible identity.
func (b *Builder) deriveID(values map[string]any) string {
	base := uuid.NewSHA1(recordNamespace, canonical(values))
	n := b.derived[base]
	b.derived[base] = n + 1
	if n == 0 {
		return base.String()
	}
	return uuid.NewSHA1(base, []byte(strconv.Itoa(n))).String()
}

func canonical(values map[string]any) []byte {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		fmt.Fprintf(&sb, "%T:%s", values[k], pipeline.Text(values[k]))
		sb.WriteByte(0x1f)
	}
	return []byte(sb.String())
}

// Dataset returns the accumulated rows.
func (b *Builder) Dataset() *Dataset {
	return &Dataset{Fields: b.fields, Records: b.records}
}

// Snapshot copies the current state so that later appends never alias it.
func (b *Builder) Snapshot() *Dataset {
	return &Dataset{
		Fields:  append([]string(nil), b.fields...),
		Records: append([]Record(nil), b.records...),
	}
}
