package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/vgrid/internal/pipeline"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Format names a file encoding.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatTSV    Format = "tsv"
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
)

// Options controls how rows are read.
type Options struct {
	// IDColumn names the field holding each row's identity. Empty, or absent
	// on a row, means the identity is derived from the row's content.
	IDColumn string
	// Limit caps the number of rows read. Zero reads everything.
	Limit int
	// Format overrides detection by file extension.
	Format Format
}

// DetectFormat infers the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".json":
		return FormatJSON, nil
	case ".ndjson", ".jsonl":
		return FormatNDJSON, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Resolve expands a leading ~ and determines the format for path.
func Resolve(path string, opts Options) (string, Format, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to expand path %q: %w", path, err)
	}
	format := opts.Format
	if format == "" {
		if format, err = DetectFormat(expanded); err != nil {
			return "", "", err
		}
	}
	return expanded, format, nil
}

// Load reads a dataset from a file.
func Load(ctx context.Context, path string, opts Options) (*Dataset, error) {
	expanded, format, err := Resolve(path, opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	ds, err := Read(ctx, f, format, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", expanded, err)
	}
	return ds, nil
}

// Read decodes a dataset of the given format from r.
func Read(ctx context.Context, r io.Reader, format Format, opts Options) (*Dataset, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(ctx, r, ',', opts)
	case FormatTSV:
		return ReadCSV(ctx, r, '\t', opts)
	case FormatJSON:
		return ReadJSON(ctx, r, opts)
	case FormatNDJSON:
		return ReadNDJSON(ctx, r, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

const ctxCheckEvery = 1024

// ReadCSV reads delimited text with a header row. Cells are typed with
// pipeline.ParseScalar and empty cells become nil.
func ReadCSV(ctx context.Context, r io.Reader, comma rune, opts Options) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return NewBuilder(opts).Dataset(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header = append([]string(nil), header...)
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	b := NewBuilder(opts)
	b.noteFields(header)
	for n := 0; !b.Full(); n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		values := make(map[string]any, len(header))
		for i, cell := range row {
			if v := pipeline.ParseScalar(cell); v != "" {
				values[header[i]] = v
			} else {
				values[header[i]] = nil
			}
		}
		if err := b.Add(header, values); err != nil {
			return nil, err
		}
	}
	return b.Dataset(), nil
}

// ReadJSON reads a top-level array of objects.
func ReadJSON(ctx context.Context, r io.Reader, opts Options) (*Dataset, error) {
	iter := jsoniter.Parse(jsonAPI, r, 64*1024)
	if next := iter.WhatIsNext(); next != jsoniter.ArrayValue {
		if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
			return nil, iter.Error
		}
		return nil, errors.New("expected a JSON array of objects")
	}

	b := NewBuilder(opts)
	var addErr error
	n := 0
	iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
		if n%ctxCheckEvery == 0 {
			if addErr = ctx.Err(); addErr != nil {
				return false
			}
		}
		n++
		if b.Full() {
			it.Skip()
			return true
		}
		if it.WhatIsNext() != jsoniter.ObjectValue {
			addErr = fmt.Errorf("element %d is not an object", n-1)
			return false
		}
		keys, values := readObject(it)
		if it.Error != nil {
			return false
		}
		addErr = b.Add(keys, values)
		return addErr == nil
	})
	if addErr != nil {
		return nil, addErr
	}
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return nil, iter.Error
	}
	return b.Dataset(), nil
}

// ReadNDJSON reads one object per line. Blank lines are skipped.
func ReadNDJSON(ctx context.Context, r io.Reader, opts Options) (*Dataset, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	b := NewBuilder(opts)
	for line := 1; !b.Full() && sc.Scan(); line++ {
		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		keys, values, ok, err := parseLine(sc.Bytes())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			continue
		}
		if err := b.Add(keys, values); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return b.Dataset(), nil
}

// parseLine decodes one NDJSON line. ok is false for blank lines.
func parseLine(line []byte) (keys []string, values map[string]any, ok bool, err error) {
	if len(strings.TrimSpace(string(line))) == 0 {
		return nil, nil, false, nil
	}
	it := jsoniter.ParseBytes(jsonAPI, line)
	if it.WhatIsNext() != jsoniter.ObjectValue {
		return nil, nil, false, errors.New("expected a JSON object")
	}
	keys, values = readObject(it)
	if it.Error != nil && !errors.Is(it.Error, io.EOF) {
		return nil, nil, false, it.Error
	}
	return keys, values, true, nil
}

// readObject decodes an object while keeping its key order.
func readObject(it *jsoniter.Iterator) ([]string, map[string]any) {
	var keys []string
	values := make(map[string]any)
	it.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		if _, seen := values[field]; !seen {
			keys = append(keys, field)
		}
		values[field] = readValue(it)
		return it.Error == nil
	})
	return keys, values
}

func readValue(it *jsoniter.Iterator) any {
	switch it.WhatIsNext() {
	case jsoniter.NumberValue:
		return normalizeNumber(it.ReadNumber())
	case jsoniter.StringValue:
		s := it.ReadString()
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
		return s
	case jsoniter.BoolValue:
		return it.ReadBool()
	case jsoniter.NilValue:
		it.ReadNil()
		return nil
	default:
		return it.Read()
	}
}

// normalizeNumber keeps integers integral so identities and sorting see int64.
func normalizeNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
