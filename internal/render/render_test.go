package render

import (
	"bytes"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vgrid/api/schemas"
)

func sampleSnapshot() *schemas.WindowSnapshot {
	return &schemas.WindowSnapshot{
		Start: 0, End: 1,
		ViewRows: 2, RawRows: 5,
		Status: "ready",
		Columns: []schemas.ColumnSnapshot{
			{Key: "id", Title: "ID", Width: 40},
			{Key: "name", Title: "Name", Width: 120, Sort: "asc", Filter: "al"},
		},
		Rows: []schemas.RowSnapshot{
			{Index: 0, ID: "1", Cells: []string{"1", "alice"}},
			{Index: 1, ID: "3", Selected: true, Cells: []string{"3", "alicia with a very long name"}},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}

func TestFit(t *testing.T) {
	assert.Equal(t, "ab   ", Fit("ab", 5))
	assert.Equal(t, "hell…", Fit("hello world", 5))
	assert.Equal(t, "a b  ", Fit("a\nb", 5))

	wide := Fit("日本語テキスト", 6)
	assert.Equal(t, 6, runewidth.StringWidth(wide), "double-width runes are measured in cells")
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, sampleSnapshot(), Options{Footer: true}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "Name ▲ [al]")
	assert.True(t, strings.HasPrefix(lines[1], "  -----"))
	assert.True(t, strings.HasPrefix(lines[2], "  1"), "unselected rows have a blank gutter")
	assert.True(t, strings.HasPrefix(lines[3], "* 3"), "selected rows are marked")
	assert.Contains(t, lines[3], "…", "long cells are truncated")
	assert.Equal(t, "rows 1-2 of 2 (5 total)  scroll 0,0", lines[4])
}

func TestText_Empty(t *testing.T) {
	snap := &schemas.WindowSnapshot{Empty: true, Status: "empty", Columns: []schemas.ColumnSnapshot{{Key: "id", Width: 40}}}
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, snap, Options{Footer: true}))

	out := buf.String()
	assert.Contains(t, out, "(no rows)")
	assert.Contains(t, out, "rows 0 of 0  scroll 0,0  empty")
}

func TestFooterPending(t *testing.T) {
	snap := sampleSnapshot()
	snap.Pending = true
	assert.True(t, strings.HasSuffix(Footer(snap), "updating"))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSnapshot(), FormatJSON, Options{}))

	var decoded schemas.WindowSnapshot
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded.ViewRows)
	require.Len(t, decoded.Rows, 2)
	assert.True(t, decoded.Rows[1].Selected)
}
