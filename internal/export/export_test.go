package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bookmark-cli/internal/model"
)

func sample() []model.Record {
	return []model.Record{
		{ID: "1", Text: "Shipping a new Go API", AuthorName: "Rob", AuthorHandle: "@rob", Category: "Tech", IsBookmarked: true},
		{ID: "2", Text: "Kerning matters", AuthorName: "Ada Lovelace", AuthorHandle: "@ada", Category: "Design", IsBookmarked: true},
		{ID: "3", Text: "untitled", AuthorName: "Anon", AuthorHandle: "@GOPHER", IsBookmarked: true},
	}
}

func ids(records []model.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "zero", filter: Filter{}, want: []string{"1", "2", "3"}},
		{name: "all", filter: Filter{Category: AllCategories}, want: []string{"1", "2", "3"}},
		{name: "category", filter: Filter{Category: "Design"}, want: []string{"2"}},
		{name: "uncategorized", filter: Filter{Category: model.CategoryUncategorized}, want: []string{"3"}},
		{name: "query text", filter: Filter{Query: "go api"}, want: []string{"1"}},
		{name: "query name", filter: Filter{Query: "LOVELACE"}, want: []string{"2"}},
		{name: "query handle", filter: Filter{Query: "gopher"}, want: []string{"3"}},
		{name: "both", filter: Filter{Category: "Tech", Query: "kerning"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.filter.Apply(sample())))
		})
	}
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"Design", "Tech", "Uncategorized"}, Categories(sample()))
	assert.Equal(t, []string{"Uncategorized"}, Categories(nil))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name, path string
		want       Format
		wantErr    bool
	}{
		{"", "", FormatJSON, false},
		{"", "out.csv", FormatCSV, false},
		{"", "out.XLSX", FormatXLSX, false},
		{"json", "out.csv", FormatJSON, false},
		{"", "out.pdf", "", true},
		{"yaml", "", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.name, tt.path)
		if tt.wantErr {
			assert.Error(t, err, tt.name+tt.path)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sample()))

	var got []model.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sample(), got)
	assert.Contains(t, buf.String(), `"authorHandle": "@rob"`)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, columns, rows[0])
	assert.Equal(t, "Ada Lovelace", rows[2][2])
	assert.Equal(t, "Uncategorized", rows[3][8])
	assert.Equal(t, "true", rows[3][9])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sample()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet["Bookmarks"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "id", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Kerning matters", sheet.Rows[2].Cells[1].String())
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "b.csv")
	require.NoError(t, WriteFile(path, FormatCSV, sample()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Shipping a new Go API")

	assert.Error(t, WriteFile(filepath.Join(dir, "missing", "b.json"), FormatJSON, sample()))
}
