package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bookmark-cli/internal/model"
)

// DefaultJSONFile is the file name used when no output path is given.
const DefaultJSONFile = "twitter_bookmarks.json"

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var columns = []string{
	"id", "text", "authorName", "authorHandle", "authorProfilePicture",
	"timestamp", "url", "mediaUrl", "category", "isBookmarked",
}

// ParseFormat accepts a format name, or infers it from a file extension
// when name is empty.
func ParseFormat(name, path string) (Format, error) {
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(path), ".")
		if name == "" {
			return FormatJSON, nil
		}
	}
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q", name)
	}
}

func row(r model.Record) []string {
	return []string{
		r.ID, r.Text, r.AuthorName, r.AuthorHandle, r.AuthorProfilePicture,
		r.Timestamp, r.URL, r.MediaURL, DisplayCategory(r), strconv.FormatBool(r.IsBookmarked),
	}
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes records to a single "Bookmarks" sheet.
func WriteXLSX(w io.Writer, records []model.Record) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Bookmarks")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	sheet.AddRow().WriteSlice(&columns, -1)
	for _, r := range records {
		cells := row(r)
		sheet.AddRow().WriteSlice(&cells, -1)
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// Write encodes records in the given format.
func Write(w io.Writer, format Format, records []model.Record) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatXLSX:
		return WriteXLSX(w, records)
	default:
		return WriteJSON(w, records)
	}
}

// WriteFile creates path and writes records to it.
func WriteFile(path string, format Format, records []model.Record) (err error) {
	if path == "" {
		path = DefaultJSONFile
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrap(cerr, "export: close file")
		}
	}()
	return Write(f, format, records)
}
