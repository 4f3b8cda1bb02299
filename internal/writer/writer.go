package writer

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-scripts/climate/internal/types"
)

// FileWriter writes the stage outputs to disk.
type FileWriter struct {
	nullMarker string
}

// New creates a FileWriter. Null cells of the tidy dataset are written as
// nullMarker.
func New(nullMarker string) *FileWriter {
	return &FileWriter{nullMarker: nullMarker}
}

// WriteTree writes the URL tree as indented JSON. Non-ASCII labels and
// query strings are written as is.
func (w *FileWriter) WriteTree(path string, tree *types.Tree) error {
	return writeFile(path, func(out *bufio.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tree); err != nil {
			return fmt.Errorf("failed to encode url tree: %w", err)
		}
		return nil
	})
}

// WriteFlatCSV writes the flattened tree, one row per city.
func (w *FileWriter) WriteFlatCSV(path string, rows []types.FlatRow) error {
	return writeFile(path, func(out *bufio.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write([]string{"continent", "country", "country_url", "city", "city_url"}); err != nil {
			return err
		}
		for _, r := range rows {
			if err := cw.Write([]string{r.Continent, r.Country, r.CountryURL, r.City, r.CityURL}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// WriteDataset writes the tidy dataset as ';'-separated CSV with a header
// row.
func (w *FileWriter) WriteDataset(path string, ds *types.Dataset) error {
	return writeFile(path, func(out *bufio.Writer) error {
		cw := csv.NewWriter(out)
		cw.Comma = ';'
		if err := cw.Write(types.Schema); err != nil {
			return err
		}
		line := make([]string, len(types.Schema))
		for _, rec := range ds.Rows {
			for i := range line {
				line[i] = w.nullMarker
				if i < len(rec) && rec[i].Valid {
					line[i] = rec[i].String
				}
			}
			if err := cw.Write(line); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// ReadTree loads a URL tree written by WriteTree.
func ReadTree(path string) (*types.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read url tree: %w", err)
	}
	var tree types.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse url tree %s: %w", path, err)
	}
	return &tree, nil
}

func writeFile(path string, fill func(*bufio.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	out := bufio.NewWriter(file)
	if err := fill(out); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
