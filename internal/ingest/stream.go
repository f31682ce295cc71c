// Package ingest reads award, contract, patent and technology-label
// extracts from CSV, TSV or XLSX files.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// StreamCSV reads a CSV file and sends rows to a channel, header included.
// Caller must consume the returned row channel. Errors are sent on the error
// channel. Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// StreamXLSX reads the first sheet of an XLSX file and sends rows to a
// channel. Both channels are closed when processing completes.
func StreamXLSX(ctx context.Context, path string) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: open file")
			return
		}
		if len(f.Sheets) == 0 {
			errCh <- eris.New("xlsx: file has no sheets")
			return
		}

		for _, row := range f.Sheets[0].Rows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
			select {
			case rowCh <- rowToStrings(row):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

// Row is one data row addressed by header name.
type Row struct {
	Line   int
	cols   map[string]int
	values []string
}

// Get returns the first non-empty value among the named columns. Names
// are matched case-insensitively with spaces and dashes folded to
// underscores.
func (r Row) Get(names ...string) string {
	for _, n := range names {
		if i, ok := r.cols[columnKey(n)]; ok && i < len(r.values) && r.values[i] != "" {
			return r.values[i]
		}
	}
	return ""
}

func columnKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		k := columnKey(h)
		if _, dup := cols[k]; !dup && k != "" {
			cols[k] = i
		}
	}
	return cols
}

// rowStream yields header-addressed rows from a file.
type rowStream struct {
	rows   <-chan []string
	errs   <-chan error
	cancel context.CancelFunc
	file   *os.File
	cols   map[string]int
	line   int
}

// openRows starts streaming path. The format follows the extension:
// .xlsx, .tsv, or CSV for anything else. The first row is the header.
func openRows(ctx context.Context, path string) (*rowStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &rowStream{cancel: cancel}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		s.rows, s.errs = StreamXLSX(ctx, path)
	default:
		f, err := os.Open(path)
		if err != nil {
			cancel()
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		s.file = f
		opts := CSVOptions{LazyQuotes: true}
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			opts.Delimiter = '\t'
		}
		s.rows, s.errs = StreamCSV(ctx, f, opts)
	}

	header, ok := <-s.rows
	if !ok {
		err := <-s.errs
		s.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read header of %s", path)
		}
		return nil, eris.Errorf("ingest: %s is empty", path)
	}
	s.cols = headerIndex(header)
	s.line = 1
	return s, nil
}

// next returns the next row. ok is false at end of input; err is set when
// the stream failed.
func (s *rowStream) next() (Row, bool, error) {
	values, ok := <-s.rows
	if !ok {
		return Row{}, false, <-s.errs
	}
	s.line++
	return Row{Line: s.line, cols: s.cols, values: values}, true, nil
}

// Close stops the producer and releases the file.
func (s *rowStream) Close() {
	s.cancel()
	// Drain so the producer goroutine can exit.
	for range s.rows {
	}
	if s.file != nil {
		s.file.Close() //nolint:errcheck
		s.file = nil
	}
}

// eachRow calls fn for every data row of path.
func eachRow(ctx context.Context, path string, fn func(Row) error) error {
	s, err := openRows(ctx, path)
	if err != nil {
		return err
	}
	defer s.Close()

	for {
		row, ok, err := s.next()
		if err != nil {
			return eris.Wrapf(err, "ingest: read %s", path)
		}
		if !ok {
			return nil
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// ReadStats counts rows seen by a reader.
type ReadStats struct {
	Rows    int `json:"rows"`
	Parsed  int `json:"parsed"`
	Skipped int `json:"skipped"`
}
