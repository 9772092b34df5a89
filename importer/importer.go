// Package importer loads catalogue and membership records from CSV files.
//
// Expected columns, one record per line:
//
//	books.csv      title,author,year,categories
//	dvds.csv       title,year,durationMinutes,rating,categories
//	magazines.csv  title,publisher,year,categories
//	members.csv    name,email
//
// Categories are separated by ';'. Numbers that fail to parse become 0.
// A leading header row is skipped.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"media-library/library"
)

// Kind selects which record layout a file uses.
type Kind string

const (
	Books     Kind = "books"
	Dvds      Kind = "dvds"
	Magazines Kind = "magazines"
	Members   Kind = "members"
)

// Kinds lists every layout in the order ImportDir loads them.
var Kinds = []Kind{Books, Dvds, Magazines, Members}

var columns = map[Kind]int{Books: 4, Dvds: 5, Magazines: 4, Members: 2}

// RowError describes a record that could not be imported.
type RowError struct {
	File string
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err) }

// Result counts what an import added.
type Result struct {
	Items   int
	Members int
	Skipped []RowError
}

func (r *Result) merge(o Result) {
	r.Items += o.Items
	r.Members += o.Members
	r.Skipped = append(r.Skipped, o.Skipped...)
}

// Importer feeds parsed records into a Library.
type Importer struct {
	lib *library.Library
	log *slog.Logger
}

func New(lib *library.Library, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{lib: lib, log: log}
}

// ImportDir loads <kind>.csv for every kind present in dir. Missing files
// are skipped.
func (im *Importer) ImportDir(dir string) (Result, error) {
	var total Result
	for _, kind := range Kinds {
		path := filepath.Join(dir, string(kind)+".csv")
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		res, err := im.ImportFile(kind, path)
		total.merge(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (im *Importer) ImportFile(kind Kind, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return im.Import(kind, filepath.Base(path), f)
}

// Import reads records of the given kind from r. Bad rows are collected in
// Result.Skipped; only unreadable input is returned as an error.
func (im *Importer) Import(kind Kind, name string, r io.Reader) (Result, error) {
	want, ok := columns[kind]
	if !ok {
		return Result{}, fmt.Errorf("unknown record kind %q", kind)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var res Result
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read %s: %w", name, err)
		}
		if line == 1 && isHeader(kind, rec) {
			continue
		}
		if len(rec) < want {
			res.Skipped = append(res.Skipped, RowError{File: name, Line: line, Err: fmt.Errorf("want %d fields, got %d", want, len(rec))})
			continue
		}

		if kind == Members {
			err = im.lib.AddMember(library.NewMember(strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])))
			if err == nil {
				res.Members++
			}
		} else {
			err = im.lib.AddItem(itemFromRow(kind, rec))
			if err == nil {
				res.Items++
			}
		}
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{File: name, Line: line, Err: err})
		}
	}

	im.log.Info("csv imported", "file", name, "kind", kind, "items", res.Items, "members", res.Members, "skipped", len(res.Skipped))
	return res, nil
}

func itemFromRow(kind Kind, r []string) *library.MediaItem {
	switch kind {
	case Books:
		return library.NewBook(strings.TrimSpace(r[0]), strings.TrimSpace(r[1]), parseInt(r[2]), splitCategories(r[3]))
	case Dvds:
		return library.NewDvd(strings.TrimSpace(r[0]), parseInt(r[1]), parseInt(r[2]), strings.TrimSpace(r[3]), splitCategories(r[4]))
	default:
		return library.NewMagazine(strings.TrimSpace(r[0]), strings.TrimSpace(r[1]), parseInt(r[2]), splitCategories(r[3]))
	}
}

func isHeader(kind Kind, rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(rec[0]))
	if kind == Members {
		return first == "name"
	}
	return first == "title"
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func splitCategories(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ";") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
