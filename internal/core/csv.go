package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxHeaderSearchRows is the maximum number of rows to scan for the header.
var MaxHeaderSearchRows = 20

// Header aliases, compared after CleanCell and lowercasing.
var (
	idAliases    = []string{"id", "student id", "student_id", "numerical id", "numericalid"}
	nameAliases  = []string{"name", "full name", "student name"}
	emailAliases = []string{"email", "e-mail", "email address"}
)

var (
	ErrEmptyFile      = errors.New("empty file")
	ErrHeaderNotFound = errors.New("header not found (expected id and name columns)")
	ErrNoDataRows     = errors.New("no data rows after header")
)

// HeaderIndex maps column names (lowercase) to their position in the CSV row.
type HeaderIndex map[string]int

// MakeHeaderIndex indexes a header row by cleaned, lowercased name.
// The first occurrence of a repeated name wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// lookup returns the position of the first alias present.
func (h HeaderIndex) lookup(aliases []string) (int, bool) {
	for _, a := range aliases {
		if pos, ok := h[a]; ok {
			return pos, true
		}
	}
	return 0, false
}

// CleanCell removes common CSV artifacts from a cell value:
// surrounding whitespace, an Excel formula wrapper (="...") and stray quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"`))
}

type studentColumns struct {
	id, name, email int
	hasEmail        bool
}

// ParseStudentCSV reads a roster export into import rows.
//
// The header is the first of MaxHeaderSearchRows rows naming both an id and a
// name column. Rows after it that are entirely blank are skipped; the rest are
// numbered from 0 in file order.
func ParseStudentCSV(r io.Reader) ([]BulkImportRow, error) {
	cr := csv.NewReader(NewCleanReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var (
		cols    studentColumns
		found   bool
		scanned int
		rows    []BulkImportRow
	)

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse CSV: %w", err)
		}
		scanned++

		if !found {
			if scanned > MaxHeaderSearchRows {
				return nil, ErrHeaderNotFound
			}
			cols, found = findStudentColumns(record)
			continue
		}

		if isEmptyRow(record) {
			continue
		}
		rows = append(rows, BulkImportRow{
			Index: len(rows),
			ID:    cell(record, cols.id),
			Name:  cell(record, cols.name),
			Email: emailCell(record, cols),
		})
	}

	switch {
	case scanned == 0:
		return nil, ErrEmptyFile
	case !found:
		return nil, ErrHeaderNotFound
	case len(rows) == 0:
		return nil, ErrNoDataRows
	}
	return rows, nil
}

func findStudentColumns(record []string) (studentColumns, bool) {
	idx := MakeHeaderIndex(record)

	id, okID := idx.lookup(idAliases)
	name, okName := idx.lookup(nameAliases)
	if !okID || !okName {
		return studentColumns{}, false
	}

	email, okEmail := idx.lookup(emailAliases)
	return studentColumns{id: id, name: name, email: email, hasEmail: okEmail}, true
}

func cell(record []string, pos int) string {
	if pos >= len(record) {
		return ""
	}
	return CleanCell(record[pos])
}

func emailCell(record []string, cols studentColumns) string {
	if !cols.hasEmail {
		return ""
	}
	return cell(record, cols.email)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
