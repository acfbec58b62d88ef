// Package csvio parses shared-expense CSV exports. The expected layout is
// five fixed columns followed by one column per person:
//
//	Date,Description,Category,Cost,Currency,Alice,Bob,...
//
// Each person column holds that person's signed share of the row. The
// dynamic person columns are converted to the static Shares sequence here,
// at the boundary, so the analytics core never deals with dynamic keys.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"splitlens/internal/core"
)

const fixedColumns = 5

var (
	ErrEmptyFile     = errors.New("csv file is empty")
	ErrMissingHeader = errors.New("first row is not a Date,Description,Category,Cost,Currency header")
	ErrNoPeople      = errors.New("header declares no person columns")
)

// ImportResult is the outcome of parsing one upload. Rows that cannot be
// interpreted (blank separators, running-total footers, malformed
// amounts) are skipped and counted rather than failing the import.
type ImportResult struct {
	Transactions []core.Transaction `json:"transactions"`
	People       []string           `json:"people"`
	SkippedRows  int                `json:"skippedRows"`
}

// Parse reads a full CSV export from r.
func Parse(r io.Reader) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged exports are tolerated per-row

	records, err := reader.ReadAll()
	if err != nil {
		return ImportResult{}, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return ImportResult{}, ErrEmptyFile
	}

	people, err := parseHeader(records[0])
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{People: people, Transactions: []core.Transaction{}}
	for _, record := range records[1:] {
		t, ok := parseRow(record, people)
		if !ok {
			result.SkippedRows++
			continue
		}
		result.Transactions = append(result.Transactions, t)
	}
	return result, nil
}

func parseHeader(header []string) ([]string, error) {
	if len(header) < fixedColumns {
		return nil, ErrMissingHeader
	}
	expected := []string{"date", "description", "category", "cost", "currency"}
	for i, want := range expected {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return nil, ErrMissingHeader
		}
	}

	var people []string
	for _, col := range header[fixedColumns:] {
		name := strings.TrimSpace(col)
		if name == "" {
			continue
		}
		people = append(people, name)
	}
	if len(people) == 0 {
		return nil, ErrNoPeople
	}
	return people, nil
}

// parseRow converts one data row. Splitwise-style exports carry blank
// separator rows and a trailing "Total balance" row with no date; both
// fail date validation and are skipped.
func parseRow(record []string, people []string) (core.Transaction, bool) {
	if len(record) < fixedColumns {
		return core.Transaction{}, false
	}

	date := strings.TrimSpace(record[0])
	if !core.ValidDate(date) {
		return core.Transaction{}, false
	}

	cost, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
	if err != nil {
		return core.Transaction{}, false
	}

	t := core.Transaction{
		Date:        date,
		Description: strings.TrimSpace(record[1]),
		Category:    strings.TrimSpace(record[2]),
		Cost:        cost,
		Currency:    strings.TrimSpace(record[4]),
	}
	if t.Description == "" {
		return core.Transaction{}, false
	}

	for i, person := range people {
		col := fixedColumns + i
		if col >= len(record) {
			break
		}
		raw := strings.TrimSpace(record[col])
		if raw == "" {
			continue
		}
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if amount == 0 {
			continue // person not involved in this row
		}
		t.Shares = append(t.Shares, core.Share{Name: person, Amount: amount})
	}
	if len(t.Shares) == 0 {
		return core.Transaction{}, false
	}
	return t, true
}
