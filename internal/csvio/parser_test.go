package csvio

import (
	"errors"
	"strings"
	"testing"
)

const sampleCSV = `Date,Description,Category,Cost,Currency,Alice,Bob
2025-02-24,Mayuri,Groceries,42.56,USD,21.28,-21.28
2025-02-25,Mayuri Store,Groceries,27.62,USD,13.81,-13.81
`

func TestParse(t *testing.T) {
	result, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got, want := len(result.Transactions), 2; got != want {
		t.Fatalf("transactions = %d, want %d", got, want)
	}
	if got, want := result.People, []string{"Alice", "Bob"}; !equalStrings(got, want) {
		t.Errorf("people = %v, want %v", got, want)
	}
	if result.SkippedRows != 0 {
		t.Errorf("skippedRows = %d, want 0", result.SkippedRows)
	}

	first := result.Transactions[0]
	if first.Description != "Mayuri" || first.Cost != 42.56 || first.Currency != "USD" {
		t.Errorf("unexpected first transaction: %+v", first)
	}
	if len(first.Shares) != 2 {
		t.Fatalf("shares = %d, want 2", len(first.Shares))
	}
	if first.Shares[0].Name != "Alice" || first.Shares[0].Amount != 21.28 {
		t.Errorf("unexpected first share: %+v", first.Shares[0])
	}
	if first.Shares[1].Name != "Bob" || first.Shares[1].Amount != -21.28 {
		t.Errorf("unexpected second share: %+v", first.Shares[1])
	}
}

func TestParseSkipsUnusableRows(t *testing.T) {
	input := `Date,Description,Category,Cost,Currency,Alice,Bob
2025-02-24,Mayuri,Groceries,42.56,USD,21.28,-21.28
,,,,,,
2025-02-25,Mayuri Store,Groceries,not-a-number,USD,13.81,-13.81
2025-02-26,,Groceries,5.00,USD,2.50,-2.50
2025-02-27,Zero shares,Groceries,5.00,USD,0,0
,Total balance,,,,35.09,-35.09
`
	result, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got, want := len(result.Transactions), 1; got != want {
		t.Errorf("transactions = %d, want %d", got, want)
	}
	if got, want := result.SkippedRows, 5; got != want {
		t.Errorf("skippedRows = %d, want %d", got, want)
	}
}

func TestParseHeaderCaseInsensitive(t *testing.T) {
	input := `DATE, description ,Category,COST,currency,Alice
2025-01-01,Shop,Food,10,EUR,10
`
	result, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Transactions) != 1 {
		t.Errorf("transactions = %d, want 1", len(result.Transactions))
	}
}

func TestParseRaggedRows(t *testing.T) {
	// Shorter data rows are tolerated; shares past the row end are absent.
	input := `Date,Description,Category,Cost,Currency,Alice,Bob
2025-01-01,Shop,Food,10,EUR,10
`
	result, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(result.Transactions))
	}
	shares := result.Transactions[0].Shares
	if len(shares) != 1 || shares[0].Name != "Alice" {
		t.Errorf("shares = %+v, want single Alice share", shares)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty file", "", ErrEmptyFile},
		{"wrong header", "When,What,Kind,Price,Curr,Alice\n", ErrMissingHeader},
		{"too few columns", "Date,Description,Category\n", ErrMissingHeader},
		{"no person columns", "Date,Description,Category,Cost,Currency\n", ErrNoPeople},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
