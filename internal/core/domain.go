package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the wire format for transaction dates. Dates are kept as
// zero-padded ISO strings so that lexical comparison equals chronological
// comparison everywhere in the analytics code.
const DateLayout = "2006-01-02"

type (
	// Share is one person's signed monetary allocation within a
	// transaction. By convention the payer carries a negative amount and
	// the others positive (or vice versa); the analytics consume the
	// signed values as given and never enforce a summation rule.
	Share struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
	}

	// Transaction is one imported CSV row. It is treated as an immutable
	// value: every operation that needs a modified transaction allocates
	// a new one.
	Transaction struct {
		Date        string  `json:"date"`
		Description string  `json:"description"`
		Category    string  `json:"category"`
		Cost        float64 `json:"cost"`
		Currency    string  `json:"currency"`
		Shares      []Share `json:"shares"`
	}

	// StoreGrouping is one cluster of near-duplicate store descriptions.
	// CanonicalName is never repeated inside Variations.
	StoreGrouping struct {
		CanonicalName string   `json:"canonicalName"`
		Variations    []string `json:"variations"`
	}

	// StoreMapping is the persisted form of the confirmed groupings:
	// canonical name -> its variations. Descriptions absent from the
	// mapping are considered unconfirmed.
	StoreMapping map[string][]string

	// AnalysisFilters narrows the transaction set before aggregation.
	// A zero-value field means no constraint on that dimension. Stores
	// holds canonical names only.
	AnalysisFilters struct {
		StartDate  string   `json:"startDate,omitempty"`
		EndDate    string   `json:"endDate,omitempty"`
		People     []string `json:"people,omitempty"`
		Categories []string `json:"categories,omitempty"`
		Stores     []string `json:"stores,omitempty"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date, want YYYY-MM-DD")
	ErrEmptyDescription = errors.New("empty description")
	ErrNoShares         = errors.New("transaction has no shares")
	ErrInvalidRange     = errors.New("end date before start date")
)

// ValidDate reports whether s is a well-formed zero-padded ISO date.
func ValidDate(s string) bool {
	t, err := time.Parse(DateLayout, s)
	return err == nil && t.Format(DateLayout) == s
}

func (t Transaction) Validate() error {
	if !ValidDate(t.Date) {
		return ErrInvalidDate
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Shares) == 0 {
		return ErrNoShares
	}
	return nil
}

// Month returns the YYYY-MM bucket key of the transaction date.
func (t Transaction) Month() string {
	if len(t.Date) < 7 {
		return t.Date
	}
	return t.Date[:7]
}

// Time parses the transaction date. Callers that reached this point
// through validation can ignore the error.
func (t Transaction) Time() (time.Time, error) {
	return time.Parse(DateLayout, t.Date)
}

// Clone returns a deep copy; the shares slice is never aliased.
func (t Transaction) Clone() Transaction {
	out := t
	out.Shares = append([]Share(nil), t.Shares...)
	return out
}

func (f AnalysisFilters) Validate() error {
	if f.StartDate != "" && !ValidDate(f.StartDate) {
		return ErrInvalidDate
	}
	if f.EndDate != "" && !ValidDate(f.EndDate) {
		return ErrInvalidDate
	}
	if f.StartDate != "" && f.EndDate != "" && f.EndDate < f.StartDate {
		return ErrInvalidRange
	}
	return nil
}

// IsZero reports whether no dimension is constrained.
func (f AnalysisFilters) IsZero() bool {
	return f.StartDate == "" && f.EndDate == "" &&
		len(f.People) == 0 && len(f.Categories) == 0 && len(f.Stores) == 0
}

// ReverseIndex inverts the mapping to variation -> canonical. Canonical
// names map to themselves so lookups work for already-canonical
// descriptions.
func (m StoreMapping) ReverseIndex() map[string]string {
	idx := make(map[string]string, len(m)*2)
	for canonical, variations := range m {
		idx[canonical] = canonical
		for _, v := range variations {
			idx[v] = canonical
		}
	}
	return idx
}

// Clone returns an independent copy of the mapping.
func (m StoreMapping) Clone() StoreMapping {
	out := make(StoreMapping, len(m))
	for canonical, variations := range m {
		out[canonical] = append([]string(nil), variations...)
	}
	return out
}

// CloneTransactions deep-copies a transaction slice.
func CloneTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	for i, t := range txs {
		out[i] = t.Clone()
	}
	return out
}
