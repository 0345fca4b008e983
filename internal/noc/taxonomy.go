package noc

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Entry is a single NOC unit group: one row of the classification table,
// uniquely keyed by its five-digit code. Entries are immutable after load.
type Entry struct {
	Code           string
	Title          string
	Description    string
	MainDuties     []string
	Requirements   string
	ExampleTitles  []string
	AdditionalInfo string
	URL            string
}

// Taxonomy holds the loaded classification table. Read-only at matching time.
type Taxonomy struct {
	Entries []*Entry

	byCode map[string]*Entry
}

// New builds a taxonomy from already-parsed entries. Entry order is
// significant: it defines the canonical embedding order and the fingerprint.
func New(entries []*Entry) *Taxonomy {
	t := &Taxonomy{
		Entries: entries,
		byCode:  make(map[string]*Entry, len(entries)),
	}
	for _, e := range entries {
		t.byCode[e.Code] = e
	}
	return t
}

func (t *Taxonomy) Len() int {
	return len(t.Entries)
}

// DutyCount returns the total number of duty statements across all entries.
func (t *Taxonomy) DutyCount() int {
	n := 0
	for _, e := range t.Entries {
		n += len(e.MainDuties)
	}
	return n
}

// Codes returns the entry codes in taxonomy order.
func (t *Taxonomy) Codes() []string {
	codes := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		codes = append(codes, e.Code)
	}
	return codes
}

// FindByCode returns the entry with the given code, or nil.
func (t *Taxonomy) FindByCode(code string) *Entry {
	return t.byCode[code]
}

// Fingerprint identifies the taxonomy content for cache compatibility checks:
// a sha256 over the ordered entry codes. Any change in entry set or order
// produces a different fingerprint.
func (t *Taxonomy) Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.Join(t.Codes(), "\n")))
	return fmt.Sprintf("%x", sum[:])
}
