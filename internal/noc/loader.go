package noc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// ErrTaxonomyLoad indicates a malformed taxonomy source. Fatal at startup; a
// partial taxonomy is never served.
var ErrTaxonomyLoad = errors.New("taxonomy load failed")

// Policies for handling malformed rows (missing code or empty duty list).
const (
	OnMalformedReject = "reject"
	OnMalformedSkip   = "skip"
)

var columns = []string{
	"noc_code",
	"title",
	"description",
	"main_duties",
	"employment_requirements",
	"example_titles",
	"additional_information",
	"url",
}

// Load reads the taxonomy table from a CSV file with a header row. Columns
// are resolved by name, so extra columns (the scraper emits hierarchy and
// exclusion columns next to the required ones) are tolerated and ignored.
// List columns (main_duties, example_titles) hold pipe-separated values.
// onMalformed selects whether malformed rows are skipped with a warning or
// reject the whole load. Duplicate codes always reject. Duties are never
// fabricated for entries that lack them.
func Load(path string, onMalformed string, logger *zap.Logger) (*Taxonomy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch onMalformed {
	case OnMalformedReject, OnMalformedSkip:
	case "":
		onMalformed = OnMalformedReject
	default:
		return nil, fmt.Errorf("%w: unknown on-malformed policy %q", ErrTaxonomyLoad, onMalformed)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTaxonomyLoad, err)
	}
	defer file.Close()

	// The reader pins every record to the header's field count, so indexing
	// records by resolved column position is safe.
	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrTaxonomyLoad, err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	seen := make(map[string]int)

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrTaxonomyLoad, line, err)
		}

		entry := &Entry{
			Code:           strings.TrimSpace(record[idx["noc_code"]]),
			Title:          strings.TrimSpace(record[idx["title"]]),
			Description:    strings.TrimSpace(record[idx["description"]]),
			MainDuties:     splitList(record[idx["main_duties"]]),
			Requirements:   strings.TrimSpace(record[idx["employment_requirements"]]),
			ExampleTitles:  splitList(record[idx["example_titles"]]),
			AdditionalInfo: strings.TrimSpace(record[idx["additional_information"]]),
			URL:            strings.TrimSpace(record[idx["url"]]),
		}

		if reason := malformedReason(entry); reason != "" {
			if onMalformed == OnMalformedSkip {
				logger.Warn("skipping malformed taxonomy row",
					zap.Int("line", line),
					zap.String("code", entry.Code),
					zap.String("reason", reason),
				)
				continue
			}
			return nil, fmt.Errorf("%w: line %d: %s", ErrTaxonomyLoad, line, reason)
		}

		if prev, ok := seen[entry.Code]; ok {
			return nil, fmt.Errorf("%w: line %d: duplicate code %s (first seen on line %d)",
				ErrTaxonomyLoad, line, entry.Code, prev)
		}
		seen[entry.Code] = line

		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no usable entries in %s", ErrTaxonomyLoad, path)
	}

	logger.Info("taxonomy loaded",
		zap.String("path", path),
		zap.Int("entries", len(entries)),
	)

	return New(entries), nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range columns {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrTaxonomyLoad, name)
		}
	}
	return idx, nil
}

func malformedReason(e *Entry) string {
	if e.Code == "" {
		return "missing code"
	}
	if e.Title == "" {
		return "missing title"
	}
	if len(e.MainDuties) == 0 {
		return "empty duty list"
	}
	return ""
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(raw, "|") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
