package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingHeader is returned when the delimited text has no usable header line.
var ErrMissingHeader = errors.New("missing or incomplete header")

// Record is one candidate transaction keyed by lower-cased header name.
// Values are untrusted text straight from the model; see ToTransactions.
type Record map[string]string

// ParseRecords parses comma-delimited text whose first non-blank line is the
// header. Lines that are not valid CSV or do not match the header's field count
// are dropped.
func ParseRecords(text string) ([]Record, error) {
	return parseRecords(text, nil)
}

// parseRecords is ParseRecords with a hook called for every dropped line.
func parseRecords(text string, onSkip func(line int, err error)) ([]Record, error) {
	var header []string
	records := []Record{}

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if header == nil {
			fields, err := parseLine(line, -1)
			if err != nil {
				return nil, fmt.Errorf("ParseRecords: header: %w: %v", ErrMissingHeader, err)
			}
			header = normalizeHeader(fields)
			if missing := missingFields(header); len(missing) > 0 {
				return nil, fmt.Errorf("ParseRecords: header lacks %s: %w", strings.Join(missing, ", "), ErrMissingHeader)
			}
			continue
		}

		fields, err := parseLine(line, len(header))
		if err != nil {
			if onSkip != nil {
				onSkip(i+1, err)
			}
			continue
		}

		rec := make(Record, len(header))
		for j, name := range header {
			rec[name] = fields[j]
		}
		records = append(records, rec)
	}

	if header == nil {
		return nil, fmt.Errorf("ParseRecords: empty input: %w", ErrMissingHeader)
	}
	return records, nil
}

// parseLine reads one CSV record from a single line. A negative n accepts any
// field count.
func parseLine(line string, n int) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = n
	r.TrimLeadingSpace = true
	// models emit stray quotes inside unquoted fields, e.g. 5" display
	r.LazyQuotes = true
	return r.Read()
}

func normalizeHeader(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return out
}

func missingFields(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, f := range RequiredFields {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	return missing
}
