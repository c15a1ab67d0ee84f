package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const csvHeader = "dates"

var ErrMalformedCSV = errors.New("malformed attendance csv")

// WriteCSV writes the header row followed by one row per record, each
// padded to the number of dates.
func WriteCSV(w io.Writer, dates []string, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{csvHeader}, dates...)); err != nil {
		return err
	}
	for _, rec := range records {
		codes := Padded(rec.Codes, len(dates))[:len(dates)]
		row := make([]string, 0, len(codes)+1)
		row = append(row, rec.Student)
		for _, c := range codes {
			row = append(row, string(c))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file produced by WriteCSV (or edited by hand). Short
// rows are padded with empty codes.
func ReadCSV(r io.Reader) ([]string, []Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%w: empty input", ErrMalformedCSV)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	if len(header) == 0 || strings.TrimSpace(header[0]) != csvHeader {
		return nil, nil, fmt.Errorf("%w: first column must be %q", ErrMalformedCSV, csvHeader)
	}

	var dates []string
	for _, raw := range header[1:] {
		if dates, err = AppendDates(dates, raw); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
	}
	// columns are positional, so a collapsed duplicate would shift every code after it
	if len(dates) != len(header)-1 {
		return nil, nil, fmt.Errorf("%w: duplicate date in header", ErrMalformedCSV)
	}

	var records []Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		marks := row[1:]
		if len(marks) > len(dates) {
			return nil, nil, fmt.Errorf("%w: line %d has %d codes for %d dates", ErrMalformedCSV, line, len(marks), len(dates))
		}
		codes := make([]Code, len(dates))
		for i, m := range marks {
			c := Code(strings.ToUpper(strings.TrimSpace(m)))
			if !c.Valid() {
				return nil, nil, fmt.Errorf("%w: line %d: unknown code %q", ErrMalformedCSV, line, m)
			}
			codes[i] = c
		}
		records = append(records, Record{Student: name, Codes: codes})
	}
	return dates, records, nil
}
