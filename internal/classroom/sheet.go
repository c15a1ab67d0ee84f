package classroom

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"classattend/internal/docstore"
	"classattend/internal/ledger"
)

// Sheet is a class's attendance: the session dates and the records
// padded to match them.
type Sheet struct {
	Dates   []string        `json:"dates"`
	Records []ledger.Record `json:"records"`
}

// Attendance returns every record to the owning instructor and only the
// caller's own record to an enrolled student.
func (s *Service) Attendance(ctx context.Context, actor Actor, id string) (Sheet, error) {
	c, err := s.GetClass(ctx, id)
	if err != nil {
		return Sheet{}, err
	}
	dates, err := s.Dates(ctx, id)
	if err != nil {
		return Sheet{}, err
	}

	if actor.IsInstructor() && c.CreatorUID == actor.UID {
		records, err := s.records(ctx, id)
		if err != nil {
			return Sheet{}, err
		}
		for i := range records {
			records[i].Codes = ledger.Padded(records[i].Codes, len(dates))
		}
		return Sheet{Dates: dates, Records: records}, nil
	}

	if !actor.valid() {
		return Sheet{}, ErrForbidden
	}
	name, err := s.docs.Get(ctx, docstore.MustPath("class", id, "enrolled", actor.UID))
	if errors.Is(err, docstore.ErrNotFound) {
		return Sheet{}, ErrForbidden
	}
	if err != nil {
		return Sheet{}, err
	}
	raw, err := s.docs.Get(ctx, docstore.MustPath("class", id, "students", name))
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return Sheet{}, err
	}
	rec := ledger.Record{Student: name, Codes: ledger.Padded(ledger.DecodeCodes(raw), len(dates))}
	return Sheet{Dates: dates, Records: []ledger.Record{rec}}, nil
}

// Export writes the class sheet as CSV.
func (s *Service) Export(ctx context.Context, actor Actor, id string, w io.Writer) error {
	if _, err := s.ownedClass(ctx, actor, id); err != nil {
		return err
	}
	sheet, err := s.Attendance(ctx, actor, id)
	if err != nil {
		return err
	}
	return ledger.WriteCSV(w, sheet.Dates, sheet.Records)
}

// Import replaces the class's dates and records with a CSV sheet. Records
// that exist but are not in the file are reset to empty so every record
// stays aligned with the new dates. All writes land in one update.
func (s *Service) Import(ctx context.Context, actor Actor, id string, r io.Reader) (Sheet, error) {
	if _, err := s.ownedClass(ctx, actor, id); err != nil {
		return Sheet{}, err
	}
	dates, records, err := ledger.ReadCSV(r)
	if err != nil {
		return Sheet{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	writes := map[string]string{datesPath(id): ledger.EncodeDates(dates)}
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if err := ValidateName(rec.Student); err != nil {
			return Sheet{}, fmt.Errorf("%w: %q", err, rec.Student)
		}
		if seen[rec.Student] {
			return Sheet{}, fmt.Errorf("%w: duplicate student %q", ErrInvalidInput, rec.Student)
		}
		seen[rec.Student] = true
		writes[docstore.MustPath("class", id, "students", rec.Student)] = ledger.EncodeCodes(rec.Codes)
	}

	existing, err := s.records(ctx, id)
	if err != nil {
		return Sheet{}, err
	}
	blank := ledger.EncodeCodes(make([]ledger.Code, len(dates)))
	for _, rec := range existing {
		if !seen[rec.Student] {
			writes[docstore.MustPath("class", id, "students", rec.Student)] = blank
		}
	}

	if err := s.docs.Update(ctx, writes); err != nil {
		return Sheet{}, err
	}
	log.Info().Str("class", id).Int("dates", len(dates)).Int("records", len(records)).Msg("attendance imported")
	return s.Attendance(ctx, actor, id)
}
