package classroom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"classattend/internal/docstore"
	"classattend/internal/geo"
	"classattend/internal/ledger"
	"classattend/internal/observability"
)

// CheckinResult is what a successful check-in recorded.
type CheckinResult struct {
	ClassID string      `json:"class_id"`
	Student string      `json:"student"`
	Date    string      `json:"date"`
	Code    ledger.Code `json:"code"`
	At      time.Time   `json:"at"`
}

// CheckIn classifies the current time against the class schedule and
// records the code for today. location is "lat, lng" and may be empty
// when the class has no check-in location.
func (s *Service) CheckIn(ctx context.Context, actor Actor, id, location string) (CheckinResult, error) {
	res, err := s.checkIn(ctx, actor, id, location)
	if err != nil {
		observability.RecordCheckin(checkinOutcome(err))
		log.Warn().Err(err).Str("class", id).Str("uid", actor.UID).Msg("check-in rejected")
		return CheckinResult{}, err
	}
	observability.RecordCheckin(string(res.Code))
	log.Info().
		Str("class", id).
		Str("student", res.Student).
		Str("date", res.Date).
		Str("code", string(res.Code)).
		Msg("check-in recorded")
	return res, nil
}

func (s *Service) checkIn(ctx context.Context, actor Actor, id, location string) (CheckinResult, error) {
	c, err := s.GetClass(ctx, id)
	if err != nil {
		return CheckinResult{}, err
	}
	if !actor.valid() {
		return CheckinResult{}, ErrNotEnrolled
	}
	name, err := s.docs.Get(ctx, docstore.MustPath("class", id, "enrolled", actor.UID))
	if errors.Is(err, docstore.ErrNotFound) {
		return CheckinResult{}, ErrNotEnrolled
	}
	if err != nil {
		return CheckinResult{}, err
	}

	dates, err := s.Dates(ctx, id)
	if err != nil {
		return CheckinResult{}, err
	}
	now := s.now()
	sess := s.session(c, dates)
	today := sess.Today(now)
	if sess.IndexOf(today) < 0 {
		return CheckinResult{}, ledger.ErrDateNotFound
	}
	if err := s.checkDistance(c, location); err != nil {
		return CheckinResult{}, err
	}
	code, err := sess.Classify(now)
	if err != nil {
		return CheckinResult{}, err
	}

	recordPath := docstore.MustPath("class", id, "students", name)
	raw, err := s.docs.Get(ctx, recordPath)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return CheckinResult{}, err
	}
	rec, err := ledger.RecordCheckin(sess, ledger.Record{Student: name, Codes: ledger.DecodeCodes(raw)}, today, code)
	if err != nil {
		return CheckinResult{}, err
	}
	if err := s.docs.Set(ctx, recordPath, ledger.EncodeCodes(rec.Codes)); err != nil {
		return CheckinResult{}, err
	}
	return CheckinResult{ClassID: id, Student: name, Date: today, Code: code, At: now.UTC()}, nil
}

func (s *Service) checkDistance(c Class, location string) error {
	if c.CheckinLocation == "" || s.radius <= 0 {
		return nil
	}
	if strings.TrimSpace(location) == "" {
		return ErrLocationRequired
	}
	at, err := geo.Parse(location)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	target, err := geo.Parse(c.CheckinLocation)
	if err != nil {
		// a class with an unreadable location cannot be geofenced
		return nil
	}
	if !geo.Within(target, at, s.radius) {
		return ErrOutOfRange
	}
	return nil
}

func checkinOutcome(err error) string {
	switch {
	case errors.Is(err, ledger.ErrTooEarly):
		return "too_early"
	case errors.Is(err, ledger.ErrDateNotFound):
		return "date_not_found"
	case errors.Is(err, ledger.ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, ErrOutOfRange), errors.Is(err, ErrLocationRequired):
		return "out_of_range"
	case errors.Is(err, ErrNotEnrolled), errors.Is(err, ErrClassNotFound):
		return "not_enrolled"
	default:
		return "error"
	}
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Classes int `json:"classes"`
	Marked  int `json:"marked"`
	Failed  int `json:"failed"`
}

// Sweep marks every unrecorded slot for today as absent. With classID set
// only that class is swept. date overrides "today" (each class's local
// date at now) and must be YYYY-MM-DD. Running it again is a no-op.
func (s *Service) Sweep(ctx context.Context, now time.Time, classID, date string) (SweepReport, error) {
	if date != "" {
		d, err := ledger.ParseDate(date)
		if err != nil {
			return SweepReport{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		date = d
	}

	var ids []string
	if classID != "" {
		if _, err := s.GetClass(ctx, classID); err != nil {
			return SweepReport{}, err
		}
		ids = []string{classID}
	} else {
		docs, err := s.docs.Children(ctx, "class")
		if err != nil {
			return SweepReport{}, err
		}
		for id := range docs {
			ids = append(ids, id)
		}
	}

	var report SweepReport
	var lastErr error
	for _, id := range ids {
		marked, err := s.sweepClass(ctx, id, now, date)
		if err != nil {
			report.Failed++
			lastErr = err
			log.Error().Err(err).Str("class", id).Msg("sweep failed")
			continue
		}
		report.Classes++
		report.Marked += marked
	}
	observability.RecordSweep(report.Marked, lastErr)
	if lastErr != nil {
		return report, fmt.Errorf("sweep: %d of %d classes failed: %w", report.Failed, len(ids), lastErr)
	}
	return report, nil
}

func (s *Service) sweepClass(ctx context.Context, id string, now time.Time, date string) (int, error) {
	c, err := s.GetClass(ctx, id)
	if err != nil {
		return 0, err
	}
	dates, err := s.Dates(ctx, id)
	if err != nil {
		return 0, err
	}
	sess := s.session(c, dates)
	today := date
	if today == "" {
		today = sess.LastClosedDate(now)
	}
	if sess.IndexOf(today) < 0 {
		return 0, nil
	}

	records, err := s.records(ctx, id)
	if err != nil {
		return 0, err
	}
	var pending []ledger.Record
	for _, rec := range records {
		if ledger.Changed(sess, rec, today) {
			pending = append(pending, rec)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	writes := make(map[string]string, len(pending))
	for _, rec := range ledger.SweepAbsences(sess, pending, today) {
		writes[docstore.MustPath("class", id, "students", rec.Student)] = ledger.EncodeCodes(rec.Codes)
		log.Debug().Str("class", id).Str("student", rec.Student).Str("date", today).Msg("marked absent")
	}
	if err := s.docs.Update(ctx, writes); err != nil {
		return 0, err
	}
	return len(pending), nil
}
