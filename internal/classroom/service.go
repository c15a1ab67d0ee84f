// Package classroom runs class lifecycle on top of the document store:
// classes, enrollment through invite codes, check-ins and the
// end-of-day absence sweep.
package classroom

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"classattend/internal/docstore"
	"classattend/internal/geo"
	"classattend/internal/invite"
	"classattend/internal/ledger"
)

var (
	ErrClassNotFound    = errors.New("class not found")
	ErrForbidden        = errors.New("not allowed for this user")
	ErrNotEnrolled      = errors.New("not enrolled in this class")
	ErrAlreadyEnrolled  = errors.New("already in the class")
	ErrNameTaken        = errors.New("another student already uses this name")
	ErrInvalidName      = errors.New("invalid student name")
	ErrInvalidInput     = errors.New("invalid input")
	ErrLocationRequired = errors.New("this class requires a check-in location")
	ErrOutOfRange       = errors.New("too far from the class location")
)

// reservedName is the record key holding the class's date list.
const reservedName = "dates"

// Roles an Actor can have.
const (
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

// Actor is the caller of an operation. The role comes from the request,
// never from process state.
type Actor struct {
	UID         string
	Email       string
	DisplayName string
	Role        string
}

func (a Actor) IsInstructor() bool { return a.Role == RoleInstructor }

// valid reports whether the uid can be used as a path segment.
func (a Actor) valid() bool {
	_, err := docstore.Path("user", a.UID)
	return err == nil
}

// Class is the document stored at class/{id}.
type Class struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CreatorUID      string    `json:"creator_uid"`
	CreatorEmail    string    `json:"creator_email,omitempty"`
	StartTime       string    `json:"start_time"`
	LateMinutes     int       `json:"late_minutes"`
	AbsentMinutes   int       `json:"absent_minutes"`
	Timezone        string    `json:"timezone,omitempty"`
	CheckinLocation string    `json:"checkin_location,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Options tune a Service.
type Options struct {
	// Location is used for classes without their own Timezone.
	Location *time.Location
	// CheckinRadiusMeters bounds geofenced check-ins; 0 disables the check.
	CheckinRadiusMeters float64
	Now                 func() time.Time
}

// Service coordinates classes, invites and the attendance ledger.
type Service struct {
	docs     docstore.Store
	invites  *invite.Issuer
	loc      *time.Location
	radius   float64
	now      func() time.Time
	validate *validator.Validate
}

// NewService creates a service backed by a document store.
func NewService(docs docstore.Store, invites *invite.Issuer, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		docs:     docs,
		invites:  invites,
		loc:      opts.Location,
		radius:   opts.CheckinRadiusMeters,
		now:      opts.Now,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := ledger.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("latlng", func(fl validator.FieldLevel) bool {
		_, err := geo.Parse(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("sessiondate", func(fl validator.FieldLevel) bool {
		_, err := ledger.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

func classPath(id string) (string, error) { return docstore.Path("class", id) }

func datesPath(id string) string { return docstore.MustPath("class", id, "students", reservedName) }

func studentsPath(id string) string { return docstore.MustPath("class", id, "students") }

func enrolledPath(id string) string { return docstore.MustPath("class", id, "enrolled") }

func userClassesPath(uid string) string { return docstore.MustPath("user", uid, "classes") }

// ValidateName checks a display name can be used as a record key.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, reservedName) || strings.ContainsAny(name, "/,\n\r") {
		return ErrInvalidName
	}
	return nil
}

// location resolves the class's zone, falling back to the service default.
func (s *Service) location(c Class) *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	return s.loc
}

func (s *Service) session(c Class, dates []string) ledger.Session {
	start, _ := ledger.ParseClock(c.StartTime)
	return ledger.Session{
		Start:         start,
		LateMinutes:   c.LateMinutes,
		AbsentMinutes: c.AbsentMinutes,
		Dates:         dates,
		Location:      s.location(c),
	}
}

// GetClass loads a class document.
func (s *Service) GetClass(ctx context.Context, id string) (Class, error) {
	p, err := classPath(id)
	if err != nil {
		return Class{}, ErrClassNotFound
	}
	raw, err := s.docs.Get(ctx, p)
	if errors.Is(err, docstore.ErrNotFound) {
		return Class{}, ErrClassNotFound
	}
	if err != nil {
		return Class{}, err
	}
	var c Class
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Class{}, err
	}
	c.ID = id
	return c, nil
}

func (s *Service) putClass(ctx context.Context, c Class) error {
	p, err := classPath(c.ID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.docs.Set(ctx, p, string(raw))
}

// ownedClass loads a class and checks actor is its instructor.
func (s *Service) ownedClass(ctx context.Context, actor Actor, id string) (Class, error) {
	c, err := s.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if !actor.IsInstructor() || c.CreatorUID != actor.UID {
		return Class{}, ErrForbidden
	}
	return c, nil
}

// ViewClass returns the class to its owning instructor or an enrolled
// student. Everyone else gets ErrForbidden.
func (s *Service) ViewClass(ctx context.Context, actor Actor, id string) (Class, error) {
	c, err := s.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if actor.IsInstructor() && c.CreatorUID == actor.UID {
		return c, nil
	}
	if !actor.valid() {
		return Class{}, ErrForbidden
	}
	_, err = s.docs.Get(ctx, docstore.MustPath("class", id, "enrolled", actor.UID))
	if errors.Is(err, docstore.ErrNotFound) {
		return Class{}, ErrForbidden
	}
	if err != nil {
		return Class{}, err
	}
	return c, nil
}

// Dates returns the class's session dates in insertion order.
func (s *Service) Dates(ctx context.Context, id string) ([]string, error) {
	if _, err := classPath(id); err != nil {
		return nil, ErrClassNotFound
	}
	raw, err := s.docs.Get(ctx, datesPath(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ledger.DecodeDates(raw), nil
}

// records loads every student record of a class, sorted by name.
func (s *Service) records(ctx context.Context, id string) ([]ledger.Record, error) {
	kids, err := s.docs.Children(ctx, studentsPath(id))
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Record, 0, len(kids))
	for name, raw := range kids {
		if name == reservedName {
			continue
		}
		out = append(out, ledger.Record{Student: name, Codes: ledger.DecodeCodes(raw)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Student < out[j].Student })
	return out, nil
}

// enrollment returns uid -> display name for a class.
func (s *Service) enrollment(ctx context.Context, id string) (map[string]string, error) {
	return s.docs.Children(ctx, enrolledPath(id))
}
