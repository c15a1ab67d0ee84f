package classroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"classattend/internal/docstore"
	"classattend/internal/geo"
	"classattend/internal/ledger"
)

// CreateClassInput describes a new class.
type CreateClassInput struct {
	Name            string   `json:"name" validate:"required,max=120"`
	StartTime       string   `json:"start_time" validate:"required,clock"`
	LateMinutes     int      `json:"late_minutes"`
	AbsentMinutes   int      `json:"absent_minutes"`
	Timezone        string   `json:"timezone" validate:"omitempty,timezone"`
	CheckinLocation string   `json:"checkin_location" validate:"omitempty,latlng"`
	Dates           []string `json:"dates" validate:"dive,sessiondate"`
}

// CreateClass stores a new class owned by actor together with its
// initial session dates.
func (s *Service) CreateClass(ctx context.Context, actor Actor, in CreateClassInput) (Class, error) {
	if !actor.IsInstructor() {
		return Class{}, ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.LateMinutes < 0 || in.AbsentMinutes < in.LateMinutes {
		return Class{}, ledger.ErrInvalidConfiguration
	}
	if err := s.validate.Struct(in); err != nil {
		return Class{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	dates, err := ledger.AppendDates(nil, in.Dates...)
	if err != nil {
		return Class{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	start, _ := ledger.ParseClock(in.StartTime)
	location := ""
	if in.CheckinLocation != "" {
		p, _ := geo.Parse(in.CheckinLocation)
		location = p.String()
	}

	c := Class{
		ID:              uuid.NewString(),
		Name:            in.Name,
		CreatorUID:      actor.UID,
		CreatorEmail:    actor.Email,
		StartTime:       start.String(),
		LateMinutes:     in.LateMinutes,
		AbsentMinutes:   in.AbsentMinutes,
		Timezone:        in.Timezone,
		CheckinLocation: location,
		CreatedAt:       s.now().UTC(),
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return Class{}, err
	}
	if err := s.docs.Update(ctx, map[string]string{
		docstore.MustPath("class", c.ID): string(raw),
		datesPath(c.ID):                  ledger.EncodeDates(dates),
	}); err != nil {
		return Class{}, err
	}
	log.Info().Str("class", c.ID).Str("instructor", actor.UID).Int("dates", len(dates)).Msg("class created")
	return c, nil
}

// ListClasses returns the classes an instructor created, or the classes a
// student is enrolled in.
func (s *Service) ListClasses(ctx context.Context, actor Actor) ([]Class, error) {
	var classes []Class
	if actor.IsInstructor() {
		docs, err := s.docs.Children(ctx, "class")
		if err != nil {
			return nil, err
		}
		for id, raw := range docs {
			var c Class
			if err := json.Unmarshal([]byte(raw), &c); err != nil {
				log.Warn().Err(err).Str("class", id).Msg("skipping unreadable class")
				continue
			}
			if c.CreatorUID == actor.UID {
				c.ID = id
				classes = append(classes, c)
			}
		}
	} else {
		if !actor.valid() {
			return nil, ErrForbidden
		}
		links, err := s.docs.Children(ctx, userClassesPath(actor.UID))
		if err != nil {
			return nil, err
		}
		for id := range links {
			c, err := s.GetClass(ctx, id)
			if errors.Is(err, ErrClassNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			classes = append(classes, c)
		}
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Name != classes[j].Name {
			return classes[i].Name < classes[j].Name
		}
		return classes[i].ID < classes[j].ID
	})
	return classes, nil
}

// AddDates appends new session dates. Existing records are not rewritten;
// reads pad them to the new length.
func (s *Service) AddDates(ctx context.Context, actor Actor, id string, more []string) ([]string, error) {
	if _, err := s.ownedClass(ctx, actor, id); err != nil {
		return nil, err
	}
	dates, err := s.Dates(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := ledger.AppendDates(dates, more...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(updated) == len(dates) {
		return dates, nil
	}
	if err := s.docs.Set(ctx, datesPath(id), ledger.EncodeDates(updated)); err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateLocation sets the point check-ins are measured against. An empty
// location turns geofencing off for the class.
func (s *Service) UpdateLocation(ctx context.Context, actor Actor, id, location string) (Class, error) {
	c, err := s.ownedClass(ctx, actor, id)
	if err != nil {
		return Class{}, err
	}
	c.CheckinLocation = ""
	if strings.TrimSpace(location) != "" {
		p, err := geo.Parse(location)
		if err != nil {
			return Class{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		c.CheckinLocation = p.String()
	}
	if err := s.putClass(ctx, c); err != nil {
		return Class{}, err
	}
	return c, nil
}

// DeleteClass removes the class and unlinks it from every enrolled student.
func (s *Service) DeleteClass(ctx context.Context, actor Actor, id string) error {
	if _, err := s.ownedClass(ctx, actor, id); err != nil {
		return err
	}
	enrolled, err := s.enrollment(ctx, id)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(enrolled)+1)
	for uid := range enrolled {
		paths = append(paths, docstore.MustPath("user", uid, "classes", id))
	}
	paths = append(paths, docstore.MustPath("class", id))
	if err := s.docs.DeleteAll(ctx, paths...); err != nil {
		return err
	}
	log.Info().Str("class", id).Int("students", len(enrolled)).Msg("class deleted")
	return nil
}
