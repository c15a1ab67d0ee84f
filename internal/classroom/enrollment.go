package classroom

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"classattend/internal/docstore"
	"classattend/internal/invite"
	"classattend/internal/ledger"
	"classattend/internal/observability"
)

// IssueInvite creates a time-limited invite code for a class the actor owns.
func (s *Service) IssueInvite(ctx context.Context, actor Actor, id string) (invite.Invite, error) {
	if _, err := s.ownedClass(ctx, actor, id); err != nil {
		return invite.Invite{}, err
	}
	inv, err := s.invites.Issue(ctx, id)
	if err != nil {
		return invite.Invite{}, err
	}
	log.Info().Str("class", id).Time("expiry", inv.Expiry).Msg("invite issued")
	return inv, nil
}

// Join redeems an invite code and enrolls actor under their display name.
// A record already present under that name (from a CSV import) is claimed
// as-is; otherwise an all-empty record sized to the current dates is
// created.
func (s *Service) Join(ctx context.Context, actor Actor, code string) (Class, error) {
	name := strings.TrimSpace(actor.DisplayName)
	if err := ValidateName(name); err != nil {
		return Class{}, err
	}
	if !actor.valid() {
		return Class{}, ErrForbidden
	}

	id, err := s.invites.Redeem(ctx, code, s.now())
	if err != nil {
		observability.RecordInviteRedemption(redemptionResult(err))
		return Class{}, err
	}
	c, err := s.GetClass(ctx, id)
	if err != nil {
		observability.RecordInviteRedemption("class_missing")
		return Class{}, err
	}

	enrolled, err := s.enrollment(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if _, ok := enrolled[actor.UID]; ok {
		observability.RecordInviteRedemption("already_enrolled")
		return Class{}, ErrAlreadyEnrolled
	}
	for _, other := range enrolled {
		if other == name {
			return Class{}, ErrNameTaken
		}
	}

	recordPath := docstore.MustPath("class", id, "students", name)
	writes := map[string]string{
		docstore.MustPath("user", actor.UID, "classes", id):  "true",
		docstore.MustPath("class", id, "enrolled", actor.UID): name,
	}
	if _, err := s.docs.Get(ctx, recordPath); errors.Is(err, docstore.ErrNotFound) {
		dates, err := s.Dates(ctx, id)
		if err != nil {
			return Class{}, err
		}
		writes[recordPath] = ledger.EncodeCodes(make([]ledger.Code, len(dates)))
	} else if err != nil {
		return Class{}, err
	}

	if err := s.docs.Update(ctx, writes); err != nil {
		return Class{}, err
	}
	observability.RecordInviteRedemption("joined")
	log.Info().Str("class", id).Str("student", name).Str("uid", actor.UID).Msg("student joined")
	return c, nil
}

func redemptionResult(err error) string {
	switch {
	case errors.Is(err, invite.ErrExpired):
		return "expired"
	case errors.Is(err, invite.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
