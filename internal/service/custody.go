package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/lab-key-reservation/internal/metrics"
	"github.com/iliyamo/lab-key-reservation/internal/model"
	"github.com/iliyamo/lab-key-reservation/internal/queue"
	"github.com/iliyamo/lab-key-reservation/internal/token"
)

// Custody channels recorded in metrics and events.
const (
	ChannelDesk  = "desk"
	ChannelKiosk = "kiosk"
)

// CustodyService moves physical keys in and out of custody. Every
// pickup and return runs as one transaction: the reservation row is
// locked first, then the key row, and the guarded status updates make
// the loser of any race fail with a state-conflict error instead of
// double-issuing a key.
type CustodyService struct {
	store  Store
	events EventPublisher
	policy Policy
	log    zerolog.Logger

	Now func() time.Time
}

// NewCustodyService wires the key-custody engine.
func NewCustodyService(store Store, events EventPublisher, policy Policy, log zerolog.Logger) *CustodyService {
	return &CustodyService{
		store:  store,
		events: events,
		policy: policy,
		log:    log,
		Now:    time.Now,
	}
}

// Pickup hands a key to the borrower at the staff desk. handledBy is
// the staff member operating the desk. On a pickup attempted after the
// grace window the reservation is forfeited: the APPROVED to NO_SHOW
// flip commits even though the call itself fails with
// ErrLateCheckinNoShow.
func (s *CustodyService) Pickup(ctx context.Context, reservationID, borrowerID uint64, handledBy *uint64) (*model.Loan, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	loan, err := s.pickupTx(ctx, tx, reservationID, borrowerID, handledBy, &committed)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.afterPickup(loan, ChannelDesk)
	return loan, nil
}

// pickupTx runs the pickup steps inside an open transaction. When the
// late-pickup rule fires it commits the NO_SHOW flip itself and marks
// the transaction committed through the flag so the caller's rollback
// does not undo the forfeit.
func (s *CustodyService) pickupTx(ctx context.Context, tx Tx, reservationID, borrowerID uint64, handledBy *uint64, committed *bool) (*model.Loan, error) {
	res, err := tx.ReservationForUpdate(ctx, reservationID)
	if err != nil {
		return nil, mapNoRows(err)
	}
	switch res.Status {
	case model.ReservationApproved:
	case model.ReservationCheckedIn:
		return nil, ErrAlreadyCheckedIn
	default:
		return nil, ErrNotApproved
	}

	// The loans unique key already forbids a second loan; this check
	// turns the constraint violation into the precise error.
	if _, err := tx.LoanByReservation(ctx, reservationID); err == nil {
		return nil, ErrAlreadyCheckedIn
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := s.Now().UTC()
	if now.After(res.StartAt.Add(s.policy.LatePickupGrace)) {
		ok, err := tx.UpdateReservationStatus(ctx, reservationID, model.ReservationApproved, model.ReservationNoShow, nil)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := tx.Commit(); err != nil {
				return nil, err
			}
			*committed = true
			metrics.AddNoShows(1)
			s.publish(queue.EventNoShow, queue.ReservationEvent{
				ReservationID: reservationID,
				RoomID:        res.RoomID,
				OccurredAt:    now.Format(time.RFC3339),
			})
			s.log.Info().Uint64("reservation_id", reservationID).Msg("late pickup, reservation forfeited")
		}
		return nil, ErrLateCheckinNoShow
	}

	if err := s.authorize(ctx, tx, res, borrowerID); err != nil {
		return nil, err
	}

	key, err := tx.AvailableKeyForUpdate(ctx, res.RoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoAvailableKey
		}
		return nil, err
	}

	loan := &model.Loan{
		ReservationID: reservationID,
		KeyID:         key.ID,
		BorrowerID:    borrowerID,
		HandledBy:     handledBy,
		CheckedOutAt:  now,
	}
	if err := tx.CreateLoan(ctx, loan); err != nil {
		return nil, err
	}
	ok, err := tx.UpdateKeyStatus(ctx, key.ID, model.KeyAvailable, model.KeyBorrowed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoAvailableKey
	}
	ok, err = tx.UpdateReservationStatus(ctx, reservationID, model.ReservationApproved, model.ReservationCheckedIn, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyCheckedIn
	}
	return loan, nil
}

// Return takes a key back from the returner. Anyone the reservation
// authorizes may return it, not only the original borrower.
func (s *CustodyService) Return(ctx context.Context, reservationID, returnerID uint64) (*model.Loan, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	loan, err := s.returnTx(ctx, tx, reservationID, returnerID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.afterReturn(loan, ChannelDesk)
	return loan, nil
}

func (s *CustodyService) returnTx(ctx context.Context, tx Tx, reservationID, returnerID uint64) (*model.Loan, error) {
	res, err := tx.ReservationForUpdate(ctx, reservationID)
	if err != nil {
		return nil, mapNoRows(err)
	}
	if res.Status != model.ReservationCheckedIn {
		return nil, ErrNotCheckedIn
	}
	loan, err := tx.LoanByReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoLoan
		}
		return nil, err
	}
	if !loan.Active() {
		return nil, ErrNoLoan
	}
	if err := s.authorize(ctx, tx, res, returnerID); err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	ok, err := tx.CloseLoan(ctx, loan.ID, returnerID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoLoan
	}
	ok, err = tx.UpdateKeyStatus(ctx, loan.KeyID, model.KeyBorrowed, model.KeyAvailable)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoLoan
	}
	ok, err = tx.UpdateReservationStatus(ctx, reservationID, model.ReservationCheckedIn, model.ReservationCompleted, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCheckedIn
	}

	loan.CheckedInAt = &now
	loan.ReturnedBy = &returnerID
	return loan, nil
}

// authorize enforces who may take or return the room key: for class
// reservations anyone enrolled in the section, for ad-hoc ones the
// requester or a registered participant.
func (s *CustodyService) authorize(ctx context.Context, tx Tx, res *model.Reservation, userID uint64) error {
	if res.Type == model.ReservationInClass {
		if res.SectionID == nil {
			return ErrNotAllowed
		}
		ok, err := tx.IsEnrolled(ctx, *res.SectionID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAllowed
		}
		return nil
	}
	if res.RequesterID == userID {
		return nil
	}
	ok, err := tx.IsParticipant(ctx, res.ID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAllowed
	}
	return nil
}

// IssuePickupToken mints a single-use kiosk pickup credential for an
// APPROVED reservation. Issuance is a desk operation: the issuer must
// hold a STAFF or ADMIN role, and the secret is minted on behalf of
// whoever the reservation authorizes, not the issuer. Only the raw
// secret is returned and only once; storage holds its hash. Minting
// replaces any earlier unused pickup token for the same reservation.
func (s *CustodyService) IssuePickupToken(ctx context.Context, reservationID, issuerID uint64, issuerRole string) (string, *model.AccessToken, error) {
	if issuerRole != model.RoleStaff && issuerRole != model.RoleAdmin {
		return "", nil, ErrNotAllowed
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return "", nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ReservationForUpdate(ctx, reservationID)
	if err != nil {
		return "", nil, mapNoRows(err)
	}
	if res.Status != model.ReservationApproved {
		return "", nil, ErrNotApproved
	}

	now := s.Now().UTC()
	if err := tx.VoidUnusedAccessTokens(ctx, reservationID, model.TokenPickup, now); err != nil {
		return "", nil, err
	}
	raw, err := token.NewSecret()
	if err != nil {
		return "", nil, err
	}
	tok := &model.AccessToken{
		ReservationID: reservationID,
		Kind:          model.TokenPickup,
		TokenHash:     token.HashSecret(raw),
		ExpiresAt:     now.Add(s.policy.PickupTokenTTL),
	}
	if err := tx.InsertAccessToken(ctx, tok); err != nil {
		return "", nil, err
	}
	if err := tx.Commit(); err != nil {
		return "", nil, err
	}
	committed = true

	s.log.Info().
		Uint64("reservation_id", reservationID).
		Uint64("issued_by", issuerID).
		Msg("pickup token issued")
	return raw, tok, nil
}

// KioskPickup redeems a single-use pickup secret at the unattended
// kiosk. The token resolves the borrower (the reservation requester)
// and is consumed inside the same transaction as the custody writes, so
// a replayed secret loses the race atomically. On success a fresh
// single-use return secret is minted and handed back for the drop-off.
func (s *CustodyService) KioskPickup(ctx context.Context, rawSecret string) (*model.Loan, string, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := s.Now().UTC()
	tok, err := tx.ConsumeAccessToken(ctx, token.HashSecret(rawSecret), model.TokenPickup, now)
	if err != nil {
		return nil, "", err
	}

	res, err := tx.ReservationForUpdate(ctx, tok.ReservationID)
	if err != nil {
		return nil, "", mapNoRows(err)
	}

	loan, err := s.pickupTx(ctx, tx, tok.ReservationID, res.RequesterID, nil, &committed)
	if err != nil {
		return nil, "", err
	}

	// A pickup invalidates whatever return secret an earlier aborted
	// session may have left behind.
	if err := tx.VoidUnusedAccessTokens(ctx, tok.ReservationID, model.TokenReturn, now); err != nil {
		return nil, "", err
	}
	returnSecret, err := token.NewSecret()
	if err != nil {
		return nil, "", err
	}
	if err := tx.InsertAccessToken(ctx, &model.AccessToken{
		ReservationID: tok.ReservationID,
		Kind:          model.TokenReturn,
		TokenHash:     token.HashSecret(returnSecret),
		ExpiresAt:     now.Add(s.policy.ReturnTokenTTL),
	}); err != nil {
		return nil, "", err
	}
	if err := tx.Commit(); err != nil {
		return nil, "", err
	}
	committed = true

	s.afterPickup(loan, ChannelKiosk)
	return loan, returnSecret, nil
}

// KioskReturn redeems a single-use return secret at the kiosk and
// closes out the loan on behalf of the reservation requester.
func (s *CustodyService) KioskReturn(ctx context.Context, rawSecret string) (*model.Loan, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := s.Now().UTC()
	tok, err := tx.ConsumeAccessToken(ctx, token.HashSecret(rawSecret), model.TokenReturn, now)
	if err != nil {
		return nil, err
	}
	res, err := tx.ReservationForUpdate(ctx, tok.ReservationID)
	if err != nil {
		return nil, mapNoRows(err)
	}
	loan, err := s.returnTx(ctx, tx, tok.ReservationID, res.RequesterID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.afterReturn(loan, ChannelKiosk)
	return loan, nil
}

func (s *CustodyService) afterPickup(loan *model.Loan, channel string) {
	metrics.IncPickup(channel)
	s.publish(queue.EventKeyPickedUp, queue.KeyCustodyEvent{
		ReservationID: loan.ReservationID,
		KeyID:         loan.KeyID,
		UserID:        loan.BorrowerID,
		Channel:       channel,
		OccurredAt:    loan.CheckedOutAt.Format(time.RFC3339),
	})
	s.log.Info().
		Uint64("reservation_id", loan.ReservationID).
		Uint64("key_id", loan.KeyID).
		Str("channel", channel).
		Msg("key picked up")
}

func (s *CustodyService) afterReturn(loan *model.Loan, channel string) {
	metrics.IncReturn(channel)
	ev := queue.KeyCustodyEvent{
		ReservationID: loan.ReservationID,
		KeyID:         loan.KeyID,
		UserID:        loan.BorrowerID,
		Channel:       channel,
	}
	if loan.CheckedInAt != nil {
		ev.OccurredAt = loan.CheckedInAt.Format(time.RFC3339)
	}
	if loan.ReturnedBy != nil {
		ev.UserID = *loan.ReturnedBy
	}
	s.publish(queue.EventKeyReturned, ev)
	s.log.Info().
		Uint64("reservation_id", loan.ReservationID).
		Uint64("key_id", loan.KeyID).
		Str("channel", channel).
		Msg("key returned")
}

func (s *CustodyService) publish(eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}
