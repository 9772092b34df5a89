package library

import (
	"github.com/google/uuid"
)

// PlaceReservation appends an ACTIVE reservation to the tail of the media's queue.
//
// Unless the library was built WithStrictReservations, the media id is not
// checked, so members may queue for items that are not registered yet.
func (l *Library) PlaceReservation(memberID, mediaID uuid.UUID) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	member, ok := l.members[memberID]
	if !ok {
		return nil, notFoundf("member %s not found", memberID)
	}
	if !member.Active {
		return nil, l.reject("place reservation", validationf("inactive members cannot reserve items"))
	}
	if _, ok := l.items[mediaID]; !ok && l.strictReservations {
		return nil, notFoundf("item %s not found", mediaID)
	}

	r := &Reservation{
		ID:              uuid.New(),
		MemberID:        memberID,
		MediaID:         mediaID,
		ReservationDate: l.today(),
		Status:          ReservationActive,
	}
	l.reservations[mediaID] = append(l.reservations[mediaID], r)

	l.log.Info("reservation placed", "reservation_id", r.ID, "member_id", memberID, "media_id", mediaID, "position", l.activePosition(mediaID, r.ID))
	c := *r
	return &c, nil
}

// FulfillReservation advances the head-most ACTIVE reservation for an item.
// The item becomes RESERVED and is held for that reservation's member.
// It reports false, changing nothing, when nobody is waiting.
func (l *Library) FulfillReservation(mediaID uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[mediaID]
	if !ok {
		return false, notFoundf("item %s not found", mediaID)
	}
	next := l.nextActiveReservation(mediaID)
	if next == nil {
		return false, nil
	}
	if item.Status == StatusOnLoan {
		return false, l.reject("fulfill reservation", validationf("cannot fulfill: item is on loan"))
	}

	next.Status = ReservationFulfilled
	item.Status = StatusReserved
	l.holds[mediaID] = next.MemberID

	l.log.Info("reservation fulfilled", "reservation_id", next.ID, "member_id", next.MemberID, "media_id", mediaID)
	return true, nil
}

// CancelReservation withdraws the member's earliest ACTIVE reservation for an item.
func (l *Library) CancelReservation(memberID, mediaID uuid.UUID) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var target *Reservation
	for _, r := range l.reservations[mediaID] {
		if r.MemberID == memberID && r.Status == ReservationActive {
			target = r
			break
		}
	}
	if target == nil {
		return nil, l.reject("cancel reservation", validationf("no active reservation found for member %s on media %s", memberID, mediaID))
	}

	target.Status = ReservationCancelled
	l.settleReserved(mediaID)

	l.log.Info("reservation cancelled", "reservation_id", target.ID, "member_id", memberID, "media_id", mediaID)
	c := *target
	return &c, nil
}

// Reservations returns the whole queue for an item, oldest first.
func (l *Library) Reservations(mediaID uuid.UUID) []Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()
	queue := l.reservations[mediaID]
	out := make([]Reservation, 0, len(queue))
	for _, r := range queue {
		out = append(out, *r)
	}
	return out
}

// MemberReservations returns the member's ACTIVE reservations across all items.
func (l *Library) MemberReservations(memberID uuid.UUID) []Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Reservation, 0)
	for _, queue := range l.reservations {
		for _, r := range queue {
			if r.MemberID == memberID && r.Status == ReservationActive {
				out = append(out, *r)
			}
		}
	}
	return out
}

// HeldFor reports which member a RESERVED item is being kept for.
func (l *Library) HeldFor(mediaID uuid.UUID) (uuid.UUID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	memberID, ok := l.holds[mediaID]
	return memberID, ok
}

func (l *Library) hasActiveReservation(mediaID uuid.UUID) bool {
	return l.nextActiveReservation(mediaID) != nil
}

func (l *Library) nextActiveReservation(mediaID uuid.UUID) *Reservation {
	for _, r := range l.reservations[mediaID] {
		if r.Status == ReservationActive {
			return r
		}
	}
	return nil
}

// activePosition is the 1-based place of a reservation among the active ones.
func (l *Library) activePosition(mediaID, reservationID uuid.UUID) int {
	pos := 0
	for _, r := range l.reservations[mediaID] {
		if r.Status != ReservationActive {
			continue
		}
		pos++
		if r.ID == reservationID {
			return pos
		}
	}
	return 0
}
