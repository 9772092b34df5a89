package library

import (
	"github.com/google/uuid"
)

// State is a complete copy of a library's contents, used for persistence.
// Reservations keep their queue order per media id.
type State struct {
	Items        []MediaItem
	Members      []Member
	Loans        []Loan
	Reservations []Reservation
	Holds        map[uuid.UUID]uuid.UUID
}

// ExportState snapshots everything the library holds.
func (l *Library) ExportState() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := State{
		Items:        make([]MediaItem, 0, len(l.items)),
		Members:      make([]Member, 0, len(l.members)),
		Loans:        make([]Loan, 0, len(l.loans)),
		Reservations: make([]Reservation, 0),
		Holds:        make(map[uuid.UUID]uuid.UUID, len(l.holds)),
	}
	for _, item := range l.items {
		st.Items = append(st.Items, *item.clone())
	}
	for _, m := range l.members {
		st.Members = append(st.Members, *m)
	}
	for _, loan := range l.loans {
		st.Loans = append(st.Loans, *loan.clone())
	}
	for _, queue := range l.reservations {
		for _, r := range queue {
			st.Reservations = append(st.Reservations, *r)
		}
	}
	for mediaID, memberID := range l.holds {
		st.Holds[mediaID] = memberID
	}
	return st
}

// ImportState replaces the library's contents with st. Nothing changes if
// st breaks the one-open-loan-per-item rule.
func (l *Library) ImportState(st State) error {
	open := make(map[uuid.UUID]bool)
	for _, loan := range st.Loans {
		if loan.Status != LoanOutstanding {
			continue
		}
		if open[loan.MediaID] {
			return validationf("state has more than one open loan for media %s", loan.MediaID)
		}
		open[loan.MediaID] = true
	}

	items := make(map[uuid.UUID]*MediaItem, len(st.Items))
	for i := range st.Items {
		items[st.Items[i].ID] = st.Items[i].clone()
	}
	members := make(map[uuid.UUID]*Member, len(st.Members))
	for i := range st.Members {
		m := st.Members[i]
		members[m.ID] = &m
	}
	loans := make(map[uuid.UUID]*Loan, len(st.Loans))
	for i := range st.Loans {
		loans[st.Loans[i].ID] = st.Loans[i].clone()
	}
	reservations := make(map[uuid.UUID][]*Reservation)
	for i := range st.Reservations {
		r := st.Reservations[i]
		reservations[r.MediaID] = append(reservations[r.MediaID], &r)
	}
	holds := make(map[uuid.UUID]uuid.UUID, len(st.Holds))
	for mediaID, memberID := range st.Holds {
		holds[mediaID] = memberID
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.items, l.members, l.loans, l.reservations, l.holds = items, members, loans, reservations, holds
	l.log.Info("state imported", "items", len(items), "members", len(members), "loans", len(loans))
	return nil
}
