package library

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Library is the aggregate that owns every item, member, loan and
// reservation queue and keeps their states consistent.
//
// All values are copied on the way in and on the way out, so the only way
// to change library state is through its methods.
type Library struct {
	mu sync.Mutex

	items        map[uuid.UUID]*MediaItem
	members      map[uuid.UUID]*Member
	loans        map[uuid.UUID]*Loan
	reservations map[uuid.UUID][]*Reservation // FIFO queue per media id
	holds        map[uuid.UUID]uuid.UUID      // media id -> member a fulfilled reservation is held for

	loanPolicy LoanPolicy
	finePolicy FinePolicy

	now                func() time.Time
	log                *slog.Logger
	strictReservations bool
}

// Option customises a Library at construction.
type Option func(*Library)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// WithLogger routes operation logs to log. A nil logger keeps the default, which discards.
func WithLogger(log *slog.Logger) Option {
	return func(l *Library) {
		if log != nil {
			l.log = log
		}
	}
}

// WithStrictReservations rejects reservations for media ids the library does not hold.
func WithStrictReservations() Option {
	return func(l *Library) { l.strictReservations = true }
}

// NewLibrary builds an empty library around the given policies.
func NewLibrary(loanPolicy LoanPolicy, finePolicy FinePolicy, opts ...Option) (*Library, error) {
	if loanPolicy == nil || finePolicy == nil {
		return nil, invalidArgf("loan and fine policies are required")
	}
	l := &Library{
		items:        make(map[uuid.UUID]*MediaItem),
		members:      make(map[uuid.UUID]*Member),
		loans:        make(map[uuid.UUID]*Loan),
		reservations: make(map[uuid.UUID][]*Reservation),
		holds:        make(map[uuid.UUID]uuid.UUID),
		loanPolicy:   loanPolicy,
		finePolicy:   finePolicy,
		now:          time.Now,
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Library) today() time.Time { return dateOf(l.now()) }

// ------------------ Items ------------------

// AddItem registers a copy of item as AVAILABLE. Ids must be unique.
func (l *Library) AddItem(item *MediaItem) error {
	if item == nil {
		return invalidArgf("item is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.items[item.ID]; exists {
		return validationf("item %s is already registered", item.ID)
	}
	c := item.clone()
	c.Status = StatusAvailable
	l.items[c.ID] = c
	l.log.Info("item added", "media_id", c.ID, "kind", c.Kind, "title", c.Title)
	return nil
}

// RemoveItem deletes an available item that nobody is waiting for.
func (l *Library) RemoveItem(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return notFoundf("item %s not found", id)
	}
	if !item.IsAvailable() {
		return l.reject("remove item", validationf("cannot remove: item is not available"))
	}
	if l.hasActiveReservation(id) {
		return l.reject("remove item", validationf("cannot remove: item has active reservation"))
	}
	delete(l.items, id)
	l.log.Info("item removed", "media_id", id)
	return nil
}

func (l *Library) GetItem(id uuid.UUID) (*MediaItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	item, ok := l.items[id]
	if !ok {
		return nil, notFoundf("item %s not found", id)
	}
	return item.clone(), nil
}

// ListItems returns a copy of every item in no particular order.
func (l *Library) ListItems() []MediaItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]MediaItem, 0, len(l.items))
	for _, item := range l.items {
		out = append(out, *item.clone())
	}
	return out
}

// ------------------ Members ------------------

// AddMember registers a copy of m. Ids must be unique.
func (l *Library) AddMember(m *Member) error {
	if m == nil {
		return invalidArgf("member is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.members[m.ID]; exists {
		return validationf("member %s is already registered", m.ID)
	}
	c := *m
	l.members[c.ID] = &c
	l.log.Info("member added", "member_id", c.ID, "name", c.Name)
	return nil
}

// RemoveMember deletes a member unless they hold an overdue loan.
func (l *Library) RemoveMember(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.members[id]; !ok {
		return notFoundf("member %s not found", id)
	}
	if l.memberHasOverdueLoans(id) {
		return l.reject("remove member", validationf("cannot remove: member has overdue loans"))
	}
	delete(l.members, id)
	l.releaseMember(id)
	l.log.Info("member removed", "member_id", id)
	return nil
}

// releaseMember cancels a departed member's queued reservations and frees
// every item that was waiting only on them.
func (l *Library) releaseMember(memberID uuid.UUID) {
	touched := make(map[uuid.UUID]bool)
	for mediaID, queue := range l.reservations {
		for _, r := range queue {
			if r.MemberID == memberID && r.Status == ReservationActive {
				r.Status = ReservationCancelled
				touched[mediaID] = true
			}
		}
	}
	for mediaID, holder := range l.holds {
		if holder == memberID {
			delete(l.holds, mediaID)
			touched[mediaID] = true
		}
	}
	for mediaID := range touched {
		l.settleReserved(mediaID)
	}
}

// settleReserved makes a RESERVED item AVAILABLE once nobody holds it and
// nobody is waiting for it.
func (l *Library) settleReserved(mediaID uuid.UUID) {
	item, ok := l.items[mediaID]
	if !ok || item.Status != StatusReserved {
		return
	}
	if _, held := l.holds[mediaID]; held || l.hasActiveReservation(mediaID) {
		return
	}
	item.Status = StatusAvailable
}

func (l *Library) GetMember(id uuid.UUID) (*Member, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.members[id]
	if !ok {
		return nil, notFoundf("member %s not found", id)
	}
	c := *m
	return &c, nil
}

// SetMemberActive activates or suspends a member.
func (l *Library) SetMemberActive(id uuid.UUID, active bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.members[id]
	if !ok {
		return notFoundf("member %s not found", id)
	}
	m.Active = active
	l.log.Info("member activity changed", "member_id", id, "active", active)
	return nil
}

func (l *Library) ListMembers() []Member {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Member, 0, len(l.members))
	for _, m := range l.members {
		out = append(out, *m)
	}
	return out
}

// ------------------ Loans ------------------

// LoanItem lends an item to a member and returns the new loan.
//
// The member must be active and have no overdue loans. The item must be
// available, or reserved and held for this member.
func (l *Library) LoanItem(memberID, mediaID uuid.UUID) (*Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	member, ok := l.members[memberID]
	if !ok {
		return nil, notFoundf("member %s not found", memberID)
	}
	item, ok := l.items[mediaID]
	if !ok {
		return nil, notFoundf("item %s not found", mediaID)
	}

	switch {
	case !member.Active:
		return nil, l.reject("loan item", validationf("cannot loan item while inactive member"))
	case l.memberHasOverdueLoans(memberID):
		return nil, l.reject("loan item", validationf("cannot loan item with overdue loans"))
	case !l.loanableBy(item, memberID):
		return nil, l.reject("loan item", validationf("item is not currently available"))
	}

	loanDate := l.today()
	dueDate, err := l.loanPolicy.DueDate(loanDate)
	if err != nil {
		return nil, err
	}

	loan := &Loan{
		ID:       uuid.New(),
		MemberID: memberID,
		MediaID:  mediaID,
		LoanDate: loanDate,
		DueDate:  dueDate,
		Status:   LoanOutstanding,
	}
	l.loans[loan.ID] = loan
	item.Status = StatusOnLoan
	delete(l.holds, mediaID)

	l.log.Info("item loaned", "loan_id", loan.ID, "member_id", memberID, "media_id", mediaID, "due", dueDate.Format(time.DateOnly))
	return loan.clone(), nil
}

// ReturnItem closes the open loan on an item and charges any fine.
//
// The item becomes RESERVED when someone is queued for it, AVAILABLE
// otherwise. The queue is not advanced; call FulfillReservation for that.
func (l *Library) ReturnItem(mediaID uuid.UUID) (*Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	loan := l.findOpenLoan(mediaID)
	if loan == nil {
		return nil, l.reject("return item", validationf("no open loan found for media %s", mediaID))
	}

	returnDate := l.today()
	loan.markReturned(returnDate, l.finePolicy.Fine(loan.DueDate, returnDate))

	if item, ok := l.items[mediaID]; ok {
		if l.hasActiveReservation(mediaID) {
			item.Status = StatusReserved
		} else {
			item.Status = StatusAvailable
		}
	}

	l.log.Info("item returned", "loan_id", loan.ID, "media_id", mediaID, "fine", loan.FineAccrued)
	return loan.clone(), nil
}

// Loans returns a copy of every loan, open and closed.
func (l *Library) Loans() []Loan {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.collectLoans(func(*Loan) bool { return true })
}

func (l *Library) MemberLoans(memberID uuid.UUID) []Loan {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.collectLoans(func(loan *Loan) bool { return loan.MemberID == memberID })
}

// OverdueLoans lists outstanding loans whose due date has passed.
func (l *Library) OverdueLoans() []Loan {
	l.mu.Lock()
	defer l.mu.Unlock()
	today := l.today()
	return l.collectLoans(func(loan *Loan) bool { return loan.IsOverdue(today) })
}

// ------------------ Internals ------------------

func (l *Library) collectLoans(keep func(*Loan) bool) []Loan {
	out := make([]Loan, 0)
	for _, loan := range l.loans {
		if keep(loan) {
			out = append(out, *loan.clone())
		}
	}
	return out
}

func (l *Library) loanableBy(item *MediaItem, memberID uuid.UUID) bool {
	switch item.Status {
	case StatusAvailable:
		return true
	case StatusReserved:
		holder, held := l.holds[item.ID]
		return held && holder == memberID
	default:
		return false
	}
}

func (l *Library) findOpenLoan(mediaID uuid.UUID) *Loan {
	for _, loan := range l.loans {
		if loan.MediaID == mediaID && loan.Status == LoanOutstanding {
			return loan
		}
	}
	return nil
}

func (l *Library) memberHasOverdueLoans(memberID uuid.UUID) bool {
	today := l.today()
	for _, loan := range l.loans {
		if loan.MemberID == memberID && loan.IsOverdue(today) {
			return true
		}
	}
	return false
}

func (l *Library) reject(op string, err error) error {
	l.log.Debug("operation rejected", "op", op, "reason", err)
	return err
}
