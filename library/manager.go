package library

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrAuthentication is returned when a member's password does not match.
	ErrAuthentication = errors.New("invalid member id or password")
	// ErrNotSaved means the change was applied in memory but writing the
	// snapshot failed. The next successful save will include it.
	ErrNotSaved = errors.New("change not saved")
)

// LibraryManager is a thin façade that pairs the in-memory Library with its
// SQLite snapshot, saving after every change. It keeps CLI code simple.
type LibraryManager struct {
	lib *Library
	db  *Database
	log *slog.Logger
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath and
// restores the library stored there.
func NewLibraryManager(dbPath string, loanPolicy LoanPolicy, finePolicy FinePolicy, log *slog.Logger, opts ...Option) (*LibraryManager, error) {
	if log == nil {
		log = slog.Default()
	}
	lib, err := NewLibrary(loanPolicy, finePolicy, append([]Option{WithLogger(log)}, opts...)...)
	if err != nil {
		return nil, err
	}
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	st, err := db.LoadState()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load library: %w", err)
	}
	if err := lib.ImportState(st); err != nil {
		db.Close()
		return nil, fmt.Errorf("restore library: %w", err)
	}
	return &LibraryManager{lib: lib, db: db, log: log}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

func (lm *LibraryManager) save() error {
	if err := lm.db.SaveState(lm.lib.ExportState()); err != nil {
		lm.log.Error("failed to save library", "error", err)
		return fmt.Errorf("%w: %v", ErrNotSaved, err)
	}
	return nil
}

// Batch runs fn against the library and saves once afterwards, even when fn
// fails part way, so partial imports are kept.
func (lm *LibraryManager) Batch(fn func(lib *Library) error) error {
	fnErr := fn(lm.lib)
	if err := lm.save(); err != nil {
		return err
	}
	return fnErr
}

// ------------------ Item helpers ------------------

func (lm *LibraryManager) AddItem(item *MediaItem) error {
	if err := lm.lib.AddItem(item); err != nil {
		return err
	}
	return lm.save()
}

func (lm *LibraryManager) RemoveItem(id uuid.UUID) error {
	if err := lm.lib.RemoveItem(id); err != nil {
		return err
	}
	return lm.save()
}

func (lm *LibraryManager) GetItem(id uuid.UUID) (*MediaItem, error) { return lm.lib.GetItem(id) }
func (lm *LibraryManager) ListItems() []MediaItem                   { return lm.lib.ListItems() }
func (lm *LibraryManager) SearchMedia(q string) []MediaItem         { return lm.lib.SearchMedia(q) }

// ------------------ Member helpers ------------------

// AddMember registers a new member and, when password is non-empty, stores
// its bcrypt hash.
func (lm *LibraryManager) AddMember(name, email, password string) (*Member, error) {
	m := NewMember(name, email)
	if err := lm.lib.AddMember(m); err != nil {
		return nil, err
	}
	if err := lm.save(); err != nil {
		return m, err
	}
	if strings.TrimSpace(password) != "" {
		if err := lm.ResetMemberPassword(m.ID, password); err != nil {
			return m, err
		}
	}
	return m, nil
}

func (lm *LibraryManager) RemoveMember(id uuid.UUID) error {
	if err := lm.lib.RemoveMember(id); err != nil {
		return err
	}
	// The snapshot drops credentials of members it no longer holds.
	return lm.save()
}

func (lm *LibraryManager) SetMemberActive(id uuid.UUID, active bool) error {
	if err := lm.lib.SetMemberActive(id, active); err != nil {
		return err
	}
	return lm.save()
}

func (lm *LibraryManager) GetMember(id uuid.UUID) (*Member, error) { return lm.lib.GetMember(id) }
func (lm *LibraryManager) ListMembers() []Member                   { return lm.lib.ListMembers() }
func (lm *LibraryManager) SearchMembers(q string) []Member         { return lm.lib.SearchMembers(q) }

// ResetMemberPassword replaces a known member's password.
func (lm *LibraryManager) ResetMemberPassword(id uuid.UUID, password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if _, err := lm.lib.GetMember(id); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return lm.db.SetPasswordHash(id, string(hash))
}

// AuthenticateMember checks password against the member's stored hash.
// Members who never set a password cannot authenticate.
func (lm *LibraryManager) AuthenticateMember(id uuid.UUID, password string) error {
	if _, err := lm.lib.GetMember(id); err != nil {
		return ErrAuthentication
	}
	hash, err := lm.db.PasswordHash(id)
	if errors.Is(err, ErrNoCredentials) {
		return fmt.Errorf("member %s has no password set; use 'reset password'", id)
	}
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		lm.log.Warn("failed authentication", "member_id", id)
		return ErrAuthentication
	}
	return nil
}

// ------------------ Circulation ------------------

func (lm *LibraryManager) LoanItem(memberID, mediaID uuid.UUID) (*Loan, error) {
	loan, err := lm.lib.LoanItem(memberID, mediaID)
	if err != nil {
		return nil, err
	}
	return loan, lm.save()
}

func (lm *LibraryManager) ReturnItem(mediaID uuid.UUID) (*Loan, error) {
	loan, err := lm.lib.ReturnItem(mediaID)
	if err != nil {
		return nil, err
	}
	return loan, lm.save()
}

func (lm *LibraryManager) Loans() []Loan                         { return lm.lib.Loans() }
func (lm *LibraryManager) MemberLoans(memberID uuid.UUID) []Loan { return lm.lib.MemberLoans(memberID) }
func (lm *LibraryManager) OverdueLoans() []Loan                  { return lm.lib.OverdueLoans() }

// ------------------ Reservation helpers ------------------

func (lm *LibraryManager) PlaceReservation(memberID, mediaID uuid.UUID) (*Reservation, error) {
	r, err := lm.lib.PlaceReservation(memberID, mediaID)
	if err != nil {
		return nil, err
	}
	return r, lm.save()
}

func (lm *LibraryManager) CancelReservation(memberID, mediaID uuid.UUID) (*Reservation, error) {
	r, err := lm.lib.CancelReservation(memberID, mediaID)
	if err != nil {
		return nil, err
	}
	return r, lm.save()
}

// FulfillReservation advances the queue and reports who the item is now held for.
func (lm *LibraryManager) FulfillReservation(mediaID uuid.UUID) (uuid.UUID, bool, error) {
	ok, err := lm.lib.FulfillReservation(mediaID)
	if err != nil || !ok {
		return uuid.Nil, false, err
	}
	holder, _ := lm.lib.HeldFor(mediaID)
	return holder, true, lm.save()
}

func (lm *LibraryManager) Reservations(mediaID uuid.UUID) []Reservation {
	return lm.lib.Reservations(mediaID)
}

func (lm *LibraryManager) MemberReservations(memberID uuid.UUID) []Reservation {
	return lm.lib.MemberReservations(memberID)
}

func (lm *LibraryManager) HeldFor(mediaID uuid.UUID) (uuid.UUID, bool) { return lm.lib.HeldFor(mediaID) }
