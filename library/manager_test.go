package library

import (
	"errors"
	"path/filepath"
	"testing"
)

func newManagerAt(t *testing.T, path string) *LibraryManager {
	t.Helper()
	loanPolicy, _ := NewStandardLoanPolicy(14)
	finePolicy, _ := NewStandardFinePolicy(20)
	mgr, err := NewLibraryManager(path, loanPolicy, finePolicy, nil)
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	return mgr
}

func newManager(t *testing.T) *LibraryManager {
	mgr := newManagerAt(t, filepath.Join(t.TempDir(), "lib.db"))
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestManagerPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	mgr := newManagerAt(t, path)

	book := NewBook("Dune", "Frank Herbert", 1965, nil)
	if err := mgr.AddItem(book); err != nil {
		t.Fatalf("add item: %v", err)
	}
	alice, err := mgr.AddMember("Alice", "alice@example.com", "")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := mgr.LoanItem(alice.ID, book.ID); err != nil {
		t.Fatalf("loan: %v", err)
	}
	mgr.Close()

	reopened := newManagerAt(t, path)
	defer reopened.Close()
	item, err := reopened.GetItem(book.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Status != StatusOnLoan {
		t.Fatalf("want ON_LOAN, got %s", item.Status)
	}
	if loans := reopened.MemberLoans(alice.ID); len(loans) != 1 {
		t.Fatalf("want 1 loan, got %d", len(loans))
	}
}

func TestManagerRejectedOperationsDoNotSave(t *testing.T) {
	mgr := newManager(t)
	if _, err := mgr.ReturnItem(NewBook("x", "y", 1, nil).ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if len(mgr.Loans()) != 0 {
		t.Fatalf("no loans expected")
	}
}

func TestAuthenticateMember(t *testing.T) {
	mgr := newManager(t)
	alice, err := mgr.AddMember("Alice", "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	bob, err := mgr.AddMember("Bob", "bob@example.com", "")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}

	if err := mgr.AuthenticateMember(alice.ID, "s3cret"); err != nil {
		t.Fatalf("auth: %v", err)
	}
	if err := mgr.AuthenticateMember(alice.ID, "wrong"); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("want ErrAuthentication, got %v", err)
	}
	if err := mgr.AuthenticateMember(bob.ID, ""); err == nil {
		t.Fatalf("member without password should not authenticate")
	}

	if err := mgr.ResetMemberPassword(bob.ID, "hunter2"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := mgr.AuthenticateMember(bob.ID, "hunter2"); err != nil {
		t.Fatalf("auth after reset: %v", err)
	}

	if err := mgr.RemoveMember(alice.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := mgr.AuthenticateMember(alice.ID, "s3cret"); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("removed member should not authenticate, got %v", err)
	}
}

func TestManagerFulfillReportsHolder(t *testing.T) {
	mgr := newManager(t)
	book := NewBook("Dune", "Frank Herbert", 1965, nil)
	if err := mgr.AddItem(book); err != nil {
		t.Fatalf("add item: %v", err)
	}
	alice, _ := mgr.AddMember("Alice", "alice@example.com", "")

	if _, ok, err := mgr.FulfillReservation(book.ID); ok || err != nil {
		t.Fatalf("empty queue: ok=%v err=%v", ok, err)
	}
	if _, err := mgr.PlaceReservation(alice.ID, book.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	holder, ok, err := mgr.FulfillReservation(book.ID)
	if err != nil || !ok || holder != alice.ID {
		t.Fatalf("fulfill: holder=%v ok=%v err=%v", holder, ok, err)
	}
}

func TestBatchSavesPartialWork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	mgr := newManagerAt(t, path)

	boom := errors.New("boom")
	err := mgr.Batch(func(lib *Library) error {
		if err := lib.AddItem(NewMagazine("Wired", "Conde Nast", 2024, nil)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	mgr.Close()

	reopened := newManagerAt(t, path)
	defer reopened.Close()
	if n := len(reopened.ListItems()); n != 1 {
		t.Fatalf("want 1 item, got %d", n)
	}
}

func TestFailedSaveKeepsChangeAndReportsNotSaved(t *testing.T) {
	mgr := newManagerAt(t, filepath.Join(t.TempDir(), "lib.db"))
	book := NewBook("Dune", "Frank Herbert", 1965, nil)
	if err := mgr.AddItem(book); err != nil {
		t.Fatalf("add item: %v", err)
	}
	alice, err := mgr.AddMember("Alice", "alice@example.com", "")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}

	mgr.db.Close()

	loan, err := mgr.LoanItem(alice.ID, book.ID)
	if !errors.Is(err, ErrNotSaved) {
		t.Fatalf("want ErrNotSaved, got %v", err)
	}
	if loan == nil || loan.MemberID != alice.ID {
		t.Fatalf("loan should be returned even when the save fails, got %+v", loan)
	}
	if item, _ := mgr.GetItem(book.ID); item.Status != StatusOnLoan {
		t.Fatalf("want ON_LOAN in memory, got %s", item.Status)
	}

	// Rule violations are reported as such, not as save failures.
	if _, err := mgr.LoanItem(alice.ID, book.ID); errors.Is(err, ErrNotSaved) || !errors.Is(err, ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestRemoveMemberDropsCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	mgr := newManagerAt(t, path)
	alice, err := mgr.AddMember("Alice", "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := mgr.RemoveMember(alice.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := mgr.db.PasswordHash(alice.ID); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("credentials should be removed with the member, got %v", err)
	}
	mgr.Close()
}
