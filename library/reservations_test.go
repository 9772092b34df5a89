package library

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceReservation(t *testing.T) {
	t.Run("appends to the queue", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		alice := addMember(t, lib, "Alice")
		bob := addMember(t, lib, "Bob")
		book := addBook(t, lib, "Dune", "Frank Herbert")

		r1, err := lib.PlaceReservation(alice.ID, book.ID)
		require.NoError(t, err)
		r2, err := lib.PlaceReservation(bob.ID, book.ID)
		require.NoError(t, err)

		assert.Equal(t, ReservationActive, r1.Status)
		assert.Equal(t, "2024-01-01", r1.ReservationDate.Format("2006-01-02"))
		queue := lib.Reservations(book.ID)
		require.Len(t, queue, 2)
		assert.Equal(t, r1.ID, queue[0].ID)
		assert.Equal(t, r2.ID, queue[1].ID)
		// Placing a reservation does not change availability.
		assert.Equal(t, StatusAvailable, itemStatus(t, lib, book.ID))
	})

	t.Run("unknown or inactive member", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		alice := addMember(t, lib, "Alice")
		book := addBook(t, lib, "Dune", "Frank Herbert")

		_, err := lib.PlaceReservation(uuid.New(), book.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, lib.SetMemberActive(alice.ID, false))
		_, err = lib.PlaceReservation(alice.ID, book.ID)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Empty(t, lib.Reservations(book.ID))
	})

	t.Run("unknown media id is accepted by default", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		alice := addMember(t, lib, "Alice")
		mediaID := uuid.New()

		_, err := lib.PlaceReservation(alice.ID, mediaID)
		require.NoError(t, err)
		assert.Len(t, lib.Reservations(mediaID), 1)
	})

	t.Run("unknown media id is rejected when strict", func(t *testing.T) {
		lib, _ := newTestLibrary(t, WithStrictReservations())
		alice := addMember(t, lib, "Alice")

		_, err := lib.PlaceReservation(alice.ID, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFulfillReservation(t *testing.T) {
	t.Run("no reservations", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		book := addBook(t, lib, "Dune", "Frank Herbert")

		ok, err := lib.FulfillReservation(book.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, StatusAvailable, itemStatus(t, lib, book.ID))
	})

	t.Run("unknown item", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		_, err := lib.FulfillReservation(uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("FIFO order", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		book := addBook(t, lib, "Dune", "Frank Herbert")
		var placed []uuid.UUID
		for _, name := range []string{"Alice", "Bob", "Charlie"} {
			m := addMember(t, lib, name)
			r, err := lib.PlaceReservation(m.ID, book.ID)
			require.NoError(t, err)
			placed = append(placed, r.ID)
		}

		for i, want := range placed {
			ok, err := lib.FulfillReservation(book.ID)
			require.NoError(t, err)
			require.True(t, ok)

			queue := lib.Reservations(book.ID)
			assert.Equal(t, want, queue[i].ID)
			assert.Equal(t, ReservationFulfilled, queue[i].Status)
			for _, later := range queue[i+1:] {
				assert.Equal(t, ReservationActive, later.Status)
			}
			assert.Equal(t, StatusReserved, itemStatus(t, lib, book.ID))
		}

		ok, err := lib.FulfillReservation(book.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("held item can only be loaned to its holder", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		alice := addMember(t, lib, "Alice")
		bob := addMember(t, lib, "Bob")
		charlie := addMember(t, lib, "Charlie")
		book := addBook(t, lib, "Dune", "Frank Herbert")

		_, err := lib.LoanItem(alice.ID, book.ID)
		require.NoError(t, err)
		_, err = lib.PlaceReservation(bob.ID, book.ID)
		require.NoError(t, err)
		_, err = lib.ReturnItem(book.ID)
		require.NoError(t, err)

		// Reserved but not yet fulfilled: nobody may borrow it.
		_, err = lib.LoanItem(bob.ID, book.ID)
		assert.ErrorIs(t, err, ErrValidation)

		ok, err := lib.FulfillReservation(book.ID)
		require.NoError(t, err)
		require.True(t, ok)
		holder, held := lib.HeldFor(book.ID)
		require.True(t, held)
		assert.Equal(t, bob.ID, holder)

		_, err = lib.LoanItem(charlie.ID, book.ID)
		assert.ErrorIs(t, err, ErrValidation)

		loan, err := lib.LoanItem(bob.ID, book.ID)
		require.NoError(t, err)
		assert.Equal(t, bob.ID, loan.MemberID)
		assert.Equal(t, StatusOnLoan, itemStatus(t, lib, book.ID))
		_, held = lib.HeldFor(book.ID)
		assert.False(t, held)
	})

	t.Run("not while on loan", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		alice := addMember(t, lib, "Alice")
		bob := addMember(t, lib, "Bob")
		book := addBook(t, lib, "Dune", "Frank Herbert")
		_, err := lib.LoanItem(alice.ID, book.ID)
		require.NoError(t, err)
		_, err = lib.PlaceReservation(bob.ID, book.ID)
		require.NoError(t, err)

		ok, err := lib.FulfillReservation(book.ID)
		assert.ErrorIs(t, err, ErrValidation)
		assert.False(t, ok)
		assert.Equal(t, StatusOnLoan, itemStatus(t, lib, book.ID))
		assert.Equal(t, ReservationActive, lib.Reservations(book.ID)[0].Status)
	})
}

func TestCancelReservation(t *testing.T) {
	t.Run("cancelled reservation is skipped", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		alice := addMember(t, lib, "Alice")
		bob := addMember(t, lib, "Bob")
		book := addBook(t, lib, "Dune", "Frank Herbert")
		_, err := lib.PlaceReservation(alice.ID, book.ID)
		require.NoError(t, err)
		_, err = lib.PlaceReservation(bob.ID, book.ID)
		require.NoError(t, err)

		r, err := lib.CancelReservation(alice.ID, book.ID)
		require.NoError(t, err)
		assert.Equal(t, ReservationCancelled, r.Status)

		ok, err := lib.FulfillReservation(book.ID)
		require.NoError(t, err)
		require.True(t, ok)
		holder, _ := lib.HeldFor(book.ID)
		assert.Equal(t, bob.ID, holder)
	})

	t.Run("nothing to cancel", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		alice := addMember(t, lib, "Alice")
		book := addBook(t, lib, "Dune", "Frank Herbert")

		_, err := lib.CancelReservation(alice.ID, book.ID)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("last waiting member frees a returned item", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		alice := addMember(t, lib, "Alice")
		bob := addMember(t, lib, "Bob")
		book := addBook(t, lib, "Dune", "Frank Herbert")
		_, err := lib.LoanItem(alice.ID, book.ID)
		require.NoError(t, err)
		_, err = lib.PlaceReservation(bob.ID, book.ID)
		require.NoError(t, err)
		_, err = lib.ReturnItem(book.ID)
		require.NoError(t, err)
		require.Equal(t, StatusReserved, itemStatus(t, lib, book.ID))

		_, err = lib.CancelReservation(bob.ID, book.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusAvailable, itemStatus(t, lib, book.ID))
		assert.NoError(t, lib.RemoveItem(book.ID))
	})

	t.Run("member reservations lists only active ones", func(t *testing.T) {
		lib, _ := newTestLibrary(t)
		alice := addMember(t, lib, "Alice")
		b1 := addBook(t, lib, "B1", "A1")
		b2 := addBook(t, lib, "B2", "A2")
		_, err := lib.PlaceReservation(alice.ID, b1.ID)
		require.NoError(t, err)
		_, err = lib.PlaceReservation(alice.ID, b2.ID)
		require.NoError(t, err)
		_, err = lib.CancelReservation(alice.ID, b1.ID)
		require.NoError(t, err)

		rs := lib.MemberReservations(alice.ID)
		require.Len(t, rs, 1)
		assert.Equal(t, b2.ID, rs[0].MediaID)
	})
}

func TestRemovingHolderReleasesItem(t *testing.T) {
	lib, _ := newTestLibrary(t)
	alice := addMember(t, lib, "Alice")
	book := addBook(t, lib, "Dune", "Frank Herbert")
	_, err := lib.PlaceReservation(alice.ID, book.ID)
	require.NoError(t, err)
	ok, err := lib.FulfillReservation(book.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lib.RemoveMember(alice.ID))
	assert.Equal(t, StatusAvailable, itemStatus(t, lib, book.ID))
}

func TestRemovingQueuedMemberReleasesItem(t *testing.T) {
	lib, _ := newTestLibrary(t)
	alice := addMember(t, lib, "Alice")
	bob := addMember(t, lib, "Bob")
	book := addBook(t, lib, "Dune", "Frank Herbert")
	_, err := lib.LoanItem(alice.ID, book.ID)
	require.NoError(t, err)
	_, err = lib.PlaceReservation(bob.ID, book.ID)
	require.NoError(t, err)

	require.NoError(t, lib.RemoveMember(bob.ID))
	queue := lib.Reservations(book.ID)
	require.Len(t, queue, 1)
	assert.Equal(t, ReservationCancelled, queue[0].Status)
	assert.Empty(t, lib.MemberReservations(bob.ID))

	_, err = lib.ReturnItem(book.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, itemStatus(t, lib, book.ID))

	ok, err := lib.FulfillReservation(book.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, held := lib.HeldFor(book.ID)
	assert.False(t, held)

	_, err = lib.LoanItem(alice.ID, book.ID)
	assert.NoError(t, err)
}

func TestRemovingQueuedMemberOnReservedItem(t *testing.T) {
	lib, _ := newTestLibrary(t)
	alice := addMember(t, lib, "Alice")
	bob := addMember(t, lib, "Bob")
	charlie := addMember(t, lib, "Charlie")
	book := addBook(t, lib, "Dune", "Frank Herbert")
	_, err := lib.LoanItem(alice.ID, book.ID)
	require.NoError(t, err)
	_, err = lib.PlaceReservation(bob.ID, book.ID)
	require.NoError(t, err)
	_, err = lib.PlaceReservation(charlie.ID, book.ID)
	require.NoError(t, err)
	_, err = lib.ReturnItem(book.ID)
	require.NoError(t, err)

	// Charlie is still waiting, so the item stays reserved and goes to him.
	require.NoError(t, lib.RemoveMember(bob.ID))
	assert.Equal(t, StatusReserved, itemStatus(t, lib, book.ID))
	ok, err := lib.FulfillReservation(book.ID)
	require.NoError(t, err)
	require.True(t, ok)
	holder, _ := lib.HeldFor(book.ID)
	assert.Equal(t, charlie.ID, holder)

	require.NoError(t, lib.RemoveMember(charlie.ID))
	assert.Equal(t, StatusAvailable, itemStatus(t, lib, book.ID))
	assert.NoError(t, lib.RemoveItem(book.ID))
}

// TestConcurrentLoans checks that only one of many simultaneous borrowers wins.
func TestConcurrentLoans(t *testing.T) {
	lib, _ := newTestLibrary(t)
	book := addBook(t, lib, "Popular", "Famous Author")
	var members []*Member
	for i := 0; i < 20; i++ {
		members = append(members, addMember(t, lib, "Reader"))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, m := range members {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if _, err := lib.LoanItem(id, book.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(m.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, outstandingLoans(lib, book.ID))
}
