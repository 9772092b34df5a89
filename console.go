package main

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"media-library/library"

	"github.com/google/uuid"
)

func prompt(sc *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

// resolveID accepts a full id or a unique prefix of one of ids.
func resolveID(input string, ids []uuid.UUID) (uuid.UUID, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if id, err := uuid.Parse(input); err == nil {
		return id, nil
	}
	if input == "" {
		return uuid.Nil, errors.New("empty id")
	}
	var match uuid.UUID
	found := 0
	for _, id := range ids {
		if strings.HasPrefix(id.String(), input) {
			match = id
			found++
		}
	}
	switch found {
	case 0:
		return uuid.Nil, fmt.Errorf("no id starts with %q", input)
	case 1:
		return match, nil
	default:
		return uuid.Nil, fmt.Errorf("%q matches %d ids", input, found)
	}
}

func readItem(sc *bufio.Scanner, mgr *library.LibraryManager) (*library.MediaItem, bool) {
	raw, ok := prompt(sc, "Item ID: ")
	if !ok {
		return nil, false
	}
	items := mgr.ListItems()
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	id, err := resolveID(raw, ids)
	if err != nil {
		fmt.Printf("Invalid item ID: %v\n", err)
		return nil, false
	}
	item, err := mgr.GetItem(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, false
	}
	return item, true
}

func readMember(sc *bufio.Scanner, mgr *library.LibraryManager) (*library.Member, bool) {
	raw, ok := prompt(sc, "Member ID: ")
	if !ok {
		return nil, false
	}
	members := mgr.ListMembers()
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	id, err := resolveID(raw, ids)
	if err != nil {
		fmt.Printf("Invalid member ID: %v\n", err)
		return nil, false
	}
	member, err := mgr.GetMember(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, false
	}
	return member, true
}

// readMemberAndLogin asks for a member and their password.
func readMemberAndLogin(sc *bufio.Scanner, mgr *library.LibraryManager) (*library.Member, bool) {
	member, ok := readMember(sc, mgr)
	if !ok {
		return nil, false
	}
	if err := authenticateUser(mgr, member); err != nil {
		fmt.Printf("Authentication failed: %v\n", err)
		return nil, false
	}
	return member, true
}

func readCommon(sc *bufio.Scanner) (title string, year int, cats []string, ok bool) {
	if title, ok = prompt(sc, "Title: "); !ok {
		return
	}
	var raw string
	if raw, ok = prompt(sc, "Year: "); !ok {
		return
	}
	year, _ = strconv.Atoi(raw)
	if raw, ok = prompt(sc, "Categories (separated by ';'): "); !ok {
		return
	}
	for _, c := range strings.Split(raw, ";") {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	return
}

func addItem(mgr *library.LibraryManager, item *library.MediaItem) {
	err := mgr.AddItem(item)
	if failed("adding item", err) {
		return
	}
	fmt.Printf("Added %s '%s' with ID %s\n", strings.ToLower(string(item.Kind)), item.Title, item.ID)
	warnUnsaved(err)
}

func handleAddBook(sc *bufio.Scanner, mgr *library.LibraryManager) {
	title, year, cats, ok := readCommon(sc)
	if !ok {
		return
	}
	author, ok := prompt(sc, "Author: ")
	if !ok {
		return
	}
	addItem(mgr, library.NewBook(title, author, year, cats))
}

func handleAddDvd(sc *bufio.Scanner, mgr *library.LibraryManager) {
	title, year, cats, ok := readCommon(sc)
	if !ok {
		return
	}
	raw, ok := prompt(sc, "Duration (minutes): ")
	if !ok {
		return
	}
	duration, _ := strconv.Atoi(raw)
	rating, ok := prompt(sc, "Rating: ")
	if !ok {
		return
	}
	addItem(mgr, library.NewDvd(title, year, duration, rating, cats))
}

func handleAddMagazine(sc *bufio.Scanner, mgr *library.LibraryManager) {
	title, year, cats, ok := readCommon(sc)
	if !ok {
		return
	}
	publisher, ok := prompt(sc, "Publisher: ")
	if !ok {
		return
	}
	addItem(mgr, library.NewMagazine(title, publisher, year, cats))
}

func handleRemoveItem(sc *bufio.Scanner, mgr *library.LibraryManager) {
	item, ok := readItem(sc, mgr)
	if !ok {
		return
	}
	err := mgr.RemoveItem(item.ID)
	if failed("removing item", err) {
		return
	}
	fmt.Printf("Removed '%s'\n", item.Title)
	warnUnsaved(err)
}

func handleSearchMedia(sc *bufio.Scanner, mgr *library.LibraryManager) {
	query, ok := prompt(sc, "Query: ")
	if !ok {
		return
	}
	items := mgr.SearchMedia(query)
	if len(items) == 0 {
		fmt.Printf("No items found matching '%s'.\n", query)
		return
	}
	fmt.Printf("Found %d item(s) matching '%s':\n", len(items), query)
	printItems(mgr, items)
}

func printItems(mgr *library.LibraryManager, items []library.MediaItem) {
	if len(items) == 0 {
		fmt.Println("No items in library.")
		return
	}

	fmt.Printf("%-36s %-9s %-30s %-22s %-5s %-10s %s\n", "ID", "Kind", "Title", "Author/Publisher", "Year", "Status", "Queue")
	fmt.Println(strings.Repeat("-", 130))

	for _, item := range items {
		var byline string
		switch {
		case item.Book != nil:
			byline = item.Book.Author
		case item.Magazine != nil:
			byline = item.Magazine.Publisher
		case item.Dvd != nil:
			byline = fmt.Sprintf("%d min, %s", item.Dvd.DurationMinutes, item.Dvd.Rating)
		}

		waiting := 0
		for _, r := range mgr.Reservations(item.ID) {
			if r.Status == library.ReservationActive {
				waiting++
			}
		}
		queueInfo := "None"
		if waiting > 0 {
			queueInfo = fmt.Sprintf("%d waiting", waiting)
		}
		if holder, held := mgr.HeldFor(item.ID); held {
			queueInfo += fmt.Sprintf(", held for %s", memberName(mgr, holder))
		}

		fmt.Printf("%-36s %-9s %-30s %-22s %-5d %-10s %s\n",
			item.ID,
			item.Kind,
			truncateString(item.Title, 30),
			truncateString(byline, 22),
			item.Year,
			item.Status,
			queueInfo)
	}
}

func memberName(mgr *library.LibraryManager, id uuid.UUID) string {
	if m, err := mgr.GetMember(id); err == nil {
		return m.Name
	}
	return id.String()
}

func itemTitle(mgr *library.LibraryManager, id uuid.UUID) string {
	if item, err := mgr.GetItem(id); err == nil {
		return item.Title
	}
	return id.String()
}

func handleAddMember(sc *bufio.Scanner, mgr *library.LibraryManager) {
	name, ok := prompt(sc, "Name: ")
	if !ok {
		return
	}
	email, ok := prompt(sc, "Email: ")
	if !ok {
		return
	}

	password, err := readPassword(fmt.Sprintf("Enter password for %s: ", name))
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	if password == "" {
		fmt.Println("Error: Password cannot be empty")
		return
	}

	member, err := mgr.AddMember(name, email, password)
	if failed("adding member", err) {
		return
	}
	fmt.Printf("Added member '%s' with ID %s\n", member.Name, member.ID)
	warnUnsaved(err)
}

func handleRemoveMember(sc *bufio.Scanner, mgr *library.LibraryManager) {
	member, ok := readMember(sc, mgr)
	if !ok {
		return
	}
	err := mgr.RemoveMember(member.ID)
	if failed("removing member", err) {
		return
	}
	fmt.Printf("Removed member %s\n", member.Name)
	warnUnsaved(err)
}

func handleSearchMembers(sc *bufio.Scanner, mgr *library.LibraryManager) {
	query, ok := prompt(sc, "Query: ")
	if !ok {
		return
	}
	printMembers(mgr.SearchMembers(query))
}

func printMembers(members []library.Member) {
	if len(members) == 0 {
		fmt.Println("No members found.")
		return
	}

	fmt.Printf("%-36s %-30s %-30s %-8s\n", "ID", "Name", "Email", "Active")
	fmt.Println(strings.Repeat("-", 108))
	for _, m := range members {
		active := "Yes"
		if !m.Active {
			active = "No"
		}
		fmt.Printf("%-36s %-30s %-30s %-8s\n", m.ID, truncateString(m.Name, 30), truncateString(m.Email, 30), active)
	}
}

func handleSetActive(sc *bufio.Scanner, mgr *library.LibraryManager, active bool) {
	member, ok := readMember(sc, mgr)
	if !ok {
		return
	}
	err := mgr.SetMemberActive(member.ID, active)
	if failed("updating member", err) {
		return
	}
	if active {
		fmt.Printf("%s is active\n", member.Name)
	} else {
		fmt.Printf("%s is suspended\n", member.Name)
	}
	warnUnsaved(err)
}

func handleResetPassword(sc *bufio.Scanner, mgr *library.LibraryManager) {
	member, ok := readMember(sc, mgr)
	if !ok {
		return
	}

	newPassword, err := readPassword(fmt.Sprintf("Enter new password for %s: ", member.Name))
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	if newPassword == "" {
		fmt.Println("Error: Password cannot be empty")
		return
	}

	if err := mgr.ResetMemberPassword(member.ID, newPassword); err != nil {
		fmt.Printf("Error resetting password: %v\n", err)
		return
	}
	fmt.Printf("Password successfully reset for %s\n", member.Name)
}

func handleLoan(sc *bufio.Scanner, mgr *library.LibraryManager) {
	item, ok := readItem(sc, mgr)
	if !ok {
		return
	}
	member, ok := readMemberAndLogin(sc, mgr)
	if !ok {
		return
	}

	loan, err := mgr.LoanItem(member.ID, item.ID)
	if failed("loaning item", err) {
		return
	}
	fmt.Printf("'%s' loaned to %s, due %s\n", item.Title, member.Name, loan.DueDate.Format(time.DateOnly))
	warnUnsaved(err)
}

func handleReturn(sc *bufio.Scanner, mgr *library.LibraryManager) {
	item, ok := readItem(sc, mgr)
	if !ok {
		return
	}

	loan, saveErr := mgr.ReturnItem(item.ID)
	if failed("returning item", saveErr) {
		return
	}
	defer warnUnsaved(saveErr)

	fmt.Printf("'%s' returned by %s\n", item.Title, memberName(mgr, loan.MemberID))
	if loan.FineAccrued > 0 {
		fmt.Printf("Overdue fine: %s\n", formatPence(loan.FineAccrued))
	}

	updated, err := mgr.GetItem(item.ID)
	if err == nil && updated.Status == library.StatusReserved {
		fmt.Println("Members are waiting; use 'fulfill reservation' to hold it for the next one")
	} else {
		fmt.Println("Item is now available")
	}
}

func handleListLoans(sc *bufio.Scanner, mgr *library.LibraryManager) {
	raw, ok := prompt(sc, "Member ID (or press Enter for all loans): ")
	if !ok {
		return
	}
	if raw == "" {
		printLoans(mgr, mgr.Loans())
		return
	}
	members := mgr.ListMembers()
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	id, err := resolveID(raw, ids)
	if err != nil {
		fmt.Printf("Invalid member ID: %v\n", err)
		return
	}
	printLoans(mgr, mgr.MemberLoans(id))
}

func handleOverdue(mgr *library.LibraryManager) {
	loans := mgr.OverdueLoans()
	if len(loans) == 0 {
		fmt.Println("No overdue loans.")
		return
	}
	printLoans(mgr, loans)
}

func printLoans(mgr *library.LibraryManager, loans []library.Loan) {
	if len(loans) == 0 {
		fmt.Println("No loans found.")
		return
	}

	fmt.Printf("%-30s %-20s %-10s %-10s %-10s %-11s %s\n", "Item", "Member", "Loaned", "Due", "Returned", "Status", "Fine")
	fmt.Println(strings.Repeat("-", 110))
	for _, loan := range loans {
		returned := "-"
		if loan.ReturnDate != nil {
			returned = loan.ReturnDate.Format(time.DateOnly)
		}
		fmt.Printf("%-30s %-20s %-10s %-10s %-10s %-11s %s\n",
			truncateString(itemTitle(mgr, loan.MediaID), 30),
			truncateString(memberName(mgr, loan.MemberID), 20),
			loan.LoanDate.Format(time.DateOnly),
			loan.DueDate.Format(time.DateOnly),
			returned,
			loan.Status,
			formatPence(loan.FineAccrued))
	}
}

func handleReserve(sc *bufio.Scanner, mgr *library.LibraryManager) {
	item, ok := readItem(sc, mgr)
	if !ok {
		return
	}
	member, ok := readMemberAndLogin(sc, mgr)
	if !ok {
		return
	}

	r, err := mgr.PlaceReservation(member.ID, item.ID)
	if failed("reserving item", err) {
		return
	}
	fmt.Printf("'%s' reserved for %s\n", item.Title, member.Name)
	defer warnUnsaved(err)

	position := 0
	for _, queued := range mgr.Reservations(item.ID) {
		if queued.Status != library.ReservationActive {
			continue
		}
		position++
		if queued.ID == r.ID {
			fmt.Printf("Position in queue: %d\n", position)
			break
		}
	}
}

func handleFulfill(sc *bufio.Scanner, mgr *library.LibraryManager) {
	item, ok := readItem(sc, mgr)
	if !ok {
		return
	}
	holder, fulfilled, err := mgr.FulfillReservation(item.ID)
	if failed("fulfilling reservation", err) {
		return
	}
	defer warnUnsaved(err)
	if !fulfilled {
		fmt.Printf("Nobody is waiting for '%s'\n", item.Title)
		return
	}
	fmt.Printf("'%s' is now held for %s\n", item.Title, memberName(mgr, holder))
}

func handleListReservations(sc *bufio.Scanner, mgr *library.LibraryManager) {
	item, ok := readItem(sc, mgr)
	if !ok {
		return
	}

	queue := mgr.Reservations(item.ID)
	fmt.Printf("Reservations for '%s':\n", item.Title)
	if len(queue) == 0 {
		fmt.Println("No reservations for this item.")
		return
	}

	fmt.Printf("%-10s %-30s %-12s %s\n", "Placed", "Member", "Status", "Position")
	fmt.Println(strings.Repeat("-", 65))
	position := 0
	for _, r := range queue {
		pos := "-"
		if r.Status == library.ReservationActive {
			position++
			pos = strconv.Itoa(position)
		}
		fmt.Printf("%-10s %-30s %-12s %s\n",
			r.ReservationDate.Format(time.DateOnly),
			truncateString(memberName(mgr, r.MemberID), 30),
			r.Status,
			pos)
	}
}

func handleCancelReservation(sc *bufio.Scanner, mgr *library.LibraryManager) {
	item, ok := readItem(sc, mgr)
	if !ok {
		return
	}
	member, ok := readMemberAndLogin(sc, mgr)
	if !ok {
		return
	}

	_, err := mgr.CancelReservation(member.ID, item.ID)
	if failed("cancelling reservation", err) {
		return
	}
	fmt.Printf("Reservation for '%s' cancelled for %s\n", item.Title, member.Name)
	warnUnsaved(err)
}

// failed prints err and reports true unless the change went through and
// only the save is outstanding.
func failed(action string, err error) bool {
	if err == nil || errors.Is(err, library.ErrNotSaved) {
		return false
	}
	fmt.Printf("Error %s: %v\n", action, err)
	return true
}

func warnUnsaved(err error) {
	if errors.Is(err, library.ErrNotSaved) {
		fmt.Printf("Warning: saved: no (%v). It will be written with the next successful change.\n", err)
	}
}

func formatPence(p int) string {
	return fmt.Sprintf("£%d.%02d", p/100, p%100)
}

// truncateString shortens s to maxLength runes.
func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}
