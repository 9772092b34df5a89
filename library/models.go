package library

import (
	"time"

	"github.com/google/uuid"
)

// MediaKind tags the variant of a MediaItem.
type MediaKind string

const (
	KindBook     MediaKind = "BOOK"
	KindDvd      MediaKind = "DVD"
	KindMagazine MediaKind = "MAGAZINE"
)

// AvailabilityStatus is the circulation state of a MediaItem.
type AvailabilityStatus string

const (
	StatusAvailable AvailabilityStatus = "AVAILABLE"
	StatusOnLoan    AvailabilityStatus = "ON_LOAN"
	StatusReserved  AvailabilityStatus = "RESERVED"
)

type LoanStatus string

const (
	LoanOutstanding LoanStatus = "OUTSTANDING"
	LoanReturned    LoanStatus = "RETURNED"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// BookDetails holds the attributes only books have.
type BookDetails struct {
	Author string `json:"author"`
}

// DvdDetails holds the attributes only DVDs have.
type DvdDetails struct {
	DurationMinutes int    `json:"duration_minutes"`
	Rating          string `json:"rating"`
}

// MagazineDetails holds the attributes only magazines have.
type MagazineDetails struct {
	Publisher string `json:"publisher"`
}

// MediaItem is a circulating item. Exactly one of Book, Dvd or Magazine is
// set, matching Kind.
type MediaItem struct {
	ID         uuid.UUID          `json:"id"`
	Kind       MediaKind          `json:"kind"`
	Title      string             `json:"title"`
	Year       int                `json:"year"`
	Categories []string           `json:"categories"`
	Status     AvailabilityStatus `json:"status"`

	Book     *BookDetails     `json:"book,omitempty"`
	Dvd      *DvdDetails      `json:"dvd,omitempty"`
	Magazine *MagazineDetails `json:"magazine,omitempty"`
}

// NewBook returns an available book with a fresh id.
func NewBook(title, author string, year int, categories []string) *MediaItem {
	return &MediaItem{
		ID:         uuid.New(),
		Kind:       KindBook,
		Title:      title,
		Year:       year,
		Categories: categories,
		Status:     StatusAvailable,
		Book:       &BookDetails{Author: author},
	}
}

// NewDvd returns an available DVD with a fresh id.
func NewDvd(title string, year, durationMinutes int, rating string, categories []string) *MediaItem {
	return &MediaItem{
		ID:         uuid.New(),
		Kind:       KindDvd,
		Title:      title,
		Year:       year,
		Categories: categories,
		Status:     StatusAvailable,
		Dvd:        &DvdDetails{DurationMinutes: durationMinutes, Rating: rating},
	}
}

// NewMagazine returns an available magazine with a fresh id.
func NewMagazine(title, publisher string, year int, categories []string) *MediaItem {
	return &MediaItem{
		ID:         uuid.New(),
		Kind:       KindMagazine,
		Title:      title,
		Year:       year,
		Categories: categories,
		Status:     StatusAvailable,
		Magazine:   &MagazineDetails{Publisher: publisher},
	}
}

// Author reports the item's author for variants that have one.
func (m *MediaItem) Author() (string, bool) {
	if m.Book == nil {
		return "", false
	}
	return m.Book.Author, true
}

// IsAvailable reports whether the item can be lent to anyone.
func (m *MediaItem) IsAvailable() bool { return m.Status == StatusAvailable }

func (m *MediaItem) clone() *MediaItem {
	c := *m
	if m.Categories != nil {
		c.Categories = append([]string(nil), m.Categories...)
	}
	if m.Book != nil {
		b := *m.Book
		c.Book = &b
	}
	if m.Dvd != nil {
		d := *m.Dvd
		c.Dvd = &d
	}
	if m.Magazine != nil {
		mg := *m.Magazine
		c.Magazine = &mg
	}
	return &c
}

// Member represents a registered library member.
type Member struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Active bool      `json:"active"`
}

// NewMember returns an active member with a fresh id.
func NewMember(name, email string) *Member {
	return &Member{ID: uuid.New(), Name: name, Email: email, Active: true}
}

// Loan records one borrowing of a media item.
type Loan struct {
	ID          uuid.UUID  `json:"id"`
	MemberID    uuid.UUID  `json:"member_id"`
	MediaID     uuid.UUID  `json:"media_id"`
	LoanDate    time.Time  `json:"loan_date"`
	DueDate     time.Time  `json:"due_date"`
	ReturnDate  *time.Time `json:"return_date,omitempty"`
	FineAccrued int        `json:"fine_accrued"`
	Status      LoanStatus `json:"status"`
}

// IsOverdue reports whether the loan is outstanding past its due date on the given day.
func (l *Loan) IsOverdue(today time.Time) bool {
	return l.Status == LoanOutstanding && l.DueDate.Before(dateOf(today))
}

func (l *Loan) markReturned(returnDate time.Time, fine int) {
	l.FineAccrued = fine
	l.ReturnDate = &returnDate
	l.Status = LoanReturned
}

func (l *Loan) clone() *Loan {
	c := *l
	if l.ReturnDate != nil {
		rd := *l.ReturnDate
		c.ReturnDate = &rd
	}
	return &c
}

// Reservation is one place in a media item's FIFO queue.
type Reservation struct {
	ID              uuid.UUID         `json:"id"`
	MemberID        uuid.UUID         `json:"member_id"`
	MediaID         uuid.UUID         `json:"media_id"`
	ReservationDate time.Time         `json:"reservation_date"`
	Status          ReservationStatus `json:"status"`
}

// dateOf strips the clock time, keeping the calendar day in t's location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
