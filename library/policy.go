package library

import "time"

// LoanPolicy computes the due date of a new loan.
type LoanPolicy interface {
	DueDate(loanDate time.Time) (time.Time, error)
}

// FinePolicy computes the fine, in pence, for a return.
type FinePolicy interface {
	Fine(dueDate, returnDate time.Time) int
}

// StandardLoanPolicy lends every item for a fixed number of days.
type StandardLoanPolicy struct {
	loanDays int
}

// NewStandardLoanPolicy accepts zero and arbitrarily long loan periods.
func NewStandardLoanPolicy(loanDays int) (*StandardLoanPolicy, error) {
	if loanDays < 0 {
		return nil, invalidArgf("loan days must not be negative, got %d", loanDays)
	}
	return &StandardLoanPolicy{loanDays: loanDays}, nil
}

func (p *StandardLoanPolicy) LoanDays() int { return p.loanDays }

func (p *StandardLoanPolicy) DueDate(loanDate time.Time) (time.Time, error) {
	if loanDate.IsZero() {
		return time.Time{}, invalidArgf("loan date is required")
	}
	return dateOf(loanDate).AddDate(0, 0, p.loanDays), nil
}

// StandardFinePolicy charges a flat rate per day late.
type StandardFinePolicy struct {
	pencePerDay int
}

func NewStandardFinePolicy(pencePerDay int) (*StandardFinePolicy, error) {
	if pencePerDay <= 0 {
		return nil, invalidArgf("pence per day must be positive, got %d", pencePerDay)
	}
	return &StandardFinePolicy{pencePerDay: pencePerDay}, nil
}

func (p *StandardFinePolicy) PencePerDay() int { return p.pencePerDay }

func (p *StandardFinePolicy) Fine(dueDate, returnDate time.Time) int {
	late := daysBetween(dueDate, returnDate)
	if late <= 0 {
		return 0
	}
	return late * p.pencePerDay
}

// daysBetween counts whole calendar days from a to b; negative when b is earlier.
func daysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}
