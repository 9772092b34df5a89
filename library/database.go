package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Database persists library snapshots and member credentials in SQLite.
type Database struct {
	db *sql.DB
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db}, nil
}

func (d *Database) Close() error { return d.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS media_items (
            id TEXT PRIMARY KEY,
            kind TEXT NOT NULL,
            title TEXT NOT NULL,
            status TEXT NOT NULL,
            details BLOB NOT NULL,
            held_for TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            active BOOLEAN NOT NULL DEFAULT 1
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            id TEXT PRIMARY KEY,
            member_id TEXT NOT NULL,
            media_id TEXT NOT NULL,
            loan_date TEXT NOT NULL,
            due_date TEXT NOT NULL,
            return_date TEXT,
            fine_accrued INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS reservations (
            id TEXT PRIMARY KEY,
            member_id TEXT NOT NULL,
            media_id TEXT NOT NULL,
            reservation_date TEXT NOT NULL,
            status TEXT NOT NULL,
            position INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS credentials (
            member_id TEXT PRIMARY KEY,
            password_hash TEXT NOT NULL
        );`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// itemDetails is the JSON payload for the variant-specific columns.
type itemDetails struct {
	Year       int              `json:"year"`
	Categories []string         `json:"categories,omitempty"`
	Book       *BookDetails     `json:"book,omitempty"`
	Dvd        *DvdDetails      `json:"dvd,omitempty"`
	Magazine   *MagazineDetails `json:"magazine,omitempty"`
}

// SaveState replaces the stored snapshot with st in one transaction.
// Credentials of members missing from st are removed with it.
func (d *Database) SaveState(st State) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"reservations", "loans", "members", "media_items"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, item := range st.Items {
		details, err := json.Marshal(itemDetails{
			Year:       item.Year,
			Categories: item.Categories,
			Book:       item.Book,
			Dvd:        item.Dvd,
			Magazine:   item.Magazine,
		})
		if err != nil {
			return fmt.Errorf("encode item %s: %w", item.ID, err)
		}
		var heldFor sql.NullString
		if memberID, ok := st.Holds[item.ID]; ok {
			heldFor = sql.NullString{String: memberID.String(), Valid: true}
		}
		if _, err := tx.Exec(`INSERT INTO media_items(id,kind,title,status,details,held_for) VALUES(?,?,?,?,?,?)`,
			item.ID.String(), string(item.Kind), item.Title, string(item.Status), details, heldFor); err != nil {
			return fmt.Errorf("insert item %s: %w", item.ID, err)
		}
	}

	for _, m := range st.Members {
		if _, err := tx.Exec(`INSERT INTO members(id,name,email,active) VALUES(?,?,?,?)`,
			m.ID.String(), m.Name, m.Email, m.Active); err != nil {
			return fmt.Errorf("insert member %s: %w", m.ID, err)
		}
	}

	for _, loan := range st.Loans {
		var returned sql.NullString
		if loan.ReturnDate != nil {
			returned = sql.NullString{String: loan.ReturnDate.Format(time.DateOnly), Valid: true}
		}
		if _, err := tx.Exec(`INSERT INTO loans(id,member_id,media_id,loan_date,due_date,return_date,fine_accrued,status) VALUES(?,?,?,?,?,?,?,?)`,
			loan.ID.String(), loan.MemberID.String(), loan.MediaID.String(),
			loan.LoanDate.Format(time.DateOnly), loan.DueDate.Format(time.DateOnly), returned,
			loan.FineAccrued, string(loan.Status)); err != nil {
			return fmt.Errorf("insert loan %s: %w", loan.ID, err)
		}
	}

	for pos, r := range st.Reservations {
		if _, err := tx.Exec(`INSERT INTO reservations(id,member_id,media_id,reservation_date,status,position) VALUES(?,?,?,?,?,?)`,
			r.ID.String(), r.MemberID.String(), r.MediaID.String(),
			r.ReservationDate.Format(time.DateOnly), string(r.Status), pos); err != nil {
			return fmt.Errorf("insert reservation %s: %w", r.ID, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM credentials WHERE member_id NOT IN (SELECT id FROM members)`); err != nil {
		return fmt.Errorf("prune credentials: %w", err)
	}

	return tx.Commit()
}

// LoadState reads the stored snapshot. An empty database yields an empty State.
func (d *Database) LoadState() (State, error) {
	st := State{Holds: make(map[uuid.UUID]uuid.UUID)}
	var err error
	if st.Items, err = d.loadItems(st.Holds); err != nil {
		return State{}, err
	}
	if st.Members, err = d.loadMembers(); err != nil {
		return State{}, err
	}
	if st.Loans, err = d.loadLoans(); err != nil {
		return State{}, err
	}
	if st.Reservations, err = d.loadReservations(); err != nil {
		return State{}, err
	}
	return st, nil
}

func (d *Database) loadItems(holds map[uuid.UUID]uuid.UUID) ([]MediaItem, error) {
	rows, err := d.db.Query(`SELECT id,kind,title,status,details,held_for FROM media_items`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MediaItem
	for rows.Next() {
		var (
			id, kind, title, status string
			raw                     []byte
			heldFor                 sql.NullString
		)
		if err := rows.Scan(&id, &kind, &title, &status, &raw, &heldFor); err != nil {
			return nil, err
		}
		var det itemDetails
		if err := json.Unmarshal(raw, &det); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", id, err)
		}
		item := MediaItem{
			Kind:       MediaKind(kind),
			Title:      title,
			Status:     AvailabilityStatus(status),
			Year:       det.Year,
			Categories: det.Categories,
			Book:       det.Book,
			Dvd:        det.Dvd,
			Magazine:   det.Magazine,
		}
		if item.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("item id %q: %w", id, err)
		}
		if heldFor.Valid {
			memberID, err := uuid.Parse(heldFor.String)
			if err != nil {
				return nil, fmt.Errorf("item %s hold %q: %w", id, heldFor.String, err)
			}
			holds[item.ID] = memberID
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (d *Database) loadMembers() ([]Member, error) {
	rows, err := d.db.Query(`SELECT id,name,email,active FROM members`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var (
			m  Member
			id string
		)
		if err := rows.Scan(&id, &m.Name, &m.Email, &m.Active); err != nil {
			return nil, err
		}
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("member id %q: %w", id, err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (d *Database) loadLoans() ([]Loan, error) {
	rows, err := d.db.Query(`SELECT id,member_id,media_id,loan_date,due_date,return_date,fine_accrued,status FROM loans`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []Loan
	for rows.Next() {
		var (
			loan                          Loan
			id, memberID, mediaID, status string
			loanDate, dueDate             string
			returned                      sql.NullString
		)
		if err := rows.Scan(&id, &memberID, &mediaID, &loanDate, &dueDate, &returned, &loan.FineAccrued, &status); err != nil {
			return nil, err
		}
		loan.Status = LoanStatus(status)
		if err := parseIDs(id, memberID, mediaID, &loan.ID, &loan.MemberID, &loan.MediaID); err != nil {
			return nil, fmt.Errorf("loan %s: %w", id, err)
		}
		if loan.LoanDate, err = time.Parse(time.DateOnly, loanDate); err != nil {
			return nil, fmt.Errorf("loan %s date: %w", id, err)
		}
		if loan.DueDate, err = time.Parse(time.DateOnly, dueDate); err != nil {
			return nil, fmt.Errorf("loan %s due date: %w", id, err)
		}
		if returned.Valid {
			rd, err := time.Parse(time.DateOnly, returned.String)
			if err != nil {
				return nil, fmt.Errorf("loan %s return date: %w", id, err)
			}
			loan.ReturnDate = &rd
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

func (d *Database) loadReservations() ([]Reservation, error) {
	rows, err := d.db.Query(`SELECT id,member_id,media_id,reservation_date,status FROM reservations ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		var (
			r                                   Reservation
			id, memberID, mediaID, date, status string
		)
		if err := rows.Scan(&id, &memberID, &mediaID, &date, &status); err != nil {
			return nil, err
		}
		r.Status = ReservationStatus(status)
		if err := parseIDs(id, memberID, mediaID, &r.ID, &r.MemberID, &r.MediaID); err != nil {
			return nil, fmt.Errorf("reservation %s: %w", id, err)
		}
		if r.ReservationDate, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("reservation %s date: %w", id, err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func parseIDs(id, memberID, mediaID string, dstID, dstMember, dstMedia *uuid.UUID) error {
	var err error
	if *dstID, err = uuid.Parse(id); err != nil {
		return err
	}
	if *dstMember, err = uuid.Parse(memberID); err != nil {
		return err
	}
	*dstMedia, err = uuid.Parse(mediaID)
	return err
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// ErrNoCredentials is returned when a member has never set a password.
var ErrNoCredentials = errors.New("no password set")

// SetPasswordHash stores (or replaces) a member's password hash.
func (d *Database) SetPasswordHash(memberID uuid.UUID, hash string) error {
	_, err := d.db.Exec(`INSERT INTO credentials(member_id,password_hash) VALUES(?,?)
        ON CONFLICT(member_id) DO UPDATE SET password_hash=excluded.password_hash`, memberID.String(), hash)
	return err
}

func (d *Database) PasswordHash(memberID uuid.UUID) (string, error) {
	var hash string
	err := d.db.QueryRow(`SELECT password_hash FROM credentials WHERE member_id=?`, memberID.String()).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoCredentials
	}
	return hash, err
}
