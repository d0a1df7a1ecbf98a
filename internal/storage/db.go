package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"lotlister/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent across calls.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS taxonomy_nodes (
  ordinal INTEGER PRIMARY KEY,
  categoryId TEXT NOT NULL,
  path TEXT NOT NULL,
  depth INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS invoices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  emailId INTEGER NOT NULL,
  filename TEXT NOT NULL,
  text TEXT NOT NULL,
  shipping REAL NOT NULL DEFAULT 0,
  invoiceDate TEXT NOT NULL DEFAULT '',
  vendorNumber TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(emailId, filename),
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  status TEXT NOT NULL,
  message TEXT NOT NULL DEFAULT '',
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ReplaceTaxonomy swaps the stored taxonomy for nodes in one transaction.
func (d *DB) ReplaceTaxonomy(nodes []internal.TaxonomyNode) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM taxonomy_nodes`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO taxonomy_nodes (ordinal, categoryId, path, depth) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range nodes {
		if _, err := stmt.Exec(n.Ordinal, n.ID, n.Path, n.Depth); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListTaxonomy() ([]internal.TaxonomyNode, error) {
	rows, err := d.conn.Query(`SELECT ordinal, categoryId, path, depth FROM taxonomy_nodes ORDER BY ordinal ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.TaxonomyNode
	for rows.Next() {
		var n internal.TaxonomyNode
		if err := rows.Scan(&n.Ordinal, &n.ID, &n.Path, &n.Depth); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE status = ? ORDER BY receivedAt ASC, id ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		var row internal.EmailRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

// InsertInvoice stores an invoice extracted from an e-mail. Re-processing the
// same attachment refreshes its fields and leaves its status untouched.
func (d *DB) InsertInvoice(inv internal.InboxInvoice) (int64, error) {
	status := inv.Status
	if status == "" {
		status = "pending"
	}
	_, err := d.conn.Exec(`
INSERT INTO invoices (emailId, filename, text, shipping, invoiceDate, vendorNumber, status)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(emailId, filename) DO UPDATE SET
  text=excluded.text,
  shipping=excluded.shipping,
  invoiceDate=excluded.invoiceDate,
  vendorNumber=excluded.vendorNumber
`, inv.EmailID, inv.Filename, inv.Text, inv.Shipping, inv.InvoiceDate, inv.VendorNumber, status)
	if err != nil {
		return 0, err
	}

	var id int64
	err = d.conn.QueryRow(`SELECT id FROM invoices WHERE emailId = ? AND filename = ?`, inv.EmailID, inv.Filename).Scan(&id)
	return id, err
}

func (d *DB) ListInvoicesByStatus(status string, limit int) ([]internal.InboxInvoice, error) {
	rows, err := d.conn.Query(`
SELECT id, emailId, filename, text, shipping, invoiceDate, vendorNumber, status, createdAt
FROM invoices WHERE status = ? ORDER BY id ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.InboxInvoice
	for rows.Next() {
		var inv internal.InboxInvoice
		if err := rows.Scan(&inv.ID, &inv.EmailID, &inv.Filename, &inv.Text, &inv.Shipping, &inv.InvoiceDate, &inv.VendorNumber, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (d *DB) UpdateInvoiceStatus(ids []int, status string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE invoices SET status = ? WHERE id = ?`, status, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) InsertRun(traceID, status, message string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, status, message, timingsJson, countsJson) VALUES (?, ?, ?, ?, ?)`,
		traceID, status, message, string(timingsJSON), string(countsJSON))
	return err
}

// RunRecord is one row of the run log.
type RunRecord struct {
	ID        int
	TraceID   string
	Status    string
	Message   string
	Timings   map[string]float64
	Counts    map[string]int
	CreatedAt string
}

func (d *DB) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := d.conn.Query(`
SELECT id, traceId, status, message, timingsJson, countsJson, createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var timingsJSON, countsJSON string
		if err := rows.Scan(&r.ID, &r.TraceID, &r.Status, &r.Message, &timingsJSON, &countsJSON, &r.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(timingsJSON), &r.Timings)
		_ = json.Unmarshal([]byte(countsJSON), &r.Counts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}
