// Package storage is the local sqlite layer: sweep checkpoints and an archive
// of every normalized receipt that passed through retrieval.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"capture/internal/receipt"
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
CREATE TABLE IF NOT EXISTS checkpoints (
  key TEXT PRIMARY KEY,
  sweptAt TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS receipts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  receiptId TEXT,
  merchantName TEXT,
  receiptDate TEXT,
  total REAL,
  currencyCode TEXT,
  productCount INTEGER NOT NULL DEFAULT 0,
  ereceipt INTEGER NOT NULL DEFAULT 0,
  payloadJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_receipts_merchant ON receipts(merchantName);
CREATE INDEX IF NOT EXISTS idx_receipts_receiptId ON receipts(receiptId);
`

	_, err := d.conn.Exec(schema)
	return err
}

// LastSweep returns the recorded sweep time for a checkpoint key, or nil when
// none was ever recorded.
func (d *DB) LastSweep(key string) (*time.Time, error) {
	var raw string
	err := d.conn.QueryRow(`SELECT sweptAt FROM checkpoints WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, err
	}
	return &at, nil
}

func (d *DB) SetLastSweep(key string, at time.Time) error {
	_, err := d.conn.Exec(`
INSERT INTO checkpoints (key, sweptAt) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET sweptAt = excluded.sweptAt, updatedAt = CURRENT_TIMESTAMP
`, key, at.UTC().Format(time.RFC3339Nano))
	return err
}

// ReceiptRow is one archived receipt: indexed summary columns plus the full
// canonical JSON payload.
type ReceiptRow struct {
	ID           int64
	ReceiptID    *string
	MerchantName *string
	ReceiptDate  *string
	Total        *float64
	CurrencyCode *string
	ProductCount int
	EReceipt     bool
	PayloadJSON  string
	CreatedAt    string
}

func (d *DB) SaveReceipt(r *receipt.Receipt) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}

	var merchant, date *string
	if r.MerchantName != nil {
		merchant = &r.MerchantName.Value
	}
	if r.ReceiptDate != nil {
		date = &r.ReceiptDate.Value
	}
	var total *float64
	if r.Total != nil {
		total = &r.Total.Value
	}

	_, err = d.conn.Exec(`
INSERT INTO receipts (receiptId, merchantName, receiptDate, total, currencyCode, productCount, ereceipt, payloadJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, r.ReceiptID, merchant, date, total, r.CurrencyCode, len(r.Products), boolToInt(r.EReceipt), string(payload))
	return err
}

func (d *DB) ListReceipts() ([]ReceiptRow, error) {
	rows, err := d.conn.Query(`
SELECT id, receiptId, merchantName, receiptDate, total, currencyCode, productCount, ereceipt, payloadJson, createdAt
FROM receipts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReceiptRow
	for rows.Next() {
		var row ReceiptRow
		var ereceipt int
		if err := rows.Scan(
			&row.ID, &row.ReceiptID, &row.MerchantName, &row.ReceiptDate, &row.Total,
			&row.CurrencyCode, &row.ProductCount, &ereceipt, &row.PayloadJSON, &row.CreatedAt,
		); err != nil {
			return nil, err
		}
		row.EReceipt = ereceipt != 0
		out = append(out, row)
	}

	return out, rows.Err()
}

// Receipt decodes the archived payload of one row.
func (r ReceiptRow) Receipt() (*receipt.Receipt, error) {
	var out receipt.Receipt
	if err := json.Unmarshal([]byte(r.PayloadJSON), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
