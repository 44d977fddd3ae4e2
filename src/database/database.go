package database

import (
	"database/sql"
	"fmt"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

// InitDB opens the sqlite file at databasePath and ensures every table
// exists. ":memory:" is accepted for tests.
func InitDB(databasePath string) error {
	db, err := Open(databasePath)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open is InitDB without touching the package level handle.
func Open(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	logger.L.Info("Checking database migrations", "databasePath", databasePath)

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS manual_rates (
		pair TEXT NOT NULL,
		hour_start TEXT NOT NULL,
		rate TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY(pair, hour_start)
	);

	CREATE TABLE IF NOT EXISTS ledger_accounts (
		platform TEXT NOT NULL,
		id TEXT NOT NULL,
		currency TEXT NOT NULL,
		balance TEXT NOT NULL,
		PRIMARY KEY(platform, id)
	);

	CREATE TABLE IF NOT EXISTS ledger_transactions (
		platform TEXT NOT NULL,
		id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT,
		created_at TEXT NOT NULL,
		status TEXT,
		order_id TEXT,
		trade_id TEXT,
		trade_ref TEXT,
		native_amount TEXT,
		native_currency TEXT,
		PRIMARY KEY(platform, account_id, id)
	);

	CREATE TABLE IF NOT EXISTS trade_fees (
		platform TEXT NOT NULL,
		trade_ref TEXT NOT NULL,
		fee TEXT NOT NULL,
		PRIMARY KEY(platform, trade_ref)
	);

	CREATE TABLE IF NOT EXISTS declarations (
		id TEXT PRIMARY KEY,
		fiat TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		total_capital_gain TEXT NOT NULL,
		total_acquisition_price TEXT NOT NULL,
		missing_rates INTEGER DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS disposals (
		declaration_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		date TEXT NOT NULL,
		platform TEXT NOT NULL,
		cession_price TEXT NOT NULL,
		fee TEXT NOT NULL,
		acquisition_price TEXT NOT NULL,
		global_value TEXT NOT NULL,
		capital_gain TEXT NOT NULL,
		PRIMARY KEY(declaration_id, seq),
		FOREIGN KEY(declaration_id) REFERENCES declarations(id)
	);
	`

	if _, err := db.Exec(createTableStatement); err != nil {
		db.Close()
		logger.L.Error("failed to create tables", "error", err)
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := migrateLedgerTransactions(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.L.Info("Database tables ensured/created.")
	return db, nil
}

// migrateLedgerTransactions brings snapshot files written before trade
// references were kept up to date. Fresh databases already have the column.
func migrateLedgerTransactions(db *sql.DB) error {
	rows, err := db.Query("PRAGMA table_info(ledger_transactions)")
	if err != nil {
		return fmt.Errorf("failed to query ledger_transactions schema: %w", err)
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			return fmt.Errorf("failed to scan ledger_transactions column: %w", err)
		}
		columnExists[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if !columnExists["trade_ref"] {
		if _, err := db.Exec("ALTER TABLE ledger_transactions ADD COLUMN trade_ref TEXT"); err != nil {
			logger.L.Error("Error adding 'trade_ref' column to 'ledger_transactions' table", "error", err)
			return err
		}
		logger.L.Info("Added 'trade_ref' column to 'ledger_transactions' table")
	}
	return nil
}
