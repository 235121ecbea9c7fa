package sqlstore

import (
	"fmt"
	"strings"

	// Registered database/sql drivers.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Table is the name of the item table.
const Table = "credstore_items"

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	name   string
	driver string
	dollar bool
	schema string
	upsert string
}

var (
	// SQLite uses the pure-Go modernc.org/sqlite driver.
	SQLite = Dialect{
		name:   "sqlite",
		driver: "sqlite",
		schema: `CREATE TABLE IF NOT EXISTS ` + Table + ` (
	keychain TEXT NOT NULL,
	service TEXT NOT NULL,
	account TEXT NOT NULL,
	access_group TEXT NOT NULL,
	synchronizable BOOLEAN NOT NULL,
	protection TEXT NOT NULL,
	require_auth BOOLEAN NOT NULL,
	secret BLOB,
	PRIMARY KEY (keychain, service, account, access_group, synchronizable)
)`,
		upsert: "ON CONFLICT (keychain, service, account, access_group, synchronizable) DO UPDATE SET secret = excluded.secret",
	}

	// Postgres uses github.com/lib/pq.
	Postgres = Dialect{
		name:   "postgres",
		driver: "postgres",
		dollar: true,
		schema: `CREATE TABLE IF NOT EXISTS ` + Table + ` (
	keychain TEXT NOT NULL,
	service TEXT NOT NULL,
	account TEXT NOT NULL,
	access_group TEXT NOT NULL,
	synchronizable BOOLEAN NOT NULL,
	protection TEXT NOT NULL,
	require_auth BOOLEAN NOT NULL,
	secret BYTEA,
	PRIMARY KEY (keychain, service, account, access_group, synchronizable)
)`,
		upsert: "ON CONFLICT (keychain, service, account, access_group, synchronizable) DO UPDATE SET secret = excluded.secret",
	}

	// MySQL uses github.com/go-sql-driver/mysql. Key columns are sized to
	// fit InnoDB's index limit under utf8mb4 and use a binary collation so
	// matching and the primary key are case-sensitive.
	MySQL = Dialect{
		name:   "mysql",
		driver: "mysql",
		schema: `CREATE TABLE IF NOT EXISTS ` + Table + ` (
	keychain VARCHAR(32) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
	service VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
	account VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
	access_group VARCHAR(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL,
	synchronizable BOOLEAN NOT NULL,
	protection VARCHAR(16) NOT NULL,
	require_auth BOOLEAN NOT NULL,
	secret LONGBLOB,
	PRIMARY KEY (keychain, service, account, access_group, synchronizable)
)`,
		upsert: "ON DUPLICATE KEY UPDATE secret = VALUES(secret)",
	}
)

var dialects = map[string]Dialect{
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
	"postgres":   Postgres,
	"postgresql": Postgres,
	"mysql":      MySQL,
	"mariadb":    MySQL,
}

// DialectFor looks up a dialect by database type.
func DialectFor(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported database type: %s", name)
	}
	return d, nil
}

// Name returns the dialect's database type.
func (d Dialect) Name() string { return d.name }

// Driver returns the database/sql driver name.
func (d Dialect) Driver() string { return d.driver }

// query accumulates a WHERE clause with dialect placeholders.
type query struct {
	dialect Dialect
	conds   []string
	args    []interface{}
}

func (q *query) where(column string, value interface{}) {
	q.args = append(q.args, value)
	if q.dialect.dollar {
		q.conds = append(q.conds, fmt.Sprintf("%s = $%d", column, len(q.args)))
		return
	}
	q.conds = append(q.conds, column+" = ?")
}

func (q *query) clause() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

func (d Dialect) insert() string {
	values := "?, ?, ?, ?, ?, ?, ?, ?"
	if d.dollar {
		values = "$1, $2, $3, $4, $5, $6, $7, $8"
	}
	return "INSERT INTO " + Table +
		" (keychain, service, account, access_group, synchronizable, protection, require_auth, secret) VALUES (" +
		values + ") " + d.upsert
}
