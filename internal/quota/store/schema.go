package store

import (
	"entgo.io/ent/dialect"
)

const tableName = "quota_snapshots"

var columns = []string{
	"id",
	"provider",
	"checker_id",
	"group_id",
	"window_type",
	"window_label",
	"description",
	"checked_at",
	"quota_limit",
	"used",
	"remaining",
	"utilization_percent",
	"unit",
	"resets_at",
	"status",
	"success",
	"error_message",
	"created_at",
}

const sqliteDDL = `CREATE TABLE IF NOT EXISTS quota_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	provider TEXT NOT NULL,
	checker_id TEXT NOT NULL,
	group_id TEXT,
	window_type TEXT NOT NULL,
	window_label TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	checked_at INTEGER NOT NULL,
	quota_limit REAL,
	used REAL,
	remaining REAL,
	utilization_percent REAL NOT NULL,
	unit TEXT NOT NULL,
	resets_at INTEGER,
	status TEXT NOT NULL DEFAULT '',
	success BOOLEAN NOT NULL,
	error_message TEXT,
	created_at INTEGER NOT NULL
)`

const postgresDDL = `CREATE TABLE IF NOT EXISTS quota_snapshots (
	id BIGSERIAL PRIMARY KEY,
	provider TEXT NOT NULL,
	checker_id TEXT NOT NULL,
	group_id TEXT,
	window_type TEXT NOT NULL,
	window_label TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	checked_at BIGINT NOT NULL,
	quota_limit DOUBLE PRECISION,
	used DOUBLE PRECISION,
	remaining DOUBLE PRECISION,
	utilization_percent DOUBLE PRECISION NOT NULL,
	unit TEXT NOT NULL,
	resets_at BIGINT,
	status TEXT NOT NULL DEFAULT '',
	success BOOLEAN NOT NULL,
	error_message TEXT,
	created_at BIGINT NOT NULL
)`

// MySQL has no CREATE INDEX IF NOT EXISTS, so its indexes live in the table definition.
const mysqlDDL = "CREATE TABLE IF NOT EXISTS quota_snapshots (" +
	"id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
	"provider VARCHAR(255) NOT NULL," +
	"checker_id VARCHAR(255) NOT NULL," +
	"group_id VARCHAR(255) NULL," +
	"window_type VARCHAR(64) NOT NULL," +
	"window_label VARCHAR(255) NOT NULL DEFAULT ''," +
	"description TEXT NULL," +
	"checked_at BIGINT NOT NULL," +
	"quota_limit DOUBLE NULL," +
	"used DOUBLE NULL," +
	"remaining DOUBLE NULL," +
	"utilization_percent DOUBLE NOT NULL," +
	"unit VARCHAR(32) NOT NULL," +
	"resets_at BIGINT NULL," +
	"status VARCHAR(32) NOT NULL DEFAULT ''," +
	"success BOOLEAN NOT NULL," +
	"error_message TEXT NULL," +
	"created_at BIGINT NOT NULL," +
	"INDEX quota_snapshots_checker_window_checked (checker_id, window_type, checked_at)," +
	"INDEX quota_snapshots_checker_checked (checker_id, checked_at)" +
	")"

var indexDDL = []string{
	`CREATE INDEX IF NOT EXISTS quota_snapshots_checker_window_checked ON quota_snapshots (checker_id, window_type, checked_at)`,
	`CREATE INDEX IF NOT EXISTS quota_snapshots_checker_checked ON quota_snapshots (checker_id, checked_at)`,
}

func schemaStatements(d string) []string {
	switch d {
	case dialect.Postgres:
		return append([]string{postgresDDL}, indexDDL...)
	case dialect.MySQL:
		return []string{mysqlDDL}
	default:
		return append([]string{sqliteDDL}, indexDDL...)
	}
}
