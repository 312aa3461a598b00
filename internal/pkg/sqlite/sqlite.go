// Package sqlite registers the pure-Go modernc driver under the "sqlite3" name
// so DSNs and dialect names stay the same as with the cgo driver.
package sqlite

import (
	"database/sql"

	"modernc.org/sqlite"
)

func init() {
	sql.Register("sqlite3", &sqlite.Driver{})
}
