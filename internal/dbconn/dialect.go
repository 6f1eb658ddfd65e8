package dbconn

import (
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/unimak/dftrack/internal/config"
)

// DialectName returns the backend name GORM reports for db
func DialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return ""
	}
	return db.Dialector.Name()
}

// Rebind rewrites the '?' placeholders of query into the bind syntax of
// dialect: $n for postgres, @pn for sqlserver, :n for oracle. MySQL and
// SQLite keep '?'. Placeholders inside single-quoted literals are untouched.
//
// GORM already does this for its own statements; Rebind is for raw
// database/sql paths.
func Rebind(dialect, query string) string {
	var prefix string
	switch dialect {
	case config.DatabaseTypePostgres:
		prefix = "$"
	case config.DatabaseTypeSQLServer:
		prefix = "@p"
	case config.DatabaseTypeOracle:
		prefix = ":"
	default:
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			b.WriteString(prefix)
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
