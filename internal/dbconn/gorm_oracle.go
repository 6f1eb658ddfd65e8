//go:build oracle

package dbconn

import (
	"fmt"

	"github.com/oracle-samples/gorm-oracle/oracle"
	"gorm.io/gorm"

	"github.com/unimak/dftrack/internal/config"
)

// oracleDialector returns the Oracle dialector when built with the oracle tag.
// Requires CGO and the Oracle Instant Client libraries.
func oracleDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn := cfg.URL
	if dsn == "" {
		// godror wants the password quoted, not URL-encoded
		dsn = fmt.Sprintf(`user="%s" password="%s" connectString="%s"`,
			cfg.Oracle.User, cfg.Oracle.Password, cfg.Oracle.ConnectString)
	}
	return oracle.Open(dsn), nil
}
