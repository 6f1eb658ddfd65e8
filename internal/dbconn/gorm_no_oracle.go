//go:build !oracle

package dbconn

import (
	"errors"

	"gorm.io/gorm"

	"github.com/unimak/dftrack/internal/config"
)

// oracleDialector is unavailable without the oracle build tag.
// Build with: go build -tags oracle
func oracleDialector(config.DatabaseConfig) (gorm.Dialector, error) {
	return nil, errors.New("oracle support not compiled in; rebuild with -tags oracle")
}
