package api

import (
	"fmt"
	"sync"
	"time"
)

// dfTimeLayout renders DDMMYYHHMMSS
const dfTimeLayout = "020106150405"

// DFNumberGenerator issues df numbers derived from the creation time.
// Numbers issued within the same second get a _2, _3, ... suffix.
type DFNumberGenerator struct {
	mu       sync.Mutex
	lastBase string
	seq      int
}

// NewDFNumberGenerator creates a generator with no history
func NewDFNumberGenerator() *DFNumberGenerator {
	return &DFNumberGenerator{}
}

// Next returns the next df number for the given creation time
func (g *DFNumberGenerator) Next(now time.Time) string {
	base := "df_" + now.Format(dfTimeLayout)

	g.mu.Lock()
	defer g.mu.Unlock()

	if base != g.lastBase {
		g.lastBase = base
		g.seq = 1
		return base
	}
	g.seq++
	return fmt.Sprintf("%s_%d", base, g.seq)
}

// DFFilename is the workbook name recorded on every step of a report
func DFFilename(dfNumber string) string {
	return dfNumber + ".xlsx"
}
