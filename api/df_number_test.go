package api

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDFNumberGenerator_Format(t *testing.T) {
	g := NewDFNumberGenerator()
	at := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "df_010124120000", g.Next(at))
	assert.Equal(t, "df_010124120000.xlsx", DFFilename("df_010124120000"))
}

func TestDFNumberGenerator_SameSecond(t *testing.T) {
	g := NewDFNumberGenerator()
	at := time.Date(2024, time.March, 15, 8, 30, 45, 0, time.UTC)

	assert.Equal(t, "df_150324083045", g.Next(at))
	assert.Equal(t, "df_150324083045_2", g.Next(at.Add(300*time.Millisecond)))
	assert.Equal(t, "df_150324083045_3", g.Next(at))
	assert.Equal(t, "df_150324083046", g.Next(at.Add(time.Second)))
}

func TestDFNumberGenerator_ConcurrentUnique(t *testing.T) {
	g := NewDFNumberGenerator()
	at := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

	const workers = 50
	results := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- g.Next(at)
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for df := range results {
		require.False(t, seen[df], "duplicate df number %s", df)
		seen[df] = true
	}
	assert.Len(t, seen, workers)
}
