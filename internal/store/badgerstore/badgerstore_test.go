package badgerstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"StockPulse/internal/store/storetest"
)

func TestBadgerStore(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	storetest.Run(t, s)
}
