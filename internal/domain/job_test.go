package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isuru709/TorrentFlow-x365/internal/domain"
)

func TestRatio(t *testing.T) {
	t.Run("divides uploaded by downloaded", func(t *testing.T) {
		assert.InDelta(t, 0.5, domain.Ratio(50, 100), 1e-9)
	})

	t.Run("zero downloaded counts as one", func(t *testing.T) {
		assert.InDelta(t, 42, domain.Ratio(42, 0), 1e-9)
	})

	t.Run("never negative or infinite", func(t *testing.T) {
		assert.Equal(t, 0.0, domain.Ratio(0, 0))
		assert.InDelta(t, 7, domain.Ratio(7, -3), 1e-9)
	})
}
