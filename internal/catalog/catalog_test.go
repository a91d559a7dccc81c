package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllProductsCarryAccessLevel(t *testing.T) {
	products := All()
	require.NotEmpty(t, products)
	for _, p := range products {
		require.NotEmpty(t, p.Name)
		require.NotEmpty(t, p.KeyAuthLevel, "product %s has no license level to mint", p.Name)
		require.Greater(t, p.Price, 0.0)
	}
}

func TestByID(t *testing.T) {
	p, ok := ByID(1)
	require.True(t, ok)
	require.Equal(t, "FloatNote", p.Name)

	_, ok = ByID(999)
	require.False(t, ok)
}
