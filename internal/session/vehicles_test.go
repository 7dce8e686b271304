package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		class  VehicleClass
		safety bool
		want   int
	}{
		{VehicleMoto, false, 50},
		{VehicleMoto, true, 55},
		{VehicleAuto, false, 80},
		{VehicleAuto, true, 88},
		{VehiclePrime, false, 120},
		{VehiclePrime, true, 132},
	}

	for _, tt := range tests {
		got, err := Quote(tt.class, tt.safety)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s safety=%v", tt.class, tt.safety)
	}

	_, err := Quote("jet", false)
	assert.ErrorIs(t, err, ErrUnknownVehicle)
}

func TestCatalogueIsACopy(t *testing.T) {
	c := Catalogue()
	require.Len(t, c, 3)
	c[0].Multiplier = 99

	v, ok := LookupVehicle(VehicleMoto)
	require.True(t, ok)
	assert.Equal(t, 0.5, v.Multiplier)
}
