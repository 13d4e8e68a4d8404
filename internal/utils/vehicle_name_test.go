package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupDisplayID(t *testing.T) {
	tests := []struct {
		pattern, name string
		index         int
		want          string
	}{
		{"Fiat Panda {n}", "Pandas", 2, "Fiat Panda 2"},
		{"Van-{n}-{n}", "Vans", 3, "Van-3-3"},
		{"Scooter", "Scooters", 1, "Scooter #1"},
		{"", "City cars", 4, "City cars #4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GroupDisplayID(tt.pattern, tt.name, tt.index))
	}
}

func TestSameVehicleKind(t *testing.T) {
	assert.True(t, SameVehicleKind("car", "compact", "Car ", "COMPACT"))
	assert.False(t, SameVehicleKind("car", "compact", "car", "suv"))
	assert.False(t, SameVehicleKind("car", "", "scooter", ""))
}
