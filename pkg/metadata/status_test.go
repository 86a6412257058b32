package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequestType(t *testing.T) {
	direct, err := NewRequestType("direct")
	assert.NoError(t, err)
	assert.Equal(t, RequestDirect, direct)

	broadcast, err := NewRequestType("broadcast")
	assert.NoError(t, err)
	assert.Equal(t, RequestBroadcast, broadcast)

	_, err = NewRequestType("multicast")
	assert.Error(t, err)
}

func TestNewEquipmentStatus(t *testing.T) {
	status, err := NewEquipmentStatus("available")
	assert.NoError(t, err)
	assert.Equal(t, EquipmentAvailable, status)

	_, err = NewEquipmentStatus("lost")
	assert.Error(t, err)
}
