// SPDX-License-Identifier: MIT

package dialect

import (
	"testing"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectFallsBackToHybridForUnknownVendor(t *testing.T) {
	caps := Select(hdds.VendorUnknown)
	assert.Equal(t, DialectHybrid, caps.Dialect)
	assert.True(t, caps.RequiresTypeObject)
}

func TestSelectReturnsKnownDialectForEachVendor(t *testing.T) {
	assert.Equal(t, DialectFastDDS, Select(hdds.VendorFastDDS).Dialect)
	assert.Equal(t, DialectCycloneDDS, Select(hdds.VendorCyclone).Dialect)
	assert.Equal(t, DialectOpenDDS, Select(hdds.VendorOpenDDS).Dialect)
	assert.Equal(t, DialectRTI, Select(hdds.VendorRTI).Dialect)
}

func TestEncoderOrderEndpointParametersPutsGUIDFirstWhenRequired(t *testing.T) {
	enc := NewEncoder(Select(hdds.VendorFastDDS))
	entries := []wire.Parameter{
		{ID: wire.PIDTopicName, Payload: []byte("t")},
		{ID: wire.PIDEndpointGUID, Payload: []byte("g")},
	}
	ordered := enc.OrderEndpointParameters(entries)
	require.Len(t, ordered, 2)
	assert.Equal(t, wire.PIDEndpointGUID, ordered[0].ID)
}

func TestEncoderOrderEndpointParametersLeavesOrderUnchangedWhenNotRequired(t *testing.T) {
	enc := NewEncoder(Select(hdds.VendorHDDS))
	entries := []wire.Parameter{
		{ID: wire.PIDTopicName, Payload: []byte("t")},
		{ID: wire.PIDEndpointGUID, Payload: []byte("g")},
	}
	ordered := enc.OrderEndpointParameters(entries)
	assert.Equal(t, wire.PIDTopicName, ordered[0].ID)
}

func TestEncoderPreferredEncapsulation(t *testing.T) {
	assert.Equal(t, wire.EncapsulationPLXCDR2LE, NewEncoder(Select(hdds.VendorHDDS)).PreferredEncapsulation())
	assert.Equal(t, wire.EncapsulationPLCDRLE, NewEncoder(Select(hdds.VendorOpenDDS)).PreferredEncapsulation())
}

func TestEncoderClampFragmentSize(t *testing.T) {
	enc := NewEncoder(Select(hdds.VendorOpenDDS))
	assert.Equal(t, 1024, enc.ClampFragmentSize(1300))
	assert.Equal(t, 512, enc.ClampFragmentSize(512))
}

func TestEncoderRequiresTypeObject(t *testing.T) {
	assert.True(t, NewEncoder(Select(hdds.VendorRTI)).RequiresTypeObject())
	assert.False(t, NewEncoder(Select(hdds.VendorHDDS)).RequiresTypeObject())
}
