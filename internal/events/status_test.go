package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus_AcceptsAllWireValues(t *testing.T) {
	cases := map[string]Status{
		"PASS":  StatusPassed,
		"fail":  StatusFailed,
		"Skip":  StatusSkipped,
		"ERROR": StatusError,
		"abort": StatusAborted,
	}

	for raw, want := range cases {
		got, err := NormalizeStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNormalizeStatus_RejectsUnknownValue(t *testing.T) {
	_, err := NormalizeStatus("MAYBE")
	require.Error(t, err)
}

func TestStatus_IsFailure(t *testing.T) {
	assert.True(t, StatusFailed.IsFailure())
	assert.True(t, StatusError.IsFailure())
	assert.False(t, StatusPassed.IsFailure())
	assert.False(t, StatusSkipped.IsFailure())
	assert.False(t, StatusAborted.IsFailure())
}
