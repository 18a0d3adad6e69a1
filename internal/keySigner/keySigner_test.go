package keySigner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NormalizeRecoveryId(t *testing.T) {
	tests := []struct {
		name        string
		v           byte
		expected    byte
		expectError bool
	}{
		{"zero", 0, 27, false},
		{"one", 1, 28, false},
		{"already 27", 27, 27, false},
		{"already 28", 28, 28, false},
		{"invalid", 2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := make([]byte, SignatureLength)
			sig[64] = tt.v

			out, err := NormalizeRecoveryId(sig)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out[64])
			assert.Equal(t, tt.v, sig[64], "input must not be modified")
		})
	}

	_, err := NormalizeRecoveryId(make([]byte, 64))
	assert.Error(t, err)
}
