package fpsensor

import (
	"strings"
	"testing"

	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/go-ctap/fpmcu/pkg/hostcmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMode(t *testing.T) {
	tests := []struct {
		name    string
		mode    fptypes.Mode
		current fptypes.Mode
		valid   bool
	}{
		{"idle", 0, 0, true},
		{"match", fptypes.ModeMatch, 0, true},
		{"enroll", fptypes.ModeEnrollSession | fptypes.ModeEnrollImage, fptypes.ModeFingerDown, true},
		{"query", fptypes.ModeDontChange, fptypes.ModeMatch, true},
		{"capture type", fptypes.ModeCapture.WithCaptureType(fptypes.CaptureResetTest), 0, true},
		{"unknown capture type", fptypes.ModeCapture.WithCaptureType(fptypes.CaptureTypeMax), 0, false},
		{"unknown bit", 1 << 8, 0, false},
		{"reset alone", fptypes.ModeResetSensor, 0, true},
		{"reset with capture type", fptypes.ModeResetSensor.WithCaptureType(fptypes.CaptureSimpleImage), 0, true},
		{"reset combined", fptypes.ModeResetSensor | fptypes.ModeFingerDown, 0, false},
		{"reset while active", fptypes.ModeResetSensor, fptypes.ModeFingerUp, false},
		{"reset while resetting", fptypes.ModeResetSensor, fptypes.ModeResetSensor, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMode(tt.mode, tt.current)
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidParam)
			assert.Equal(t, hostcmd.EC_RES_INVALID_PARAM, hostcmd.StatusOf(err))
		})
	}
}

func TestValidateBufferOffset(t *testing.T) {
	const capacity = 100

	assert.NoError(t, validateBufferOffset(capacity, 0, capacity))
	assert.NoError(t, validateBufferOffset(capacity, capacity, 0))
	assert.NoError(t, validateBufferOffset(capacity, 40, 60))

	assert.ErrorIs(t, validateBufferOffset(capacity, capacity, 1), ErrInvalidParam)
	assert.ErrorIs(t, validateBufferOffset(capacity, 0, capacity+1), ErrInvalidParam)
	assert.ErrorIs(t, validateBufferOffset(capacity, capacity+1, 0), ErrInvalidParam)
	assert.ErrorIs(t, validateBufferOffset(capacity, 41, 60), ErrInvalidParam)
	assert.ErrorIs(t, validateBufferOffset(capacity, 0xffffffff, 0xffffffff), ErrInvalidParam)
}

func TestTemplateStore(t *testing.T) {
	store := newTemplateStore(3, 4)
	require.Equal(t, 3, store.capacity())
	require.Equal(t, 0, store.next())

	copy(store.slot(0), []byte{1, 2, 3, 4})
	store.commit()
	store.markDirty(1 << 0)
	copy(store.slot(1), []byte{5, 6, 7, 8})
	store.commit()

	assert.Equal(t, [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}}, store.validSlots())
	assert.Equal(t, uint32(0b11), store.validMask())
	assert.Equal(t, uint32(1), store.dirty)
	assert.False(t, store.full())

	store.clearDirty(0)
	assert.Zero(t, store.dirty)

	store.reset()
	assert.Zero(t, store.valid)
	assert.Equal(t, []byte{0, 0, 0, 0}, store.slot(0))
	assert.Equal(t, []byte{0, 0, 0, 0}, store.slot(1))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "matching", StateMatching.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestWritePGM(t *testing.T) {
	var out strings.Builder
	require.NoError(t, WritePGM(&out, []byte{0, 255, 1, 2, 9}, 2, 2))
	assert.Equal(t, "P2\n2 2\n255\n0 255 \n1 2 \n", out.String())

	assert.ErrorIs(t, WritePGM(&out, []byte{0}, 2, 2), ErrInvalidParam)
}
