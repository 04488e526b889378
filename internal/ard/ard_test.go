package ard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFrame(bands, cells int) *Frame {
	f := &Frame{Mask: make([]byte, cells)}
	for b := 0; b < bands; b++ {
		f.Bands = append(f.Bands, make([]int16, cells))
	}
	return f
}

func TestStackValidate(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		st := NewStack(4, validFrame(3, 4), validFrame(3, 4))
		require.NoError(t, st.Validate())
		assert.Equal(t, 2, st.Dates())
		assert.Equal(t, 4, st.Cells())
		assert.Equal(t, 3, st.NBands())
	})

	t.Run("no frames", func(t *testing.T) {
		st := NewStack(4)
		assert.Error(t, st.Validate())
	})

	t.Run("band count drift", func(t *testing.T) {
		st := NewStack(4, validFrame(3, 4), validFrame(2, 4))
		assert.Error(t, st.Validate())
	})

	t.Run("plane size mismatch", func(t *testing.T) {
		f := validFrame(2, 4)
		f.Bands[1] = make([]int16, 3)
		st := NewStack(4, f)
		assert.Error(t, st.Validate())
	})

	t.Run("mask size mismatch", func(t *testing.T) {
		f := validFrame(2, 4)
		f.Mask = make([]byte, 5)
		st := NewStack(4, f)
		assert.Error(t, st.Validate())
	})
}

func TestNewTimeSeries(t *testing.T) {
	t.Parallel()

	ts := NewTimeSeries(3, 5, false)
	require.NoError(t, ts.Validate(3, 5))
	assert.Nil(t, ts.RMS)

	ts = NewTimeSeries(3, 5, true)
	require.NoError(t, ts.Validate(3, 5))
	require.NotNil(t, ts.RMS)
	assert.Len(t, ts.RMS, 3)

	assert.Error(t, ts.Validate(2, 5))
	assert.Error(t, ts.Validate(3, 6))
}
