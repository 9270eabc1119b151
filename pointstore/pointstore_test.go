package pointstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceStore(t *testing.T) {
	t.Run("Add", func(t *testing.T) {
		s, err := NewSliceStore(3)
		require.NoError(t, err)

		id, err := s.Add([]float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, uint32(0), id)

		id, err = s.Add([]float32{4, 5, 6})
		require.NoError(t, err)
		assert.Equal(t, uint32(1), id)
		assert.Equal(t, 2, s.Len())

		_, err = s.Add([]float32{1, 2})
		assert.Error(t, err)
	})

	t.Run("Vector", func(t *testing.T) {
		s, err := FromVectors([][]float32{{1, 2}, {3, 4}})
		require.NoError(t, err)

		v, ok := s.Vector(1)
		require.True(t, ok)
		assert.Equal(t, []float32{3, 4}, v)

		_, ok = s.Vector(2)
		assert.False(t, ok)
	})

	t.Run("InvalidDimension", func(t *testing.T) {
		_, err := NewSliceStore(0)
		assert.Error(t, err)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		_, err := FromVectors(nil)
		assert.Error(t, err)
	})
}
