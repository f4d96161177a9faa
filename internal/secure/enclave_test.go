package secure

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "text", data: []byte("my-secret-password")},
		{name: "json", data: []byte(`{"apiKey":"abcde12345"}`)},
		{name: "binary", data: []byte{0x00, 0xFF, 0x10, 0x20}},
		{name: "empty", data: []byte{}},
		{name: "nil", data: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := Seal(tt.data)
			defer v.Destroy()

			assert.Equal(t, len(tt.data), v.Len())

			got, err := v.Bytes()
			require.NoError(t, err)
			assert.Equal(t, len(tt.data), len(got))
			if len(tt.data) > 0 {
				assert.Equal(t, tt.data, got)
			}
		})
	}
}

func TestSealKeepsCallerSlice(t *testing.T) {
	t.Parallel()

	data := []byte("do-not-wipe")
	v := Seal(data)
	defer v.Destroy()

	assert.Equal(t, "do-not-wipe", string(data))
}

func TestBytesReturnsCopy(t *testing.T) {
	t.Parallel()

	v := Seal([]byte("secret"))
	defer v.Destroy()

	first, err := v.Bytes()
	require.NoError(t, err)
	first[0] = 'X'

	second, err := v.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "secret", string(second))
}

func TestDestroy(t *testing.T) {
	t.Parallel()

	v := Seal([]byte("secret"))
	assert.False(t, v.IsDestroyed())

	v.Destroy()
	v.Destroy()
	assert.True(t, v.IsDestroyed())

	_, err := v.Bytes()
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestConcurrentBytes(t *testing.T) {
	t.Parallel()

	v := Seal([]byte("shared-secret"))
	defer v.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := v.Bytes()
			assert.NoError(t, err)
			assert.Equal(t, "shared-secret", string(got))
		}()
	}
	wg.Wait()
}
