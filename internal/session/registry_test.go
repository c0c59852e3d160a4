package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/jobfill/internal/classifier"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	id := NewID()

	_, ok := r.Get(id)
	assert.False(t, ok)

	r.Record(id, classifier.Result{Score: 3, Method: "first"})
	r.Record(id, classifier.Result{Score: 12, IsMatch: true, Method: "second"})

	got, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, "second", got.Method)
	assert.True(t, got.IsMatch)
	assert.Equal(t, 1, r.Len())

	r.Forget(id)
	_, ok = r.Get(id)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	ids := make([]ID, 8)
	for i := range ids {
		ids[i] = NewID()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id ID) {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				r.Record(id, classifier.Result{Score: float64(n)})
				_, _ = r.Get(id)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, len(ids), r.Len())
	for _, id := range ids {
		got, ok := r.Get(id)
		require.True(t, ok)
		assert.Equal(t, 49.0, got.Score)
	}
}

func TestParseID(t *testing.T) {
	id := NewID()
	parsed, err := ParseID(string(id))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseID("not-a-session")
	assert.Error(t, err)
}
