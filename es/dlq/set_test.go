package dlq

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuarantineSet(t *testing.T) {
	set := NewQuarantineSet()

	assert.False(t, set.Contains("p", "s1"))
	assert.True(t, set.Add("p", "s1"))
	assert.False(t, set.Add("p", "s1"), "second add reports no transition")
	assert.True(t, set.Contains("p", "s1"))
	assert.Equal(t, 1, set.Len())

	// Membership is per (projection, stream).
	assert.False(t, set.Contains("other", "s1"))
	assert.False(t, set.Contains("p", "s2"))

	assert.True(t, set.Remove("p", "s1"))
	assert.False(t, set.Remove("p", "s1"), "second remove reports no transition")
	assert.False(t, set.Contains("p", "s1"))
	assert.Equal(t, 0, set.Len())
}

func TestQuarantineSet_ConcurrentAccess(t *testing.T) {
	set := NewQuarantineSet()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				set.Add("p", "s1")
				set.Contains("p", "s1")
				set.Remove("p", "s1")
			}
		}()
	}
	wg.Wait()

	assert.False(t, set.Contains("p", "s1"))
}
