package locks

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyed_SerializesSameKey(t *testing.T) {
	k := NewKeyed()
	counter := 0

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("escrow:1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyed_DistinctKeysIndependent(t *testing.T) {
	k := NewKeyed()

	unlockA := k.Lock("escrow:1")
	// A held lock on one record must not block another record.
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("escrow:2")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}
