package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializesSameKey(t *testing.T) {
	l := New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("subject")
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, l.Len())
}

func TestDistinctKeysDoNotBlock(t *testing.T) {
	l := New()
	unlockA := l.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.Lock("b")
		unlock()
		close(done)
	}()
	<-done
	assert.Equal(t, 1, l.Len())
}
