package guardian

import (
	"sync"
	"testing"
)

func TestAccountGuardSerializesPerAccount(t *testing.T) {
	guard := NewAccountGuard()

	const iterations = 200
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < iterations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard.Lock("acct-1")
			defer guard.Unlock("acct-1")
			counter++
		}()
	}
	wg.Wait()

	if counter != iterations {
		t.Errorf("Expected %d serialized increments, got %d", iterations, counter)
	}
}

func TestAccountGuardIndependentAccounts(t *testing.T) {
	guard := NewAccountGuard()

	guard.Lock("acct-1")
	done := make(chan struct{})
	go func() {
		// A different account must not be blocked
		guard.Lock("acct-2")
		guard.Unlock("acct-2")
		close(done)
	}()

	<-done
	guard.Unlock("acct-1")
}
