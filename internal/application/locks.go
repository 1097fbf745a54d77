package application

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// addressLocks hands out one mutex per address. Entries are never evicted;
// the set of accounts a process touches is small.
type addressLocks struct {
	mu    sync.Mutex
	locks map[common.Address]*sync.Mutex
}

func newAddressLocks() *addressLocks {
	return &addressLocks{locks: map[common.Address]*sync.Mutex{}}
}

func (l *addressLocks) forAddress(address common.Address) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if mu, ok := l.locks[address]; ok {
		return mu
	}

	mu := &sync.Mutex{}
	l.locks[address] = mu
	return mu
}
