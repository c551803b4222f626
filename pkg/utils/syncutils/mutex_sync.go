//go:build !deadlock

package syncutils

import "sync"

// Mutex is a sync.Mutex unless built with the deadlock tag.
type Mutex struct {
	sync.Mutex
}
