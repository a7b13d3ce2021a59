// Package keylock 提供以鍵為單位的互斥鎖，不同鍵之間互不阻塞。
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyLock 依鍵加鎖，無人持有或等待時自動回收
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New 創建 KeyLock
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*entry)}
}

// Lock 鎖定 key，回傳解鎖函式
func (k *KeyLock) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len 目前仍被持有或等待中的鍵數量
func (k *KeyLock) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
