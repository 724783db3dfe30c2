package captcha

import "sync"

// SessionLocks é uma tabela de travas não bloqueantes por sessão. Duas
// chamadas com a mesma chave nunca rodam ao mesmo tempo; chaves diferentes
// não se esperam.
type SessionLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{held: make(map[string]struct{})}
}

// TryAcquire pega a trava da chave. Devolve false se ela já está com alguém.
func (l *SessionLocks) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]struct{})
	}
	if _, busy := l.held[key]; busy {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

func (l *SessionLocks) Release(key string) {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
}

// Held informa se a chave está travada.
func (l *SessionLocks) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[key]
	return busy
}

var defaultLocks = NewSessionLocks()
