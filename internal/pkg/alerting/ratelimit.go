package alerting

import (
	"sync"
	"time"
)

// cleanupThreshold — число ключей, после которого удаляются истёкшие записи.
const cleanupThreshold = 100

// RateLimiter пропускает не более одного алерта на ключ за окно.
// Состояние хранится в памяти процесса.
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	sent   map[string]time.Time
	now    func() time.Time
}

// NewRateLimiter создаёт RateLimiter с окном window.
func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{
		window: window,
		sent:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow проверяет окно для key и, если алерт разрешён, отмечает отправку.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if len(r.sent) > cleanupThreshold {
		for k, last := range r.sent {
			if now.Sub(last) >= r.window {
				delete(r.sent, k)
			}
		}
	}
	if last, ok := r.sent[key]; ok && now.Sub(last) < r.window {
		return false
	}
	r.sent[key] = now
	return true
}

// Reset сбрасывает окно для key.
func (r *RateLimiter) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sent, key)
}

// SetNowFunc устанавливает функцию получения текущего времени (для тестов).
func (r *RateLimiter) SetNowFunc(fn func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = fn
}
