package reaction

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCooldown - минимальный интервал между отправками реакции на один пост
const DefaultCooldown = 500 * time.Millisecond

// Debouncer пропускает не более одной отправки реакции на пост за cooldown и
// не пропускает новую, пока предыдущая не завершилась.
type Debouncer struct {
	mu       sync.Mutex
	cooldown time.Duration
	entries  map[string]*debounceEntry
	now      func() time.Time
}

type debounceEntry struct {
	limiter  *rate.Limiter
	inflight bool
}

func NewDebouncer(cooldown time.Duration) *Debouncer {
	return &Debouncer{
		cooldown: cooldown,
		entries:  make(map[string]*debounceEntry),
		now:      time.Now,
	}
}

// Acquire возвращает release и true, если отправку можно начинать. release
// нужно вызвать после завершения запроса.
func (d *Debouncer) Acquire(postID string) (release func(), ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, exists := d.entries[postID]
	if !exists {
		e = &debounceEntry{limiter: rate.NewLimiter(rate.Every(d.cooldown), 1)}
		d.entries[postID] = e
	}
	if e.inflight || !e.limiter.AllowN(d.now(), 1) {
		return func() {}, false
	}
	e.inflight = true

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			e.inflight = false
			d.mu.Unlock()
		})
	}, true
}

// SetClock задает источник времени для окна cooldown.
func (d *Debouncer) SetClock(now func() time.Time) {
	d.mu.Lock()
	d.now = now
	d.mu.Unlock()
}

// Forget удаляет состояние поста, например после его удаления.
func (d *Debouncer) Forget(postID string) {
	d.mu.Lock()
	delete(d.entries, postID)
	d.mu.Unlock()
}
