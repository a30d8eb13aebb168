// Package eventbus реализует типизированную публикацию исходящих событий
// pipeline обработки ошибок (UI, ops, CLI подписываются на них).
//
// Publish никогда не блокируется: у каждого подписчика свой почтовый ящик
// неограниченного размера и своя горутина доставки. Порядок событий одного
// издателя сохраняется для каждого подписчика. События, принятые до отмены
// подписки или Close шины, доставляются до закрытия канала подписки.
package eventbus

import (
	"sync"
	"time"
)

// Type — тип исходящего события.
type Type string

// Исходящие события pipeline.
const (
	ErrorOccurred     Type = "error:occurred"
	ErrorHandled      Type = "error:handled"
	DialogShown       Type = "error:dialog:shown"
	DialogResolved    Type = "error:dialog:resolved"
	CrashDetected     Type = "crash:detected"
	AlertTriggered    Type = "alert-triggered"
	RestartRequired   Type = "restart-required"
	ShutdownRequired  Type = "shutdown-required"
	SafeModeRequired  Type = "safe-mode-required"
	ThresholdExceeded Type = "threshold-exceeded"
	UserIntervention  Type = "user-intervention-required"
	RetryScheduled    Type = "retry-scheduled"
	WebhookRequested  Type = "alert:webhook"
	EmailRequested    Type = "alert:email"
)

// Event — исходящее событие.
type Event struct {
	Type    Type      `json:"type"`
	Time    time.Time `json:"time"`
	Source  string    `json:"source,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// Publisher публикует события. Реализуется *Bus; компоненты pipeline
// зависят только от этого интерфейса.
type Publisher interface {
	Publish(evt Event)
}

// Bus — шина исходящих событий.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// New создаёт пустую шину.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*Subscription)}
}

// Publish рассылает событие всем подписчикам, чей фильтр его пропускает.
// Пустое Time заполняется текущим временем. После Close события отбрасываются.
func (b *Bus) Publish(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		if s.accepts(evt.Type) {
			s.push(evt)
		}
	}
}

// Subscribe создаёт подписку. Без аргументов подписка получает все события.
func (b *Bus) Subscribe(types ...Type) *Subscription {
	s := newSubscription(types)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.Close()
		return s
	}
	b.nextID++
	s.id = b.nextID
	s.bus = b
	b.subs[s.id] = s
	return s
}

// SubscribeFunc вызывает fn для каждого события в отдельной горутине
// доставки. Возвращает функцию отмены подписки: она ждёт, пока fn будет
// вызвана для всех событий, принятых до отмены.
func (b *Bus) SubscribeFunc(fn func(Event), types ...Type) (cancel func()) {
	s := b.Subscribe(types...)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range s.C {
			fn(evt)
		}
	}()
	return func() {
		s.Close()
		<-done
	}
}

// Close закрывает шину и все подписки. Уже поставленные в очередь события
// доставляются, новые отбрасываются.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Subscription — подписка на события. События читаются из C; после Close
// в C приходят оставшиеся в очереди события, затем канал закрывается.
// Читатель должен дочитать C до закрытия.
type Subscription struct {
	C <-chan Event

	id     uint64
	bus    *Bus
	filter map[Type]struct{}

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
}

func newSubscription(types []Type) *Subscription {
	out := make(chan Event)
	s := &Subscription{C: out}
	s.cond = sync.NewCond(&s.mu)
	if len(types) > 0 {
		s.filter = make(map[Type]struct{}, len(types))
		for _, t := range types {
			s.filter[t] = struct{}{}
		}
	}
	go s.pump(out)
	return s
}

// Close отменяет подписку. Новые события больше не принимаются.
func (s *Subscription) Close() {
	if s.bus != nil {
		s.bus.remove(s.id)
	}
	s.stop()
}

// Pending возвращает число событий, ожидающих доставки.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Subscription) accepts(t Type) bool {
	if s.filter == nil {
		return true
	}
	_, ok := s.filter[t]
	return ok
}

func (s *Subscription) push(evt Event) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, evt)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *Subscription) stop() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Subscription) pump(out chan<- Event) {
	defer close(out)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		evt := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		out <- evt
	}
}

// Recorder — Publisher для тестов, сохраняющий события в памяти.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish реализует Publisher.
func (r *Recorder) Publish(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Events возвращает копию записанных событий.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType возвращает записанные события заданного типа.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Nop — Publisher, отбрасывающий события.
type Nop struct{}

// Publish реализует Publisher.
func (Nop) Publish(Event) {}

// ActionRequest — payload событий restart-required, safe-mode-required,
// shutdown-required и user-intervention-required. Pipeline только
// запрашивает действие, выполняет его хост-приложение.
type ActionRequest struct {
	Action    string `json:"action"`
	Scope     string `json:"scope,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Component string `json:"component,omitempty"`
	ErrorID   string `json:"errorId,omitempty"`
	Code      string `json:"code,omitempty"`
	Category  string `json:"category,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
