// Package audit ведет журнал действий оператора дашборда.
//
// События принимаются неблокирующе, копятся в памяти и пишутся пачками
// по таймеру или при достижении лимита. При остановке буфер вычитывается
// полностью (drain), поэтому события не теряются при перезапуске консоли.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage определяет, куда физически будут сохраняться события
type Storage interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
	// Recent возвращает последние n событий, новые первыми
	Recent(ctx context.Context, n int) ([]Event, error)
}

type Recorder interface {
	Record(event Event)
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	// OnFill получает текущую заполненность буфера (для метрик)
	OnFill func(n int)
}

type Journal struct {
	ch     chan Event // Буфер для асинхронности
	store  Storage
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup

	// Защищает ch от записи после close
	mu     sync.RWMutex
	closed bool
}

func NewJournal(store Storage, opts Options, logger *zap.Logger) *Journal {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	return &Journal{
		ch:     make(chan Event, opts.BufferSize),
		store:  store,
		opts:   opts,
		logger: logger.Named("journal"),
	}
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (j *Journal) Stop() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	j.logger.Info("stopping journal: closing channel and flushing buffer...")
	close(j.ch)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Info("journal stopped gracefully")
}

func (j *Journal) Record(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	// Убеждаемся, что таймстемп всегда проставлен
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.logger.Warn("journal event dropped: journal is stopping", zap.String("id", event.ID))
		return
	}

	// Load Shedding: при переполнении событие уходит только в лог
	select {
	case j.ch <- event:
		j.reportFill()
	default:
		j.logger.Error("journal_buffer_overflow",
			zap.String("action", event.Action),
			zap.String("subject", event.Subject),
			zap.String("trace_id", event.TraceID),
		)
	}
}

// Recent читает хвост журнала из хранилища.
func (j *Journal) Recent(ctx context.Context, n int) ([]Event, error) {
	return j.store.Recent(ctx, n)
}

func (j *Journal) reportFill() {
	if j.opts.OnFill != nil {
		j.opts.OnFill(len(j.ch))
	}
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]Event, 0, j.opts.BatchSize)
	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст запроса к этому моменту может быть уже закрыт
		if err := j.store.WriteBatch(context.Background(), batch); err != nil {
			j.logger.Error("journal flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		j.reportFill()
	}

	for {
		select {
		case event, ok := <-j.ch:
			if !ok {
				// Канал закрыт в Stop(): остатки уже вычитаны, финальный сброс
				flush()
				j.logger.Info("journal worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= j.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
