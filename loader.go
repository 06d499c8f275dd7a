package pixview

import (
	"context"
	"io/fs"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// LoaderConfig configures a [Loader].
type LoaderConfig struct {
	// Workers is the number of files read concurrently. Defaults to 2.
	Workers int
}

// Payload is the result of one load: the raw bytes of a file or the read error.
type Payload struct {
	Name string
	Data []byte
	Err  error
	seq  uint64
}

// Loader reads image files off the render thread. Results are delivered
// through a single slot: a load finishing before the previous result was
// polled replaces it, and a load finishing after a more recently issued one
// is dropped. Only the latest issued load is ever observed by [Loader.Poll]
// once all loads have finished. Loads cannot be cancelled.
type Loader struct {
	sem *semaphore.Weighted
	out chan Payload
	wg  sync.WaitGroup
	log zerolog.Logger

	mu        sync.Mutex
	issued    uint64
	delivered uint64
}

// NewLoader returns a loader with its worker pool sized by cfg.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	return &Loader{
		sem: semaphore.NewWeighted(int64(cfg.Workers)),
		out: make(chan Payload, 1),
		log: ComponentLogger("loader"),
	}
}

// Load schedules read on the worker pool. name is only used to label the result.
func (l *Loader) Load(name string, read func() ([]byte, error)) {
	l.mu.Lock()
	l.issued++
	seq := l.issued
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		// Background context: Acquire only fails when the context is done.
		_ = l.sem.Acquire(context.Background(), 1)
		data, err := read()
		l.sem.Release(1)
		l.deliver(Payload{Name: name, Data: data, Err: err, seq: seq})
	}()
}

// Open schedules reading name from fsys.
func (l *Loader) Open(fsys fs.FS, name string) {
	l.Load(name, func() ([]byte, error) { return fs.ReadFile(fsys, name) })
}

// OpenFile schedules reading a file from the operating system.
func (l *Loader) OpenFile(path string) {
	l.Load(path, func() ([]byte, error) { return os.ReadFile(path) })
}

func (l *Loader) deliver(p Payload) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p.seq < l.delivered {
		l.log.Debug().Str("name", p.Name).Msg("dropping stale load")
		return
	}
	l.delivered = p.seq
	select {
	case old := <-l.out:
		l.log.Debug().Str("name", old.Name).Str("replacement", p.Name).Msg("unconsumed load replaced")
	default:
	}
	l.out <- p
}

// Poll returns the pending load result, if any. It never blocks.
func (l *Loader) Poll() (Payload, bool) {
	select {
	case p := <-l.out:
		return p, true
	default:
		return Payload{}, false
	}
}

// Wait blocks until every issued load has been delivered or dropped.
func (l *Loader) Wait() {
	l.wg.Wait()
}
