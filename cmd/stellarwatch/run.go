package main

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// watcher is the lifecycle shared by every watch kind.
type watcher interface {
	Done() <-chan struct{}
	Err() error
	Close() error
}

// wait blocks until ctx ends, which closes w, or until w terminates on its
// own, in which case its error is returned.
func wait(ctx context.Context, w watcher) error {
	select {
	case <-ctx.Done():
		w.Close()
		<-w.Done()
		return nil
	case <-w.Done():
		return w.Err()
	}
}

// lineWriter encodes one JSON object per line. Safe for concurrent use.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{enc: json.NewEncoder(w)}
}

func (l *lineWriter) write(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(v)
}
