package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	stellarwatch "github.com/marwen-abid/stellar-watch-sdk-go"
	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
)

type logEntry struct {
	record   stellarwatch.Record
	accounts []string
}

func (e logEntry) touches(account string) bool {
	return account == "" || len(e.accounts) == 0 || slices.Contains(e.accounts, account)
}

// EventSource is an in-memory implementation of stellarwatch.EventSource.
// Records are appended per kind with Publish and streamed in append order.
// Cursors are the records' paging tokens; resuming after a token that was
// never published fails with CURSOR_UNAVAILABLE.
type EventSource struct {
	mu      sync.Mutex
	logs    map[stellarwatch.RecordKind][]logEntry
	changed chan struct{}
	failure error
	active  int
}

// NewEventSource creates an empty in-memory event source.
func NewEventSource() *EventSource {
	return &EventSource{
		logs:    make(map[stellarwatch.RecordKind][]logEntry),
		changed: make(chan struct{}),
	}
}

// Publish appends record to the kind's log and wakes every open stream.
// accounts lists the accounts the record touches; an empty list delivers the
// record to every subscriber of the kind.
func (s *EventSource) Publish(kind stellarwatch.RecordKind, record stellarwatch.Record, accounts ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := record.PagingToken()
	if token == "" {
		return fmt.Errorf("record has no paging token")
	}
	if s.indexOf(kind, token) >= 0 {
		return fmt.Errorf("paging token %s already published", token)
	}

	s.logs[kind] = append(s.logs[kind], logEntry{record: record, accounts: accounts})
	s.broadcast()
	return nil
}

// Fail makes every open and future stream return err.
func (s *EventSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failure = err
	s.broadcast()
}

// Active returns the number of Stream calls currently running.
func (s *EventSource) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stream implements stellarwatch.EventSource.
func (s *EventSource) Stream(ctx context.Context, req stellarwatch.StreamRequest, handler func(stellarwatch.Record)) error {
	s.mu.Lock()
	s.active++
	pos, err := s.start(req)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		s.mu.Lock()
		if s.failure != nil {
			err := s.failure
			s.mu.Unlock()
			return err
		}
		log := s.logs[req.Kind]
		if pos < len(log) {
			entry := log[pos]
			pos++
			s.mu.Unlock()

			if entry.touches(req.Account) {
				handler(entry.record)
			}
			continue
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

// start resolves the log position a request begins at. Callers hold s.mu.
func (s *EventSource) start(req stellarwatch.StreamRequest) (int, error) {
	switch req.Cursor {
	case "":
		return 0, nil
	case stellarwatch.CursorNow:
		return len(s.logs[req.Kind]), nil
	}

	idx := s.indexOf(req.Kind, req.Cursor)
	if idx < 0 {
		return 0, errors.NewSourceError(
			errors.CURSOR_UNAVAILABLE,
			fmt.Sprintf("cannot resume %s stream after cursor %s", req.Kind, req.Cursor),
			nil,
		).With("cursor", req.Cursor)
	}
	return idx + 1, nil
}

func (s *EventSource) indexOf(kind stellarwatch.RecordKind, token string) int {
	return slices.IndexFunc(s.logs[kind], func(e logEntry) bool {
		return e.record.PagingToken() == token
	})
}

func (s *EventSource) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Verify that EventSource implements stellarwatch.EventSource
var _ stellarwatch.EventSource = (*EventSource)(nil)
