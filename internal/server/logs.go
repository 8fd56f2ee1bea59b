package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const (
	logQueueDepth = 100
	// streamWindow bounds a single SSE poll; clients reconnect
	streamWindow      = 30 * time.Second
	heartbeatInterval = 10 * time.Second
	doneSentinel      = "DONE"
)

// LogBroker fans analysis progress messages out to per-session queues
// for the SSE endpoint. Queues are bounded and drop-oldest, so a slow
// or absent reader never blocks the pipeline.
type LogBroker struct {
	mu     sync.Mutex
	queues map[string]chan string
}

func NewLogBroker() *LogBroker {
	return &LogBroker{queues: make(map[string]chan string)}
}

func (b *LogBroker) queue(session string) chan string {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[session]
	if !ok {
		q = make(chan string, logQueueDepth)
		b.queues[session] = q
	}
	return q
}

// Publish enqueues a message for a session, dropping the oldest entry
// when the queue is full. Empty session ids are ignored.
func (b *LogBroker) Publish(session, msg string) {
	if session == "" {
		return
	}
	q := b.queue(session)
	for {
		select {
		case q <- msg:
			return
		default:
			select {
			case <-q:
			default:
			}
		}
	}
}

// Done signals the end of a session's stream
func (b *LogBroker) Done(session string) {
	b.Publish(session, doneSentinel)
}

// handleLogStream streams a session's progress messages as server-sent
// events. A single request is bounded to streamWindow; heartbeats keep
// intermediate proxies from dropping the connection.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["session"]
	if session == "" {
		s.writeError(w, http.StatusBadRequest, "session is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	q := s.logs.queue(session)
	deadline := time.After(streamWindow)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case msg := <-q:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
			if msg == doneSentinel {
				return
			}
		case <-heartbeat.C:
			fmt.Fprint(w, "event: heartbeat\ndata: {}\n\n")
			flusher.Flush()
		case <-deadline:
			return
		case <-r.Context().Done():
			return
		}
	}
}
