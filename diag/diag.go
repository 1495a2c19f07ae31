// Package diag records remote-operation failures that the node layer
// shields from its callers.
package diag

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Record describes a single shielded failure.
type Record struct {
	ID     uint64    // monotonically increasing per recorder
	Action string    // operation label (e.g. "write to", "list")
	Target string    // node path the operation addressed
	Addr   string    // resolved connection address
	Err    string    // error detail from the remote call
	Stack  string    // trimmed stack of the failing call site
	Time   time.Time // when the failure was recorded
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s at %s: %s", r.Action, r.Target, r.Addr, r.Err)
}

// Recorder keeps the most recent shielded failures in memory and mirrors
// each one to a logger. The in-memory window is bounded; old records fall
// off the front.
type Recorder struct {
	nextID atomic.Uint64
	logger *log.Logger
	max    int

	mu     sync.Mutex
	recent []Record
}

// NewRecorder creates a recorder keeping at most max records. A nil
// logger mirrors to the standard logger.
func NewRecorder(max int, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{logger: logger, max: max}
}

// Default is the process-wide recorder used when a tree is not given its
// own. It keeps a small window and logs via the standard logger.
var Default = NewRecorder(128, nil)

// Record stores a failure and writes one log line for it. Safe to call
// on a nil receiver, which only logs.
func (r *Recorder) Record(action, target, addr string, err error) {
	rec := Record{
		Action: action,
		Target: target,
		Addr:   addr,
		Err:    err.Error(),
		Stack:  callerStack(),
		Time:   time.Now(),
	}
	if r == nil {
		log.Printf("ninefs: %s", rec)
		return
	}
	rec.ID = r.nextID.Add(1)
	r.logger.Printf("ninefs: %s", rec)

	r.mu.Lock()
	r.recent = append(r.recent, rec)
	if len(r.recent) > r.max {
		r.recent = r.recent[len(r.recent)-r.max:]
	}
	r.mu.Unlock()
}

// Recent returns a snapshot of the retained records, oldest first.
func (r *Recorder) Recent() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.recent))
	copy(out, r.recent)
	return out
}

// Len reports how many records are currently retained.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recent)
}

// Handler returns an http.Handler that serves the retained records.
// By default it returns human-readable text. With the ?json query
// parameter, it returns a JSON array.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, wantJSON := req.URL.Query()["json"]
		recs := r.Recent()
		if wantJSON {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(recs); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if len(recs) == 0 {
			fmt.Fprint(w, "no shielded failures recorded\n")
			return
		}
		for _, rec := range recs {
			elapsed := time.Since(rec.Time).Truncate(time.Millisecond)
			fmt.Fprintf(w, "[%d] %s (%s ago)\n", rec.ID, rec, elapsed)
		}
	})
}

// maxStackSize caps the per-record stack capture.
const maxStackSize = 8 * 1024

// callerStack returns the current goroutine's stack, truncated. Only the
// failing goroutine is captured; shielded failures are routine enough
// that a full dump would drown the log.
func callerStack() string {
	buf := make([]byte, maxStackSize)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
