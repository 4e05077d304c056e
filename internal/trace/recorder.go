// internal/trace/recorder.go

package trace

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"ktfsched/internal/sched"
)

var header = []string{"session", "timestamp", "cpu", "event", "task_id", "name", "exec_count", "result"}

// Recorder writes scheduler lifecycle events as CSV rows. It is safe to use
// from every processor at once.
type Recorder struct {
	mu      sync.Mutex
	session uuid.UUID
	w       *csv.Writer
	closer  io.Closer
	rows    int
}

// NewRecorder writes the header to w and tags every row with a fresh session id.
func NewRecorder(w io.Writer) *Recorder {
	r := &Recorder{
		session: uuid.New(),
		w:       csv.NewWriter(w),
	}
	r.w.Write(header)
	r.w.Flush()
	return r
}

// Create opens path for CSV tracing.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	r := NewRecorder(f)
	r.closer = f
	return r, nil
}

// Session returns the id written in the first column.
func (r *Recorder) Session() uuid.UUID { return r.session }

// Observe implements sched.Observer.
func (r *Recorder) Observe(ev sched.Event) {
	rec := []string{
		r.session.String(),
		ev.Time.Format(time.RFC3339Nano),
		strconv.Itoa(ev.CPU),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.TaskID), 10),
		ev.Name,
		strconv.FormatUint(ev.ExecCount, 10),
		strconv.FormatInt(ev.Result, 10),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.w.Write(rec)
	r.w.Flush()
	r.rows++
}

// Rows returns the number of events recorded.
func (r *Recorder) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Close flushes and closes the underlying file, if Create opened one.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return err
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
