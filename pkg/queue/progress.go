package queue

import "sync"

// Progress is a single pipeline status update for one model version.
type Progress struct {
	JobID           string
	ModelVersionID  string
	Stage           string
	PercentComplete int
	Message         string
	IsComplete      bool
	IsSuccess       bool
	ErrorMessage    string
}

// ProgressNotifier fans out Progress updates to subscribers keyed by
// modelVersionId over per-subscriber channels. Notifier failures must
// never fail the job that produced the update, so Notify never returns an
// error.
type ProgressNotifier struct {
	mu   sync.Mutex
	subs map[string][]chan Progress
}

// NewProgressNotifier returns an empty notifier.
func NewProgressNotifier() *ProgressNotifier {
	return &ProgressNotifier{subs: map[string][]chan Progress{}}
}

// Subscribe returns a channel receiving every Progress notified for
// modelVersionID. The channel is buffered; a slow subscriber drops updates
// rather than blocking the notifier.
func (n *ProgressNotifier) Subscribe(modelVersionID string) <-chan Progress {
	ch := make(chan Progress, 16)
	n.mu.Lock()
	n.subs[modelVersionID] = append(n.subs[modelVersionID], ch)
	n.mu.Unlock()
	return ch
}

// Notify publishes p to every subscriber of p.ModelVersionID.
func (n *ProgressNotifier) Notify(p Progress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[p.ModelVersionID] {
		select {
		case ch <- p:
		default:
		}
	}
}
