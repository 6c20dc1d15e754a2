package dialogue

import "sync"

// RevealState tracks the lifecycle of one paced bot reply.
type RevealState string

const (
	RevealPending   RevealState = "pending"
	RevealRevealing RevealState = "revealing"
	RevealDone      RevealState = "done"
	RevealCancelled RevealState = "cancelled"
)

// revealTask is the cancellable scheduled reveal of one bot message. At most
// one task exists per session; clearing the session cancels it.
type revealTask struct {
	mu       sync.Mutex
	state    RevealState
	cancelCh chan struct{}
}

func newRevealTask() *revealTask {
	return &revealTask{
		state:    RevealPending,
		cancelCh: make(chan struct{}),
	}
}

// Cancel moves the task to cancelled unless it already finished. Safe to
// call more than once.
func (t *revealTask) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == RevealDone || t.state == RevealCancelled {
		return
	}
	t.state = RevealCancelled
	close(t.cancelCh)
}

// begin moves pending -> revealing. Returns false when the task was
// cancelled before it started.
func (t *revealTask) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != RevealPending {
		return false
	}
	t.state = RevealRevealing
	return true
}

// finish moves revealing -> done. Returns false when a cancel won the race.
func (t *revealTask) finish() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != RevealRevealing {
		return false
	}
	t.state = RevealDone
	return true
}

// chunks splits the text into reveal steps of at most size runes.
func chunks(text string, size int) []string {
	if size < 1 {
		size = 1
	}
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
