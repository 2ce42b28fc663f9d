package hub

// DefaultLogCapacity is the per-node log bound used when none is configured.
const DefaultLogCapacity = 100

// Tag is the severity tag of a log entry; renderers map it to a colour.
type Tag int

const (
	TagNeutral Tag = iota
	TagPositive
	TagNegative
	TagMuted
)

func (t Tag) String() string {
	switch t {
	case TagPositive:
		return "positive"
	case TagNegative:
		return "negative"
	case TagMuted:
		return "muted"
	default:
		return "neutral"
	}
}

// LogEntry is a single line (possibly multi-line text) of a node's history.
type LogEntry struct {
	Text string
	Tag  Tag
}

// ring is a fixed-capacity FIFO of log entries. The oldest entry is
// overwritten once the ring is full.
type ring struct {
	entries []LogEntry
	head    int // next write position
	size    int
}

func newRing(capacity int) *ring {
	return &ring{entries: make([]LogEntry, capacity)}
}

func (r *ring) push(e LogEntry) {
	r.entries[r.head] = e
	r.head = (r.head + 1) % len(r.entries)
	if r.size < len(r.entries) {
		r.size++
	}
}

// snapshot returns the entries oldest first in a fresh slice.
func (r *ring) snapshot() []LogEntry {
	out := make([]LogEntry, r.size)
	start := (r.head - r.size + len(r.entries)) % len(r.entries)
	for i := 0; i < r.size; i++ {
		out[i] = r.entries[(start+i)%len(r.entries)]
	}
	return out
}

func (r *ring) clear() {
	clear(r.entries)
	r.head = 0
	r.size = 0
}
