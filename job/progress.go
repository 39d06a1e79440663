package job

// Progress is a bounded-size snapshot of a running job, safe to forward to
// any consumer. Total is zero when the item count is not yet known.
type Progress struct {
	Scope   string `json:"scope"`
	Phase   string `json:"phase,omitempty"`
	Total   int64  `json:"total"`
	Current int64  `json:"current"`
	Item    string `json:"item,omitempty"`
}

// Sink receives progress updates. Implementations must not block.
type Sink interface {
	Report(p Progress)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(p Progress)

func (f SinkFunc) Report(p Progress) {
	f(p)
}

// NopSink discards all progress updates.
func NopSink() Sink {
	return SinkFunc(func(Progress) {})
}

const progressBuffer = 64

// channelSink forwards progress into a bounded channel. When the consumer
// falls behind the oldest pending update is dropped so the producer never
// blocks.
type channelSink struct {
	ch chan Progress
}

func newChannelSink() *channelSink {
	return &channelSink{ch: make(chan Progress, progressBuffer)}
}

func (s *channelSink) Report(p Progress) {
	for {
		select {
		case s.ch <- p:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *channelSink) close() {
	close(s.ch)
}
