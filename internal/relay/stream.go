package relay

// StreamType is the kind of payload a registered stream carries.
type StreamType uint8

const (
	StreamTruck StreamType = iota
	StreamCharacter
	StreamAITraffic
	StreamChat
)

func (t StreamType) String() string {
	switch t {
	case StreamTruck:
		return "truck"
	case StreamCharacter:
		return "character"
	case StreamAITraffic:
		return "aitraffic"
	case StreamChat:
		return "chat"
	default:
		return "unknown"
	}
}

// MaxStreamName is the longest a stream registration's name field may be
// after NUL-termination.
const MaxStreamName = 128

// MaxStreamsPerClient is the hard cap on live stream registrations a
// single client may hold; the 21st registration is silently dropped.
const MaxStreamsPerClient = 20

// StreamRegistration is the record a STREAM_REGISTER frame carries and
// that the sequencer replays during the vehicle-announce burst.
type StreamRegistration struct {
	Type   StreamType
	Name   string
	Status uint32
}

// SanitizeName applies the wire rule for stream names: spaces become
// NUL and the result is truncated to MaxStreamName-1 bytes plus the
// terminator, matching the C-string semantics of the original protocol.
func SanitizeName(name string) string {
	b := []byte(name)
	if len(b) > MaxStreamName-1 {
		b = b[:MaxStreamName-1]
	}
	for i, c := range b {
		if c == ' ' {
			b[i] = 0
		}
	}
	// Trim at the first NUL, mirroring a C buffer read back as a string.
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// TrafficCounters tracks incoming/outgoing byte counts for one stream-id
// on one client, plus the once-a-minute rate derived from them.
type TrafficCounters struct {
	BytesIn             uint64
	BytesInLastMinute   uint64
	RateIn              uint64
	BytesOut            uint64
	BytesOutLastMinute  uint64
	RateOut             uint64
}

// Tick recomputes the per-minute rate fields the way the sequencer's
// stats ticker does once every sixty seconds.
func (t *TrafficCounters) Tick() {
	t.RateIn = (t.BytesIn - t.BytesInLastMinute) / 60
	t.BytesInLastMinute = t.BytesIn
	t.RateOut = (t.BytesOut - t.BytesOutLastMinute) / 60
	t.BytesOutLastMinute = t.BytesOut
}
