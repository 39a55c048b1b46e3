package inter

import (
	"time"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
)

// Timestamp is a UNIX time in nanoseconds. It is the time unit of every
// relay-side record: submission, lock and finalization times. Spans added to
// it are time.Duration values converted at the call site.
type Timestamp uint64

// FromUnix converts seconds since the UNIX epoch into a Timestamp.
func FromUnix(t int64) Timestamp {
	return Timestamp(int64(t) * int64(time.Second))
}

// FromTime converts a time.Time into a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixNano())
}

// Unix returns the timestamp in whole seconds.
func (t Timestamp) Unix() int64 {
	return int64(t) / int64(time.Second)
}

// Time converts the timestamp back into a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t))
}

// Duration interprets the timestamp as a span of time.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t)
}

// Bytes gets the big-endian byte representation, used in database keys.
func (t Timestamp) Bytes() []byte {
	return bigendian.Uint64ToBytes(uint64(t))
}

func (t Timestamp) String() string {
	return t.Time().UTC().Format(time.RFC3339Nano)
}
