package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a point in time as the chain represents it: whole seconds
// since the unix epoch plus nanoseconds. On the wire it is a fixed point
// seconds string with up to nine decimals, for example "1700000000.5".
type Timestamp struct {
	Seconds uint64
	Nanos   uint32
}

func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: uint64(t.Unix()), Nanos: uint32(t.Nanosecond())}
}

func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t.Seconds), int64(t.Nanos)).UTC()
}

func (t Timestamp) Before(other Timestamp) bool {
	if t.Seconds != other.Seconds {
		return t.Seconds < other.Seconds
	}
	return t.Nanos < other.Nanos
}

func (t Timestamp) String() string {
	if t.Nanos == 0 {
		return strconv.FormatUint(t.Seconds, 10)
	}
	frac := strings.TrimRight(fmt.Sprintf("%09d", t.Nanos), "0")
	return fmt.Sprintf("%d.%s", t.Seconds, frac)
}

func ParseTimestamp(s string) (Timestamp, error) {
	whole, frac, hasFrac := strings.Cut(s, ".")
	secs, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	var nanos uint64
	if hasFrac {
		if len(frac) == 0 || len(frac) > 9 {
			return Timestamp{}, fmt.Errorf("invalid timestamp %q: bad fraction", s)
		}
		nanos, err = strconv.ParseUint(frac+strings.Repeat("0", 9-len(frac)), 10, 32)
		if err != nil {
			return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	return Timestamp{Seconds: secs, Nanos: uint32(nanos)}, nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
