package candidate

import (
	"encoding/json"
	"strconv"
)

// Count is an engagement or audience metric that may be unknown.
// An unknown Count is distinct from a known zero and must never be read as one.
type Count struct {
	value int64
	known bool
}

// Known returns a Count holding v.
func Known(v int64) Count { return Count{value: v, known: true} }

// Unknown returns a Count with no value.
func Unknown() Count { return Count{} }

// FromPtr maps nil to Unknown.
func FromPtr(p *int64) Count {
	if p == nil {
		return Unknown()
	}
	return Known(*p)
}

// Get returns the value and whether it is known.
func (c Count) Get() (int64, bool) { return c.value, c.known }

func (c Count) IsKnown() bool { return c.known }

// AtLeast reports whether the count is known and >= n.
func (c Count) AtLeast(n int64) bool { return c.known && c.value >= n }

// Ptr returns nil for unknown counts.
func (c Count) Ptr() *int64 {
	if !c.known {
		return nil
	}
	v := c.value
	return &v
}

func (c Count) String() string {
	if !c.known {
		return "unknown"
	}
	return strconv.FormatInt(c.value, 10)
}

func (c Count) MarshalJSON() ([]byte, error) {
	if !c.known {
		return []byte("null"), nil
	}
	return json.Marshal(c.value)
}

// UnmarshalJSON accepts a number, null, or a display string such as "1.2K".
// Strings that cannot be parsed decode as Unknown.
func (c *Count) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Unknown()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ParseDisplay(s)
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Known(v)
	return nil
}
