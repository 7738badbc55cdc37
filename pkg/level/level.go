// Package level defines the five canonical intervertebral junctions.
package level

import (
	"fmt"
	"strings"
)

// Level is one of the five canonical junctions, in cranial to caudal order.
type Level int

const (
	L1L2 Level = iota
	L2L3
	L3L4
	L4L5
	L5S1
)

// Count is the number of canonical junctions.
const Count = 5

var (
	names = [Count]string{"L1-L2", "L2-L3", "L3-L4", "L4-L5", "L5-S1"}
	keys  = [Count]string{"l1_l2", "l2_l3", "l3_l4", "l4_l5", "l5_s1"}
)

// All returns the junctions in their fixed order.
func All() []Level {
	return []Level{L1L2, L2L3, L3L4, L4L5, L5S1}
}

// Valid reports whether l is one of the canonical junctions.
func (l Level) Valid() bool {
	return l >= L1L2 && l <= L5S1
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return names[l]
}

// Key is the snake case prefix used for persisted column names, e.g. l5_s1.
func (l Level) Key() string {
	if !l.Valid() {
		return ""
	}
	return keys[l]
}

// Channel is the heatmap stack channel holding this junction.
// Channel 0 is reserved for background.
func (l Level) Channel() int {
	return int(l) + 1
}

// FromChannel maps a heatmap channel back to its junction.
func FromChannel(ch int) (Level, bool) {
	l := Level(ch - 1)
	return l, l.Valid()
}

// Parse accepts either the display name (L5-S1) or the key (l5_s1),
// case-insensitive.
func Parse(s string) (Level, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")
	v = strings.ReplaceAll(v, "/", "_")
	for i, k := range keys {
		if k == v {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown level: %q", s)
}

// MarshalText implements encoding.TextMarshaler so levels can be map keys
// in JSON and YAML output.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid level: %d", int(l))
	}
	return []byte(keys[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
