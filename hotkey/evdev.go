package hotkey

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// inputEventSize is sizeof(struct input_event) on 64-bit kernels:
// a 16-byte timeval followed by type, code and value.
const inputEventSize = 24

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
)

type keyEvent struct {
	code     uint16
	pressed  bool
	released bool
}

// decodeKeyEvents extracts key events from a read of raw input_event
// records. Autorepeat (value 2) and non-key events are dropped, as is a
// trailing partial record.
func decodeKeyEvents(buf []byte) []keyEvent {
	var out []keyEvent
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
			continue
		}
		value := int32(binary.LittleEndian.Uint32(buf[i+20:]))
		if value != keyPress && value != keyRelease {
			continue
		}
		out = append(out, keyEvent{
			code:     binary.LittleEndian.Uint16(buf[i+18:]),
			pressed:  value == keyPress,
			released: value == keyRelease,
		})
	}
	return out
}

// keyCaps is the key capability bitmap a device reports in sysfs
// (capabilities/key): space-separated hex words, most significant first.
type keyCaps []uint64

func parseKeyCaps(s string) (keyCaps, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, false
	}
	caps := make(keyCaps, len(fields))
	for i, f := range fields {
		w, err := strconv.ParseUint(f, 16, 64)
		if err != nil {
			return nil, false
		}
		caps[len(fields)-1-i] = w
	}
	return caps, true
}

func (c keyCaps) has(code uint16) bool {
	word := int(code / 64)
	return word < len(c) && c[word]&(1<<(code%64)) != 0
}

// canChord reports whether a device can produce the whole chord. Mice and
// power buttons also expose key capabilities but lack these keys.
func (c keyCaps) canChord() bool {
	return (c.has(keyLCtrl) || c.has(keyRCtrl)) &&
		(c.has(keyLShift) || c.has(keyRShift)) &&
		c.has(keyP)
}
