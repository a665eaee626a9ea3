package event

import (
	"errors"
	"fmt"
	"slices"
)

// ErrForbiddenKey is returned when a record headed for persistent storage
// carries a key that could hold audio or transcript content.
var ErrForbiddenKey = errors.New("forbidden persistence key")

var forbiddenKeys = []string{
	"audio", "transcript", "pcm", "wave", "wav", "mp3", "ogg", "flac", "text",
}

func ForbiddenKeys() []string {
	return slices.Clone(forbiddenKeys)
}

// CheckPayload walks nested maps and slices and rejects any forbidden key.
// context names the record kind in the returned error.
func CheckPayload(payload map[string]any, context string) error {
	return walk(payload, "", context)
}

func walk(v any, path, context string) error {
	switch val := v.(type) {
	case map[string]any:
		for k, next := range val {
			loc := k
			if path != "" {
				loc = path + "." + k
			}
			if slices.Contains(forbiddenKeys, k) {
				return fmt.Errorf("%w %q in %s at %s", ErrForbiddenKey, k, context, loc)
			}
			if err := walk(next, loc, context); err != nil {
				return err
			}
		}
	case []any:
		for i, next := range val {
			if err := walk(next, fmt.Sprintf("%s[%d]", path, i), context); err != nil {
				return err
			}
		}
	case []map[string]any:
		for i, next := range val {
			if err := walk(next, fmt.Sprintf("%s[%d]", path, i), context); err != nil {
				return err
			}
		}
	}
	return nil
}
