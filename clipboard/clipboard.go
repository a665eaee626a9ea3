// Package clipboard exports timeline summaries to the system clipboard.
package clipboard

import (
	"fmt"

	cb "github.com/atotto/clipboard"

	"cadence/timeline"
)

// Available reports whether a clipboard backend was found (xclip, xsel or
// wl-clipboard on Linux).
func Available() bool {
	return !cb.Unsupported
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

func Read() (string, error) {
	return cb.ReadAll()
}

// CopyTimeline puts the plain-text summary of a session timeline on the
// clipboard.
func CopyTimeline(sessionID string, r timeline.Result) error {
	return Copy(format(sessionID, r))
}

func format(sessionID string, r timeline.Result) string {
	return fmt.Sprintf("session %s\n%s", sessionID, timeline.Summary(r))
}
