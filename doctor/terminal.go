package doctor

import (
	"os"

	"golang.org/x/term"
)

// savedTerm is the stdin state captured before any check runs. Pressing the
// chord while the evdev reader is active can leave the tty echoing raw
// escape sequences; restoring it keeps the prompts readable.
var savedTerm *term.State

func saveTerminal() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	if st, err := term.GetState(fd); err == nil {
		savedTerm = st
	}
}

func resetTerminal() {
	if savedTerm != nil {
		term.Restore(int(os.Stdin.Fd()), savedTerm)
	}
}
