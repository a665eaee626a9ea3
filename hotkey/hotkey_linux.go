//go:build linux

package hotkey

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	inputDir = "/dev/input"
	sysInput = "/sys/class/input"
)

var errNoKeyboard = errors.New("no keyboard devices found (is user in 'input' group?)")

// evdevHotkey reads every keyboard under /dev/input directly, so it works
// on Wayland and on a bare console where X11 grabs are unavailable.
type evdevHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}
	files   []*os.File
	once    sync.Once
}

func New() Hotkey {
	return &evdevHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *evdevHotkey) Register() error {
	paths, err := findKeyboards()
	if err != nil {
		return err
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.read(f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("could not open any of %d keyboard device(s) (run: sudo usermod -aG input $USER, then re-login)", len(paths))
	}
	return nil
}

// read exits when Unregister closes f.
func (h *evdevHotkey) read(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	var c chord
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for _, ev := range decodeKeyEvents(buf[:n]) {
			down, up := c.feed(ev.code, ev.pressed, ev.released)
			if down {
				signal(h.keydown)
			}
			if up {
				signal(h.keyup)
			}
		}
	}
}

func (h *evdevHotkey) Unregister() {
	h.once.Do(func() {
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *evdevHotkey) Keyup() <-chan struct{}   { return h.keyup }

// findKeyboards lists event devices whose capabilities include the chord.
func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("scan input devices: %w", err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(sysInput, name, "device", "capabilities", "key"))
		if err != nil {
			continue
		}
		if caps, ok := parseKeyCaps(string(data)); ok && caps.canChord() {
			paths = append(paths, filepath.Join(inputDir, name))
		}
	}
	if len(paths) == 0 {
		return nil, errNoKeyboard
	}
	return paths, nil
}

func Diagnose() (string, error) {
	paths, err := findKeyboards()
	if err != nil {
		return "", err
	}
	for _, path := range paths {
		if f, err := os.Open(path); err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s) found, opened %s", len(paths), path), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(paths))
}
