//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// Crash output must be redirected before any cgo audio code runs.
	initCrashLog()

	// macOS delivers global hotkey events on the main thread only.
	mainthread.Init(run)
}
