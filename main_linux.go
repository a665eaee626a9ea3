//go:build linux

package main

func main() {
	// Crash output must be redirected before any cgo audio code runs.
	initCrashLog()
	run()
}
