// Package schedule decides when the transcription pass runs and filters
// repeated intents out of overlapping windows.
package schedule

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

type Profile struct {
	Name     string
	Window   time.Duration
	Step     time.Duration
	LowPower bool
}

var (
	DefaultProfile  = Profile{Name: "default", Window: 10 * time.Second, Step: 2500 * time.Millisecond}
	LowPowerProfile = Profile{Name: "low-power", Window: 6 * time.Second, Step: 4 * time.Second, LowPower: true}
)

// Capabilities is the coarse device description the profile is chosen from.
// MemoryGB is zero when unknown.
type Capabilities struct {
	MemoryGB float64
	Cores    int
	Mobile   bool
	SaveData bool
}

// DetectCapabilities inspects the runtime. CADENCE_DEVICE_MEMORY_GB and
// CADENCE_SAVE_DATA override what cannot be discovered portably.
func DetectCapabilities() Capabilities {
	c := Capabilities{
		Cores:  runtime.NumCPU(),
		Mobile: runtime.GOOS == "android" || runtime.GOOS == "ios",
	}
	if v := os.Getenv("CADENCE_DEVICE_MEMORY_GB"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MemoryGB = f
		}
	}
	if v := os.Getenv("CADENCE_SAVE_DATA"); v != "" {
		c.SaveData = v == "true" || v == "1"
	}
	return c
}

// SelectProfile picks the reduced profile for small or constrained devices.
func SelectProfile(c Capabilities) Profile {
	lowMemory := c.MemoryGB > 0 && c.MemoryGB <= 4
	if c.Mobile || lowMemory || c.Cores <= 4 || c.SaveData {
		return LowPowerProfile
	}
	return DefaultProfile
}
