//go:build !linux

package cue

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// One playback device is kept open and restarted per cue.
var (
	initOnce sync.Once
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	mu       sync.Mutex

	pending atomic.Pointer[[]byte]
	pos     atomic.Uint32
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(ctx.Context, config, malgo.DeviceCallbacks{Data: fill})
	return err
}

func setup() {
	var err error
	ctx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	if err := initDevice(); err != nil {
		ctx.Uninit()
		ctx = nil
	}
}

func fill(out, _ []byte, frames uint32) {
	clear(out)
	buf := pending.Load()
	if buf == nil {
		return
	}
	p := pos.Load()
	n := min(frames*2, uint32(len(*buf))-p)
	if n == 0 {
		pending.Store(nil)
		return
	}
	copy(out[:n], (*buf)[p:p+n])
	pos.Store(p + n)
}

func play(samples []int16) {
	initOnce.Do(setup)
	if ctx == nil || len(samples) == 0 {
		return
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	mu.Lock()
	defer mu.Unlock()
	device.Stop()
	pos.Store(0)
	pending.Store(&buf)
	if err := device.Start(); err != nil {
		// The device can go stale across sleep/wake; rebuild it once.
		device.Uninit()
		if initDevice() != nil || device.Start() != nil {
			pending.Store(nil)
		}
	}
}
