// Package wav reads and writes 16-bit PCM mono WAV data.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const HeaderSize = 44

var ErrNotWAV = errors.New("not a RIFF/WAVE file")

// Encode wraps samples as a PCM16 mono WAV. Samples outside [-1, 1] are
// clipped.
func Encode(samples []float32, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := make([]byte, HeaderSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(HeaderSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[HeaderSize+i*2:], uint16(toInt16(s)))
	}
	return buf
}

// Decode parses a PCM16 WAV. Multi-channel input is downmixed to mono.
// Chunks other than fmt and data are skipped.
func Decode(data []byte) (samples []float32, sampleRate int, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, ErrNotWAV
	}
	var channels, bits int
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := min(body+size, len(data))
		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, 0, fmt.Errorf("short fmt chunk")
			}
			if format := binary.LittleEndian.Uint16(data[body:]); format != 1 {
				return nil, 0, fmt.Errorf("unsupported wav format %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
		case "data":
			if channels == 0 {
				return nil, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			if bits != 16 {
				return nil, 0, fmt.Errorf("unsupported bit depth %d", bits)
			}
			return PCM16ToFloat(data[body:end], channels), sampleRate, nil
		}
		pos = body + size + size%2
	}
	return nil, 0, fmt.Errorf("no data chunk")
}

// PCM16ToFloat converts little-endian interleaved PCM16 to mono float32.
func PCM16ToFloat(pcm []byte, channels int) []float32 {
	channels = max(1, channels)
	frame := 2 * channels
	out := make([]float32, len(pcm)/frame)
	for i := range out {
		var sum float32
		for c := range channels {
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[i*frame+c*2:]))) / 32768
		}
		out[i] = sum / float32(channels)
	}
	return out
}

func toInt16(s float32) int16 {
	v := math.Round(float64(s) * 32767)
	return int16(max(-32768, min(32767, v)))
}
