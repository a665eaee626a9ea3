// Package ringbuf holds a fixed-duration circular window of audio samples.
package ringbuf

// Buffer is not safe for concurrent use; the owner serializes the capture
// writer and the window reader.
type Buffer struct {
	data       []float32
	sampleRate int
	write      int
	filled     bool
}

// New allocates seconds*sampleRate samples, never fewer than one.
func New(seconds float64, sampleRate int) *Buffer {
	capacity := int(seconds * float64(sampleRate))
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		data:       make([]float32, capacity),
		sampleRate: sampleRate,
	}
}

func (b *Buffer) Cap() int        { return len(b.data) }
func (b *Buffer) SampleRate() int { return b.sampleRate }
func (b *Buffer) Filled() bool    { return b.filled }

// Len is the number of valid samples currently stored.
func (b *Buffer) Len() int {
	if b.filled {
		return len(b.data)
	}
	return b.write
}

// Write appends chunk, overwriting the oldest samples once full.
func (b *Buffer) Write(chunk []float32) {
	for len(chunk) > 0 {
		n := copy(b.data[b.write:], chunk)
		chunk = chunk[n:]
		b.write += n
		if b.write == len(b.data) {
			b.write = 0
			b.filled = true
		}
	}
}

// Read returns a copy of every stored sample, oldest first.
func (b *Buffer) Read() []float32 {
	return b.Latest(b.Len())
}

// Latest returns a copy of the newest n samples, oldest first. n is
// clamped to what has been stored.
func (b *Buffer) Latest(n int) []float32 {
	if n > b.Len() {
		n = b.Len()
	}
	if n <= 0 {
		return []float32{}
	}
	out := make([]float32, n)
	start := b.write - n
	if start >= 0 {
		copy(out, b.data[start:b.write])
		return out
	}
	// Wrapped: tail of the array, then head up to the cursor.
	tail := b.data[len(b.data)+start:]
	copy(out, tail)
	copy(out[len(tail):], b.data[:b.write])
	return out
}

// Clear zeroes the contents and rewinds the cursor.
func (b *Buffer) Clear() {
	clear(b.data)
	b.write = 0
	b.filled = false
}
