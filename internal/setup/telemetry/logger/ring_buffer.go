package logger

// RingBuffer keeps the most recent log lines of a file.
type RingBuffer struct {
	lines    []string
	capacity int
	next     int // Index the next line is written to
	size     int // Lines currently held
	written  int // Lines written since the file was last rewritten
}

// NewRingBuffer creates a ring buffer holding up to capacity lines.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}

	return &RingBuffer{
		lines:    make([]string, capacity),
		capacity: capacity,
	}
}

// Add appends a line, overwriting the oldest one once full.
func (rb *RingBuffer) Add(line string) {
	rb.lines[rb.next] = line
	rb.next = (rb.next + 1) % rb.capacity

	if rb.size < rb.capacity {
		rb.size++
	}

	rb.written++
}

// Lines returns the held lines from oldest to newest.
func (rb *RingBuffer) Lines() []string {
	if rb.size == 0 {
		return nil
	}

	result := make([]string, rb.size)
	start := (rb.next - rb.size + rb.capacity) % rb.capacity

	for i := range rb.size {
		result[i] = rb.lines[(start+i)%rb.capacity]
	}

	return result
}

// NeedsCompaction reports whether the backing file holds twice the capacity.
func (rb *RingBuffer) NeedsCompaction() bool {
	return rb.written >= rb.capacity*2
}

// Compacted records that the file now only holds the buffered lines.
func (rb *RingBuffer) Compacted() {
	rb.written = rb.size
}
