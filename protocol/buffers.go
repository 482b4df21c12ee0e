package protocol

// InputBuffer provides an abstraction for reading incoming protocol data
type InputBuffer interface {
	// Data returns the available data slice
	Data() []byte

	// Available returns the number of bytes available
	Available() int

	// Pop removes n bytes from the front of the buffer
	Pop(n int)
}

// OutputBuffer provides an abstraction for writing outgoing protocol data
type OutputBuffer interface {
	// Output writes data to the buffer
	Output(data []byte)

	// CurPosition returns the current write position
	CurPosition() int

	// Update modifies a byte at a specific position
	Update(pos int, val byte)

	// DataSince returns data from a specific position to current
	DataSince(pos int) []byte
}

// SliceInputBuffer implements InputBuffer using a byte slice
type SliceInputBuffer struct {
	data []byte
}

// NewSliceInputBuffer creates a new SliceInputBuffer
func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte {
	return s.data
}

func (s *SliceInputBuffer) Available() int {
	return len(s.data)
}

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput implements OutputBuffer using a fixed-size scratch buffer
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{pos: 0}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < len(s.buf) {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is the receive ring between the serial driver and the
// transport. Every slot is usable.
type FifoBuffer struct {
	buf   []byte
	start int
	count int
}

// NewFifoBuffer returns a ring holding up to capacity bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count taken.
func (f *FifoBuffer) Write(data []byte) int {
	n := min(len(data), f.Free())
	for i, b := range data[:n] {
		f.buf[f.index(f.count+i)] = b
	}
	f.count += n
	return n
}

// Read moves up to len(data) bytes out of the ring.
func (f *FifoBuffer) Read(data []byte) int {
	n := min(len(data), f.count)
	for i := range data[:n] {
		data[i] = f.buf[f.index(i)]
	}
	f.Pop(n)
	return n
}

func (f *FifoBuffer) index(off int) int {
	return (f.start + off) % len(f.buf)
}

func (f *FifoBuffer) Available() int { return f.count }

func (f *FifoBuffer) Free() int { return len(f.buf) - f.count }

// Data returns the buffered bytes as one slice. A wrapped ring is rotated
// in place first, so the slice aliases the ring and is valid until the next
// Write.
func (f *FifoBuffer) Data() []byte {
	if f.start+f.count > len(f.buf) {
		rotate(f.buf, f.start)
		f.start = 0
	}
	return f.buf[f.start : f.start+f.count]
}

// rotate moves b[k:] to the front of b using three reversals.
func rotate(b []byte, k int) {
	reverse(b[:k])
	reverse(b[k:])
	reverse(b)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// Pop drops n bytes from the front.
func (f *FifoBuffer) Pop(n int) {
	n = min(n, f.count)
	f.count -= n
	if f.count == 0 {
		f.start = 0
	} else {
		f.start = f.index(n)
	}
}

func (f *FifoBuffer) IsEmpty() bool { return f.count == 0 }

func (f *FifoBuffer) Reset() {
	f.start = 0
	f.count = 0
}
