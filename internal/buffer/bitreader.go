package buffer

// BitReader reads MSB-first bits from a byte slice.
// It can also overwrite bits at the cursor, which the DTS 14-bit repacker
// uses to compact words in place.
//
// Any access past the end of the data sets a sticky overrun flag; from then
// on every read reports failure.
type BitReader struct {
	data    []byte
	bytePos int
	bitPos  uint8
	overrun bool
}

func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

// Reset points the reader at data and rewinds it to bit 0.
func (r *BitReader) Reset(data []byte) {
	r.data = data
	r.bytePos = 0
	r.bitPos = 0
	r.overrun = false
}

func (r *BitReader) Length() int {
	return len(r.data)
}

func (r *BitReader) BytesLeft() int {
	if r.bytePos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.bytePos
}

func (r *BitReader) BitsLeft() int {
	left := len(r.data)*8 - r.Position()
	if left < 0 {
		return 0
	}
	return left
}

// Position returns the cursor in bits from the start of the data.
func (r *BitReader) Position() int {
	return r.bytePos*8 + int(r.bitPos)
}

func (r *BitReader) SetBitPosition(pos int) bool {
	if pos < 0 || pos > len(r.data)*8 {
		return false
	}
	r.bytePos = pos / 8
	r.bitPos = uint8(pos % 8)
	return true
}

// Overrun reports whether any operation ran past the end of the data.
func (r *BitReader) Overrun() bool {
	return r.overrun
}

func (r *BitReader) ReadBit() (uint64, bool) {
	if r.overrun || r.bytePos >= len(r.data) {
		r.overrun = true
		return 0, false
	}
	b := r.data[r.bytePos]
	bit := (b >> (7 - r.bitPos)) & 0x01
	r.bitPos++
	if r.bitPos == 8 {
		r.bitPos = 0
		r.bytePos++
	}
	return uint64(bit), true
}

// ReadFlag reads a single bit as a bool.
func (r *BitReader) ReadFlag() (bool, bool) {
	bit, ok := r.ReadBit()
	return bit == 1, ok
}

// ReadBits reads n bits (0-64) as an unsigned value.
func (r *BitReader) ReadBits(n int) (uint64, bool) {
	if n <= 0 {
		return 0, !r.overrun
	}
	if n > 64 || n > r.BitsLeft() {
		r.overrun = true
		return 0, false
	}
	var v uint64
	for n > 0 {
		if r.bitPos == 0 && n >= 8 {
			v = v<<8 | uint64(r.data[r.bytePos])
			r.bytePos++
			n -= 8
			continue
		}
		bit, _ := r.ReadBit()
		v = (v << 1) | bit
		n--
	}
	return v, true
}

func (r *BitReader) ReadByte() (byte, bool) {
	if r.bitPos == 0 {
		if r.overrun || r.bytePos >= len(r.data) {
			r.overrun = true
			return 0, false
		}
		b := r.data[r.bytePos]
		r.bytePos++
		return b, true
	}
	val, ok := r.ReadBits(8)
	if !ok {
		return 0, false
	}
	return byte(val), true
}

func (r *BitReader) SkipBits(n int) bool {
	if n < 0 || r.overrun {
		r.overrun = true
		return false
	}
	if n > r.BitsLeft() {
		r.overrun = true
		return false
	}
	return r.SetBitPosition(r.Position() + n)
}

func (r *BitReader) SkipBytes(n int) bool {
	return r.SkipBits(n * 8)
}

// AlignByte advances to the next byte boundary.
func (r *BitReader) AlignByte() {
	if r.bitPos != 0 {
		r.bitPos = 0
		r.bytePos++
	}
}

// PutBits overwrites the next n bits (0-64) at the cursor with the low n
// bits of value, MSB first, and advances past them.
func (r *BitReader) PutBits(value uint64, n int) bool {
	if n < 0 || n > 64 || r.overrun || n > r.BitsLeft() {
		r.overrun = true
		return false
	}
	for i := n - 1; i >= 0; i-- {
		shift := 7 - r.bitPos
		mask := byte(1) << shift
		if (value>>uint(i))&1 == 1 {
			r.data[r.bytePos] |= mask
		} else {
			r.data[r.bytePos] &^= mask
		}
		r.bitPos++
		if r.bitPos == 8 {
			r.bitPos = 0
			r.bytePos++
		}
	}
	return true
}
