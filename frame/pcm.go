package frame

import "encoding/binary"

// SampleAt returns the i-th signed 16-bit little-endian sample of b.
func SampleAt(b []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(b[i*2:]))
}

// PutSample stores v as the i-th sample of b.
func PutSample(b []byte, i int, v int16) {
	binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
}

// Int16s decodes b into dst and returns the number of samples written.
func Int16s(dst []int16, b []byte) int {
	n := len(b) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = SampleAt(b, i)
	}
	return n
}

// AppendInt16s appends the little-endian encoding of s to dst.
func AppendInt16s(dst []byte, s []int16) []byte {
	for _, v := range s {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
	}
	return dst
}

// SwapBytes16 converts between little- and big-endian 16-bit samples in place.
func SwapBytes16(b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
}

// Slin builds an owned linear frame from samples.
func Slin(rate int, samples []int16) *Owned {
	data := AppendInt16s(make([]byte, 0, len(samples)*2), samples)
	return NewOwned(KindVoice, Linear(rate), len(samples), data)
}
