package transcode

// G.711 companding per ITU-T G.711, 14-bit mu-law and 13-bit A-law segments.

const (
	ulawBias = 0x84
	ulawClip = 32635
)

var alawSegEnd = [8]int{0x1f, 0x3f, 0x7f, 0xff, 0x1ff, 0x3ff, 0x7ff, 0xfff}

var (
	ulawDecodeTable [256]int16
	alawDecodeTable [256]int16
)

func init() {
	for i := 0; i < 256; i++ {
		ulawDecodeTable[i] = ulawToLinear(byte(i))
		alawDecodeTable[i] = alawToLinear(byte(i))
	}
}

func ulawToLinear(u byte) int16 {
	u = ^u
	t := (int16(u&0x0f) << 3) + ulawBias
	t <<= (u & 0x70) >> 4
	if u&0x80 != 0 {
		return ulawBias - t
	}
	return t - ulawBias
}

// LinearToULaw compresses one sample.
func LinearToULaw(s int16) byte {
	v := int(s)
	sign := 0
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > ulawClip {
		v = ulawClip
	}
	v += ulawBias
	exp := 7
	for mask := 0x4000; v&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := (v >> (exp + 3)) & 0x0f
	return ^byte(sign | exp<<4 | mant)
}

// ULawToLinear expands one sample.
func ULawToLinear(u byte) int16 {
	return ulawDecodeTable[u]
}

func alawToLinear(a byte) int16 {
	a ^= 0x55
	t := int16(a&0x0f) << 4
	seg := (a & 0x70) >> 4
	switch seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if a&0x80 != 0 {
		return t
	}
	return -t
}

// LinearToALaw compresses one sample.
func LinearToALaw(s int16) byte {
	v := int(s) >> 3
	mask := 0xd5
	if v < 0 {
		mask = 0x55
		v = -v - 1
	}
	seg := 0
	for seg < len(alawSegEnd) && v > alawSegEnd[seg] {
		seg++
	}
	if seg >= len(alawSegEnd) {
		return byte(0x7f ^ mask)
	}
	aval := seg << 4
	if seg < 2 {
		aval |= (v >> 1) & 0x0f
	} else {
		aval |= (v >> seg) & 0x0f
	}
	return byte(aval ^ mask)
}

// ALawToLinear expands one sample.
func ALawToLinear(a byte) int16 {
	return alawDecodeTable[a]
}
