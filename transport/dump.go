package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pion/rtp"
)

var ErrTruncated = errors.New("transport: truncated dump")

// DumpWriter stores packets as a 2-byte big-endian length followed by the
// marshalled packet. It satisfies RTPWriter.
type DumpWriter struct {
	w       *bufio.Writer
	hdr     [2]byte
	packets int
}

func NewDumpWriter(w io.Writer) *DumpWriter {
	return &DumpWriter{w: bufio.NewWriter(w)}
}

func (d *DumpWriter) WriteRTP(p *rtp.Packet) error {
	raw, err := p.Marshal()
	if err != nil {
		return err
	}
	if len(raw) > 0xffff {
		return fmt.Errorf("transport: packet of %d bytes too large to dump", len(raw))
	}
	binary.BigEndian.PutUint16(d.hdr[:], uint16(len(raw)))
	if _, err := d.w.Write(d.hdr[:]); err != nil {
		return err
	}
	if _, err := d.w.Write(raw); err != nil {
		return err
	}
	d.packets++
	return nil
}

// Packets is the count written so far.
func (d *DumpWriter) Packets() int {
	return d.packets
}

func (d *DumpWriter) Flush() error {
	return d.w.Flush()
}

// DumpReader reads what DumpWriter wrote.
type DumpReader struct {
	r   *bufio.Reader
	hdr [2]byte
	buf []byte
	pkt rtp.Packet
}

func NewDumpReader(r io.Reader) *DumpReader {
	return &DumpReader{r: bufio.NewReader(r)}
}

// ReadRTP returns the next packet, valid until the next call, or io.EOF
// after the last one.
func (d *DumpReader) ReadRTP() (*rtp.Packet, error) {
	if _, err := io.ReadFull(d.r, d.hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(d.hdr[:]))
	if cap(d.buf) < n {
		d.buf = make([]byte, n)
	}
	d.buf = d.buf[:n]
	if _, err := io.ReadFull(d.r, d.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	d.pkt = rtp.Packet{}
	if err := d.pkt.Unmarshal(d.buf); err != nil {
		return nil, fmt.Errorf("transport: bad packet in dump: %w", err)
	}
	return &d.pkt, nil
}
