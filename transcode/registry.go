package transcode

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pidato/framing/frame"
	"github.com/pidato/framing/pool"
)

// Registry routes between formats through signed linear audio:
// decode, resample, encode. Any stage may be absent.
type Registry struct {
	mu        sync.RWMutex
	decoders  map[frame.Codec]DecoderFunc
	encoders  map[frame.Codec]EncoderFunc
	resampler ResamplerFunc
	log       *slog.Logger
}

type Option func(*Registry)

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithResampler sets the rate converter. Without one, routes that need a
// rate change have no route.
func WithResampler(fn ResamplerFunc) Option {
	return func(r *Registry) {
		r.resampler = fn
	}
}

// NewRegistry returns a registry with no codecs and no resampler.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		decoders: make(map[frame.Codec]DecoderFunc),
		encoders: make(map[frame.Codec]EncoderFunc),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewBuiltin returns a registry with G.711, Opus and rate conversion.
func NewBuiltin(opts ...Option) *Registry {
	r := NewRegistry(append([]Option{WithResampler(NewResampler)}, opts...)...)
	r.RegisterDecoder(frame.CodecULaw, NewULawDecoder)
	r.RegisterDecoder(frame.CodecALaw, NewALawDecoder)
	r.RegisterDecoder(frame.CodecOpus, NewOpusDecoder)
	r.RegisterEncoder(frame.CodecULaw, NewULawEncoder)
	r.RegisterEncoder(frame.CodecALaw, NewALawEncoder)
	r.RegisterEncoder(frame.CodecOpus, NewOpusEncoder)
	return r
}

func (r *Registry) RegisterDecoder(c frame.Codec, fn DecoderFunc) {
	r.mu.Lock()
	r.decoders[c] = fn
	r.mu.Unlock()
}

func (r *Registry) RegisterEncoder(c frame.Codec, fn EncoderFunc) {
	r.mu.Lock()
	r.encoders[c] = fn
	r.mu.Unlock()
}

// CanConvert reports whether Open(src, dst) would find a route.
func (r *Registry) CanConvert(src, dst frame.Format) bool {
	_, _, ok := r.lookup(src, dst)
	return ok
}

func (r *Registry) lookup(src, dst frame.Format) (DecoderFunc, EncoderFunc, bool) {
	if src.Equal(dst) {
		return nil, nil, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		dec DecoderFunc
		enc EncoderFunc
		ok  bool
	)
	if !src.IsLinear() {
		if dec, ok = r.decoders[src.Codec]; !ok {
			return nil, nil, false
		}
	}
	if !dst.IsLinear() {
		if enc, ok = r.encoders[dst.Codec]; !ok {
			return nil, nil, false
		}
	}
	if src.SampleRate() != dst.SampleRate() && r.resampler == nil {
		return nil, nil, false
	}
	return dec, enc, true
}

// Open builds a session from src to dst.
func (r *Registry) Open(src, dst frame.Format) (Session, error) {
	decFn, encFn, ok := r.lookup(src, dst)
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, src, dst)
	}
	s := &session{src: src, dst: dst}
	if src.Equal(dst) {
		return s, nil
	}

	srcRate, dstRate := src.SampleRate(), dst.SampleRate()
	if decFn != nil {
		dec, err := decFn()
		if err != nil {
			return nil, fmt.Errorf("transcode: open %s decoder: %w", src, err)
		}
		s.dec = dec
		srcRate = dec.Rate()
	}
	if encFn != nil {
		enc, err := encFn()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("transcode: open %s encoder: %w", dst, err)
		}
		s.enc = enc
		dstRate = enc.Rate()
	}
	if srcRate != dstRate {
		r.mu.RLock()
		fn := r.resampler
		r.mu.RUnlock()
		if fn == nil {
			s.Close()
			return nil, fmt.Errorf("%w: %s -> %s needs %d -> %d", ErrNoRoute, src, dst, srcRate, dstRate)
		}
		rs, err := fn(srcRate, dstRate)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.rs = rs
	}
	r.log.Debug("transcode session opened",
		"src", src.String(),
		"dst", dst.String(),
		"decode", s.dec != nil,
		"resample", s.rs != nil,
		"encode", s.enc != nil,
	)
	return s, nil
}

type session struct {
	src, dst frame.Format
	dec      Decoder
	rs       Resampler
	enc      Encoder
	pcm      []int16
	closed   bool
}

func (s *session) Src() frame.Format { return s.src }
func (s *session) Dst() frame.Format { return s.dst }

func (s *session) Convert(f *frame.Frame) ([]*frame.Owned, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if !f.Format.Equal(s.src) {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrWrongFormat, f.Format, s.src)
	}
	if f.Empty() {
		return nil, nil
	}
	if s.dec == nil && s.rs == nil && s.enc == nil {
		o := f.Dup()
		o.Frame().Format = s.dst
		return []*frame.Owned{o}, nil
	}

	pcm := s.pcm[:0]
	if s.dec != nil {
		var err error
		if pcm, err = s.dec.Decode(f.Data, pcm); err != nil {
			return nil, err
		}
	} else {
		if len(f.Data)%2 != 0 {
			return nil, fmt.Errorf("%w: odd linear payload of %d bytes", ErrWrongFrameSize, len(f.Data))
		}
		n := len(f.Data) / 2
		if cap(pcm) < n {
			pcm = make([]int16, n)
		}
		pcm = pcm[:frame.Int16s(pcm[:n], f.Data)]
	}
	s.pcm = pcm

	if s.rs != nil {
		var err error
		if pcm, err = s.rs.Process(pcm); err != nil {
			return nil, err
		}
	}

	if s.enc == nil {
		if len(pcm) == 0 {
			return nil, nil
		}
		data := pool.Get(len(pcm) * 2)
		for i, v := range pcm {
			frame.PutSample(data, i, v)
		}
		o := frame.NewOwnedPooled(frame.KindVoice, s.dst, len(pcm), data)
		o.SetDelivery(f.Delivery)
		return []*frame.Owned{o}, nil
	}

	packets, err := s.enc.Encode(pcm)
	out := make([]*frame.Owned, 0, len(packets))
	at := f.Delivery
	for _, p := range packets {
		data := pool.Get(len(p.Data))
		copy(data, p.Data)
		o := frame.NewOwnedPooled(frame.KindVoice, s.dst, p.Samples, data)
		if !at.IsZero() {
			o.SetDelivery(at)
			at = at.Add(s.dst.Duration(p.Samples))
		}
		out = append(out, o)
	}
	return out, err
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.dec != nil {
		err = s.dec.Close()
	}
	if s.enc != nil {
		if cerr := s.enc.Close(); err == nil {
			err = cerr
		}
	}
	s.pcm = nil
	return err
}
