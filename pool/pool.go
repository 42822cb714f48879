package pool

import (
	"errors"
	"sync"

	"github.com/gobwas/pool/pbytes"
)

var (
	ErrUnsupported = errors.New("unsupported")
)

// Rates lists the linear sample rates the engine normalizes to.
var Rates = []int{8000, 12000, 16000, 24000, 32000, 48000}

// Ptimes lists the packetization times, in milliseconds, that have a pool.
var Ptimes = []int{5, 10, 20, 30, 40, 60}

const bytesPerSample = 2

// Pool hands out linear frame buffers of one rate and ptime.
type Pool struct {
	SampleRate int
	Ptime      int
	// FrameSize is the number of samples in one frame.
	FrameSize int
	PCM       *PCMPool
}

func newPool(sampleRate, ptime int) *Pool {
	size := sampleRate * ptime / 1000
	return &Pool{
		SampleRate: sampleRate,
		Ptime:      ptime,
		FrameSize:  size,
		PCM:        newPCMPool(size),
	}
}

// Bytes is the payload length of one frame.
func (p *Pool) Bytes() int {
	return p.FrameSize * bytesPerSample
}

// Get returns a payload buffer of exactly one frame.
func (p *Pool) Get() []byte {
	return pbytes.GetLen(p.Bytes())
}

// Release returns a buffer obtained from Get.
func (p *Pool) Release(b []byte) {
	pbytes.Put(b)
}

type key struct {
	rate, ptime int
}

var pools = func() map[key]*Pool {
	m := make(map[key]*Pool, len(Rates)*len(Ptimes))
	for _, rate := range Rates {
		for _, ptime := range Ptimes {
			m[key{rate, ptime}] = newPool(rate, ptime)
		}
	}
	return m
}()

// Of returns the pool for a sample rate and ptime in milliseconds.
func Of(sampleRate, ptime int) (*Pool, error) {
	p, ok := pools[key{sampleRate, ptime}]
	if !ok {
		return nil, ErrUnsupported
	}
	return p, nil
}

// FrameSizeOf returns the samples in one ptime frame, or 0 if unsupported.
func FrameSizeOf(sampleRate, ptime int) int {
	p, ok := pools[key{sampleRate, ptime}]
	if !ok {
		return 0
	}
	return p.FrameSize
}

// IsSupportedRate reports whether rate is one of Rates.
func IsSupportedRate(rate int) bool {
	for _, r := range Rates {
		if r == rate {
			return true
		}
	}
	return false
}

// Get returns a byte slice of length n from the shared byte pool.
func Get(n int) []byte {
	return pbytes.GetLen(n)
}

// Put returns b to the shared byte pool.
func Put(b []byte) {
	if b == nil {
		return
	}
	pbytes.Put(b)
}

// PCMPool recycles int16 sample slices of one frame size.
type PCMPool struct {
	FrameSize int
	pool      sync.Pool
}

func newPCMPool(size int) *PCMPool {
	return &PCMPool{
		FrameSize: size,
		pool: sync.Pool{New: func() interface{} {
			return make([]int16, size)
		}},
	}
}

func (p *PCMPool) Get() []int16 {
	return p.pool.Get().([]int16)
}

func (p *PCMPool) Release(pcm []int16) {
	if cap(pcm) < p.FrameSize {
		return
	}
	pcm = pcm[:p.FrameSize]
	p.pool.Put(pcm)
}
