// Package resample implements a stateful sinc-interpolating sample-rate
// converter for the audio pipeline, run in both directions (8kHz<->48kHz)
// around the Opus codec. There is no resampler anywhere in the retrieved
// pack, so this is grounded directly on the filter parameters called out
// by the audio pipeline design: filter length 256, Blackman-Harris window,
// 256x oversampling, cutoff 0.95 of Nyquist.
package resample

import "math"

const (
	// FilterLength is the number of taps in the windowed-sinc kernel.
	FilterLength = 256
	// Oversampling is how finely the kernel is pre-tabulated between
	// integer taps, so a fractional read position only needs a table
	// lookup instead of re-evaluating sin(x)/x per output sample.
	Oversampling = 256
	// Cutoff is the filter's low-pass cutoff as a fraction of Nyquist,
	// left below 1.0 for headroom against the finite window's rolloff.
	Cutoff = 0.95
)

// Sinc is a fixed-ratio sample-rate converter. Push accepts an arbitrary
// number of input samples and returns as many output samples as the
// current ratio and buffered history allow; the tail remains buffered
// until the next Push or is discarded when the caller stops feeding it.
type Sinc struct {
	step float64 // input samples advanced per output sample
	half int

	table [][]float64 // [phase 0..Oversampling][tap]

	buf    []float64
	cursor float64 // fractional read position within buf
}

// NewSinc builds a converter from inRate to outRate, in samples per second.
func NewSinc(inRate, outRate int) *Sinc {
	s := &Sinc{
		step: float64(inRate) / float64(outRate),
		half: FilterLength / 2,
	}
	s.buildTable()
	// Seed with a half-filter-length of silent history so the very first
	// real samples aren't windowed against samples that don't exist yet.
	s.buf = make([]float64, s.half)
	s.cursor = float64(s.half)
	return s
}

func (s *Sinc) buildTable() {
	s.table = make([][]float64, Oversampling+1)
	for phase := 0; phase <= Oversampling; phase++ {
		frac := float64(phase) / float64(Oversampling)
		taps := make([]float64, FilterLength)
		for j := 0; j < FilterLength; j++ {
			x := float64(j-s.half) - frac
			taps[j] = sincLowPass(x) * blackmanHarris(j, FilterLength)
		}
		s.table[phase] = taps
	}
}

func sincLowPass(x float64) float64 {
	x *= Cutoff
	if x == 0 {
		return Cutoff
	}
	return Cutoff * math.Sin(math.Pi*x) / (math.Pi * x)
}

func blackmanHarris(i, n int) float64 {
	const (
		a0 = 0.35875
		a1 = 0.48829
		a2 = 0.14128
		a3 = 0.01168
	)
	x := 2 * math.Pi * float64(i) / float64(n-1)
	return a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x)
}

// Push feeds in new float samples in [-1.0, 1.0] and returns whatever
// output samples the new ratio position makes available.
func (s *Sinc) Push(in []float32) []float32 {
	for _, v := range in {
		s.buf = append(s.buf, float64(v))
	}

	var out []float32
	for int(s.cursor)+s.half < len(s.buf) {
		base := int(s.cursor)
		frac := s.cursor - float64(base)
		phase := int(frac*Oversampling + 0.5)
		taps := s.table[phase]

		var sum float64
		for j := 0; j < FilterLength; j++ {
			idx := base - s.half + j
			if idx >= 0 && idx < len(s.buf) {
				sum += s.buf[idx] * taps[j]
			}
		}
		if sum > 1 {
			sum = 1
		} else if sum < -1 {
			sum = -1
		}
		out = append(out, float32(sum))
		s.cursor += s.step
	}

	// Drop the consumed prefix, keeping half a filter length of lookback
	// so the next call's edge taps still see real history.
	if drop := int(s.cursor) - s.half; drop > 0 && drop < len(s.buf) {
		s.buf = s.buf[drop:]
		s.cursor -= float64(drop)
	}

	return out
}
