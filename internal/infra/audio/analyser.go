package audio

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	DefaultFFTSize   = 2048
	DefaultSmoothing = 0.8
	DefaultMinDB     = -100.0
	DefaultMaxDB     = -30.0
)

// Analyser keeps the most recent FFTSize samples of a stream and reports
// their byte-scaled frequency magnitudes: Blackman window, smoothed across
// calls, converted to dB and mapped from [MinDB, MaxDB] onto 0..255.
type Analyser struct {
	mu sync.Mutex

	size      int
	smoothing float64
	minDB     float64
	maxDB     float64

	ring   []float64
	pos    int
	window []float64
	prev   []float64

	fft     *fourier.FFT
	frame   []float64
	coeff   []complex128
	scratch []uint8
}

func NewAnalyser(fftSize int, smoothing float64) *Analyser {
	if fftSize <= 0 || fftSize&(fftSize-1) != 0 {
		fftSize = DefaultFFTSize
	}
	if smoothing < 0 || smoothing >= 1 {
		smoothing = DefaultSmoothing
	}

	window := make([]float64, fftSize)
	for i := range window {
		x := 2 * math.Pi * float64(i) / float64(fftSize)
		window[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}

	return &Analyser{
		size:      fftSize,
		smoothing: smoothing,
		minDB:     DefaultMinDB,
		maxDB:     DefaultMaxDB,
		ring:      make([]float64, fftSize),
		window:    window,
		prev:      make([]float64, fftSize/2),
		fft:       fourier.NewFFT(fftSize),
		frame:     make([]float64, fftSize),
		coeff:     make([]complex128, fftSize/2+1),
		scratch:   make([]uint8, fftSize/2),
	}
}

// BinCount is the number of frequency bins reported.
func (a *Analyser) BinCount() int {
	return a.size / 2
}

// WriteInt16 appends PCM16 samples.
func (a *Analyser) WriteInt16(samples []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = float64(s) / 32768
		a.pos = (a.pos + 1) % a.size
	}
}

// WriteFloat appends samples already scaled to [-1, 1].
func (a *Analyser) WriteFloat(samples []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % a.size
	}
}

// ByteFrequencyData fills dst (grown to BinCount) with the current spectrum.
func (a *Analyser) ByteFrequencyData(dst []uint8) []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.byteFrequencyData(dst)
}

func (a *Analyser) byteFrequencyData(dst []uint8) []uint8 {
	bins := a.size / 2
	if cap(dst) < bins {
		dst = make([]uint8, bins)
	}
	dst = dst[:bins]

	for i := 0; i < a.size; i++ {
		a.frame[i] = a.ring[(a.pos+i)%a.size] * a.window[i]
	}
	a.coeff = a.fft.Coefficients(a.coeff, a.frame)

	scale := 255 / (a.maxDB - a.minDB)
	n := float64(a.size)
	for k := 0; k < bins; k++ {
		mag := math.Hypot(real(a.coeff[k]), imag(a.coeff[k])) / n
		a.prev[k] = a.smoothing*a.prev[k] + (1-a.smoothing)*mag

		v := 0.0
		if a.prev[k] > 0 {
			db := 20 * math.Log10(a.prev[k])
			v = scale * (db - a.minDB)
		}
		switch {
		case v < 0 || math.IsNaN(v):
			dst[k] = 0
		case v > 255:
			dst[k] = 255
		default:
			dst[k] = uint8(v)
		}
	}
	return dst
}

// Level is the mean of the byte spectrum normalized to [0, 1].
func (a *Analyser) Level() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.scratch = a.byteFrequencyData(a.scratch)
	sum := 0
	for _, v := range a.scratch {
		sum += int(v)
	}
	return float64(sum) / float64(len(a.scratch)) / 255
}
