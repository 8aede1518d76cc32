// Package spectrum turns a sampled series into its single-sided amplitude
// spectrum.
package spectrum

import (
	"errors"
	"fmt"
	"math/cmplx"
	"slices"

	lru "github.com/hashicorp/golang-lru"
	"gonum.org/v1/gonum/dsp/fourier"
)

// planCacheSize bounds the FFT plans kept between passes. The series grows
// between passes, so only the most recent lengths are worth keeping.
const planCacheSize = 4

var ErrInvalidInterval = errors.New("sampling interval must be positive")

// Bin is one frequency line of a spectrum.
type Bin struct {
	Frequency float64
	Magnitude float64
}

// Analyzer assumes uniform sampling at its nominal interval; sample
// timestamps are not consulted.
type Analyzer struct {
	interval float64
	plans    *lru.Cache // series length -> *fourier.FFT
}

func NewAnalyzer(interval float64) (*Analyzer, error) {
	if !(interval > 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidInterval, interval)
	}
	plans, err := lru.New(planCacheSize)
	if err != nil {
		return nil, err
	}
	return &Analyzer{interval: interval, plans: plans}, nil
}

// Interval is the nominal spacing between samples.
func (a *Analyzer) Interval() float64 { return a.interval }

// Spectrum returns len(values)/2 bins starting at zero frequency. Fewer than
// two values yield nil. The input is left untouched.
func (a *Analyzer) Spectrum(values []float64) []Bin {
	n := len(values)
	if n < 2 {
		return nil
	}
	fft := a.plan(n)
	coeffs := fft.Coefficients(nil, slices.Clone(values))

	bins := make([]Bin, n/2)
	for k := range bins {
		mag := cmplx.Abs(coeffs[k]) / float64(n)
		if k > 0 {
			mag *= 2
		}
		bins[k] = Bin{
			Frequency: fft.Freq(k) / a.interval,
			Magnitude: mag,
		}
	}
	return bins
}

func (a *Analyzer) plan(n int) *fourier.FFT {
	if v, ok := a.plans.Get(n); ok {
		return v.(*fourier.FFT)
	}
	fft := fourier.NewFFT(n)
	a.plans.Add(n, fft)
	return fft
}

// Peak returns the bin with the largest magnitude, ignoring the mean.
func Peak(bins []Bin) (Bin, bool) {
	if len(bins) < 2 {
		return Bin{}, false
	}
	best := bins[1]
	for _, b := range bins[2:] {
		if b.Magnitude > best.Magnitude {
			best = b
		}
	}
	return best, true
}
