// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/csi.report/internal/csi"
	"github.com/banshee-data/csi.report/internal/monitoring"
	"gonum.org/v1/gonum/mat"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorIs reports a failure unless err wraps target.
func AssertErrorIs(t testing.TB, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("error = %v, want one wrapping %v", err, target)
	}
}

// ApproxEqual reports whether a and b differ by at most tol.
func ApproxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// SilenceLogs mutes monitoring.Logf for the duration of the test.
func SilenceLogs(t testing.TB) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// RandomTensor returns an nrx x ntx tensor of random integer samples in the
// firmware's int8 range, so it survives an encode/parse round trip.
func RandomTensor(t testing.TB, rng *rand.Rand, nrx, ntx int) csi.Tensor {
	t.Helper()
	var subcarriers [csi.NumSubcarriers]*mat.CDense
	for sc := range subcarriers {
		m := mat.NewCDense(nrx, ntx, nil)
		for r := 0; r < nrx; r++ {
			for c := 0; c < ntx; c++ {
				re := float64(rng.Intn(256) - 128)
				im := float64(rng.Intn(256) - 128)
				m.Set(r, c, complex(re, im))
			}
		}
		subcarriers[sc] = m
	}
	tensor, err := csi.NewTensor(subcarriers)
	AssertNoError(t, err)
	return tensor
}
