package model

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/mat"
)

// Fingerprint hashes a model's mode and inputs so runs fitted against the
// same design can be matched.
func Fingerprint(m Model) string {
	d := xxhash.New()
	_, _ = d.WriteString(string(m.Mode()))

	switch v := m.(type) {
	case *MeanModel:
		writeMatrix(d, v.x)
	case *LinearModel:
		writeMatrix(d, v.x)
		writeFloats(d, v.groups)
	case *LinearShuffleModel:
		writeMatrix(d, v.x)
		writeFloats(d, v.groups)
	case *BilinearModel:
		writeMatrix(d, v.x1)
		writeMatrix(d, v.x2)
	case *CircularTuningModel:
		writeFloats(d, v.s)
	case *GaussianTuningModel:
		writeFloats(d, v.s)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// HashValues returns the xxhash of a float vector's IEEE-754 bits.
func HashValues(values []float64) uint64 {
	d := xxhash.New()
	writeFloats(d, values)
	return d.Sum64()
}

func writeMatrix(d *xxhash.Digest, m *mat.Dense) {
	r, c := m.Dims()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(r)<<32|uint64(c))
	_, _ = d.Write(buf[:])
	for i := 0; i < r; i++ {
		writeFloats(d, m.RawRowView(i))
	}
}

func writeFloats(d *xxhash.Digest, values []float64) {
	var buf [8]byte
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
}
