package features

import "math"

// Vector is one sparse matrix row. Indices are strictly increasing.
type Vector struct {
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
}

// Matrix is a row-major sparse matrix with a fixed column count.
type Matrix struct {
	Cols int      `json:"cols"`
	Rows []Vector `json:"rows"`
}

// NumRows returns the number of rows.
func (m *Matrix) NumRows() int {
	return len(m.Rows)
}

// Row returns row i as a single-row matrix sharing the same storage.
func (m *Matrix) Row(i int) *Matrix {
	return &Matrix{Cols: m.Cols, Rows: m.Rows[i : i+1]}
}

// Select returns a matrix made of the given rows, in the given order.
func (m *Matrix) Select(rows []int) *Matrix {
	out := &Matrix{Cols: m.Cols, Rows: make([]Vector, len(rows))}
	for i, r := range rows {
		out.Rows[i] = m.Rows[r]
	}
	return out
}

// Dense expands row i into a plain slice of length Cols.
func (m *Matrix) Dense(i int) []float64 {
	out := make([]float64, m.Cols)
	row := m.Rows[i]
	for k, idx := range row.Indices {
		out[idx] = row.Values[k]
	}
	return out
}

// Norm returns the L2 norm of the vector.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Equal reports whether two vectors hold the same entries.
func (v Vector) Equal(other Vector) bool {
	if len(v.Indices) != len(other.Indices) {
		return false
	}
	for i := range v.Indices {
		if v.Indices[i] != other.Indices[i] || v.Values[i] != other.Values[i] {
			return false
		}
	}
	return true
}
