package tensor

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/numanelahi/tensorreg/pkg/errors"
)

// Unfold returns the mode-n unfolding of t: a matrix whose rows are indexed
// by mode, with the remaining modes flattened into columns in ascending
// mode order (last mode fastest, consistent with row-major storage).
// Fold(Unfold(t, mode), mode, t.Shape()) reproduces t exactly.
func Unfold(t *Tensor, mode int) (*mat.Dense, error) {
	if mode < 0 || mode >= len(t.shape) {
		return nil, errors.NewValueError("tensor.Unfold", "mode out of range")
	}
	rows := t.shape[mode]
	cols := len(t.data) / rows

	out := mat.NewDense(rows, cols, nil)
	idx := make([]int, len(t.shape))
	for r := 0; r < rows; r++ {
		for i := range idx {
			idx[i] = 0
		}
		idx[mode] = r
		for c := 0; c < cols; c++ {
			out.Set(r, c, t.data[t.offset(idx)])
			incrSkipping(idx, t.shape, mode)
		}
	}
	return out, nil
}

// Fold is the inverse of Unfold: it reassembles a tensor of the given shape
// from its mode-n unfolding.
func Fold(m mat.Matrix, mode int, shape []int) (*Tensor, error) {
	size, err := checkShape("tensor.Fold", shape)
	if err != nil {
		return nil, err
	}
	if mode < 0 || mode >= len(shape) {
		return nil, errors.NewValueError("tensor.Fold", "mode out of range")
	}
	rows, cols := m.Dims()
	if rows != shape[mode] {
		return nil, errors.NewDimensionError("tensor.Fold", shape[mode], rows, 0)
	}
	if cols != size/shape[mode] {
		return nil, errors.NewDimensionError("tensor.Fold", size/shape[mode], cols, 1)
	}

	t, err := Zeros(shape...)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(shape))
	for r := 0; r < rows; r++ {
		for i := range idx {
			idx[i] = 0
		}
		idx[mode] = r
		for c := 0; c < cols; c++ {
			t.data[t.offset(idx)] = m.At(r, c)
			incrSkipping(idx, shape, mode)
		}
	}
	return t, nil
}

// incrSkipping advances a multi-index odometer over every mode except skip,
// with the last mode moving fastest.
func incrSkipping(idx, shape []int, skip int) {
	for k := len(shape) - 1; k >= 0; k-- {
		if k == skip {
			continue
		}
		idx[k]++
		if idx[k] < shape[k] {
			return
		}
		idx[k] = 0
	}
}

// KhatriRao computes the column-wise Kronecker product of the given factor
// matrices, optionally skipping the one at index skip (pass a negative skip
// to keep all). Matrices are combined in ascending order with the last one
// varying fastest, matching the column ordering of Unfold. All participating
// matrices must share the same column count.
func KhatriRao(matrices []*mat.Dense, skip int) (*mat.Dense, error) {
	var kept []*mat.Dense
	for i, m := range matrices {
		if i == skip {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		return nil, errors.NewValueError("tensor.KhatriRao", "at least one matrix is required")
	}

	_, r := kept[0].Dims()
	rows := 1
	for _, m := range kept {
		mr, mc := m.Dims()
		if mc != r {
			return nil, errors.NewDimensionError("tensor.KhatriRao", r, mc, 1)
		}
		rows *= mr
	}

	out := mat.NewDense(rows, r, nil)
	col := make([]float64, rows)
	for j := 0; j < r; j++ {
		col = col[:1]
		col[0] = 1
		for _, m := range kept {
			mr, _ := m.Dims()
			next := make([]float64, len(col)*mr)
			pos := 0
			for _, c := range col {
				for i := 0; i < mr; i++ {
					next[pos] = c * m.At(i, j)
					pos++
				}
			}
			col = next
		}
		for i, v := range col {
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// ModeDot contracts t with m along the given mode. m's column count must
// equal the size of that mode; the result replaces the mode's size with m's
// row count.
func ModeDot(t *Tensor, m mat.Matrix, mode int) (*Tensor, error) {
	if mode < 0 || mode >= len(t.shape) {
		return nil, errors.NewValueError("tensor.ModeDot", "mode out of range")
	}
	p, q := m.Dims()
	if q != t.shape[mode] {
		return nil, errors.NewDimensionError("tensor.ModeDot", t.shape[mode], q, 1)
	}

	unfolded, err := Unfold(t, mode)
	if err != nil {
		return nil, err
	}
	var product mat.Dense
	product.Mul(m, unfolded)

	newShape := t.Shape()
	newShape[mode] = p
	return Fold(&product, mode, newShape)
}

// PartialVec flattens every axis at or after skipBegin into a single
// trailing axis, preserving the leading axes. With skipBegin=1 it turns a
// sample batch (N, d_1, ..., d_K) into an (N, d_1*...*d_K) tensor.
func PartialVec(t *Tensor, skipBegin int) (*Tensor, error) {
	if skipBegin < 0 || skipBegin >= len(t.shape) {
		return nil, errors.NewValueError("tensor.PartialVec", "skipBegin out of range")
	}
	newShape := append([]int(nil), t.shape[:skipBegin]...)
	flat := 1
	for _, s := range t.shape[skipBegin:] {
		flat *= s
	}
	newShape = append(newShape, flat)
	return t.Reshape(newShape...)
}

// Inner computes the full contraction (elementwise dot product) of two
// tensors of identical shape.
func Inner(a, b *Tensor) (float64, error) {
	if !SameShape(a, b) {
		return 0, errors.NewShapeError("tensor.Inner", a.Shape(), b.Shape())
	}
	return floats.Dot(a.data, b.data), nil
}

// ReconstructCP assembles the dense tensor represented by a CP/Kruskal
// decomposition: factor k has shape (d_k, r) and component j contributes
// weights[j] times the outer product of the factors' j-th columns. A nil
// weights slice means unit weights.
func ReconstructCP(factors []*mat.Dense, weights []float64) (*Tensor, error) {
	if len(factors) == 0 {
		return nil, errors.NewValueError("tensor.ReconstructCP", "at least one factor is required")
	}
	_, rank := factors[0].Dims()
	shape := make([]int, len(factors))
	for k, f := range factors {
		fr, fc := f.Dims()
		if fc != rank {
			return nil, errors.NewDimensionError("tensor.ReconstructCP", rank, fc, 1)
		}
		shape[k] = fr
	}
	if weights != nil && len(weights) != rank {
		return nil, errors.NewDimensionError("tensor.ReconstructCP", rank, len(weights), 0)
	}

	// Scale the leading factor's columns by the component weights.
	head := mat.DenseCopyOf(factors[0])
	if weights != nil {
		hr, _ := head.Dims()
		for j := 0; j < rank; j++ {
			for i := 0; i < hr; i++ {
				head.Set(i, j, head.At(i, j)*weights[j])
			}
		}
	}

	if len(factors) == 1 {
		// Order-1 decomposition: the tensor is the row sum of the scaled factor.
		d := shape[0]
		data := make([]float64, d)
		for i := 0; i < d; i++ {
			for j := 0; j < rank; j++ {
				data[i] += head.At(i, j)
			}
		}
		return New(data, d)
	}

	kr, err := KhatriRao(factors, 0)
	if err != nil {
		return nil, err
	}
	var unfolded mat.Dense
	unfolded.Mul(head, kr.T())
	return Fold(&unfolded, 0, shape)
}

// ReconstructTucker assembles the dense tensor represented by a Tucker
// decomposition: the core multiplied along every mode k by factor k of
// shape (d_k, r_k).
func ReconstructTucker(core *Tensor, factors []*mat.Dense) (*Tensor, error) {
	if core == nil {
		return nil, errors.NewValueError("tensor.ReconstructTucker", "core tensor must not be nil")
	}
	if len(factors) != core.Order() {
		return nil, errors.NewDimensionError("tensor.ReconstructTucker", core.Order(), len(factors), 0)
	}
	out := core
	for k, f := range factors {
		var err error
		out, err = ModeDot(out, f, k)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
