package tensor

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		data    []float64
		shape   []int
		wantErr bool
	}{
		{
			name:  "2x3 matrix",
			data:  []float64{1, 2, 3, 4, 5, 6},
			shape: []int{2, 3},
		},
		{
			name:  "order-3 tensor",
			data:  make([]float64, 24),
			shape: []int{2, 3, 4},
		},
		{
			name:  "scalar-like single element",
			data:  []float64{7},
			shape: []int{1},
		},
		{
			name:    "length mismatch",
			data:    []float64{1, 2, 3},
			shape:   []int{2, 2},
			wantErr: true,
		},
		{
			name:    "zero dimension",
			data:    []float64{},
			shape:   []int{0, 3},
			wantErr: true,
		},
		{
			name:    "empty shape",
			data:    []float64{1},
			shape:   nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ten, err := New(tt.data, tt.shape...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if ten.Order() != len(tt.shape) {
				t.Errorf("Order() = %d, want %d", ten.Order(), len(tt.shape))
			}
			if ten.Size() != len(tt.data) {
				t.Errorf("Size() = %d, want %d", ten.Size(), len(tt.data))
			}
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	ten, err := New(data, 2, 2)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	data[0] = 99
	if got := ten.At(0, 0); got != 1 {
		t.Errorf("tensor aliases caller data: At(0,0) = %v, want 1", got)
	}
}

func TestTensor_AtSet(t *testing.T) {
	ten, err := New([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Row-major layout: last index varies fastest.
	if got := ten.At(0, 1, 0); got != 3 {
		t.Errorf("At(0,1,0) = %v, want 3", got)
	}
	if got := ten.At(1, 0, 1); got != 6 {
		t.Errorf("At(1,0,1) = %v, want 6", got)
	}

	ten.Set(-5, 1, 1, 1)
	if got := ten.At(1, 1, 1); got != -5 {
		t.Errorf("At(1,1,1) after Set = %v, want -5", got)
	}
}

func TestTensor_AtPanicsOutOfRange(t *testing.T) {
	ten, _ := New([]float64{1, 2, 3, 4}, 2, 2)

	defer func() {
		if recover() == nil {
			t.Error("At() with an out-of-range index should panic")
		}
	}()
	ten.At(2, 0)
}

func TestTensor_Reshape(t *testing.T) {
	ten, err := New([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	r, err := ten.Reshape(3, 2)
	if err != nil {
		t.Fatalf("Reshape() error = %v", err)
	}
	if got := r.At(1, 1); got != 4 {
		t.Errorf("reshaped At(1,1) = %v, want 4", got)
	}

	if _, err := ten.Reshape(4, 2); err == nil {
		t.Error("Reshape() with incompatible size should fail")
	}
}

func TestTensor_SubTensor(t *testing.T) {
	// Batch of 2 samples of shape 2x3.
	data := []float64{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}
	batch, err := New(data, 2, 2, 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	x1, err := batch.SubTensor(1)
	if err != nil {
		t.Fatalf("SubTensor(1) error = %v", err)
	}
	if got := x1.Order(); got != 2 {
		t.Errorf("SubTensor order = %d, want 2", got)
	}
	if got := x1.At(1, 2); got != 12 {
		t.Errorf("SubTensor At(1,2) = %v, want 12", got)
	}

	if _, err := batch.SubTensor(2); err == nil {
		t.Error("SubTensor() past the batch should fail")
	}
	if _, err := batch.SubTensor(-1); err == nil {
		t.Error("SubTensor() with a negative index should fail")
	}
}

func TestTensor_Matrix(t *testing.T) {
	ten, err := New([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	m, err := ten.Matrix()
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}
	want := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	if !mat.EqualApprox(m, want, 0) {
		t.Errorf("Matrix() = %v, want %v", mat.Formatted(m), mat.Formatted(want))
	}

	t3, _ := New(make([]float64, 8), 2, 2, 2)
	if _, err := t3.Matrix(); err == nil {
		t.Error("Matrix() on an order-3 tensor should fail")
	}
}

func TestFromMatrix(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	ten := FromMatrix(m)

	if got := ten.At(1, 0); got != 3 {
		t.Errorf("FromMatrix At(1,0) = %v, want 3", got)
	}

	m.Set(0, 0, 42)
	if got := ten.At(0, 0); got != 1 {
		t.Errorf("FromMatrix aliases the source matrix: At(0,0) = %v, want 1", got)
	}
}

func TestTensor_Copy(t *testing.T) {
	ten, _ := New([]float64{1, 2, 3, 4}, 2, 2)
	cp := ten.Copy()

	ten.Set(99, 0, 0)
	if got := cp.At(0, 0); got != 1 {
		t.Errorf("Copy shares storage: At(0,0) = %v, want 1", got)
	}
}

func TestRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ten, err := Random(rng, 3, 4)
	if err != nil {
		t.Fatalf("Random() error = %v", err)
	}
	if ten.Size() != 12 {
		t.Errorf("Size() = %d, want 12", ten.Size())
	}
	for _, v := range ten.Data() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("Random() produced a non-finite value: %v", v)
		}
	}

	if _, err := Random(nil, 2, 2); err == nil {
		t.Error("Random() with a nil source should fail")
	}
}

func TestEqualApprox(t *testing.T) {
	a, _ := New([]float64{1, 2, 3, 4}, 2, 2)
	b, _ := New([]float64{1, 2, 3, 4.0000001}, 2, 2)
	c, _ := New([]float64{1, 2, 3, 4}, 4)

	if !EqualApprox(a, b, 1e-6) {
		t.Error("EqualApprox should accept values within tolerance")
	}
	if EqualApprox(a, b, 1e-9) {
		t.Error("EqualApprox should reject values outside tolerance")
	}
	if EqualApprox(a, c, 1e-6) {
		t.Error("EqualApprox should reject mismatched shapes")
	}
}
