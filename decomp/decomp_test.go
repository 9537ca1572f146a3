package decomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/numanelahi/tensorreg/core/tensor"
)

func TestNewRandomCP(t *testing.T) {
	tests := []struct {
		name    string
		shape   []int
		rank    int
		wantErr bool
	}{
		{name: "matrix shape", shape: []int{4, 5}, rank: 2},
		{name: "order-3 shape", shape: []int{2, 3, 4}, rank: 3},
		{name: "rank equals smallest dim", shape: []int{2, 5}, rank: 2},
		{name: "zero rank", shape: []int{4, 5}, rank: 0, wantErr: true},
		{name: "empty shape", shape: nil, rank: 1, wantErr: true},
		{name: "non-positive dimension", shape: []int{4, 0}, rank: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp, err := NewRandomCP(tt.shape, tt.rank, NewRNG(1))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rank, cp.Rank())
			assert.Equal(t, tt.shape, cp.Shape())
			for k, f := range cp.Factors {
				r, c := f.Dims()
				assert.Equal(t, tt.shape[k], r)
				assert.Equal(t, tt.rank, c)
			}
		})
	}
}

func TestNewRandomCP_NilRNG(t *testing.T) {
	_, err := NewRandomCP([]int{3, 3}, 1, nil)
	require.Error(t, err)
}

func TestNewRNG_Deterministic(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.NormFloat64(), b.NormFloat64())
	}

	c := NewRNG(43)
	d := NewRNG(42)
	same := true
	for i := 0; i < 10; i++ {
		if c.NormFloat64() != d.NormFloat64() {
			same = false
		}
	}
	assert.False(t, same, "different seeds should produce different streams")
}

func TestCP_NumParameters(t *testing.T) {
	cp, err := NewRandomCP([]int{4, 5, 6}, 3, NewRNG(0))
	require.NoError(t, err)
	assert.Equal(t, (4+5+6)*3, cp.NumParameters())

	weighted, err := NewCP(cp.Factors, []float64{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, (4+5+6)*3+3, weighted.NumParameters())
}

func TestCP_InnerProductMatchesDenseContraction(t *testing.T) {
	rng := NewRNG(5)
	cp, err := NewRandomCP([]int{3, 4, 2}, 2, rng)
	require.NoError(t, err)

	x, err := tensor.Random(rng, 3, 4, 2)
	require.NoError(t, err)

	got, err := cp.InnerProduct(x)
	require.NoError(t, err)

	dense, err := cp.Reconstruct()
	require.NoError(t, err)
	want, err := tensor.Inner(x, dense)
	require.NoError(t, err)

	assert.InDelta(t, want, got, 1e-10)
}

func TestCP_InnerProduct_ShapeMismatch(t *testing.T) {
	cp, err := NewRandomCP([]int{3, 4}, 2, NewRNG(1))
	require.NoError(t, err)

	x, err := tensor.Random(NewRNG(2), 4, 3)
	require.NoError(t, err)

	_, err = cp.InnerProduct(x)
	require.Error(t, err)
}

func TestCP_Clone(t *testing.T) {
	cp, err := NewRandomCP([]int{2, 3}, 2, NewRNG(8))
	require.NoError(t, err)

	cl := cp.Clone()
	cl.Factors[0].Set(0, 0, 999)
	assert.NotEqual(t, 999.0, cp.Factors[0].At(0, 0), "Clone should not share factor storage")
}

func TestNewRandomTucker(t *testing.T) {
	tests := []struct {
		name    string
		shape   []int
		ranks   []int
		wantErr bool
	}{
		{name: "order-2", shape: []int{5, 6}, ranks: []int{2, 3}},
		{name: "order-3 full rank in one mode", shape: []int{2, 3, 4}, ranks: []int{2, 2, 2}},
		{name: "rank count mismatch", shape: []int{5, 6}, ranks: []int{2}, wantErr: true},
		{name: "rank above dimension", shape: []int{2, 3}, ranks: []int{3, 2}, wantErr: true},
		{name: "zero rank", shape: []int{2, 3}, ranks: []int{0, 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk, err := NewRandomTucker(tt.shape, tt.ranks, NewRNG(1))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ranks, tk.Ranks())
			assert.Equal(t, tt.shape, tk.Shape())
			assert.Equal(t, tt.ranks, tk.Core.Shape())
		})
	}
}

func TestTucker_NumParameters(t *testing.T) {
	tk, err := NewRandomTucker([]int{4, 5}, []int{2, 3}, NewRNG(0))
	require.NoError(t, err)
	assert.Equal(t, 2*3+4*2+5*3, tk.NumParameters())
}

func TestTucker_InnerProductMatchesDenseContraction(t *testing.T) {
	rng := NewRNG(13)
	tk, err := NewRandomTucker([]int{3, 4, 2}, []int{2, 2, 2}, rng)
	require.NoError(t, err)

	x, err := tensor.Random(rng, 3, 4, 2)
	require.NoError(t, err)

	got, err := tk.InnerProduct(x)
	require.NoError(t, err)

	dense, err := tk.Reconstruct()
	require.NoError(t, err)
	want, err := tensor.Inner(x, dense)
	require.NoError(t, err)

	assert.InDelta(t, want, got, 1e-10)
}

func TestProjectToCore(t *testing.T) {
	rng := NewRNG(21)
	tk, err := NewRandomTucker([]int{3, 4}, []int{2, 2}, rng)
	require.NoError(t, err)

	x, err := tensor.Random(rng, 3, 4)
	require.NoError(t, err)

	p, err := ProjectToCore(x, tk.Factors)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, p.Shape())

	// <X, G x_k A_k> must equal <projection of X, G>.
	viaProjection, err := tensor.Inner(p, tk.Core)
	require.NoError(t, err)
	direct, err := tk.InnerProduct(x)
	require.NoError(t, err)
	assert.InDelta(t, direct, viaProjection, 1e-10)
}

func TestTucker_Clone(t *testing.T) {
	tk, err := NewRandomTucker([]int{3, 3}, []int{2, 2}, NewRNG(4))
	require.NoError(t, err)

	cl := tk.Clone()
	cl.Core.Set(999, 0, 0)
	cl.Factors[0].Set(0, 0, 999)
	assert.NotEqual(t, 999.0, tk.Core.At(0, 0), "Clone should not share core storage")
	assert.NotEqual(t, 999.0, tk.Factors[0].At(0, 0), "Clone should not share factor storage")
}

func TestDecompositionInterface(t *testing.T) {
	var _ Decomposition = (*CP)(nil)
	var _ Decomposition = (*Tucker)(nil)

	cp, err := NewRandomCP([]int{2, 2}, 1, NewRNG(1))
	require.NoError(t, err)
	var d Decomposition = cp
	assert.Equal(t, []int{2, 2}, d.Shape())
}

func TestNewCP_Validation(t *testing.T) {
	a := mat.NewDense(2, 2, nil)
	b := mat.NewDense(3, 3, nil)

	_, err := NewCP([]*mat.Dense{a, b}, nil)
	require.Error(t, err, "mismatched factor column counts should fail")

	_, err = NewCP([]*mat.Dense{a, mat.NewDense(3, 2, nil)}, []float64{1})
	require.Error(t, err, "weights length must match the rank")
}
