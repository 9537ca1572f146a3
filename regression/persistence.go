package regression

import (
	"bytes"
	"encoding/gob"

	"gonum.org/v1/gonum/mat"

	"github.com/numanelahi/tensorreg/core/model"
	"github.com/numanelahi/tensorreg/core/tensor"
	"github.com/numanelahi/tensorreg/decomp"
	tensorregErrors "github.com/numanelahi/tensorreg/pkg/errors"
	"github.com/numanelahi/tensorreg/pkg/log"
)

// Gob snapshots: flat, exported mirrors of the estimators' state for
// model.SaveModel / model.LoadModel. The live structs keep gonum matrices
// and unexported fields, so serialization goes through these instead.

type matrixSnapshot struct {
	Rows, Cols int
	Data       []float64
}

func snapshotMatrix(m *mat.Dense) matrixSnapshot {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return matrixSnapshot{Rows: r, Cols: c, Data: data}
}

func (s matrixSnapshot) restore() *mat.Dense {
	return mat.NewDense(s.Rows, s.Cols, s.Data)
}

type configSnapshot struct {
	Rank    int
	Ranks   []int
	Tol     float64
	MaxIter int
	Reg     float64
	Seed    int64
	Verbose bool
}

func snapshotConfig(cfg *config) configSnapshot {
	return configSnapshot{
		Rank:    cfg.rank,
		Ranks:   append([]int(nil), cfg.ranks...),
		Tol:     cfg.tol,
		MaxIter: cfg.maxIter,
		Reg:     cfg.reg,
		Seed:    cfg.seed,
		Verbose: cfg.verbose,
	}
}

func (s configSnapshot) restore() config {
	return config{
		rank:    s.Rank,
		ranks:   s.Ranks,
		tol:     s.Tol,
		maxIter: s.MaxIter,
		reg:     s.Reg,
		seed:    s.Seed,
		verbose: s.Verbose,
	}
}

type kruskalSnapshot struct {
	Config configSnapshot

	Fitted      bool
	SampleShape []int
	NSamples    int
	Factors     []matrixSnapshot
	Weights     []float64
	LossHistory []float64
	NIter       int
	Converged   bool
	Termination int
}

// GobEncode implements gob.GobEncoder.
func (r *KruskalRegressor) GobEncode() ([]byte, error) {
	snap := kruskalSnapshot{
		Config:      snapshotConfig(&r.cfg),
		Fitted:      r.state.IsFitted(),
		LossHistory: r.lossHistory_,
		NIter:       r.nIter_,
		Converged:   r.converged_,
		Termination: int(r.termination_),
	}
	if snap.Fitted {
		snap.SampleShape, snap.NSamples = r.state.GetDimensions()
		snap.Weights = append([]float64(nil), r.decomposition.Weights...)
		for _, f := range r.decomposition.Factors {
			snap.Factors = append(snap.Factors, snapshotMatrix(f))
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, tensorregErrors.Wrap(err, "encoding KruskalRegressor")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (r *KruskalRegressor) GobDecode(data []byte) error {
	var snap kruskalSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return tensorregErrors.Wrap(err, "decoding KruskalRegressor")
	}

	r.cfg = snap.Config.restore()
	if r.state == nil {
		r.state = model.NewStateManager()
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("regression").With(
			log.ModelNameKey, "KruskalRegressor",
		)
	}
	r.reset()
	r.lossHistory_ = snap.LossHistory
	r.nIter_ = snap.NIter
	r.converged_ = snap.Converged
	r.termination_ = TerminationReason(snap.Termination)

	if !snap.Fitted {
		return nil
	}

	factors := make([]*mat.Dense, len(snap.Factors))
	for k, f := range snap.Factors {
		factors[k] = f.restore()
	}
	cp, err := decomp.NewCP(factors, snap.Weights)
	if err != nil {
		return err
	}
	r.decomposition = cp
	r.sampleShape = snap.SampleShape
	r.state.SetDimensions(snap.SampleShape, snap.NSamples)
	r.state.SetFitted()
	return nil
}

type tuckerSnapshot struct {
	Config configSnapshot

	Fitted      bool
	SampleShape []int
	NSamples    int
	Ranks       []int
	CoreShape   []int
	CoreData    []float64
	Factors     []matrixSnapshot
	LossHistory []float64
	NIter       int
	Converged   bool
	Termination int
}

// GobEncode implements gob.GobEncoder.
func (r *TuckerRegressor) GobEncode() ([]byte, error) {
	snap := tuckerSnapshot{
		Config:      snapshotConfig(&r.cfg),
		Fitted:      r.state.IsFitted(),
		LossHistory: r.lossHistory_,
		NIter:       r.nIter_,
		Converged:   r.converged_,
		Termination: int(r.termination_),
	}
	if snap.Fitted {
		snap.SampleShape, snap.NSamples = r.state.GetDimensions()
		snap.Ranks = append([]int(nil), r.ranks...)
		snap.CoreShape = r.decomposition.Core.Shape()
		snap.CoreData = r.decomposition.Core.RawData()
		for _, f := range r.decomposition.Factors {
			snap.Factors = append(snap.Factors, snapshotMatrix(f))
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, tensorregErrors.Wrap(err, "encoding TuckerRegressor")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (r *TuckerRegressor) GobDecode(data []byte) error {
	var snap tuckerSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return tensorregErrors.Wrap(err, "decoding TuckerRegressor")
	}

	r.cfg = snap.Config.restore()
	if r.state == nil {
		r.state = model.NewStateManager()
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("regression").With(
			log.ModelNameKey, "TuckerRegressor",
		)
	}
	r.reset()
	r.lossHistory_ = snap.LossHistory
	r.nIter_ = snap.NIter
	r.converged_ = snap.Converged
	r.termination_ = TerminationReason(snap.Termination)

	if !snap.Fitted {
		return nil
	}

	core, err := tensor.New(snap.CoreData, snap.CoreShape...)
	if err != nil {
		return err
	}
	factors := make([]*mat.Dense, len(snap.Factors))
	for k, f := range snap.Factors {
		factors[k] = f.restore()
	}
	tk, err := decomp.NewTucker(core, factors)
	if err != nil {
		return err
	}
	r.decomposition = tk
	r.sampleShape = snap.SampleShape
	r.ranks = snap.Ranks
	r.state.SetDimensions(snap.SampleShape, snap.NSamples)
	r.state.SetFitted()
	return nil
}
