// Package over_sampling implements SMOTE class balancing.
package over_sampling

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/diabench/core/model"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"github.com/YuminosukeSato/diabench/pkg/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var _ model.Resampler = (*SMOTE)(nil)

// SMOTE oversamples every minority class up to the majority class count by
// interpolating between a sample and one of its k nearest same-class
// neighbours. Compatible with imbalanced-learn's SMOTE(sampling_strategy="auto").
type SMOTE struct {
	kNeighbors  int
	randomState int64
	logger      log.Logger
}

// SMOTEOption configures SMOTE.
type SMOTEOption func(*SMOTE)

// NewSMOTE creates a sampler with k_neighbors=5.
func NewSMOTE(opts ...SMOTEOption) *SMOTE {
	s := &SMOTE{
		kNeighbors: 5,
		logger:     log.GetLoggerWithName("SMOTE"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithKNeighbors sets the neighbourhood size.
func WithKNeighbors(k int) SMOTEOption {
	return func(s *SMOTE) { s.kNeighbors = k }
}

// WithRandomState seeds sample and neighbour selection.
func WithRandomState(seed int64) SMOTEOption {
	return func(s *SMOTE) { s.randomState = seed }
}

// WithLogger replaces the package logger.
func WithLogger(l log.Logger) SMOTEOption {
	return func(s *SMOTE) { s.logger = l }
}

// FitResample returns the original samples followed by the synthetic ones.
// Classes are balanced in ascending label order. The inputs are not modified.
func (s *SMOTE) FitResample(X, y mat.Matrix) (mat.Matrix, mat.Matrix, error) {
	nSamples, nFeatures, err := model.CheckXY("SMOTE.FitResample", X, y)
	if err != nil {
		return nil, nil, err
	}
	if s.kNeighbors < 1 {
		return nil, nil, errors.NewValidationError("k_neighbors", "must be >= 1", s.kNeighbors)
	}

	labels := model.LabelsOf(y)
	classes := model.UniqueClasses(labels)
	if len(classes) < 2 {
		return nil, nil, errors.NewClassCountError("SMOTE.FitResample", 2, len(classes),
			"SMOTE requires at least 2 classes")
	}

	members := make(map[int][]int, len(classes))
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	majority := 0
	for _, c := range classes {
		if len(members[c]) > majority {
			majority = len(members[c])
		}
	}

	rows := model.ToRows(X)
	rng := rand.New(rand.NewSource(s.randomState))

	var synthX [][]float64
	var synthY []int
	for _, c := range classes {
		idx := members[c]
		need := majority - len(idx)
		if need == 0 {
			continue
		}
		if len(idx) < s.kNeighbors+1 {
			return nil, nil, errors.NewValueError("SMOTE.FitResample",
				fmt.Sprintf("class %d has %d samples; k_neighbors=%d needs at least %d",
					c, len(idx), s.kNeighbors, s.kNeighbors+1))
		}

		nn := s.neighbours(rows, idx)
		for n := 0; n < need; n++ {
			// one draw over the flattened (sample, neighbour) grid
			pick := rng.Intn(len(idx) * s.kNeighbors)
			i, k := pick/s.kNeighbors, pick%s.kNeighbors
			base := rows[idx[i]]
			other := rows[nn[i][k]]
			gap := rng.Float64()

			sample := make([]float64, nFeatures)
			floats.SubTo(sample, other, base)
			floats.AddScaledTo(sample, base, gap, sample)
			synthX = append(synthX, sample)
			synthY = append(synthY, c)
		}
		s.logger.Debug("class oversampled",
			log.ClassesKey, c,
			log.SamplesKey, len(idx),
			log.SyntheticKey, need,
		)
	}

	total := nSamples + len(synthX)
	outX := mat.NewDense(total, nFeatures, nil)
	outY := mat.NewDense(total, 1, nil)
	for i, r := range rows {
		outX.SetRow(i, r)
		outY.Set(i, 0, float64(labels[i]))
	}
	for k, r := range synthX {
		outX.SetRow(nSamples+k, r)
		outY.Set(nSamples+k, 0, float64(synthY[k]))
	}

	s.logger.Info("resampled",
		log.SamplesKey, total,
		log.SyntheticKey, len(synthX),
	)
	return outX, outY, nil
}

// neighbours returns, for each member, the indices of its k nearest other
// members by euclidean distance; ties keep the lower index.
func (s *SMOTE) neighbours(rows [][]float64, idx []int) [][]int {
	out := make([][]int, len(idx))
	type cand struct {
		index int
		dist  float64
	}
	cands := make([]cand, 0, len(idx))
	for a, i := range idx {
		cands = cands[:0]
		for _, j := range idx {
			if j == i {
				continue
			}
			cands = append(cands, cand{index: j, dist: floats.Distance(rows[i], rows[j], 2)})
		}
		sort.SliceStable(cands, func(p, q int) bool { return cands[p].dist < cands[q].dist })
		out[a] = make([]int, s.kNeighbors)
		for k := 0; k < s.kNeighbors; k++ {
			out[a][k] = cands[k].index
		}
	}
	return out
}
