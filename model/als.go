// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"context"
	"fmt"
	"time"

	"github.com/c-bata/goptuna"
	"github.com/gorse-io/rankeval/common/log"
	"github.com/gorse-io/rankeval/common/parallel"
	"github.com/gorse-io/rankeval/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// IALS is implicit alternating least squares solved by element-wise coordinate
// descent (eALS). Observed interactions have confidence 1 and unobserved ones
// have confidence Alpha.
type IALS struct {
	BaseModel
	// Model parameters
	UserFactor *mat.Dense // p_u
	ItemFactor *mat.Dense // q_i
	itemGram   *mat.SymDense
	// Scratch buffers of scoring workers
	coldFactors [][]float64
	predictions [][]float64
	residuals   [][]float64
	// Hyper parameters
	nFactors   int
	nEpochs    int
	reg        float64
	alpha      float64
	initMean   float64
	initStdDev float64
}

// NewIALS creates an eALS model.
func NewIALS(params Params) *IALS {
	m := new(IALS)
	m.SetParams(params)
	return m
}

// SetParams sets hyper-parameters for the IALS model.
func (m *IALS) SetParams(params Params) {
	m.BaseModel.SetParams(params)
	m.nFactors = m.Params.GetInt(NFactors, 16)
	m.nEpochs = m.Params.GetInt(NEpochs, 50)
	m.reg = m.Params.GetFloat64(Reg, 0.06)
	m.alpha = m.Params.GetFloat64(Alpha, 0.001)
	m.initMean = m.Params.GetFloat64(InitMean, 0)
	m.initStdDev = m.Params.GetFloat64(InitStdDev, 0.1)
}

func (m *IALS) SuggestParams(trial goptuna.Trial) Params {
	return Params{
		NFactors:   lo.Must(trial.SuggestInt(string(NFactors), 8, 64)),
		InitMean:   0,
		InitStdDev: lo.Must(trial.SuggestLogFloat(string(InitStdDev), 0.001, 0.1)),
		Reg:        lo.Must(trial.SuggestLogFloat(string(Reg), 0.001, 0.1)),
		Alpha:      lo.Must(trial.SuggestLogFloat(string(Alpha), 0.001, 0.1)),
	}
}

func (m *IALS) Clear() {
	m.BaseModel.Clear()
	m.UserFactor = nil
	m.ItemFactor = nil
	m.itemGram = nil
}

// Fit the IALS model. Its task complexity is O(nEpochs * (nnz * nFactors + (nUsers + nItems) * nFactors^2)).
func (m *IALS) Fit(ctx context.Context, trainSet *dataset.InteractionMatrix, config *FitConfig) error {
	config = config.LoadDefaultIfNil()
	log.Logger().Info("fit ials",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_interactions", trainSet.Nnz()),
		zap.Any("params", m.GetParams()))
	if trainSet.CountUsers() == 0 || trainSet.CountItems() == 0 || m.nFactors <= 0 {
		return errors.Errorf("cannot fit %d factors on a (%d, %d) matrix",
			m.nFactors, trainSet.CountUsers(), trainSet.CountItems())
	}
	m.Init(trainSet, config)
	itemSet := trainSet.Transpose()
	m.UserFactor = m.GetRandomGenerator().NormalMatrix(trainSet.CountUsers(), m.nFactors, m.initMean, m.initStdDev)
	m.ItemFactor = m.GetRandomGenerator().NormalMatrix(trainSet.CountItems(), m.nFactors, m.initMean, m.initStdDev)
	// Create temporary buffers
	bufferSize := max(trainSet.CountUsers(), trainSet.CountItems())
	m.coldFactors = make([][]float64, m.jobs)
	m.predictions = make([][]float64, m.jobs)
	m.residuals = make([][]float64, m.jobs)
	for i := 0; i < m.jobs; i++ {
		m.coldFactors[i] = make([]float64, m.nFactors)
		m.predictions[i] = make([]float64, bufferSize)
		m.residuals[i] = make([]float64, bufferSize)
	}

	verbose := max(config.Verbose, 1)
	for ep := 1; ep <= m.nEpochs; ep++ {
		fitStart := time.Now()
		// Update user factors
		// S^q <- \sum^N_{itemIndex=1} c_i q_i q_i^T
		s := gram(m.ItemFactor, itemSet)
		err := parallel.Parallel(ctx, trainSet.CountUsers(), m.jobs, func(workerId, userIndex int) error {
			items, _ := trainSet.Row(userIndex)
			m.update(m.UserFactor.RawRowView(userIndex), items, m.ItemFactor, s, m.predictions[workerId], m.residuals[workerId])
			return nil
		})
		if err != nil {
			return errors.Trace(err)
		}
		// Update item factors
		// S^p <- P^T P
		s = gram(m.UserFactor, trainSet)
		err = parallel.Parallel(ctx, trainSet.CountItems(), m.jobs, func(workerId, itemIndex int) error {
			users, _ := itemSet.Row(itemIndex)
			m.update(m.ItemFactor.RawRowView(itemIndex), users, m.UserFactor, s, m.predictions[workerId], m.residuals[workerId])
			return nil
		})
		if err != nil {
			return errors.Trace(err)
		}
		if ep%verbose == 0 || ep == m.nEpochs {
			log.Logger().Debug(fmt.Sprintf("fit ials %v/%v", ep, m.nEpochs),
				zap.Duration("fit_time", time.Since(fitStart)),
				zap.Float64("user_factor_norm", floats.Norm(m.UserFactor.RawMatrix().Data, 2)),
				zap.Float64("item_factor_norm", floats.Norm(m.ItemFactor.RawMatrix().Data, 2)))
		}
	}
	m.itemGram = gram(m.ItemFactor, itemSet)
	log.Logger().Info("fit ials complete", zap.Int("n_epochs", m.nEpochs))
	return nil
}

// gram returns \sum_i x_i x_i^T over rows of x having at least one interaction.
func gram(x *mat.Dense, interactions *dataset.InteractionMatrix) *mat.SymDense {
	_, k := x.Dims()
	s := mat.NewSymDense(k, nil)
	for i := 0; i < interactions.CountUsers(); i++ {
		if interactions.RowNnz(i) > 0 {
			s.SymRankOne(s, 1, mat.NewVecDense(k, x.RawRowView(i)))
		}
	}
	return s
}

// update optimizes factor p against fixed factors q of its observed entries.
func (m *IALS) update(p []float64, observed []int, q *mat.Dense, s *mat.SymDense, predictions, residuals []float64) {
	for j, i := range observed {
		predictions[j] = floats.Dot(p, q.RawRowView(i))
	}
	for f := 0; f < m.nFactors; f++ {
		// for i \in R_u do   \hat_{r}^f_{ui} <- \hat_{r}_{ui} - p_{uf]q_{if}
		for j, i := range observed {
			residuals[j] = predictions[j] - p[f]*q.At(i, f)
		}
		// p_{uf} <-
		a, b, c := 0.0, 0.0, 0.0
		for j, i := range observed {
			qif := q.At(i, f)
			a += (1 - (1-m.alpha)*residuals[j]) * qif
			c += (1 - m.alpha) * qif * qif
		}
		for k := 0; k < m.nFactors; k++ {
			if k != f {
				b += m.alpha * p[k] * s.At(k, f)
			}
		}
		p[f] = (a - b) / (c + m.alpha*s.At(f, f) + m.reg)
		// for i \in R_u do   \hat_{r}_{ui} <- \hat_{r}^f_{ui} + p_{uf]q_{if}
		for j, i := range observed {
			predictions[j] = residuals[j] + p[f]*q.At(i, f)
		}
	}
}

func (m *IALS) scoreFactor(p []float64, dst []float64) {
	nItems, _ := m.ItemFactor.Dims()
	mat.NewVecDense(nItems, dst).MulVec(m.ItemFactor, mat.NewVecDense(m.nFactors, p))
}

func (m *IALS) score(_, user int, _ []int, _ []float64, dst []float64) {
	m.scoreFactor(m.UserFactor.RawRowView(user), dst)
}

// scoreCold folds in a user by running the user update against fixed item factors.
func (m *IALS) scoreCold(worker, _ int, indices []int, _ []float64, dst []float64) {
	p := m.coldFactors[worker]
	for f := range p {
		p[f] = 0
	}
	for ep := 0; ep < m.nEpochs; ep++ {
		m.update(p, indices, m.ItemFactor, m.itemGram, m.predictions[worker], m.residuals[worker])
	}
	m.scoreFactor(p, dst)
}

func (m *IALS) ScoreRemoveSeen(userIndices []int) (mat.Matrix, error) {
	return m.scoreUsers(userIndices, m.score)
}

func (m *IALS) ScoreBlockRemoveSeen(userStart, userEnd int) (mat.Matrix, error) {
	return m.scoreUsers(lo.RangeFrom(userStart, userEnd-userStart), m.score)
}

func (m *IALS) ScoreColdUserRemoveSeen(input *dataset.InteractionMatrix) (mat.Matrix, error) {
	return m.scoreColdUsers(input, m.scoreCold)
}
