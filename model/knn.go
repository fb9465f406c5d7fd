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
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/c-bata/goptuna"
	"github.com/gorse-io/rankeval/common/heap"
	"github.com/gorse-io/rankeval/common/log"
	"github.com/gorse-io/rankeval/common/parallel"
	"github.com/gorse-io/rankeval/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ItemKNN scores items by their cosine similarities to items the user interacted with.
type ItemKNN struct {
	BaseModel
	// neighbors[j] holds (i, similarity) for every item i having j among its top neighbors
	neighbors [][]heap.Elem[int32, float64]
	// Hyper parameters
	nNeighbors int
	shrinkage  float64
	weighting  string
	bm25K1     float64
	bm25B      float64
}

func NewItemKNN(params Params) *ItemKNN {
	m := new(ItemKNN)
	m.SetParams(params)
	return m
}

// SetParams sets hyper-parameters for the ItemKNN model.
func (m *ItemKNN) SetParams(params Params) {
	m.BaseModel.SetParams(params)
	m.nNeighbors = m.Params.GetInt(NNeighbors, 100)
	m.shrinkage = m.Params.GetFloat64(Shrinkage, 0)
	m.weighting = m.Params.GetString(Weighting, WeightingNone)
	m.bm25K1 = m.Params.GetFloat64(BM25K1, 1.2)
	m.bm25B = m.Params.GetFloat64(BM25B, 0.75)
}

func (m *ItemKNN) SuggestParams(trial goptuna.Trial) Params {
	return Params{
		NNeighbors: lo.Must(trial.SuggestInt(string(NNeighbors), 5, 200)),
		Shrinkage:  lo.Must(trial.SuggestDiscreteFloat(string(Shrinkage), 0, 100, 10)),
		Weighting:  lo.Must(trial.SuggestCategorical(string(Weighting), []string{WeightingNone, WeightingTFIDF, WeightingBM25})),
	}
}

func (m *ItemKNN) Clear() {
	m.BaseModel.Clear()
	m.neighbors = nil
}

func (m *ItemKNN) weight(x *dataset.InteractionMatrix) (*dataset.InteractionMatrix, error) {
	switch m.weighting {
	case WeightingNone:
		return x, nil
	case WeightingTFIDF:
		return x.TFIDFWeight(true), nil
	case WeightingBM25:
		return x.BM25Weight(m.bm25K1, m.bm25B), nil
	default:
		return nil, errors.NotSupportedf("weighting %s", m.weighting)
	}
}

// Fit computes the top neighbors of every item.
func (m *ItemKNN) Fit(ctx context.Context, trainSet *dataset.InteractionMatrix, config *FitConfig) error {
	config = config.LoadDefaultIfNil()
	log.Logger().Info("fit item knn",
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Int("n_interactions", trainSet.Nnz()),
		zap.Any("params", m.GetParams()))
	start := time.Now()
	m.Init(trainSet, config)
	x, err := m.weight(trainSet)
	if err != nil {
		return errors.Trace(err)
	}
	xt := x.Transpose()
	nItems := x.CountItems()
	norms := make([]float64, nItems)
	err = parallel.For(ctx, nItems, m.jobs, func(i int) {
		_, data := xt.Row(i)
		norms[i] = floats.Norm(data, 2)
	})
	if err != nil {
		return errors.Trace(err)
	}

	// per worker buffers
	jobs := m.jobs
	dots := make([][]float64, jobs)
	touched := make([][]int32, jobs)
	visited := make([]*bitset.BitSet, jobs)
	filters := make([]*heap.TopKFilter[int32, float64], jobs)
	for w := 0; w < jobs; w++ {
		dots[w] = make([]float64, nItems)
		visited[w] = bitset.New(uint(nItems))
		filters[w] = heap.NewTopKFilter[int32, float64](m.nNeighbors)
	}
	topNeighbors := make([][]heap.Elem[int32, float64], nItems)
	err = parallel.Parallel(ctx, nItems, jobs, func(worker, i int) error {
		// co-occurrences with other items
		users, userWeights := xt.Row(i)
		for k, u := range users {
			items, itemWeights := x.Row(u)
			for l, j := range items {
				if !visited[worker].Test(uint(j)) {
					visited[worker].Set(uint(j))
					touched[worker] = append(touched[worker], int32(j))
				}
				dots[worker][j] += userWeights[k] * itemWeights[l]
			}
		}
		filters[worker].Reset()
		for _, j := range touched[worker] {
			if j != int32(i) {
				if denominator := norms[i]*norms[j] + m.shrinkage; denominator > 0 && dots[worker][j] != 0 {
					filters[worker].Push(j, dots[worker][j]/denominator)
				}
			}
			dots[worker][j] = 0
			visited[worker].Clear(uint(j))
		}
		touched[worker] = touched[worker][:0]
		topNeighbors[i] = filters[worker].PopAll()
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}

	// invert neighbor lists for scoring from known items
	m.neighbors = make([][]heap.Elem[int32, float64], nItems)
	for i, neighbors := range topNeighbors {
		for _, neighbor := range neighbors {
			m.neighbors[neighbor.Value] = append(m.neighbors[neighbor.Value], heap.Elem[int32, float64]{
				Value:  int32(i),
				Weight: neighbor.Weight,
			})
		}
	}
	log.Logger().Info("fit item knn complete", zap.Duration("fit_time", time.Since(start)))
	return nil
}

func (m *ItemKNN) score(_, _ int, indices []int, data []float64, dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
	for k, j := range indices {
		for _, neighbor := range m.neighbors[j] {
			dst[neighbor.Value] += data[k] * neighbor.Weight
		}
	}
}

func (m *ItemKNN) ScoreRemoveSeen(userIndices []int) (mat.Matrix, error) {
	return m.scoreUsers(userIndices, m.score)
}

func (m *ItemKNN) ScoreBlockRemoveSeen(userStart, userEnd int) (mat.Matrix, error) {
	return m.scoreUsers(lo.RangeFrom(userStart, userEnd-userStart), m.score)
}

func (m *ItemKNN) ScoreColdUserRemoveSeen(input *dataset.InteractionMatrix) (mat.Matrix, error) {
	return m.scoreColdUsers(input, m.score)
}
