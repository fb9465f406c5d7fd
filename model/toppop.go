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

	"github.com/c-bata/goptuna"
	"github.com/gorse-io/rankeval/common/log"
	"github.com/gorse-io/rankeval/dataset"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TopPop recommends the most popular items to everyone.
type TopPop struct {
	BaseModel
	popularity []float64
}

func NewTopPop(params Params) *TopPop {
	m := new(TopPop)
	m.SetParams(params)
	return m
}

func (m *TopPop) SuggestParams(_ goptuna.Trial) Params {
	return Params{}
}

func (m *TopPop) Clear() {
	m.BaseModel.Clear()
	m.popularity = nil
}

// Fit counts the total weight of each item.
func (m *TopPop) Fit(_ context.Context, trainSet *dataset.InteractionMatrix, config *FitConfig) error {
	config = config.LoadDefaultIfNil()
	m.Init(trainSet, config)
	m.popularity = trainSet.ItemPopularity()
	log.Logger().Info("fit top pop complete",
		zap.Int("n_items", trainSet.CountItems()),
		zap.Float64("total_weight", floats.Sum(m.popularity)))
	return nil
}

func (m *TopPop) score(_, _ int, _ []int, _ []float64, dst []float64) {
	copy(dst, m.popularity)
}

func (m *TopPop) ScoreRemoveSeen(userIndices []int) (mat.Matrix, error) {
	return m.scoreUsers(userIndices, m.score)
}

func (m *TopPop) ScoreBlockRemoveSeen(userStart, userEnd int) (mat.Matrix, error) {
	return m.scoreUsers(lo.RangeFrom(userStart, userEnd-userStart), m.score)
}

func (m *TopPop) ScoreColdUserRemoveSeen(input *dataset.InteractionMatrix) (mat.Matrix, error) {
	return m.scoreColdUsers(input, m.score)
}
