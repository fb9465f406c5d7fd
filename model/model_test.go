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
	"math"
	"testing"

	"github.com/gorse-io/rankeval/dataset"
	"github.com/gorse-io/rankeval/evaluation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// newTestTrainSet returns two clusters of users: users 0-3 and 8 interact
// with items 0-2, users 4-7 interact with items 3-5.
func newTestTrainSet(t *testing.T) *dataset.InteractionMatrix {
	m, err := dataset.NewInteractionMatrixFromRows(6, [][]int32{
		{0, 1},
		{0, 2},
		{1, 2},
		{0, 1, 2},
		{3, 4},
		{3, 5},
		{4, 5},
		{3, 4, 5},
		{0},
	})
	require.NoError(t, err)
	return m
}

func assertSeenRemoved(t *testing.T, trainSet *dataset.InteractionMatrix, users []int, scores mat.Matrix) {
	for row, u := range users {
		indices, _ := trainSet.Row(u)
		for _, i := range indices {
			assert.True(t, math.IsInf(scores.At(row, i), -1), "user %d item %d", u, i)
		}
	}
}

// checkRecommender checks the scoring contract shared by all recommenders.
func checkRecommender(t *testing.T, m Recommender, trainSet *dataset.InteractionMatrix) {
	assert.Equal(t, trainSet.CountItems(), m.CountItems())
	// score by indices
	users := []int{2, 3, 4}
	scores, err := m.ScoreRemoveSeen(users)
	assert.NoError(t, err)
	rows, cols := scores.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, trainSet.CountItems(), cols)
	assertSeenRemoved(t, trainSet, users, scores)
	// score by block
	block, err := m.ScoreBlockRemoveSeen(2, 5)
	assert.NoError(t, err)
	assert.True(t, mat.Equal(scores, block))
	// out of range
	_, err = m.ScoreRemoveSeen([]int{trainSet.CountUsers()})
	assert.Error(t, err)
	_, err = m.ScoreBlockRemoveSeen(-1, 2)
	assert.Error(t, err)
	// cold users
	input, err := dataset.NewInteractionMatrixFromRows(trainSet.CountItems(), [][]int32{{0, 1}, {3, 4}})
	assert.NoError(t, err)
	cold, err := m.ScoreColdUserRemoveSeen(input)
	assert.NoError(t, err)
	rows, cols = cold.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, trainSet.CountItems(), cols)
	assertSeenRemoved(t, input, []int{0, 1}, cold)
	wrongInput := dataset.NewEmptyInteractionMatrix(1, trainSet.CountItems()+1)
	_, err = m.ScoreColdUserRemoveSeen(wrongInput)
	assert.Error(t, err)
	// clear
	m.Clear()
	assert.Zero(t, m.CountItems())
	_, err = m.ScoreRemoveSeen(users)
	assert.Error(t, err)
}

func TestFitConfig(t *testing.T) {
	var config *FitConfig
	config = config.LoadDefaultIfNil()
	assert.Equal(t, 1, config.Jobs)
	assert.Equal(t, 10, config.Verbose)
	config.SetJobs(4).SetVerbose(1)
	assert.Equal(t, 4, config.Jobs)
	assert.Equal(t, 1, config.Verbose)
	assert.Same(t, config, config.LoadDefaultIfNil())
}

func TestTopPop(t *testing.T) {
	trainSet := newTestTrainSet(t)
	m := NewTopPop(nil)
	_, err := m.ScoreRemoveSeen([]int{0})
	assert.Error(t, err)
	err = m.Fit(context.Background(), trainSet, nil)
	assert.NoError(t, err)
	scores, err := m.ScoreRemoveSeen([]int{4})
	assert.NoError(t, err)
	assert.Equal(t, []float64{4, 3, 3, math.Inf(-1), math.Inf(-1), 3}, mat.Row(nil, 0, scores))
	checkRecommender(t, m, trainSet)
}

func TestItemKNN(t *testing.T) {
	trainSet := newTestTrainSet(t)
	m := NewItemKNN(nil)
	err := m.Fit(context.Background(), trainSet, NewFitConfig().SetJobs(2))
	assert.NoError(t, err)
	// user 2 knows items 1 and 2: sim(1, 0) = sim(2, 0) = 2 / (2 * sqrt(3))
	scores, err := m.ScoreRemoveSeen([]int{2})
	assert.NoError(t, err)
	assert.InDelta(t, 2/math.Sqrt(3), scores.At(0, 0), 1e-9)
	for i := 3; i < 6; i++ {
		assert.Zero(t, scores.At(0, i))
	}
	checkRecommender(t, m, trainSet)
}

func TestItemKNN_Weighting(t *testing.T) {
	trainSet := newTestTrainSet(t)
	for _, weighting := range []string{WeightingTFIDF, WeightingBM25} {
		m := NewItemKNN(Params{Weighting: weighting, Shrinkage: 1.0})
		err := m.Fit(context.Background(), trainSet, nil)
		assert.NoError(t, err)
		scores, err := m.ScoreRemoveSeen([]int{0})
		assert.NoError(t, err)
		assert.Greater(t, scores.At(0, 2), scores.At(0, 3), weighting)
	}
	m := NewItemKNN(Params{Weighting: "unknown"})
	err := m.Fit(context.Background(), trainSet, nil)
	assert.Error(t, err)
}

func TestItemKNN_NNeighbors(t *testing.T) {
	trainSet := newTestTrainSet(t)
	m := NewItemKNN(Params{NNeighbors: 1})
	err := m.Fit(context.Background(), trainSet, nil)
	assert.NoError(t, err)
	n := 0
	for _, neighbors := range m.neighbors {
		n += len(neighbors)
	}
	assert.Equal(t, trainSet.CountItems(), n)
}

func TestIALS(t *testing.T) {
	trainSet := newTestTrainSet(t)
	m := NewIALS(Params{
		NFactors:   4,
		NEpochs:    20,
		Reg:        0.01,
		Alpha:      0.01,
		InitStdDev: 0.1,
	})
	err := m.Fit(context.Background(), trainSet, NewFitConfig().SetJobs(2).SetVerbose(5))
	assert.NoError(t, err)
	rows, cols := m.UserFactor.Dims()
	assert.Equal(t, trainSet.CountUsers(), rows)
	assert.Equal(t, 4, cols)
	rows, cols = m.ItemFactor.Dims()
	assert.Equal(t, trainSet.CountItems(), rows)
	assert.Equal(t, 4, cols)
	// items of the same cluster rank first
	scores, err := m.ScoreRemoveSeen([]int{0, 4})
	assert.NoError(t, err)
	for i := 3; i < 6; i++ {
		assert.Greater(t, scores.At(0, 2), scores.At(0, i))
	}
	for i := 0; i < 3; i++ {
		assert.Greater(t, scores.At(1, 5), scores.At(1, i))
	}
	// folded-in users behave like trained users
	input, err := dataset.NewInteractionMatrixFromRows(trainSet.CountItems(), [][]int32{{0, 1}})
	assert.NoError(t, err)
	cold, err := m.ScoreColdUserRemoveSeen(input)
	assert.NoError(t, err)
	for i := 3; i < 6; i++ {
		assert.Greater(t, cold.At(0, 2), cold.At(0, i))
	}
	checkRecommender(t, m, trainSet)
}

func TestIALS_Empty(t *testing.T) {
	m := NewIALS(nil)
	err := m.Fit(context.Background(), dataset.NewEmptyInteractionMatrix(0, 3), nil)
	assert.Error(t, err)
}

func TestIALS_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewIALS(nil)
	err := m.Fit(ctx, newTestTrainSet(t), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecommender_Evaluate(t *testing.T) {
	// hold out item 2 of user 0 and item 5 of user 4
	trainSet := newTestTrainSet(t)
	groundTruth, err := dataset.NewInteractionMatrixFromRows(6, [][]int32{{2}, {}, {}, {}, {5}})
	assert.NoError(t, err)
	e, err := evaluation.NewEvaluator(groundTruth, evaluation.NewConfig().SetCutoff(1))
	assert.NoError(t, err)
	m := NewItemKNN(nil)
	err = m.Fit(context.Background(), trainSet, nil)
	assert.NoError(t, err)
	metrics, err := e.GetScore(context.Background(), m)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, metrics[evaluation.Hit])
	assert.Equal(t, 1.0, metrics[evaluation.Recall])
	assert.InDelta(t, 1.0, metrics[evaluation.NDCG], 1e-12)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel("ials", Params{NFactors: 8})
	assert.NoError(t, err)
	assert.IsType(t, &IALS{}, m)
	assert.Equal(t, 8, m.(*IALS).nFactors)
	assert.Equal(t, 50, m.(*IALS).nEpochs)
	_, err = NewModel("unknown", nil)
	assert.Error(t, err)
	for name := range BuiltInModels {
		m, err = NewModel(name, nil)
		assert.NoError(t, err)
		assert.NotNil(t, m)
	}
}
