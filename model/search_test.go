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
	"testing"

	"github.com/c-bata/goptuna"
	"github.com/gorse-io/rankeval/dataset"
	"github.com/gorse-io/rankeval/evaluation"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// mockModelForSearch ranks the relevant item 0 by the sum of its hyper-parameters.
type mockModelForSearch struct {
	BaseModel
	failed bool
}

func (m *mockModelForSearch) SuggestParams(trial goptuna.Trial) Params {
	return Params{
		NFactors: lo.Must(trial.SuggestDiscreteFloat(string(NFactors), 1, 4, 1)),
		InitMean: lo.Must(trial.SuggestDiscreteFloat(string(InitMean), 1, 4, 1)),
	}
}

func (m *mockModelForSearch) Fit(_ context.Context, trainSet *dataset.InteractionMatrix, config *FitConfig) error {
	if m.failed {
		return errors.New("out of memory")
	}
	m.Init(trainSet, config.LoadDefaultIfNil())
	return nil
}

func (m *mockModelForSearch) ScoreRemoveSeen(userIndices []int) (mat.Matrix, error) {
	v := m.Params.GetFloat64(NFactors, 0) + m.Params.GetFloat64(InitMean, 0)
	block := mat.NewDense(len(userIndices), 5, nil)
	for i := range userIndices {
		block.SetRow(i, []float64{v, 2.5, 4.5, 6.5, 7.5})
	}
	return block, nil
}

func (m *mockModelForSearch) ScoreBlockRemoveSeen(_, _ int) (mat.Matrix, error) {
	return nil, errors.NotImplementedf("block scoring")
}

func (m *mockModelForSearch) ScoreColdUserRemoveSeen(_ *dataset.InteractionMatrix) (mat.Matrix, error) {
	return nil, errors.NotImplementedf("cold user scoring")
}

func newMockSearch(t *testing.T, failed bool) *ModelSearch {
	trainSet := dataset.NewEmptyInteractionMatrix(2, 5)
	groundTruth, err := dataset.NewInteractionMatrixFromRows(5, [][]int32{{0}, {0}})
	require.NoError(t, err)
	evaluator, err := evaluation.NewEvaluator(groundTruth, nil)
	require.NoError(t, err)
	return NewModelSearch(map[string]ModelCreator{
		"mock": func() Recommender { return &mockModelForSearch{failed: failed} },
	}, trainSet, evaluator, nil)
}

func TestTPE(t *testing.T) {
	search := newMockSearch(t, false)
	var called int
	search.SetCallback(func(trial int, result SearchResult) {
		called++
		assert.Equal(t, called, trial)
		assert.Equal(t, "mock", result.Type)
	})
	result, err := search.Optimize(context.Background(), 10)
	assert.NoError(t, err)
	assert.Equal(t, 10, called)
	assert.Len(t, search.Trials(), 10)
	assert.Equal(t, search.Result(), result)
	assert.Equal(t, "mock", result.Type)
	for _, trial := range search.Trials() {
		assert.LessOrEqual(t, trial.Score, result.Score)
		assert.Equal(t, trial.Score, trial.Metrics[evaluation.NDCG])
	}
	assert.Contains(t, result.Params, NFactors)
	assert.Contains(t, result.Params, InitMean)
}

func TestTPE_Failed(t *testing.T) {
	search := newMockSearch(t, true)
	_, err := search.Optimize(context.Background(), 3)
	assert.Error(t, err)
	assert.Empty(t, search.Trials())
}

func TestTPE_Cancel(t *testing.T) {
	search := newMockSearch(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := search.Optimize(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModelSearch_BuiltIn(t *testing.T) {
	trainSet := newTestTrainSet(t)
	groundTruth, err := dataset.NewInteractionMatrixFromRows(6, [][]int32{{2}, {}, {}, {}, {5}})
	require.NoError(t, err)
	evaluator, err := evaluation.NewEvaluator(groundTruth, evaluation.NewConfig().SetCutoff(3))
	require.NoError(t, err)
	search := NewModelSearch(BuiltInModels, trainSet, evaluator, nil)
	result, err := search.Optimize(context.Background(), 3)
	assert.NoError(t, err)
	assert.Len(t, search.Trials(), 3)
	assert.Contains(t, BuiltInModels, result.Type)
	assert.Equal(t, result.Score, result.Metrics[evaluation.NDCG])
}
