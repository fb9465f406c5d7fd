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

	"github.com/c-bata/goptuna"
	"github.com/gorse-io/rankeval/common/parallel"
	"github.com/gorse-io/rankeval/common/util"
	"github.com/gorse-io/rankeval/dataset"
	"github.com/gorse-io/rankeval/evaluation"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// Model is the interface for all models. Any model in this
// package should implement it.
type Model interface {
	// SetParams sets hyper-parameters.
	SetParams(params Params)
	// GetParams returns hyper-parameters.
	GetParams() Params
	// SuggestParams suggests hyper-parameters for a search trial.
	SuggestParams(trial goptuna.Trial) Params
	// Clear model weights.
	Clear()
}

// Recommender is a model scoring items for users of its training matrix.
type Recommender interface {
	Model
	evaluation.Scorer
	evaluation.BlockScorer
	evaluation.ColdUserScorer
	// Fit a model with a training matrix.
	Fit(ctx context.Context, trainSet *dataset.InteractionMatrix, config *FitConfig) error
}

type FitConfig struct {
	Jobs    int
	Verbose int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// BaseModel must be included by every recommendation model. Hyper-parameters,
// the random generator and the training matrix are managed by BaseModel.
type BaseModel struct {
	Params    Params // Hyper-parameters
	rng       util.RandomGenerator
	randState int64
	trainSet  *dataset.InteractionMatrix
	jobs      int
}

// SetParams sets hyper-parameters for the BaseModel model.
func (model *BaseModel) SetParams(params Params) {
	model.Params = params
	model.randState = model.Params.GetInt64(RandomState, 0)
	model.rng = util.NewRandomGenerator(model.randState)
}

// GetParams returns all hyper-parameters.
func (model *BaseModel) GetParams() Params {
	return model.Params
}

func (model *BaseModel) GetRandomGenerator() util.RandomGenerator {
	return model.rng
}

// Init keeps the training matrix for seen item removal.
func (model *BaseModel) Init(trainSet *dataset.InteractionMatrix, config *FitConfig) {
	model.trainSet = trainSet
	model.jobs = max(config.Jobs, 1)
}

// Clear drops the training matrix.
func (model *BaseModel) Clear() {
	model.trainSet = nil
}

// CountItems returns the number of items of the training matrix.
func (model *BaseModel) CountItems() int {
	if model.trainSet == nil {
		return 0
	}
	return model.trainSet.CountItems()
}

// CountUsers returns the number of users of the training matrix.
func (model *BaseModel) CountUsers() int {
	if model.trainSet == nil {
		return 0
	}
	return model.trainSet.CountUsers()
}

// rowScorer writes scores of a user with known interactions into dst.
// worker identifies the calling goroutine for scratch buffers.
type rowScorer func(worker, user int, indices []int, data []float64, dst []float64)

// scoreUsers scores users of the training matrix and removes seen items.
func (model *BaseModel) scoreUsers(users []int, score rowScorer) (mat.Matrix, error) {
	if model.trainSet == nil {
		return nil, errors.New("model has not been fitted")
	}
	for _, u := range users {
		if u < 0 || u >= model.trainSet.CountUsers() {
			return nil, errors.Errorf("user %d out of range [0, %d)", u, model.trainSet.CountUsers())
		}
	}
	return model.scoreRows(len(users), func(worker, row int, dst []float64) {
		indices, data := model.trainSet.Row(users[row])
		score(worker, users[row], indices, data, dst)
		removeSeen(dst, indices)
	})
}

// scoreColdUsers scores users that are not in the training matrix from their known interactions.
func (model *BaseModel) scoreColdUsers(input *dataset.InteractionMatrix, score rowScorer) (mat.Matrix, error) {
	if model.trainSet == nil {
		return nil, errors.New("model has not been fitted")
	}
	if input.CountItems() != model.trainSet.CountItems() {
		return nil, errors.Errorf("input has %d items but model has %d", input.CountItems(), model.trainSet.CountItems())
	}
	return model.scoreRows(input.CountUsers(), func(worker, row int, dst []float64) {
		indices, data := input.Row(row)
		score(worker, -1, indices, data, dst)
		removeSeen(dst, indices)
	})
}

func (model *BaseModel) scoreRows(n int, score func(worker, row int, dst []float64)) (mat.Matrix, error) {
	if n == 0 || model.trainSet.CountItems() == 0 {
		return nil, errors.New("empty score block")
	}
	block := mat.NewDense(n, model.trainSet.CountItems(), nil)
	err := parallel.Parallel(context.Background(), n, model.jobs, func(worker, row int) error {
		score(worker, row, block.RawRowView(row))
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return block, nil
}

func removeSeen(scores []float64, seen []int) {
	for _, i := range seen {
		scores[i] = math.Inf(-1)
	}
}
