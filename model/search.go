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
	"sort"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/rankeval/common/log"
	"github.com/gorse-io/rankeval/dataset"
	"github.com/gorse-io/rankeval/evaluation"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type ModelCreator func() Recommender

// BuiltInModels creates every built-in recommender with default hyper-parameters.
var BuiltInModels = map[string]ModelCreator{
	"toppop":  func() Recommender { return NewTopPop(nil) },
	"itemknn": func() Recommender { return NewItemKNN(nil) },
	"ials":    func() Recommender { return NewIALS(nil) },
}

// NewModel creates a built-in recommender by name.
func NewModel(name string, params Params) (Recommender, error) {
	creator, exist := BuiltInModels[name]
	if !exist {
		return nil, errors.NotFoundf("model %s", name)
	}
	m := creator()
	m.SetParams(m.GetParams().Overwrite(params))
	return m, nil
}

// SearchResult is the outcome of a search trial.
type SearchResult struct {
	Type    string
	Params  Params
	Score   float64
	Metrics evaluation.Metrics
}

// ModelSearch searches model types and hyper-parameters maximizing the target
// metric of a validation evaluator.
type ModelSearch struct {
	modelCreators map[string]ModelCreator
	modelTypes    []string
	trainSet      *dataset.InteractionMatrix
	evaluator     *evaluation.Evaluator
	config        *FitConfig
	ctx           context.Context
	callback      func(trial int, result SearchResult)
	result        SearchResult
	trials        []SearchResult
	lastErr       error
}

func NewModelSearch(models map[string]ModelCreator, trainSet *dataset.InteractionMatrix, evaluator *evaluation.Evaluator, config *FitConfig) *ModelSearch {
	modelTypes := lo.Keys(models)
	sort.Strings(modelTypes)
	return &ModelSearch{
		modelCreators: models,
		modelTypes:    modelTypes,
		trainSet:      trainSet,
		evaluator:     evaluator,
		config:        config.LoadDefaultIfNil(),
		ctx:           context.Background(),
	}
}

// SetCallback sets a function called after every trial.
func (ms *ModelSearch) SetCallback(callback func(trial int, result SearchResult)) {
	ms.callback = callback
}

// Objective fits a model suggested by trial and returns its validation score.
func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	score, err := ms.objective(trial)
	if err != nil {
		ms.lastErr = err
		log.Logger().Error("search trial failed", zap.Error(err))
	}
	return score, err
}

func (ms *ModelSearch) objective(trial goptuna.Trial) (float64, error) {
	if len(ms.modelCreators) == 0 {
		return 0, errors.New("no model to search")
	}
	modelType, err := trial.SuggestCategorical("Model", ms.modelTypes)
	if err != nil {
		return 0, errors.Trace(err)
	}
	m := ms.modelCreators[modelType]()
	m.SetParams(m.GetParams().Overwrite(m.SuggestParams(trial)))
	if err = m.Fit(ms.ctx, ms.trainSet, ms.config); err != nil {
		return 0, errors.Trace(err)
	}
	metrics, err := ms.evaluator.GetScore(ms.ctx, m)
	if err != nil {
		return 0, errors.Trace(err)
	}
	score := metrics[ms.evaluator.Config().TargetMetric]
	result := SearchResult{
		Type:    modelType,
		Params:  m.GetParams().Copy(),
		Score:   score,
		Metrics: metrics,
	}
	ms.trials = append(ms.trials, result)
	if len(ms.trials) == 1 || score > ms.result.Score {
		ms.result = result
	}
	log.Logger().Info("search trial complete",
		zap.Int("trial", len(ms.trials)),
		zap.String("model", modelType),
		zap.Any("params", result.Params),
		zap.Float64(ms.evaluator.Config().TargetMetric, score))
	if ms.callback != nil {
		ms.callback(len(ms.trials), result)
	}
	return score, nil
}

// Optimize runs nTrials trials with the TPE sampler and returns the best result.
func (ms *ModelSearch) Optimize(ctx context.Context, nTrials int) (SearchResult, error) {
	ms.ctx = ctx
	defer func() { ms.ctx = context.Background() }()
	study, err := goptuna.CreateStudy("rankeval",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMaximize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return SearchResult{}, errors.Trace(err)
	}
	for i := 0; i < nTrials; i++ {
		if err = ctx.Err(); err != nil {
			return SearchResult{}, errors.Trace(err)
		}
		trials := len(ms.trials)
		if err = study.Optimize(ms.Objective, 1); err != nil {
			return SearchResult{}, errors.Trace(err)
		}
		if len(ms.trials) == trials {
			return SearchResult{}, errors.Annotatef(ms.lastErr, "search trial %d failed", i+1)
		}
	}
	return ms.result, nil
}

// Result returns the best trial so far.
func (ms *ModelSearch) Result() SearchResult {
	return ms.result
}

// Trials returns results of all completed trials.
func (ms *ModelSearch) Trials() []SearchResult {
	return ms.trials
}
