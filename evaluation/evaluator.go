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

package evaluation

import (
	"context"
	"fmt"

	"github.com/gorse-io/rankeval/common/log"
	"github.com/gorse-io/rankeval/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// TargetMetrics are the metrics that may be used as search objectives.
var TargetMetrics = []string{NDCG, Recall, Hit}

type Config struct {
	// Offset is the row of the first ground-truth user in the model's user index.
	Offset       int
	Cutoff       int
	TargetMetric string
	// At most one of the recommendable item inputs may be set.
	RecommendableItems         []int
	PerUserRecommendableItems  [][]int
	PerUserRecommendableMatrix *dataset.InteractionMatrix
	ThreadCount                int
	ChunkSize                  int
}

func NewConfig() *Config {
	return &Config{
		Cutoff:       10,
		TargetMetric: NDCG,
		ThreadCount:  1,
		ChunkSize:    1024,
	}
}

func (config *Config) SetOffset(offset int) *Config {
	config.Offset = offset
	return config
}

func (config *Config) SetCutoff(cutoff int) *Config {
	config.Cutoff = cutoff
	return config
}

func (config *Config) SetTargetMetric(metric string) *Config {
	config.TargetMetric = metric
	return config
}

func (config *Config) SetRecommendableItems(items []int) *Config {
	config.RecommendableItems = items
	return config
}

func (config *Config) SetPerUserRecommendableItems(items [][]int) *Config {
	config.PerUserRecommendableItems = items
	return config
}

func (config *Config) SetPerUserRecommendableMatrix(m *dataset.InteractionMatrix) *Config {
	config.PerUserRecommendableMatrix = m
	return config
}

func (config *Config) SetThreadCount(n int) *Config {
	config.ThreadCount = n
	return config
}

func (config *Config) SetChunkSize(n int) *Config {
	config.ChunkSize = n
	return config
}

func (config *Config) LoadDefaultIfNil() *Config {
	if config == nil {
		return NewConfig()
	}
	return config
}

func (config *Config) validate() error {
	if config.Offset < 0 {
		return invalidConfig("offset must be non-negative but got %d", config.Offset)
	}
	if config.Cutoff <= 0 {
		return invalidConfig("cutoff must be positive but got %d", config.Cutoff)
	}
	if config.ThreadCount <= 0 {
		return invalidConfig("thread count must be positive but got %d", config.ThreadCount)
	}
	if config.ChunkSize <= 0 {
		return invalidConfig("chunk size must be positive but got %d", config.ChunkSize)
	}
	if !lo.Contains(TargetMetrics, config.TargetMetric) {
		return invalidConfig("unknown target metric %q", config.TargetMetric)
	}
	return nil
}

// WarningHandler receives non-fatal warnings raised during evaluation.
type WarningHandler func(warning *LayoutWarning)

func logWarning(warning *LayoutWarning) {
	log.Logger().Warn("score block copied into row-major layout",
		zap.Int("rows", warning.Rows), zap.Int("cols", warning.Cols))
}

// scoreFunc returns scores of ground-truth users [start, end).
type scoreFunc func(start, end int) (mat.Matrix, error)

type evaluator struct {
	groundTruth    *dataset.InteractionMatrix
	config         Config
	kernel         *Kernel
	warningHandler WarningHandler
}

func newEvaluator(groundTruth *dataset.InteractionMatrix, config *Config) (*evaluator, error) {
	if groundTruth == nil {
		return nil, invalidInput("ground truth is nil")
	}
	config = config.LoadDefaultIfNil()
	if err := config.validate(); err != nil {
		return nil, err
	}
	nUsers, nItems := groundTruth.Shape()
	restriction, err := NewRestriction(nUsers, nItems,
		config.RecommendableItems, config.PerUserRecommendableItems, config.PerUserRecommendableMatrix)
	if err != nil {
		return nil, err
	}
	return &evaluator{
		groundTruth:    groundTruth,
		config:         *config,
		kernel:         NewKernel(groundTruth, restriction, config.ThreadCount),
		warningHandler: logWarning,
	}, nil
}

// SetWarningHandler replaces the handler of layout warnings. The default handler logs them.
func (e *evaluator) SetWarningHandler(handler WarningHandler) {
	e.warningHandler = handler
}

// Config returns a copy of the configuration in use.
func (e *evaluator) Config() Config {
	return e.config
}

// Restriction returns the normalized recommendable items.
func (e *evaluator) Restriction() *Restriction {
	return e.kernel.restriction
}

func (e *evaluator) evaluate(ctx context.Context, model Scorer, cutoffs []int, score scoreFunc) (map[string]float64, error) {
	if len(cutoffs) == 0 {
		return nil, invalidConfig("no cutoff given")
	}
	for _, cutoff := range cutoffs {
		if cutoff <= 0 {
			return nil, invalidConfig("cutoff must be positive but got %d", cutoff)
		}
	}
	nUsers, nItems := e.groundTruth.Shape()
	if model.CountItems() != nItems {
		return nil, contractViolation(nil, "model scores %d items but ground truth has %d", model.CountItems(), nItems)
	}

	accumulators := lo.Map(cutoffs, func(cutoff int, _ int) *Accumulator { return NewAccumulator(cutoff, nItems) })
	warned := false
	for start := 0; start < nUsers; start += e.config.ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		end := min(start+e.config.ChunkSize, nUsers)
		block, err := score(start, end)
		if err != nil {
			return nil, errors.Trace(err)
		}
		dense, err := e.normalize(block, end-start, nItems, &warned)
		if err != nil {
			return nil, errors.Trace(err)
		}
		partial, err := e.kernel.Compute(ctx, dense, start, cutoffs)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for c := range accumulators {
			if err = accumulators[c].Merge(partial[c]); err != nil {
				return nil, errors.Trace(err)
			}
		}
		log.Logger().Debug("evaluate users",
			zap.Int("start", start), zap.Int("end", end), zap.Int("n_users", nUsers))
	}

	scores := make(map[string]float64, len(cutoffs)*len(MetricNames))
	for _, acc := range accumulators {
		for name, value := range acc.Finalize() {
			scores[fmt.Sprintf("%s@%d", name, acc.cutoff)] = value
		}
	}
	return scores, nil
}

// normalize checks the shape of a score block and converts it to row-major storage.
func (e *evaluator) normalize(block mat.Matrix, rows, cols int, warned *bool) (*mat.Dense, error) {
	if block == nil {
		return nil, contractViolation(nil, "model returned no scores")
	}
	r, c := block.Dims()
	if r != rows || c != cols {
		return nil, contractViolation(nil, "expect score block of shape (%d, %d) but got (%d, %d)", rows, cols, r, c)
	}
	if dense, ok := block.(*mat.Dense); ok {
		return dense, nil
	}
	if !*warned {
		*warned = true
		if e.warningHandler != nil {
			e.warningHandler(&LayoutWarning{Rows: r, Cols: c})
		}
	}
	return mat.DenseCopyOf(block), nil
}

func (e *evaluator) single(scores map[string]float64) Metrics {
	metrics := make(Metrics, len(MetricNames))
	for _, name := range MetricNames {
		metrics[name] = scores[fmt.Sprintf("%s@%d", name, e.config.Cutoff)]
	}
	return metrics
}

// Evaluator evaluates models against held-out interactions of users
// [Offset, Offset + n_users) of the model.
type Evaluator struct {
	*evaluator
}

func NewEvaluator(groundTruth *dataset.InteractionMatrix, config *Config) (*Evaluator, error) {
	e, err := newEvaluator(groundTruth, config)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Evaluator{evaluator: e}, nil
}

// GetScores evaluates model at every cutoff. Keys of the result are "{metric}@{cutoff}".
func (e *Evaluator) GetScores(ctx context.Context, model Scorer, cutoffs []int) (map[string]float64, error) {
	offset := e.config.Offset
	blockScorer, useBlock := model.(BlockScorer)
	return e.evaluate(ctx, model, cutoffs, func(start, end int) (mat.Matrix, error) {
		if useBlock {
			block, err := blockScorer.ScoreBlockRemoveSeen(offset+start, offset+end)
			if err == nil {
				return block, nil
			}
			if !errors.Is(err, ErrNotImplemented) {
				return nil, contractViolation(err, "failed to score users [%d, %d)", offset+start, offset+end)
			}
			useBlock = false
		}
		userIndices := lo.RangeFrom(offset+start, end-start)
		block, err := model.ScoreRemoveSeen(userIndices)
		if err != nil {
			return nil, contractViolation(err, "failed to score users [%d, %d)", offset+start, offset+end)
		}
		return block, nil
	})
}

// GetScore evaluates model at the configured cutoff.
func (e *Evaluator) GetScore(ctx context.Context, model Scorer) (Metrics, error) {
	scores, err := e.GetScores(ctx, model, []int{e.config.Cutoff})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return e.single(scores), nil
}

// GetTargetScore returns the target metric at the configured cutoff.
func (e *Evaluator) GetTargetScore(ctx context.Context, model Scorer) (float64, error) {
	metrics, err := e.GetScore(ctx, model)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return metrics[e.config.TargetMetric], nil
}

// ColdEvaluator evaluates models on users unseen during training. Known
// interactions of these users are passed to the model at scoring time.
type ColdEvaluator struct {
	*evaluator
	input *dataset.InteractionMatrix
}

// NewColdEvaluator creates an evaluator whose i-th ground-truth user has known
// interactions in the i-th row of input. Config.Offset is ignored.
func NewColdEvaluator(input, groundTruth *dataset.InteractionMatrix, config *Config) (*ColdEvaluator, error) {
	if input == nil {
		return nil, invalidInput("input interactions are nil")
	}
	if groundTruth == nil {
		return nil, invalidInput("ground truth is nil")
	}
	config = config.LoadDefaultIfNil()
	inputRows, inputCols := input.Shape()
	nUsers, nItems := groundTruth.Shape()
	if inputRows != nUsers || inputCols != nItems {
		return nil, invalidInput("input interactions of shape (%d, %d) mismatch ground truth of shape (%d, %d)",
			inputRows, inputCols, nUsers, nItems)
	}
	coldConfig := *config
	coldConfig.Offset = 0
	e, err := newEvaluator(groundTruth, &coldConfig)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &ColdEvaluator{evaluator: e, input: input}, nil
}

// GetScores evaluates model at every cutoff. Keys of the result are "{metric}@{cutoff}".
func (e *ColdEvaluator) GetScores(ctx context.Context, model Scorer, cutoffs []int) (map[string]float64, error) {
	coldScorer, ok := model.(ColdUserScorer)
	if !ok {
		return nil, contractViolation(nil, "model %T cannot score cold users", model)
	}
	return e.evaluate(ctx, model, cutoffs, func(start, end int) (mat.Matrix, error) {
		block, err := coldScorer.ScoreColdUserRemoveSeen(e.input.SliceRows(start, end))
		if err != nil {
			return nil, contractViolation(err, "failed to score cold users [%d, %d)", start, end)
		}
		return block, nil
	})
}

// GetScore evaluates model at the configured cutoff.
func (e *ColdEvaluator) GetScore(ctx context.Context, model Scorer) (Metrics, error) {
	scores, err := e.GetScores(ctx, model, []int{e.config.Cutoff})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return e.single(scores), nil
}

// GetTargetScore returns the target metric at the configured cutoff.
func (e *ColdEvaluator) GetTargetScore(ctx context.Context, model Scorer) (float64, error) {
	metrics, err := e.GetScore(ctx, model)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return metrics[e.config.TargetMetric], nil
}
