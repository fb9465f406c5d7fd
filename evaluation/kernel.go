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

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/rankeval/common/heap"
	"github.com/gorse-io/rankeval/common/parallel"
	"github.com/gorse-io/rankeval/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
)

// Kernel ranks eligible items of a block of users and accumulates metrics
// against the ground truth.
type Kernel struct {
	groundTruth *dataset.InteractionMatrix
	restriction *Restriction
	threadCount int
}

func NewKernel(groundTruth *dataset.InteractionMatrix, restriction *Restriction, threadCount int) *Kernel {
	return &Kernel{
		groundTruth: groundTruth,
		restriction: restriction,
		threadCount: max(threadCount, 1),
	}
}

// workerState is owned by a single worker goroutine.
type workerState struct {
	filter       *heap.TopKFilter[int32, float64]
	rankList     []int32
	targetSet    *bitset.BitSet
	accumulators []*Accumulator
}

// Compute ranks rows of scores, whose first row belongs to ground-truth user
// userStart, and returns one accumulator per cutoff in the order given.
func (k *Kernel) Compute(ctx context.Context, scores *mat.Dense, userStart int, cutoffs []int) ([]*Accumulator, error) {
	if len(cutoffs) == 0 {
		return nil, invalidConfig("no cutoff given")
	}
	for _, cutoff := range cutoffs {
		if cutoff <= 0 {
			return nil, invalidConfig("cutoff must be positive but got %d", cutoff)
		}
	}
	nUsers, nItems := k.groundTruth.Shape()
	rows, cols := scores.Dims()
	if cols != nItems {
		return nil, invalidInput("score block has %d columns but there are %d items", cols, nItems)
	}
	if userStart < 0 || userStart+rows > nUsers {
		return nil, invalidInput("score block rows [%d, %d) out of range [0, %d)", userStart, userStart+rows, nUsers)
	}

	maxCutoff := lo.Max(cutoffs)
	states := make([]*workerState, k.threadCount)
	for i := range states {
		states[i] = &workerState{
			filter:       heap.NewTopKFilter[int32, float64](maxCutoff),
			rankList:     make([]int32, 0, maxCutoff),
			targetSet:    bitset.New(uint(nItems)),
			accumulators: lo.Map(cutoffs, func(cutoff int, _ int) *Accumulator { return NewAccumulator(cutoff, nItems) }),
		}
	}
	err := parallel.Parallel(ctx, rows, k.threadCount, func(workerId, row int) error {
		k.rank(states[workerId], scores.RawRowView(row), userStart+row)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	// reduce
	result := states[0].accumulators
	for _, state := range states[1:] {
		for c, acc := range state.accumulators {
			if err = result[c].Merge(acc); err != nil {
				return nil, errors.Trace(err)
			}
		}
	}
	return result, nil
}

func (k *Kernel) rank(state *workerState, scores []float64, user int) {
	// select top items among eligible ones
	state.filter.Reset()
	if eligible := k.restriction.set(user); eligible != nil {
		for _, i := range eligible.items {
			state.filter.Push(i, scores[i])
		}
	} else {
		for i, score := range scores {
			state.filter.Push(int32(i), score)
		}
	}
	state.rankList = state.filter.PopAllValuesTo(state.rankList)

	// relevant items among eligible ones
	indices, data := k.groundTruth.Row(user)
	targetSize := 0
	for j, i := range indices {
		if data[j] != 0 && k.restriction.IsEligible(user, i) {
			state.targetSet.Set(uint(i))
			targetSize++
		}
	}
	for _, acc := range state.accumulators {
		acc.add(state.rankList[:min(acc.cutoff, len(state.rankList))], state.targetSet, targetSize)
	}
	for _, i := range indices {
		state.targetSet.Clear(uint(i))
	}
}
