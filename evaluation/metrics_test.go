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
	"math"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
)

const evalEpsilon = 0.00001

func newTargetSet(items ...int32) (*bitset.BitSet, int) {
	s := bitset.New(32)
	for _, i := range items {
		s.Set(uint(i))
	}
	return s, len(items)
}

func TestNDCG(t *testing.T) {
	targetSet, targetSize := newTargetSet(1, 3, 5, 7)
	rankList := []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.InDelta(t, 0.6766372989, ndcg(targetSet, targetSize, rankList, 10), evalEpsilon)
	// ideal ranking
	assert.InDelta(t, 1, ndcg(targetSet, targetSize, []int32{7, 5, 3, 1}, 4), evalEpsilon)
	// IDCG only counts the first k positions
	assert.InDelta(t, 1, ndcg(targetSet, targetSize, []int32{1, 3}, 2), evalEpsilon)
}

func TestRecall(t *testing.T) {
	targetSet, targetSize := newTargetSet(1, 3, 15, 17, 19)
	rankList := []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.InDelta(t, 0.4, recall(targetSet, targetSize, rankList), evalEpsilon)
}

func TestAP(t *testing.T) {
	targetSet, targetSize := newTargetSet(1, 3, 7, 9)
	rankList := []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.InDelta(t, 0.44375, averagePrecision(targetSet, targetSize, rankList, 10), evalEpsilon)
	// normalized by min(|REL|, k)
	assert.InDelta(t, 0.25, averagePrecision(targetSet, targetSize, rankList[:2], 2), evalEpsilon)
}

func TestHR(t *testing.T) {
	rankList := []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	targetSet, _ := newTargetSet(3)
	assert.InDelta(t, 1, hitRatio(targetSet, rankList), evalEpsilon)
	targetSet, _ = newTargetSet(30)
	assert.InDelta(t, 0, hitRatio(targetSet, rankList), evalEpsilon)
}

func TestGiniIndex(t *testing.T) {
	assert.Zero(t, giniIndex(nil))
	assert.Zero(t, giniIndex([]int64{0, 0, 0}))
	assert.InDelta(t, 0, giniIndex([]int64{2, 2, 2, 2}), evalEpsilon)
	// a single item gets all exposure: (n - 1) / n
	assert.InDelta(t, 0.75, giniIndex([]int64{0, 5, 0, 0}), evalEpsilon)
	// sorted [1, 2, 3]: (-2*1 + 0*2 + 2*3) / (3 * 6)
	assert.InDelta(t, 4.0/18.0, giniIndex([]int64{3, 1, 2}), evalEpsilon)
}

func TestEntropy(t *testing.T) {
	assert.Zero(t, entropy([]int64{0, 0}))
	assert.InDelta(t, math.Log(4), entropy([]int64{1, 1, 1, 1}), evalEpsilon)
	assert.InDelta(t, 0, entropy([]int64{0, 7, 0}), evalEpsilon)
	p := []float64{1.0 / 4.0, 3.0 / 4.0}
	assert.InDelta(t, -p[0]*math.Log(p[0])-p[1]*math.Log(p[1]), entropy([]int64{1, 3}), evalEpsilon)
}

func TestAccumulator(t *testing.T) {
	a := NewAccumulator(3, 5)
	assert.Equal(t, 3, a.Cutoff())
	targetSet, targetSize := newTargetSet(0, 4)
	a.add([]int32{0, 1, 2}, targetSet, targetSize)
	// users without relevant items only add exposure
	empty, _ := newTargetSet()
	a.add([]int32{1, 2, 3}, empty, 0)
	assert.Equal(t, 1, a.CountEvaluated())
	assert.Equal(t, int64(6), a.ExposureTotal())

	metrics := a.Finalize()
	assert.InDelta(t, 1, metrics[Hit], evalEpsilon)
	assert.InDelta(t, 0.5, metrics[Recall], evalEpsilon)
	assert.InDelta(t, 1/(1+1/math.Log2(3)), metrics[NDCG], evalEpsilon)
	assert.InDelta(t, 0.5, metrics[MAP], evalEpsilon)
	assert.Equal(t, 4.0, metrics[AppearedItem])
	assert.InDelta(t, giniIndex([]int64{1, 2, 2, 1, 0}), metrics[GiniIndex], evalEpsilon)
	assert.InDelta(t, entropy([]int64{1, 2, 2, 1, 0}), metrics[Entropy], evalEpsilon)
	// finalize is repeatable
	assert.Equal(t, metrics, a.Finalize())
	assert.Len(t, metrics, len(MetricNames))
}

func TestAccumulatorEmpty(t *testing.T) {
	metrics := NewAccumulator(10, 3).Finalize()
	for _, name := range MetricNames {
		assert.Zero(t, metrics[name], name)
	}
}

func TestAccumulatorMerge(t *testing.T) {
	rankLists := [][]int32{{0, 1}, {2, 3}, {1, 4}, {0, 2}}
	targets := [][]int32{{1}, {}, {4, 0}, {3}}
	whole := NewAccumulator(2, 5)
	left, right := NewAccumulator(2, 5), NewAccumulator(2, 5)
	for u := range rankLists {
		targetSet, targetSize := newTargetSet(targets[u]...)
		whole.add(rankLists[u], targetSet, targetSize)
		if u%2 == 0 {
			left.add(rankLists[u], targetSet, targetSize)
		} else {
			right.add(rankLists[u], targetSet, targetSize)
		}
	}
	assert.NoError(t, right.Merge(left))
	expected, actual := whole.Finalize(), right.Finalize()
	for _, name := range MetricNames {
		assert.InDelta(t, expected[name], actual[name], 1e-12, name)
	}
	assert.Equal(t, whole.CountEvaluated(), right.CountEvaluated())

	assert.Error(t, whole.Merge(NewAccumulator(3, 5)))
	assert.Error(t, whole.Merge(NewAccumulator(2, 6)))
}
