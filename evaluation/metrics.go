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
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"
)

const (
	Hit          = "hit"
	Recall       = "recall"
	NDCG         = "ndcg"
	MAP          = "map"
	GiniIndex    = "gini_index"
	Entropy      = "entropy"
	AppearedItem = "appeared_item"
)

// MetricNames lists every metric in output order.
var MetricNames = []string{Hit, Recall, NDCG, MAP, GiniIndex, Entropy, AppearedItem}

// Metrics maps metric names to values.
type Metrics map[string]float64

// Accumulator aggregates ranking metrics of users at a single cutoff. Partial
// accumulators over disjoint users merge into the accumulator over their union.
type Accumulator struct {
	cutoff   int
	hit      float64
	recall   float64
	ndcg     float64
	ap       float64
	count    int
	exposure []int64
}

func NewAccumulator(cutoff, nItems int) *Accumulator {
	return &Accumulator{cutoff: cutoff, exposure: make([]int64, nItems)}
}

// Cutoff returns the length of recommendation lists.
func (a *Accumulator) Cutoff() int {
	return a.cutoff
}

// add records the recommendation list of a user. Users without relevant items
// only contribute exposure.
func (a *Accumulator) add(rankList []int32, targetSet *bitset.BitSet, targetSize int) {
	for _, i := range rankList {
		a.exposure[i]++
	}
	if targetSize == 0 {
		return
	}
	a.count++
	a.hit += hitRatio(targetSet, rankList)
	a.recall += recall(targetSet, targetSize, rankList)
	a.ndcg += ndcg(targetSet, targetSize, rankList, a.cutoff)
	a.ap += averagePrecision(targetSet, targetSize, rankList, a.cutoff)
}

// Merge adds the partial sums of other into a.
func (a *Accumulator) Merge(other *Accumulator) error {
	if a.cutoff != other.cutoff {
		return errors.Errorf("cannot merge accumulators with cutoffs %d and %d", a.cutoff, other.cutoff)
	}
	if len(a.exposure) != len(other.exposure) {
		return errors.Errorf("cannot merge accumulators over %d and %d items", len(a.exposure), len(other.exposure))
	}
	a.hit += other.hit
	a.recall += other.recall
	a.ndcg += other.ndcg
	a.ap += other.ap
	a.count += other.count
	for i, c := range other.exposure {
		a.exposure[i] += c
	}
	return nil
}

// CountEvaluated returns the number of users with at least one relevant item.
func (a *Accumulator) CountEvaluated() int {
	return a.count
}

// ExposureTotal returns the number of recommended (user, item) pairs.
func (a *Accumulator) ExposureTotal() int64 {
	var total int64
	for _, c := range a.exposure {
		total += c
	}
	return total
}

// Finalize computes metrics from the accumulated sums. It does not modify a.
func (a *Accumulator) Finalize() Metrics {
	metrics := Metrics{
		Hit:    0,
		Recall: 0,
		NDCG:   0,
		MAP:    0,
	}
	if a.count > 0 {
		n := float64(a.count)
		metrics[Hit] = a.hit / n
		metrics[Recall] = a.recall / n
		metrics[NDCG] = a.ndcg / n
		metrics[MAP] = a.ap / n
	}
	metrics[GiniIndex] = giniIndex(a.exposure)
	metrics[Entropy] = entropy(a.exposure)
	metrics[AppearedItem] = float64(appearedItem(a.exposure))
	return metrics
}

// hitRatio is 1 if any recommended item is relevant.
func hitRatio(targetSet *bitset.BitSet, rankList []int32) float64 {
	for _, i := range rankList {
		if targetSet.Test(uint(i)) {
			return 1
		}
	}
	return 0
}

// recall is the fraction of relevant items that have been recommended.
func recall(targetSet *bitset.BitSet, targetSize int, rankList []int32) float64 {
	hit := 0
	for _, i := range rankList {
		if targetSet.Test(uint(i)) {
			hit++
		}
	}
	return float64(hit) / float64(targetSize)
}

// ndcg means Normalized Discounted Cumulative Gain with binary relevance.
func ndcg(targetSet *bitset.BitSet, targetSize int, rankList []int32, cutoff int) float64 {
	// IDCG = \sum^{min(|REL|, k)}_{i=1} \frac {1} {\log_2(i+1)}
	idcg := 0.0
	for i := 0; i < targetSize && i < cutoff; i++ {
		idcg += 1.0 / math.Log2(float64(i)+2.0)
	}
	// DCG = \sum^{N}_{i=1} \frac {rel_i} {\log_2(i+1)}
	dcg := 0.0
	for i, item := range rankList {
		if targetSet.Test(uint(item)) {
			dcg += 1.0 / math.Log2(float64(i)+2.0)
		}
	}
	return dcg / idcg
}

// averagePrecision sums precision at each relevant position, normalized by min(|REL|, k).
func averagePrecision(targetSet *bitset.BitSet, targetSize int, rankList []int32, cutoff int) float64 {
	sumPrecision := 0.0
	hit := 0
	for i, item := range rankList {
		if targetSet.Test(uint(item)) {
			hit++
			sumPrecision += float64(hit) / float64(i+1)
		}
	}
	return sumPrecision / float64(min(targetSize, cutoff))
}

// giniIndex measures the inequality of exposure over items.
func giniIndex(exposure []int64) float64 {
	n := len(exposure)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(exposure)
	slices.Sort(sorted)
	var total int64
	for _, c := range sorted {
		total += c
	}
	if total == 0 {
		return 0
	}
	// G = \frac{\sum^n_{i=1} (2i - n - 1) c_i} {n \sum c}
	sum := 0.0
	for i, c := range sorted {
		sum += float64(2*(i+1)-n-1) * float64(c)
	}
	return sum / (float64(n) * float64(total))
}

// entropy is the Shannon entropy (in nats) of the exposure distribution.
func entropy(exposure []int64) float64 {
	var total int64
	for _, c := range exposure {
		total += c
	}
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range exposure {
		if c > 0 {
			p := float64(c) / float64(total)
			h -= p * math.Log(p)
		}
	}
	return h
}

func appearedItem(exposure []int64) int {
	count := 0
	for _, c := range exposure {
		if c > 0 {
			count++
		}
	}
	return count
}
