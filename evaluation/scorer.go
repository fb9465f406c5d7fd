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
	"github.com/gorse-io/rankeval/dataset"
	"gonum.org/v1/gonum/mat"
)

// Scorer scores every item for a list of users. Scores of items the user has
// already interacted with are expected to be removed (set to -Inf).
type Scorer interface {
	// CountItems returns the number of items the scorer knows.
	CountItems() int
	// ScoreRemoveSeen returns a len(userIndices) × CountItems() score block.
	ScoreRemoveSeen(userIndices []int) (mat.Matrix, error)
}

// BlockScorer scores a contiguous range of users at once. It may return
// ErrNotImplemented to fall back to Scorer.ScoreRemoveSeen.
type BlockScorer interface {
	ScoreBlockRemoveSeen(userStart, userEnd int) (mat.Matrix, error)
}

// ColdUserScorer scores users unseen during training from their known interactions.
type ColdUserScorer interface {
	ScoreColdUserRemoveSeen(input *dataset.InteractionMatrix) (mat.Matrix, error)
}
