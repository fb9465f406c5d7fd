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

package dataset

import (
	"math"

	"github.com/gorse-io/rankeval/common/util"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// SplitRowwise moves floor(nnz(row) * testRatio) randomly chosen entries of
// every row into the test matrix and keeps the rest for training.
func SplitRowwise(x *InteractionMatrix, testRatio float64, seed int64) (train, test *InteractionMatrix, err error) {
	if testRatio < 0 || testRatio > 1 {
		return nil, nil, errors.Errorf("test ratio must be within [0, 1] but got %v", testRatio)
	}
	rng := util.NewRandomGenerator(seed)
	var trainUsers, trainItems, testUsers, testItems []int32
	var trainWeights, testWeights []float64
	for u := 0; u < x.CountUsers(); u++ {
		indices, data := x.Row(u)
		perm := rng.Perm(len(indices))
		nTest := int(math.Floor(float64(len(indices)) * testRatio))
		for j, p := range perm {
			if j < nTest {
				testUsers = append(testUsers, int32(u))
				testItems = append(testItems, int32(indices[p]))
				testWeights = append(testWeights, data[p])
			} else {
				trainUsers = append(trainUsers, int32(u))
				trainItems = append(trainItems, int32(indices[p]))
				trainWeights = append(trainWeights, data[p])
			}
		}
	}
	train, err = NewInteractionMatrix(x.CountUsers(), x.CountItems(), trainUsers, trainItems, trainWeights)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	test, err = NewInteractionMatrix(x.CountUsers(), x.CountItems(), testUsers, testItems, testWeights)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return train, test, nil
}

// UserSplit is a group of users. Learn holds the interactions a model may see,
// Predict holds the held-out interactions used as ground truth, and All is
// their union.
type UserSplit struct {
	Users   []int32
	Learn   *InteractionMatrix
	Predict *InteractionMatrix
	All     *InteractionMatrix
}

func (s *UserSplit) CountUsers() int {
	return len(s.Users)
}

// UserSplits partitions users into train, validation and test groups.
type UserSplits struct {
	Train      UserSplit
	Validation UserSplit
	Test       UserSplit
}

// SplitUsers shuffles users, assigns floor(n * valRatio) of them to the
// validation group and floor(n * testRatio) to the test group. Interactions of
// validation and test users are further split row-wise with heldOutRatio.
func SplitUsers(x *InteractionMatrix, valRatio, testRatio, heldOutRatio float64, seed int64) (*UserSplits, error) {
	if valRatio < 0 || testRatio < 0 || valRatio+testRatio > 1 {
		return nil, errors.Errorf("invalid validation ratio %v and test ratio %v", valRatio, testRatio)
	}
	if heldOutRatio < 0 || heldOutRatio > 1 {
		return nil, errors.Errorf("held-out ratio must be within [0, 1] but got %v", heldOutRatio)
	}
	rng := util.NewRandomGenerator(seed)
	n := x.CountUsers()
	perm := lo.Map(rng.Perm(n), func(u int, _ int) int32 { return int32(u) })
	nVal := int(math.Floor(float64(n) * valRatio))
	nTest := int(math.Floor(float64(n) * testRatio))
	nTrain := n - nVal - nTest

	splits := &UserSplits{}
	var err error
	if splits.Train, err = newUserSplit(x, perm[:nTrain], 0, seed); err != nil {
		return nil, errors.Trace(err)
	}
	if splits.Validation, err = newUserSplit(x, perm[nTrain:nTrain+nVal], heldOutRatio, seed+1); err != nil {
		return nil, errors.Trace(err)
	}
	if splits.Test, err = newUserSplit(x, perm[nTrain+nVal:], heldOutRatio, seed+2); err != nil {
		return nil, errors.Trace(err)
	}
	return splits, nil
}

func newUserSplit(x *InteractionMatrix, users []int32, heldOutRatio float64, seed int64) (UserSplit, error) {
	all := x.SelectRows(users)
	learn, predict, err := SplitRowwise(all, heldOutRatio, seed)
	if err != nil {
		return UserSplit{}, errors.Trace(err)
	}
	return UserSplit{Users: users, Learn: learn, Predict: predict, All: all}, nil
}

// ValidationOffset is the row of the first validation user in LearnMatrix.
func (s *UserSplits) ValidationOffset() int {
	return s.Train.CountUsers()
}

// TestOffset is the row of the first test user in LearnMatrix and RefitMatrix.
func (s *UserSplits) TestOffset() int {
	return s.Train.CountUsers() + s.Validation.CountUsers()
}

// LearnMatrix stacks train interactions with the learn parts of validation
// and test users. Models fitted on it are evaluated on validation users.
func (s *UserSplits) LearnMatrix() *InteractionMatrix {
	return lo.Must(VStack(s.Train.All, s.Validation.Learn, s.Test.Learn))
}

// RefitMatrix additionally includes held-out validation interactions. Models
// fitted on it are evaluated on test users.
func (s *UserSplits) RefitMatrix() *InteractionMatrix {
	return lo.Must(VStack(s.Train.All, s.Validation.All, s.Test.Learn))
}
