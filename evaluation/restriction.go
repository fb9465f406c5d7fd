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
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/rankeval/dataset"
)

// eligibleSet is a sorted item list together with its membership mask.
type eligibleSet struct {
	items []int32
	mask  *bitset.BitSet
}

func newEligibleSet(nItems int, items []int32) *eligibleSet {
	s := &eligibleSet{items: items, mask: bitset.New(uint(nItems))}
	for _, i := range items {
		s.mask.Set(uint(i))
	}
	return s
}

// Restriction limits the items eligible for recommendation to each user.
// It is immutable once built and safe for concurrent reads.
type Restriction struct {
	nUsers  int
	nItems  int
	global  *eligibleSet
	perUser []*eligibleSet
}

// NoRestriction makes every item eligible for every user.
func NoRestriction(nUsers, nItems int) *Restriction {
	return &Restriction{nUsers: nUsers, nItems: nItems}
}

// NewGlobalRestriction makes the same items eligible for every user.
func NewGlobalRestriction(nUsers, nItems int, items []int) (*Restriction, error) {
	s, err := normalizeItems(nItems, items)
	if err != nil {
		return nil, err
	}
	return &Restriction{nUsers: nUsers, nItems: nItems, global: newEligibleSet(nItems, s)}, nil
}

// NewPerUserRestriction gives each user its own eligible items. The number of
// lists must equal the number of users.
func NewPerUserRestriction(nUsers, nItems int, items [][]int) (*Restriction, error) {
	if len(items) != nUsers {
		return nil, invalidInput("got %d per-user recommendable item lists for %d users", len(items), nUsers)
	}
	r := &Restriction{nUsers: nUsers, nItems: nItems, perUser: make([]*eligibleSet, nUsers)}
	for u, userItems := range items {
		s, err := normalizeItems(nItems, userItems)
		if err != nil {
			return nil, err
		}
		r.perUser[u] = newEligibleSet(nItems, s)
	}
	return r, nil
}

// NewSparseRestriction reads eligible items from the nonzero entries of each row.
func NewSparseRestriction(nUsers, nItems int, m *dataset.InteractionMatrix) (*Restriction, error) {
	rows, cols := m.Shape()
	if rows != nUsers {
		return nil, invalidInput("recommendable item matrix has %d rows but there are %d users", rows, nUsers)
	}
	if cols != nItems {
		return nil, invalidInput("recommendable item matrix has %d columns but there are %d items", cols, nItems)
	}
	r := &Restriction{nUsers: nUsers, nItems: nItems, perUser: make([]*eligibleSet, nUsers)}
	for u := 0; u < nUsers; u++ {
		indices, data := m.Row(u)
		items := make([]int32, 0, len(indices))
		for j, i := range indices {
			if data[j] != 0 {
				items = append(items, int32(i))
			}
		}
		r.perUser[u] = newEligibleSet(nItems, items)
	}
	return r, nil
}

// NewRestriction resolves at most one of the restriction inputs. Without any
// input every item is eligible.
func NewRestriction(nUsers, nItems int, global []int, perUser [][]int, perUserMatrix *dataset.InteractionMatrix) (*Restriction, error) {
	given := 0
	for _, ok := range []bool{global != nil, perUser != nil, perUserMatrix != nil} {
		if ok {
			given++
		}
	}
	switch {
	case given > 1:
		return nil, invalidInput("recommendable items can be given in only one form")
	case global != nil:
		return NewGlobalRestriction(nUsers, nItems, global)
	case perUser != nil:
		return NewPerUserRestriction(nUsers, nItems, perUser)
	case perUserMatrix != nil:
		return NewSparseRestriction(nUsers, nItems, perUserMatrix)
	default:
		return NoRestriction(nUsers, nItems), nil
	}
}

func normalizeItems(nItems int, items []int) ([]int32, error) {
	result := make([]int32, len(items))
	for j, i := range items {
		if i < 0 || i >= nItems {
			return nil, invalidInput("recommendable item %d out of range [0, %d)", i, nItems)
		}
		result[j] = int32(i)
	}
	sort.Slice(result, func(a, b int) bool { return result[a] < result[b] })
	for j := 1; j < len(result); j++ {
		if result[j] == result[j-1] {
			return nil, invalidInput("duplicated recommendable item %d", result[j])
		}
	}
	return result, nil
}

// IsRestricted reports whether any item is ineligible for some user.
func (r *Restriction) IsRestricted() bool {
	return r.global != nil || r.perUser != nil
}

func (r *Restriction) set(user int) *eligibleSet {
	if r.global != nil {
		return r.global
	}
	if r.perUser != nil {
		return r.perUser[user]
	}
	return nil
}

// IsEligible reports whether item may be recommended to user.
func (r *Restriction) IsEligible(user, item int) bool {
	if s := r.set(user); s != nil {
		return s.mask.Test(uint(item))
	}
	return item >= 0 && item < r.nItems
}

// CountEligible returns the number of items eligible for user.
func (r *Restriction) CountEligible(user int) int {
	if s := r.set(user); s != nil {
		return len(s.items)
	}
	return r.nItems
}

// Eligible returns the sorted items eligible for user, or nil if every item is.
// The returned slice must not be modified.
func (r *Restriction) Eligible(user int) []int32 {
	if s := r.set(user); s != nil {
		return s.items
	}
	return nil
}
