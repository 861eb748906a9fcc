// Copyright 2026 The Giftswap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package group

import (
	"sort"
	"time"
)

// maxDrawSteps bounds the backtracking search.
const maxDrawSteps = 1_000_000

// ShuffleFunc permutes n elements by calling swap, like rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// Draw assigns every member exactly one receiver such that nobody draws
// themselves, every member receives exactly once, and no exclusion is violated.
func Draw(groupID string, members []*Member, exclusions []*Exclusion, shuffle ShuffleFunc, now time.Time) ([]Assignment, error) {
	n := len(members)
	if n < 2 {
		return nil, ErrNotEnoughMembers
	}

	index := make(map[string]int, n)
	for i, m := range members {
		index[m.ID] = i
	}
	blocked := make([][]bool, n)
	for i := range blocked {
		blocked[i] = make([]bool, n)
		blocked[i][i] = true
	}
	for _, e := range exclusions {
		g, gok := index[e.GiverID]
		r, rok := index[e.ReceiverID]
		if gok && rok {
			blocked[g][r] = true
		}
	}

	// candidates[i] are the receivers giver i may draw, in random order.
	candidates := make([][]int, n)
	for g := 0; g < n; g++ {
		for r := 0; r < n; r++ {
			if !blocked[g][r] {
				candidates[g] = append(candidates[g], r)
			}
		}
		if len(candidates[g]) == 0 {
			return nil, ErrDrawImpossible
		}
		c := candidates[g]
		shuffle(len(c), func(i, j int) { c[i], c[j] = c[j], c[i] })
	}

	// Most constrained givers first.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(candidates[order[a]]) < len(candidates[order[b]])
	})

	receiverOf := make([]int, n)
	taken := make([]bool, n)
	steps := 0

	var solve func(pos int) bool
	solve = func(pos int) bool {
		if pos == n {
			return true
		}
		steps++
		if steps > maxDrawSteps {
			return false
		}
		g := order[pos]
		for _, r := range candidates[g] {
			if taken[r] {
				continue
			}
			taken[r] = true
			receiverOf[g] = r
			if solve(pos + 1) {
				return true
			}
			taken[r] = false
		}
		return false
	}

	if !solve(0) {
		return nil, ErrDrawImpossible
	}

	out := make([]Assignment, 0, n)
	for g, r := range receiverOf {
		out = append(out, Assignment{
			GroupID:    groupID,
			GiverID:    members[g].ID,
			ReceiverID: members[r].ID,
			DrawnAt:    now,
		})
	}
	return out, nil
}
