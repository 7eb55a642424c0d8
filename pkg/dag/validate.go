// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package dag

import (
	"container/heap"
	"strings"
)

// checkSpec validates the fields of one spec against the ids already known.
func checkSpec(spec StepSpec, known map[string]int) error {
	if strings.TrimSpace(spec.ID) == "" {
		return invalidf("step id must not be empty")
	}
	if _, dup := known[spec.ID]; dup {
		return invalidf("duplicate step id %q", spec.ID)
	}
	if spec.Action == nil {
		return invalidf("step %q has no action", spec.ID)
	}
	return nil
}

// checkDeps validates the dependency list of spec. lookup reports whether an
// id names a step.
func checkDeps(spec StepSpec, lookup func(id string) bool) error {
	seen := make(map[string]struct{}, len(spec.DependsOn))
	for _, dep := range spec.DependsOn {
		if dep == spec.ID {
			return invalidf("step %q depends on itself", spec.ID)
		}
		if _, dup := seen[dep]; dup {
			return invalidf("step %q lists dependency %q twice", spec.ID, dep)
		}
		seen[dep] = struct{}{}
		if !lookup(dep) {
			return invalidf("step %q depends on unknown step %q", spec.ID, dep)
		}
	}
	return nil
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder runs Kahn's algorithm over node indices. Among steps that are
// ready at the same time the one declared first comes first. The result is
// shorter than the node count when the edges contain a cycle.
func topoOrder(outgoing [][]int, indeg []int) []int {
	remaining := make([]int, len(indeg))
	copy(remaining, indeg)

	ready := &intMinHeap{}
	for i, d := range remaining {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(remaining))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range outgoing[n] {
			remaining[m]--
			if remaining[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle returns one cycle as a closed path of ids in dependency order,
// for example [a b c a] when b depends on a, c on b and a on c. The witness
// is stable for a given declaration order.
func findCycle(ids []string, outgoing [][]int) []string {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(ids))
	parent := make([]int, len(ids))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range outgoing[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// back edge u -> v closes v ... u -> v
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range ids {
		if color[i] == white && dfs(i) {
			break
		}
	}
	if len(cycle) == 0 {
		return nil
	}

	out := make([]string, len(cycle))
	for i := range cycle {
		out[i] = ids[cycle[len(cycle)-1-i]]
	}
	return out
}
