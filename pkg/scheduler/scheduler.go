// Package scheduler computes, for each node type, how many workers the
// scaler should try to run this tick. The source system never pins down
// the exact demand function that maps queued resource requests to a
// target count, so this package exposes it as a pluggable Strategy
// rather than baking one choice into the scaler.
package scheduler

import (
	"sort"

	"github.com/cuemby/fleetscaler/pkg/types"
)

// Demand is the aggregate resource request the scaler is trying to
// satisfy this tick, summed across whatever out-of-band signal feeds it
// (queued job requests, pending task resource asks, etc).
type Demand types.ResourceVector

// Strategy computes desired worker counts per node type. Implementations
// must be pure functions of their inputs: the scaler calls Strategy
// once per tick with the current demand and the cluster's configured
// node types, and uses the result as is, so every returned count must
// already lie within its type's MinWorkers/MaxWorkers.
// globalMin/globalMax are the cluster-wide worker bounds
// (ClusterConfig.MinWorkers/MaxWorkers): the sum of every returned count
// must never exceed globalMax, and implementations should grow toward
// globalMin even absent demand.
type Strategy interface {
	DesiredCounts(demand Demand, nodeTypes map[string]*types.NodeType, currentCounts map[string]int, globalMin, globalMax int) map[string]int
}

// GrowSmallestSatisfying is the default Strategy. It starts from the
// current counts clamped to each type's min/max; then, while unmet
// demand remains, it adds one node of the smallest type (by total
// resource capacity) that is below its max and provides any still-unmet
// resource, and subtracts that type's resources from the demand. It does
// not compare how many nodes each type would need, and does not
// bin-pack across types. The cluster-wide globalMin/globalMax bound is
// enforced after per-type min/max: growth never pushes the summed total
// past globalMax, and a summed total short of globalMin is grown further
// by the same smallest-first order once demand-driven growth is done.
type GrowSmallestSatisfying struct{}

func (GrowSmallestSatisfying) DesiredCounts(demand Demand, nodeTypes map[string]*types.NodeType, currentCounts map[string]int, globalMin, globalMax int) map[string]int {
	desired := make(map[string]int, len(nodeTypes))
	for name, nt := range nodeTypes {
		desired[name] = currentCounts[name]
		if desired[name] < nt.MinWorkers {
			desired[name] = nt.MinWorkers
		}
		if desired[name] > nt.MaxWorkers {
			desired[name] = nt.MaxWorkers
		}
	}
	names := sortedBySize(nodeTypes)
	clampToGlobalMax(desired, nodeTypes, names, globalMax)

	remaining := types.ResourceVector(demand)
	if len(remaining) != 0 {
		for !satisfied(remaining) {
			if sumOf(desired) >= globalMax {
				break // global cap reached; further demand goes unmet this tick
			}
			grew := false
			for _, name := range names {
				nt := nodeTypes[name]
				if desired[name] >= nt.MaxWorkers {
					continue
				}
				if !anyOverlap(nt.Resources, remaining) {
					continue
				}
				desired[name]++
				remaining = subtract(remaining, nt.Resources)
				grew = true
				break
			}
			if !grew {
				break // no type can make further progress; stop rather than loop forever
			}
		}
	}

	// Grow toward the global floor, smallest type first, even without
	// outstanding demand: a cluster with no load still keeps at least
	// global_min_workers workers up subject to each type's own max.
	for sumOf(desired) < globalMin {
		grew := false
		for _, name := range names {
			nt := nodeTypes[name]
			if desired[name] >= nt.MaxWorkers {
				continue
			}
			desired[name]++
			grew = true
			if sumOf(desired) >= globalMin {
				break
			}
		}
		if !grew {
			break // every type is already at its own max; can't reach globalMin
		}
	}

	return desired
}

// clampToGlobalMax trims desired, largest type first, until its sum no
// longer exceeds globalMax. A type is never trimmed below its own
// MinWorkers floor; if the sum of every type's floor already exceeds
// globalMax, the result still exceeds globalMax (a contradictory config,
// not something a scheduling pass alone can resolve).
func clampToGlobalMax(desired map[string]int, nodeTypes map[string]*types.NodeType, namesSmallestFirst []string, globalMax int) {
	if globalMax <= 0 {
		return
	}
	for i := len(namesSmallestFirst) - 1; i >= 0 && sumOf(desired) > globalMax; i-- {
		name := namesSmallestFirst[i]
		floor := nodeTypes[name].MinWorkers
		for desired[name] > floor && sumOf(desired) > globalMax {
			desired[name]--
		}
	}
}

func sumOf(counts map[string]int) int {
	var total int
	for _, v := range counts {
		total += v
	}
	return total
}

// sortedBySize orders node type names by ascending total resource
// capacity, so ties in "can satisfy the remaining demand" favor the
// smallest type.
func sortedBySize(nodeTypes map[string]*types.NodeType) []string {
	names := make([]string, 0, len(nodeTypes))
	for name := range nodeTypes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return total(nodeTypes[names[i]].Resources) < total(nodeTypes[names[j]].Resources)
	})
	return names
}

func total(r types.ResourceVector) int64 {
	var sum int64
	for _, v := range r {
		sum += v
	}
	return sum
}

func satisfied(remaining types.ResourceVector) bool {
	for _, v := range remaining {
		if v > 0 {
			return false
		}
	}
	return true
}

func anyOverlap(resources, remaining types.ResourceVector) bool {
	for k := range remaining {
		if resources[k] > 0 {
			return true
		}
	}
	return false
}

func subtract(remaining, resources types.ResourceVector) types.ResourceVector {
	out := make(types.ResourceVector, len(remaining))
	for k, v := range remaining {
		left := v - resources[k]
		if left < 0 {
			left = 0
		}
		out[k] = left
	}
	return out
}
