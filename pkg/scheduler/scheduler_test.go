package scheduler

import (
	"testing"

	"github.com/cuemby/fleetscaler/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestDesiredCountsRespectsMin(t *testing.T) {
	s := GrowSmallestSatisfying{}
	types_ := map[string]*types.NodeType{
		"small": {Resources: types.ResourceVector{"cpu": 4}, MinWorkers: 2, MaxWorkers: 10},
	}
	got := s.DesiredCounts(nil, types_, map[string]int{}, 0, 10)
	assert.Equal(t, 2, got["small"])
}

func TestDesiredCountsGrowsSmallestSatisfyingType(t *testing.T) {
	s := GrowSmallestSatisfying{}
	nodeTypes := map[string]*types.NodeType{
		"small": {Resources: types.ResourceVector{"cpu": 4}, MaxWorkers: 10},
		"big":   {Resources: types.ResourceVector{"cpu": 16}, MaxWorkers: 10},
	}
	demand := Demand{"cpu": 4}
	got := s.DesiredCounts(demand, nodeTypes, map[string]int{}, 0, 20)
	assert.Equal(t, 1, got["small"])
	assert.Equal(t, 0, got["big"])
}

func TestDesiredCountsStopsAtMax(t *testing.T) {
	s := GrowSmallestSatisfying{}
	nodeTypes := map[string]*types.NodeType{
		"only": {Resources: types.ResourceVector{"cpu": 1}, MaxWorkers: 1},
	}
	demand := Demand{"cpu": 10}
	got := s.DesiredCounts(demand, nodeTypes, map[string]int{}, 0, 10)
	assert.Equal(t, 1, got["only"], "must not exceed max_workers even with unmet demand")
}

func TestDesiredCountsNoDemandKeepsCurrent(t *testing.T) {
	s := GrowSmallestSatisfying{}
	nodeTypes := map[string]*types.NodeType{
		"w": {Resources: types.ResourceVector{"cpu": 4}, MinWorkers: 1, MaxWorkers: 5},
	}
	got := s.DesiredCounts(nil, nodeTypes, map[string]int{"w": 3}, 0, 5)
	assert.Equal(t, 3, got["w"])
}

func TestDesiredCountsClampsSumToGlobalMax(t *testing.T) {
	s := GrowSmallestSatisfying{}
	nodeTypes := map[string]*types.NodeType{
		"small": {Resources: types.ResourceVector{"cpu": 4}, MaxWorkers: 4},
		"big":   {Resources: types.ResourceVector{"cpu": 16}, MaxWorkers: 4},
	}
	demand := Demand{"cpu": 1000}

	got := s.DesiredCounts(demand, nodeTypes, map[string]int{}, 0, 5)
	total := got["small"] + got["big"]
	assert.LessOrEqual(t, total, 5, "summed desired count must never exceed global max_workers even though each type alone could reach it")
}

func TestDesiredCountsClampsExistingCountsOverGlobalMax(t *testing.T) {
	s := GrowSmallestSatisfying{}
	nodeTypes := map[string]*types.NodeType{
		"small": {Resources: types.ResourceVector{"cpu": 4}, MaxWorkers: 10},
		"big":   {Resources: types.ResourceVector{"cpu": 16}, MaxWorkers: 10},
	}
	current := map[string]int{"small": 3, "big": 3}

	got := s.DesiredCounts(nil, nodeTypes, current, 0, 4)
	assert.Equal(t, 4, got["small"]+got["big"])
	assert.Equal(t, 1, got["big"], "the larger type is trimmed down first, smaller type kept at its prior count")
}

func TestDesiredCountsGrowsTowardGlobalMin(t *testing.T) {
	s := GrowSmallestSatisfying{}
	nodeTypes := map[string]*types.NodeType{
		"small": {Resources: types.ResourceVector{"cpu": 4}, MaxWorkers: 10},
		"big":   {Resources: types.ResourceVector{"cpu": 16}, MaxWorkers: 10},
	}

	got := s.DesiredCounts(nil, nodeTypes, map[string]int{}, 3, 10)
	assert.Equal(t, 3, got["small"]+got["big"], "no demand still must grow to the global floor")
}
