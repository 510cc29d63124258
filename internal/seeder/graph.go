package seeder

import (
	"fmt"
	"sort"

	"github.com/Lumos-Labs-HQ/formseed/internal/schema"
)

type KindInfo struct {
	Kind         schema.Kind
	Dependencies []schema.Kind
}

type DependencyGraph struct {
	kinds map[schema.Kind]*KindInfo
	order []schema.Kind
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		kinds: make(map[schema.Kind]*KindInfo),
	}
}

func (g *DependencyGraph) AddKind(kind schema.Kind, deps ...schema.Kind) {
	g.kinds[kind] = &KindInfo{Kind: kind, Dependencies: deps}
}

// BuildInsertionOrder returns every kind after the kinds it depends on.
func (g *DependencyGraph) BuildInsertionOrder() ([]schema.Kind, error) {
	visited := make(map[schema.Kind]bool)
	temp := make(map[schema.Kind]bool)
	var order []schema.Kind

	var visit func(schema.Kind) error
	visit = func(kind schema.Kind) error {
		if temp[kind] {
			return fmt.Errorf("circular dependency detected involving kind: %s", kind)
		}
		if visited[kind] {
			return nil
		}

		temp[kind] = true
		if info := g.kinds[kind]; info != nil {
			for _, dep := range info.Dependencies {
				if _, known := g.kinds[dep]; !known {
					return fmt.Errorf("kind %s depends on unregistered kind %s", kind, dep)
				}
				if dep != kind {
					if err := visit(dep); err != nil {
						return err
					}
				}
			}
		}

		temp[kind] = false
		visited[kind] = true
		order = append(order, kind)
		return nil
	}

	for _, kind := range g.sortedKinds() {
		if !visited[kind] {
			if err := visit(kind); err != nil {
				return nil, err
			}
		}
	}

	g.order = order
	return order, nil
}

// Tiers groups kinds by dependency depth. Every kind of a tier depends only
// on kinds of earlier tiers.
func (g *DependencyGraph) Tiers() ([][]schema.Kind, error) {
	order, err := g.BuildInsertionOrder()
	if err != nil {
		return nil, err
	}

	depth := make(map[schema.Kind]int, len(order))
	var tiers [][]schema.Kind
	for _, kind := range order {
		d := 0
		for _, dep := range g.kinds[kind].Dependencies {
			if dep != kind && depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[kind] = d
		for len(tiers) <= d {
			tiers = append(tiers, nil)
		}
		tiers[d] = append(tiers[d], kind)
	}
	return tiers, nil
}

func (g *DependencyGraph) GetOrder() []schema.Kind {
	return g.order
}

func (g *DependencyGraph) sortedKinds() []schema.Kind {
	kinds := make([]schema.Kind, 0, len(g.kinds))
	for kind := range g.kinds {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
