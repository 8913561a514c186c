package domain

import (
	"sort"

	"redistrict/pkg/apperror"
)

// Components находит компоненты связности подграфа, индуцированного subset.
// Узлы внутри компоненты отсортированы, компоненты упорядочены по убыванию
// размера, при равенстве по наименьшему ID.
func Components(g *Graph, subset []string) ([][]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	mask := make(map[string]struct{}, len(subset))
	for _, id := range subset {
		if _, ok := g.nodes[id]; !ok {
			return nil, apperror.Newf(apperror.CodeInvalidInput,
				"node subset references unknown geo unit %s", id).
				WithDetails("node_id", id)
		}
		mask[id] = struct{}{}
	}

	return g.componentsLocked(mask), nil
}

// DistrictComponents возвращает компоненты округа d
func DistrictComponents(g *Graph, d District) [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.componentsLocked(g.byLabel[d])
}

// IsContiguous проверяет, что округ образует одну компоненту
func IsContiguous(g *Graph, d District) bool {
	return len(DistrictComponents(g, d)) <= 1
}

// IsConnected проверяет связность всего графа
func IsConnected(g *Graph) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	all := make(map[string]struct{}, len(g.nodes))
	for id := range g.nodes {
		all[id] = struct{}{}
	}
	return len(g.componentsLocked(all)) <= 1
}

// FragmentedDistrict округ, распавшийся на несколько компонент
type FragmentedDistrict struct {
	District       District `json:"district"`
	ComponentSizes []int    `json:"component_sizes"`
}

// FragmentationProfile возвращает все разорванные округа в естественном порядке меток
func FragmentationProfile(g *Graph) []FragmentedDistrict {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var profile []FragmentedDistrict
	for _, d := range g.districtsLocked() {
		comps := g.componentsLocked(g.byLabel[d])
		if len(comps) <= 1 {
			continue
		}
		profile = append(profile, FragmentedDistrict{District: d, ComponentSizes: ComponentSizes(comps)})
	}
	return profile
}

// ComponentSizes возвращает размеры компонент
func ComponentSizes(comps [][]string) []int {
	sizes := make([]int, len(comps))
	for i, c := range comps {
		sizes[i] = len(c)
	}
	return sizes
}

// ExternalNeighbors возвращает отсортированных соседей компоненты вне её самой
func ExternalNeighbors(g *Graph, component []string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	inside := make(map[string]struct{}, len(component))
	for _, id := range component {
		inside[id] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, id := range component {
		for _, v := range g.adjacency[id] {
			if _, ok := inside[v]; ok {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// componentsLocked обходит в ширину подграф, ограниченный mask.
// Вызывающий держит g.mu.
func (g *Graph) componentsLocked(mask map[string]struct{}) [][]string {
	if len(mask) == 0 {
		return nil
	}

	starts := make([]string, 0, len(mask))
	for id := range mask {
		starts = append(starts, id)
	}
	sort.Strings(starts)

	visited := make(map[string]bool, len(mask))
	var comps [][]string

	for _, start := range starts {
		if visited[start] {
			continue
		}

		queue := []string{start}
		visited[start] = true
		var comp []string

		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			comp = append(comp, u)

			for _, v := range g.adjacency[u] {
				if visited[v] {
					continue
				}
				if _, ok := mask[v]; !ok {
					continue
				}
				visited[v] = true
				queue = append(queue, v)
			}
		}

		sort.Strings(comp)
		comps = append(comps, comp)
	}

	sort.SliceStable(comps, func(i, j int) bool {
		if len(comps[i]) != len(comps[j]) {
			return len(comps[i]) > len(comps[j])
		}
		return comps[i][0] < comps[j][0]
	})

	return comps
}
