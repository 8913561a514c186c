package engine

import (
	"math"
	"sort"

	"redistrict/pkg/apperror"
	"redistrict/pkg/domain"
)

// Bridge соединяет две группы узлов синтетическими рёбрами: добавляются все
// межгрупповые пары с расстоянием не больше factor * минимального расстояния.
// Уже существующие рёбра пропускаются.
func Bridge(g *domain.Graph, from, to []string, factor float64) ([]domain.Edge, error) {
	if len(from) == 0 || len(to) == 0 {
		return nil, apperror.New(apperror.CodeInvalidInput, "bridge requires two non-empty node groups")
	}
	if factor < 1 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, apperror.NewWithField(apperror.CodeInvalidConfig, "bridge factor must be at least 1", "bridge_factor")
	}

	left, err := points(g, from)
	if err != nil {
		return nil, err
	}
	right, err := points(g, to)
	if err != nil {
		return nil, err
	}

	type pair struct {
		a, b string
		dist float64
	}

	pairs := make([]pair, 0, len(left)*len(right))
	minDist := math.Inf(1)
	for _, u := range left {
		for _, v := range right {
			if u.ID == v.ID {
				return nil, apperror.Newf(apperror.CodeInvalidInput, "geo unit %s is in both bridge groups", u.ID)
			}
			d := domain.Distance(u, v)
			pairs = append(pairs, pair{a: u.ID, b: v.ID, dist: d})
			if d < minDist {
				minDist = d
			}
		}
	}

	threshold := factor * minDist
	var added []domain.Edge
	for _, p := range pairs {
		if p.dist > threshold+domain.Epsilon || g.HasEdge(p.a, p.b) {
			continue
		}
		edge := &domain.Edge{A: p.a, B: p.b, Distance: p.dist, Synthetic: true}
		if err := g.AddEdge(edge); err != nil {
			return added, err
		}
		stored, _ := g.Edge(p.a, p.b)
		added = append(added, stored)
	}

	sort.Slice(added, func(i, j int) bool {
		if added[i].A != added[j].A {
			return added[i].A < added[j].A
		}
		return added[i].B < added[j].B
	})
	return added, nil
}

// BridgeDistrict соединяет две крупнейшие компоненты округа d
func BridgeDistrict(g *domain.Graph, d domain.District, factor float64) ([]domain.Edge, error) {
	comps := domain.DistrictComponents(g, d)
	if len(comps) < 2 {
		return nil, nil
	}
	return Bridge(g, comps[0], comps[1], factor)
}

// BridgeComponent присоединяет компоненту к её округу. Компонента могла быть
// найдена на позднем проходе, а граф к этому моменту откатан к исходным меткам,
// поэтому цель выбирается среди частей округа, не пересекающихся с компонентой.
// Если таких нет, компонента соединяется с ближайшими узлами остального графа.
func BridgeComponent(g *domain.Graph, d domain.District, component []string, factor float64) ([]domain.Edge, error) {
	if len(component) == 0 {
		return nil, apperror.New(apperror.CodeInvalidInput, "bridge requires a non-empty component")
	}
	inside := make(map[string]struct{}, len(component))
	for _, id := range component {
		inside[id] = struct{}{}
	}

	for _, comp := range domain.DistrictComponents(g, d) {
		if disjoint(comp, inside) {
			return Bridge(g, comp, component, factor)
		}
	}

	var rest []string
	for _, id := range g.NodeIDs() {
		if _, ok := inside[id]; ok {
			continue
		}
		if u, _ := g.Node(id); u.HasPoint {
			rest = append(rest, id)
		}
	}
	if len(rest) == 0 {
		return nil, apperror.Newf(apperror.CodeInvalidInput,
			"no geo units with points outside the isolated component of district %s", d)
	}
	return Bridge(g, rest, component, factor)
}

func disjoint(ids []string, set map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return false
		}
	}
	return true
}

// BridgeGraph соединяет две крупнейшие компоненты всего графа
func BridgeGraph(g *domain.Graph, factor float64) ([]domain.Edge, error) {
	comps, err := domain.Components(g, g.NodeIDs())
	if err != nil {
		return nil, err
	}
	if len(comps) < 2 {
		return nil, nil
	}
	return Bridge(g, comps[0], comps[1], factor)
}

// IsolatedComponent извлекает округ и компоненту из ошибки ISOLATED_COMPONENT
func IsolatedComponent(err error) (domain.District, []string, bool) {
	appErr, ok := apperror.As(err)
	if !ok || appErr.Code != apperror.CodeIsolatedComponent {
		return "", nil, false
	}
	d, ok1 := appErr.Details["district"].(domain.District)
	comp, ok2 := appErr.Details["component"].([]string)
	if !ok1 || !ok2 {
		return "", nil, false
	}
	return d, comp, true
}

func points(g *domain.Graph, ids []string) ([]domain.GeoUnit, error) {
	out := make([]domain.GeoUnit, 0, len(ids))
	for _, id := range ids {
		u, ok := g.Node(id)
		if !ok {
			return nil, apperror.Newf(apperror.CodeInvalidInput, "unknown geo unit %s", id).
				WithDetails("node_id", id)
		}
		if !u.HasPoint {
			return nil, apperror.Newf(apperror.CodeInvalidInput,
				"geo unit %s has no representative point for bridging", id).
				WithDetails("node_id", id)
		}
		out = append(out, u)
	}
	return out, nil
}
