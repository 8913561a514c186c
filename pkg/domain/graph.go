package domain

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"redistrict/pkg/apperror"
)

// GeoUnit представляет узел графа смежности (блок, участок, тракт)
type GeoUnit struct {
	ID         string
	Population float64
	District   District
	County     string
	Area       float64
	Perimeter  float64
	X          float64
	Y          float64
	HasPoint   bool // X, Y заданы; используется только при построении мостов
	Attrs      map[string]string
}

// Clone создаёт глубокую копию узла
func (u *GeoUnit) Clone() *GeoUnit {
	clone := *u
	if u.Attrs != nil {
		clone.Attrs = make(map[string]string, len(u.Attrs))
		for k, v := range u.Attrs {
			clone.Attrs[k] = v
		}
	}
	return &clone
}

// EdgeKey неупорядоченная пара узлов в каноническом порядке A < B
type EdgeKey struct {
	A string
	B string
}

// NewEdgeKey возвращает канонический ключ ребра
func NewEdgeKey(u, v string) EdgeKey {
	if v < u {
		u, v = v, u
	}
	return EdgeKey{A: u, B: v}
}

// String возвращает строковое представление ключа ребра
func (k EdgeKey) String() string {
	return fmt.Sprintf("%s-%s", k.A, k.B)
}

// Edge представляет ребро смежности
type Edge struct {
	A               string
	B               string
	SharedPerimeter float64
	Distance        float64
	Synthetic       bool // мост, добавленный поверх исходной смежности
}

// Key возвращает ключ ребра
func (e *Edge) Key() EdgeKey {
	return NewEdgeKey(e.A, e.B)
}

// Weight возвращает вес ребра
func (e *Edge) Weight() float64 {
	if e.Synthetic {
		return e.Distance
	}
	return e.SharedPerimeter
}

// Other возвращает противоположный конец ребра
func (e *Edge) Other(id string) string {
	if e.A == id {
		return e.B
	}
	return e.A
}

// Neighbor сосед узла с весом ребра
type Neighbor struct {
	ID     string
	Weight float64
}

// Graph неориентированный граф смежности с метками округов.
// Метка меняется только через SetDistrict, который поддерживает индекс меток.
type Graph struct {
	Name string

	nodes map[string]*GeoUnit
	edges map[EdgeKey]*Edge

	adjacency map[string][]string               // отсортированные соседи
	byLabel   map[District]map[string]struct{} // метка -> узлы

	mu sync.RWMutex
}

// NewGraph создаёт новый пустой граф
func NewGraph() *Graph {
	return &Graph{
		nodes:     make(map[string]*GeoUnit),
		edges:     make(map[EdgeKey]*Edge),
		adjacency: make(map[string][]string),
		byLabel:   make(map[District]map[string]struct{}),
	}
}

// AddNode добавляет узел в граф
func (g *Graph) AddNode(unit *GeoUnit) error {
	if unit == nil {
		return apperror.New(apperror.CodeNilInput, "geo unit is nil")
	}
	if unit.ID == "" {
		return apperror.NewWithField(apperror.CodeInvalidInput, "geo unit id is empty", "id")
	}
	if unit.Population < 0 || math.IsNaN(unit.Population) || math.IsInf(unit.Population, 0) {
		return apperror.Newf(apperror.CodeNegativePopulation,
			"geo unit %s has invalid population %v", unit.ID, unit.Population).
			WithDetails("node_id", unit.ID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[unit.ID]; ok {
		return apperror.Newf(apperror.CodeDuplicateNode, "geo unit %s already exists", unit.ID).
			WithDetails("node_id", unit.ID)
	}

	stored := unit.Clone()
	g.nodes[stored.ID] = stored
	g.indexLabel(stored.ID, stored.District)
	return nil
}

// AddEdge добавляет ребро в граф
func (g *Graph) AddEdge(edge *Edge) error {
	if edge == nil {
		return apperror.New(apperror.CodeNilInput, "edge is nil")
	}
	if edge.A == edge.B {
		return apperror.Newf(apperror.CodeSelfLoop, "self-loop at %s", edge.A).
			WithDetails("node_id", edge.A)
	}
	if edge.SharedPerimeter < 0 || edge.Distance < 0 ||
		math.IsNaN(edge.SharedPerimeter) || math.IsNaN(edge.Distance) {
		return apperror.Newf(apperror.CodeNegativeWeight, "edge %s has negative weight", edge.Key())
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := edge.Key()
	for _, id := range []string{key.A, key.B} {
		if _, ok := g.nodes[id]; !ok {
			return apperror.Newf(apperror.CodeDanglingEdge,
				"edge %s references unknown geo unit %s", key, id).
				WithDetails("node_id", id)
		}
	}
	if _, ok := g.edges[key]; ok {
		return apperror.Newf(apperror.CodeDuplicateEdge, "edge %s already exists", key)
	}

	stored := *edge
	stored.A, stored.B = key.A, key.B
	g.edges[key] = &stored

	g.adjacency[key.A] = insertSorted(g.adjacency[key.A], key.B)
	g.adjacency[key.B] = insertSorted(g.adjacency[key.B], key.A)
	return nil
}

// HasEdge проверяет наличие ребра между двумя узлами
func (g *Graph) HasEdge(u, v string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.edges[NewEdgeKey(u, v)]
	return ok
}

// Edge возвращает копию ребра между двумя узлами
func (g *Graph) Edge(u, v string) (Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.edges[NewEdgeKey(u, v)]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// Node возвращает копию узла по ID
func (g *Graph) Node(id string) (GeoUnit, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	u, ok := g.nodes[id]
	if !ok {
		return GeoUnit{}, false
	}
	return *u.Clone(), true
}

// NodeIDs возвращает идентификаторы всех узлов по возрастанию
func (g *Graph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Neighbors возвращает отсортированных соседей узла
func (g *Graph) Neighbors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	adj := g.adjacency[id]
	out := make([]string, len(adj))
	copy(out, adj)
	return out
}

// Adjacent возвращает соседей узла вместе с весами рёбер
func (g *Graph) Adjacent(id string) []Neighbor {
	g.mu.RLock()
	defer g.mu.RUnlock()

	adj := g.adjacency[id]
	out := make([]Neighbor, 0, len(adj))
	for _, v := range adj {
		out = append(out, Neighbor{ID: v, Weight: g.edges[NewEdgeKey(id, v)].Weight()})
	}
	return out
}

// Degree возвращает степень узла
func (g *Graph) Degree(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.adjacency[id])
}

// District возвращает текущую метку узла
func (g *Graph) District(id string) (District, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	u, ok := g.nodes[id]
	if !ok {
		return "", false
	}
	return u.District, true
}

// Population возвращает население узла
func (g *Graph) Population(id string) (float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	u, ok := g.nodes[id]
	if !ok {
		return 0, false
	}
	return u.Population, true
}

// SetDistrict меняет метку узла и возвращает предыдущую
func (g *Graph) SetDistrict(id string, d District) (District, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	u, ok := g.nodes[id]
	if !ok {
		return "", apperror.Newf(apperror.CodeInvalidInput, "unknown geo unit %s", id).
			WithDetails("node_id", id)
	}

	prev := u.District
	if prev == d {
		return prev, nil
	}

	g.unindexLabel(id, prev)
	u.District = d
	g.indexLabel(id, d)
	return prev, nil
}

// Districts возвращает присутствующие метки в естественном порядке
func (g *Graph) Districts() []District {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.districtsLocked()
}

func (g *Graph) districtsLocked() []District {
	labels := make([]District, 0, len(g.byLabel))
	for d := range g.byLabel {
		labels = append(labels, d)
	}
	SortDistricts(labels)
	return labels
}

// DistrictCount возвращает количество присутствующих меток
func (g *Graph) DistrictCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.byLabel)
}

// Members возвращает отсортированные узлы округа
func (g *Graph) Members(d District) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.membersLocked(d)
}

func (g *Graph) membersLocked(d District) []string {
	set := g.byLabel[d]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MemberCount возвращает размер округа
func (g *Graph) MemberCount(d District) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.byLabel[d])
}

// TotalPopulation возвращает суммарное население
func (g *Graph) TotalPopulation() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Суммируем в порядке ID, чтобы результат не зависел от порядка обхода map
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var total float64
	for _, id := range ids {
		total += g.nodes[id].Population
	}
	return total
}

// NodeCount возвращает количество узлов
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// EdgeCount возвращает количество рёбер
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.edges)
}

// Edges возвращает копии рёбер, отсортированные по (A, B)
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Labels возвращает снимок меток всех узлов
func (g *Graph) Labels() map[string]District {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string]District, len(g.nodes))
	for id, u := range g.nodes {
		out[id] = u.District
	}
	return out
}

// ApplyLabels применяет снимок меток. Неизвестный узел в снимке считается ошибкой,
// граф при этом не изменяется.
func (g *Graph) ApplyLabels(labels map[string]District) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id := range labels {
		if _, ok := g.nodes[id]; !ok {
			return apperror.Newf(apperror.CodeInvalidInput, "unknown geo unit %s", id).
				WithDetails("node_id", id)
		}
	}

	for id, d := range labels {
		u := g.nodes[id]
		if u.District == d {
			continue
		}
		g.unindexLabel(id, u.District)
		u.District = d
		g.indexLabel(id, d)
	}
	return nil
}

// Clone создаёт глубокую копию графа
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := NewGraph()
	clone.Name = g.Name

	for id, u := range g.nodes {
		clone.nodes[id] = u.Clone()
		clone.indexLabel(id, u.District)
	}

	for key, e := range g.edges {
		stored := *e
		clone.edges[key] = &stored
	}

	for id, adj := range g.adjacency {
		cp := make([]string, len(adj))
		copy(cp, adj)
		clone.adjacency[id] = cp
	}

	return clone
}

// Validate проверяет корректность графа перед запуском движка
func (g *Graph) Validate() *apperror.ValidationErrors {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ve := apperror.NewValidationErrors()

	if len(g.nodes) == 0 {
		ve.Add(apperror.ErrEmptyGraph)
		return ve
	}

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		u := g.nodes[id]
		if u.District == "" {
			ve.Add(apperror.Newf(apperror.CodeMissingLabel, "geo unit %s has no district", id).
				WithDetails("node_id", id))
		}
		if u.Population < 0 || math.IsNaN(u.Population) || math.IsInf(u.Population, 0) {
			ve.Add(apperror.Newf(apperror.CodeNegativePopulation,
				"geo unit %s has invalid population", id).WithDetails("node_id", id))
		}
		if len(g.adjacency[id]) == 0 && len(g.nodes) > 1 {
			ve.Add(apperror.NewWarning(apperror.CodeIsolatedComponent,
				fmt.Sprintf("geo unit %s has no neighbours", id)).WithDetails("node_id", id))
		}
	}

	return ve
}

func (g *Graph) indexLabel(id string, d District) {
	set, ok := g.byLabel[d]
	if !ok {
		set = make(map[string]struct{})
		g.byLabel[d] = set
	}
	set[id] = struct{}{}
}

func (g *Graph) unindexLabel(id string, d District) {
	set := g.byLabel[d]
	delete(set, id)
	if len(set) == 0 {
		delete(g.byLabel, d)
	}
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
