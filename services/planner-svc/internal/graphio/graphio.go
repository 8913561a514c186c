// Package graphio reads and writes adjacency graphs and plan assignments as
// JSON or YAML documents.
package graphio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"redistrict/pkg/apperror"
	"redistrict/pkg/domain"
)

// Format формат документа
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath определяет формат по расширению; неизвестное расширение считается JSON
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFormat разбирает имя формата
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", apperror.Newf(apperror.CodeInvalidArgument, "unknown document format %q", s).
			WithField("format")
	}
}

// NodeDoc узел в документе
type NodeDoc struct {
	ID         string            `json:"id" yaml:"id"`
	Population float64           `json:"population" yaml:"population"`
	District   string            `json:"district" yaml:"district"`
	County     string            `json:"county,omitempty" yaml:"county,omitempty"`
	Area       float64           `json:"area,omitempty" yaml:"area,omitempty"`
	Perimeter  float64           `json:"perimeter,omitempty" yaml:"perimeter,omitempty"`
	X          *float64          `json:"x,omitempty" yaml:"x,omitempty"`
	Y          *float64          `json:"y,omitempty" yaml:"y,omitempty"`
	Attrs      map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// EdgeDoc ребро в документе
type EdgeDoc struct {
	A               string  `json:"a" yaml:"a"`
	B               string  `json:"b" yaml:"b"`
	SharedPerimeter float64 `json:"shared_perimeter,omitempty" yaml:"shared_perimeter,omitempty"`
	Distance        float64 `json:"distance,omitempty" yaml:"distance,omitempty"`
	Synthetic       bool    `json:"synthetic,omitempty" yaml:"synthetic,omitempty"`
}

// GraphDoc документ графа
type GraphDoc struct {
	Name  string    `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []NodeDoc `json:"nodes" yaml:"nodes"`
	Edges []EdgeDoc `json:"edges" yaml:"edges"`
}

// ToGraph строит граф; ошибки добавления узлов и рёбер возвращаются как есть
func (d *GraphDoc) ToGraph() (*domain.Graph, error) {
	g := domain.NewGraph()
	g.Name = d.Name

	for i := range d.Nodes {
		n := &d.Nodes[i]
		if n.ID == "" {
			return nil, apperror.Newf(apperror.CodeInvalidInput, "node #%d has no id", i).
				WithField(fmt.Sprintf("nodes[%d].id", i))
		}
		if (n.X == nil) != (n.Y == nil) {
			return nil, apperror.Newf(apperror.CodeInvalidInput, "node %s has only one coordinate", n.ID).
				WithDetails("node_id", n.ID)
		}

		unit := &domain.GeoUnit{
			ID:         n.ID,
			Population: n.Population,
			District:   domain.District(n.District),
			County:     n.County,
			Area:       n.Area,
			Perimeter:  n.Perimeter,
			Attrs:      n.Attrs,
		}
		if n.X != nil {
			unit.X, unit.Y, unit.HasPoint = *n.X, *n.Y, true
		}
		if err := g.AddNode(unit); err != nil {
			return nil, err
		}
	}

	for _, e := range d.Edges {
		err := g.AddEdge(&domain.Edge{
			A:               e.A,
			B:               e.B,
			SharedPerimeter: e.SharedPerimeter,
			Distance:        e.Distance,
			Synthetic:       e.Synthetic,
		})
		if err != nil {
			return nil, err
		}
	}

	return g, nil
}

// FromGraph строит документ из графа; узлы и рёбра отсортированы
func FromGraph(g *domain.Graph) *GraphDoc {
	doc := &GraphDoc{Name: g.Name}

	for _, id := range g.NodeIDs() {
		u, _ := g.Node(id)
		n := NodeDoc{
			ID:         u.ID,
			Population: u.Population,
			District:   string(u.District),
			County:     u.County,
			Area:       u.Area,
			Perimeter:  u.Perimeter,
			Attrs:      u.Attrs,
		}
		if u.HasPoint {
			x, y := u.X, u.Y
			n.X, n.Y = &x, &y
		}
		doc.Nodes = append(doc.Nodes, n)
	}

	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, EdgeFromDomain(e))
	}
	return doc
}

// EdgeFromDomain конвертирует ребро графа
func EdgeFromDomain(e domain.Edge) EdgeDoc {
	return EdgeDoc{
		A:               e.A,
		B:               e.B,
		SharedPerimeter: e.SharedPerimeter,
		Distance:        e.Distance,
		Synthetic:       e.Synthetic,
	}
}

// DecodeGraph читает документ графа и строит граф
func DecodeGraph(r io.Reader, f Format) (*domain.Graph, error) {
	var doc GraphDoc
	if err := decode(r, f, &doc); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidInput, "failed to decode graph document")
	}
	return doc.ToGraph()
}

// EncodeGraph пишет граф в документ
func EncodeGraph(w io.Writer, g *domain.Graph, f Format) error {
	return encode(w, f, FromGraph(g))
}

// ReadGraphFile читает граф из файла; формат по расширению
func ReadGraphFile(path string) (*domain.Graph, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidInput, "failed to open graph file").
			WithDetails("path", path)
	}
	defer file.Close()

	g, err := DecodeGraph(file, FormatFromPath(path))
	if err != nil {
		return nil, err
	}
	if g.Name == "" {
		g.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return g, nil
}

// WriteGraphFile пишет граф в файл; формат по расширению
func WriteGraphFile(path string, g *domain.Graph) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeGraph(w, g, FormatFromPath(path))
	})
}

func decode(r io.Reader, f Format, v any) error {
	switch f {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		return dec.Decode(v)
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}
}

func encode(w io.Writer, f Format, v any) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}

func writeFile(path string, fn func(w io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return fn(file)
}
