package graphio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redistrict/pkg/apperror"
	"redistrict/pkg/domain"
	"redistrict/services/planner-svc/internal/engine"
)

const jsonGraph = `{
  "name": "tiny",
  "nodes": [
    {"id": "a", "population": 10, "district": "1", "county": "north", "x": 0, "y": 0},
    {"id": "b", "population": 20, "district": "1", "attrs": {"tract": "001"}},
    {"id": "c", "population": 30, "district": "2"}
  ],
  "edges": [
    {"a": "b", "b": "a", "shared_perimeter": 1.5},
    {"a": "b", "b": "c", "distance": 2}
  ]
}`

const yamlGraph = `
name: tiny
nodes:
  - {id: a, population: 10, district: "1", county: north, x: 0, y: 0}
  - {id: b, population: 20, district: "1", attrs: {tract: "001"}}
  - {id: c, population: 30, district: "2"}
edges:
  - {a: b, b: a, shared_perimeter: 1.5}
  - {a: b, b: c, distance: 2}
`

func checkTinyGraph(t *testing.T, g *domain.Graph) {
	t.Helper()

	assert.Equal(t, "tiny", g.Name)
	assert.Equal(t, []string{"a", "b", "c"}, g.NodeIDs())
	assert.Equal(t, 2, g.EdgeCount())

	a, ok := g.Node("a")
	require.True(t, ok)
	assert.True(t, a.HasPoint)
	assert.Equal(t, "north", a.County)

	b, _ := g.Node("b")
	assert.False(t, b.HasPoint)
	assert.Equal(t, "001", b.Attrs["tract"])

	e, ok := g.Edge("a", "b")
	require.True(t, ok)
	assert.Equal(t, "a", e.A)
	assert.Equal(t, 1.5, e.SharedPerimeter)
}

func TestDecodeGraph(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format Format
	}{
		{"json", jsonGraph, FormatJSON},
		{"yaml", yamlGraph, FormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := DecodeGraph(strings.NewReader(tt.input), tt.format)
			require.NoError(t, err)
			checkTinyGraph(t, g)
		})
	}
}

func TestDecodeGraph_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  apperror.ErrorCode
	}{
		{"malformed", `{"nodes": [`, apperror.CodeInvalidInput},
		{"unknown field", `{"nodes": [], "edges": [], "extra": 1}`, apperror.CodeInvalidInput},
		{"missing id", `{"nodes": [{"population": 1, "district": "1"}], "edges": []}`, apperror.CodeInvalidInput},
		{"one coordinate", `{"nodes": [{"id": "a", "district": "1", "x": 1}], "edges": []}`, apperror.CodeInvalidInput},
		{"duplicate node", `{"nodes": [{"id": "a", "district": "1"}, {"id": "a", "district": "1"}], "edges": []}`, apperror.CodeDuplicateNode},
		{"dangling edge", `{"nodes": [{"id": "a", "district": "1"}], "edges": [{"a": "a", "b": "z"}]}`, apperror.CodeDanglingEdge},
		{"self loop", `{"nodes": [{"id": "a", "district": "1"}], "edges": [{"a": "a", "b": "a"}]}`, apperror.CodeSelfLoop},
		{"negative weight", `{"nodes": [{"id": "a", "district": "1"}, {"id": "b", "district": "1"}], "edges": [{"a": "a", "b": "b", "shared_perimeter": -1}]}`, apperror.CodeNegativeWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeGraph(strings.NewReader(tt.input), FormatJSON)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.Code(err), "got %v", err)
		})
	}
}

func TestEncodeGraph_RoundTrip(t *testing.T) {
	g, err := DecodeGraph(strings.NewReader(jsonGraph), FormatJSON)
	require.NoError(t, err)

	for _, f := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeGraph(&buf, g, f))

			back, err := DecodeGraph(&buf, f)
			require.NoError(t, err)
			checkTinyGraph(t, back)
			assert.Equal(t, g.Labels(), back.Labels())
		})
	}
}

func TestGraphFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "county.yaml")
	require.NoError(t, os.WriteFile(src, []byte(strings.Replace(yamlGraph, "name: tiny\n", "", 1)), 0o600))

	g, err := ReadGraphFile(src)
	require.NoError(t, err)
	assert.Equal(t, "county", g.Name)

	out := filepath.Join(dir, "out.json")
	require.NoError(t, WriteGraphFile(out, g))

	back, err := ReadGraphFile(out)
	require.NoError(t, err)
	assert.Equal(t, g.NodeIDs(), back.NodeIDs())

	_, err = ReadGraphFile(filepath.Join(dir, "missing.json"))
	assert.True(t, apperror.Is(err, apperror.CodeInvalidInput))
}

func TestFormats(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("g.YML"))
	assert.Equal(t, FormatYAML, FormatFromPath("g.yaml"))
	assert.Equal(t, FormatJSON, FormatFromPath("g.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("g"))

	f, err := ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.True(t, apperror.Is(err, apperror.CodeInvalidArgument))
}

func TestAssignmentDoc(t *testing.T) {
	res := &engine.Result{
		Sweeps: 2,
		Records: []engine.DisconnectedDistrictRecord{
			{OriginalLabel: "1", ComponentSizesBefore: []int{2, 2}, Repaired: true, FirstSweep: 1},
		},
		SeedingLog: []engine.SeedEntry{
			{NewLabel: "3", DonorLabel: "1", SeedNodeID: "e", Population: 50},
		},
	}
	labels := map[string]domain.District{"a": "1", "e": "3"}
	bridges := []domain.Edge{{A: "b", B: "c", Distance: 2, Synthetic: true}}

	doc := NewAssignmentDoc("run-1", labels, res, bridges)
	assert.Equal(t, "3", doc.Districts["e"])
	assert.Equal(t, "1", doc.Disconnected[0].OriginalLabel)
	assert.Equal(t, "e", doc.Seeding[0].SeedNodeID)
	assert.True(t, doc.Bridges[0].Synthetic)

	for _, f := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeAssignments(&buf, doc, f))
			if f == FormatYAML {
				assert.Contains(t, buf.String(), "component_sizes_before:")
			}

			back, err := DecodeAssignments(&buf, f)
			require.NoError(t, err)
			assert.Equal(t, doc, back)
			assert.Equal(t, labels, back.Labels())
		})
	}
}

func TestAssignmentDoc_NoResult(t *testing.T) {
	doc := NewAssignmentDoc("", map[string]domain.District{"a": "1"}, nil, nil)

	var buf bytes.Buffer
	require.NoError(t, EncodeAssignments(&buf, doc, FormatJSON))
	assert.Contains(t, buf.String(), `"disconnected": []`)
	assert.NotContains(t, buf.String(), "bridges")
}
