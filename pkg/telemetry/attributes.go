package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Граф
	AttrGraphNodes     = "graph.nodes"
	AttrGraphEdges     = "graph.edges"
	AttrGraphDistricts = "graph.districts"
	AttrGraphHash      = "graph.hash"

	// Запуск
	AttrRunID          = "run.id"
	AttrRunName        = "run.name"
	AttrRequiredCount  = "run.required_districts"
	AttrRandomSeed     = "run.random_seed"
	AttrCacheHit       = "run.cache_hit"
	AttrBridgeAttempts = "run.bridge_attempts"
	AttrErrorCode      = "run.error_code"

	// Ремонт
	AttrSweeps     = "repair.sweeps"
	AttrFragmented = "repair.fragmented"
	AttrRelabels   = "repair.relabels"
	AttrMaxSweeps  = "repair.max_sweeps"

	// Посев
	AttrSeedsNeeded    = "seed.needed"
	AttrSeedsCommitted = "seed.committed"
	AttrSeedWindow     = "seed.window"

	// Хранилище
	AttrDBOperation = "db.operation"
	AttrDBTable     = "db.table"
)

// GraphAttributes возвращает атрибуты графа
func GraphAttributes(nodes, edges, districts int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrGraphNodes, nodes),
		attribute.Int(AttrGraphEdges, edges),
		attribute.Int(AttrGraphDistricts, districts),
	}
}

// RepairAttributes возвращает атрибуты итогов ремонта
func RepairAttributes(sweeps, fragmented, relabels int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrSweeps, sweeps),
		attribute.Int(AttrFragmented, fragmented),
		attribute.Int(AttrRelabels, relabels),
	}
}

// SeedAttributes возвращает атрибуты посева
func SeedAttributes(needed, committed, window int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrSeedsNeeded, needed),
		attribute.Int(AttrSeedsCommitted, committed),
		attribute.Int(AttrSeedWindow, window),
	}
}

// DBAttributes возвращает атрибуты операции с БД
func DBAttributes(operation, table string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDBOperation, operation),
		attribute.String(AttrDBTable, table),
	}
}
