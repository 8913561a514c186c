package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"redistrict/pkg/domain"
)

// PlanCache типизированный кэш результатов планирования.
// T сериализуется в JSON; ключ строится из хеша графа и хеша параметров.
type PlanCache[T any] struct {
	cache      Cache
	prefix     string
	defaultTTL time.Duration
}

// Cached обёртка сохранённого значения
type Cached[T any] struct {
	GraphHash  string    `json:"graph_hash"`
	ParamsHash string    `json:"params_hash"`
	Value      T         `json:"value"`
	ComputedAt time.Time `json:"computed_at"`
}

// NewPlanCache создаёт кэш планов поверх произвольного бэкенда
func NewPlanCache[T any](c Cache, prefix string, defaultTTL time.Duration) *PlanCache[T] {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &PlanCache[T]{cache: c, prefix: prefix, defaultTTL: defaultTTL}
}

// PlanKey ключ записи вместе с исходными хешами
type PlanKey struct {
	Key        string
	GraphHash  string
	ParamsHash string
}

// Key возвращает ключ для графа и параметров
func (pc *PlanCache[T]) Key(g *domain.Graph, params any) (PlanKey, error) {
	paramsHash, err := ParamsHash(params)
	if err != nil {
		return PlanKey{}, err
	}
	graphHash := GraphHash(g)
	return PlanKey{
		Key:        BuildPlanKey(pc.prefix, graphHash, paramsHash),
		GraphHash:  graphHash,
		ParamsHash: paramsHash,
	}, nil
}

// Get возвращает сохранённый результат; повреждённая запись удаляется и считается промахом
func (pc *PlanCache[T]) Get(ctx context.Context, key PlanKey) (*Cached[T], bool, error) {
	data, err := pc.cache.Get(ctx, key.Key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry Cached[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = pc.cache.Delete(ctx, key.Key) //nolint:errcheck // best effort cleanup
		return nil, false, nil
	}
	return &entry, true, nil
}

// Set сохраняет результат под ключом
func (pc *PlanCache[T]) Set(ctx context.Context, key PlanKey, value T, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = pc.defaultTTL
	}

	data, err := json.Marshal(Cached[T]{
		GraphHash:  key.GraphHash,
		ParamsHash: key.ParamsHash,
		Value:      value,
		ComputedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cached plan: %w", err)
	}
	return pc.cache.Set(ctx, key.Key, data, ttl)
}

// Invalidate удаляет все результаты для графа
func (pc *PlanCache[T]) Invalidate(ctx context.Context, g *domain.Graph) (int64, error) {
	return pc.cache.DeleteByPattern(ctx, pc.prefix+GraphHash(g)+"*")
}

// InvalidateAll удаляет все результаты планирования
func (pc *PlanCache[T]) InvalidateAll(ctx context.Context) (int64, error) {
	return pc.cache.DeleteByPattern(ctx, pc.prefix+"*")
}

// Stats счётчики бэкенда; Entries учитывает только ключи планов, если бэкенд их различает
func (pc *PlanCache[T]) Stats(ctx context.Context) (*PlanStats, error) {
	st, err := pc.cache.Stats(ctx)
	if err != nil {
		return nil, err
	}
	entries := st.TotalKeys
	if n, ok := st.KeysByPrefix[extractPrefix(pc.prefix)]; ok {
		entries = n
	}
	return &PlanStats{Stats: *st, Prefix: pc.prefix, Entries: entries}, nil
}

// PlanStats статистика кэша планов
type PlanStats struct {
	Stats
	Prefix  string `json:"prefix"`
	Entries int64  `json:"entries"`
}
