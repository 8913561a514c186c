package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"redistrict/pkg/domain"
)

// DefaultKeyPrefix префикс ключей кэша планов
const DefaultKeyPrefix = "plan:"

// GraphHash вычисляет хеш графа для использования как ключ кэша.
// В хеш входят только данные, влияющие на результат: узлы с населением,
// метками и точками, рёбра с весами. Атрибуты вроде county и area не входят.
func GraphHash(g *domain.Graph) string {
	if g == nil {
		return ""
	}

	h := sha256.New()
	for _, id := range g.NodeIDs() {
		u, _ := g.Node(id)
		fmt.Fprintf(h, "n:%q:%s:%q", u.ID, formatFloat(u.Population), string(u.District))
		if u.HasPoint {
			fmt.Fprintf(h, ":p:%s:%s", formatFloat(u.X), formatFloat(u.Y))
		}
		h.Write([]byte{';'})
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(h, "e:%q:%q:%s:%s:%t;",
			e.A, e.B, formatFloat(e.SharedPerimeter), formatFloat(e.Distance), e.Synthetic)
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// ParamsHash хеширует параметры запуска; структуры кодируются в порядке полей
func ParamsHash(params any) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}
	return ShortHash(data), nil
}

// BuildPlanKey строит ключ кэша для результата планирования
func BuildPlanKey(prefix, graphHash, paramsHash string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if paramsHash == "" {
		return prefix + graphHash
	}
	return prefix + graphHash + ":" + paramsHash
}

// QuickHash полный sha256 в hex
func QuickHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortHash короткий хеш (16 символов)
func ShortHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
