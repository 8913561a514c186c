package domain

import "math"

// Математические константы
const (
	Epsilon = 1e-9
)

// Параметры движка по умолчанию
const (
	DefaultMaxRepairSweeps         = 1000
	DefaultSeedCandidateMultiplier = 10
	DefaultWorkers                 = 1
	DefaultBridgeFactor            = 1.5
)

// Пороги оценки равномерности, % отклонения от идеального населения
const (
	BalanceGradeA = 1.0
	BalanceGradeB = 5.0
	BalanceGradeC = 10.0
	BalanceGradeD = 20.0
)

// FloatEquals сравнивает два float64 с учётом Epsilon
func FloatEquals(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// FloatLess проверяет a < b с учётом Epsilon
func FloatLess(a, b float64) bool {
	return a < b-Epsilon
}

// Distance возвращает евклидово расстояние между точками узлов
func Distance(a, b GeoUnit) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
