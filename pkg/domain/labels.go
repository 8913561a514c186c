package domain

import (
	"sort"
	"strconv"
	"strings"
)

// District метка округа. Сам округ не хранится: это множество узлов с одной меткой.
type District string

// String возвращает метку как строку
func (d District) String() string {
	return string(d)
}

// Numeric возвращает числовое значение метки, если она целое число
func (d District) Numeric() (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(d)), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// CompareDistricts задаёт естественный порядок меток: числовые метки идут первыми
// и сравниваются как числа, остальные сравниваются лексикографически.
func CompareDistricts(a, b District) int {
	na, aNum := a.Numeric()
	nb, bNum := b.Numeric()

	switch {
	case aNum && bNum:
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
		return strings.Compare(string(a), string(b))
	case aNum:
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(string(a), string(b))
	}
}

// SortDistricts сортирует метки в естественном порядке
func SortDistricts(labels []District) {
	sort.Slice(labels, func(i, j int) bool {
		return CompareDistricts(labels[i], labels[j]) < 0
	})
}

// AllNumeric проверяет, что все метки числовые
func AllNumeric(labels []District) bool {
	for _, d := range labels {
		if _, ok := d.Numeric(); !ok {
			return false
		}
	}
	return true
}
