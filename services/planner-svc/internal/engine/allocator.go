package engine

import (
	"fmt"
	"strconv"

	"redistrict/pkg/domain"
)

// LabelAllocator выдаёт новые метки, не пересекающиеся с существующими.
// Если все метки числовые, новые идут от максимума +1, иначе D1, D2, ...
type LabelAllocator struct {
	taken   map[domain.District]struct{}
	numeric bool
	next    int64
}

// NewLabelAllocator создаёт аллокатор по текущему набору меток
func NewLabelAllocator(present []domain.District) *LabelAllocator {
	a := &LabelAllocator{
		taken:   make(map[domain.District]struct{}, len(present)),
		numeric: domain.AllNumeric(present),
		next:    1,
	}

	var maxLabel int64
	for i, d := range present {
		a.taken[d] = struct{}{}
		if n, ok := d.Numeric(); ok && (i == 0 || n > maxLabel) {
			maxLabel = n
		}
	}
	if a.numeric && len(present) > 0 {
		a.next = maxLabel + 1
	}
	return a
}

// Peek возвращает следующую свободную метку, не резервируя её
func (a *LabelAllocator) Peek() domain.District {
	for n := a.next; ; n++ {
		d := a.format(n)
		if _, ok := a.taken[d]; !ok {
			a.next = n
			return d
		}
	}
}

// Commit резервирует метку, выданную Peek
func (a *LabelAllocator) Commit(d domain.District) {
	a.taken[d] = struct{}{}
	if d == a.format(a.next) {
		a.next++
	}
}

func (a *LabelAllocator) format(n int64) domain.District {
	if a.numeric {
		return domain.District(strconv.FormatInt(n, 10))
	}
	return domain.District(fmt.Sprintf("D%d", n))
}
