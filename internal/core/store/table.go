package store

import "github.com/zeusync/mapsync/internal/core/models"

// table is an id-indexed slice that keeps first-seen order and never holds
// two rows with the same id.
type table[T any] struct {
	id    func(T) models.ID
	index map[models.ID]int
	rows  []T
}

func newTable[T any](id func(T) models.ID) *table[T] {
	return &table[T]{id: id, index: make(map[models.ID]int)}
}

// load replaces the contents. Later duplicates overwrite earlier ones in place.
func (t *table[T]) load(rows []T) {
	t.index = make(map[models.ID]int, len(rows))
	t.rows = make([]T, 0, len(rows))
	for _, row := range rows {
		t.put(row)
	}
}

func (t *table[T]) put(row T) {
	id := t.id(row)
	if i, ok := t.index[id]; ok {
		t.rows[i] = row
		return
	}
	t.index[id] = len(t.rows)
	t.rows = append(t.rows, row)
}

func (t *table[T]) get(id models.ID) (T, bool) {
	if i, ok := t.index[id]; ok {
		return t.rows[i], true
	}
	var zero T
	return zero, false
}

func (t *table[T]) ptr(id models.ID) *T {
	if i, ok := t.index[id]; ok {
		return &t.rows[i]
	}
	return nil
}

func (t *table[T]) remove(id models.ID) bool {
	i, ok := t.index[id]
	if !ok {
		return false
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	delete(t.index, id)
	for j := i; j < len(t.rows); j++ {
		t.index[t.id(t.rows[j])] = j
	}
	return true
}

func (t *table[T]) all() []T {
	out := make([]T, len(t.rows))
	copy(out, t.rows)
	return out
}

func (t *table[T]) len() int { return len(t.rows) }
