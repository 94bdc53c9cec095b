package mystore

import (
	"context"
	"sort"
	"sync"
)

// inmemTxLock serializes writers across all in-memory stores
var inmemTxLock sync.Mutex

type inmemTransaction struct {
	undo []func()
}

func (tx *inmemTransaction) onRollback(f func()) {
	tx.undo = append(tx.undo, f)
}

func (tx *inmemTransaction) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

func inmemTransactionFrom(c context.Context) (*inmemTransaction, bool) {
	tx, ok := c.Value(ctxTransactionKey{}).(*inmemTransaction)
	return tx, ok
}

type InMemoryStore[T any] struct {
	sync.Mutex
	Items map[string]T
}

func NewInMemoryStore[T any](c context.Context) *InMemoryStore[T] {
	return &InMemoryStore[T]{
		Items: make(map[string]T),
	}
}

func (s *InMemoryStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	if _, inTransaction := inmemTransactionFrom(c); inTransaction {
		return f(c)
	}

	inmemTxLock.Lock()
	defer inmemTxLock.Unlock()

	tx := &inmemTransaction{}
	err := f(context.WithValue(c, ctxTransactionKey{}, tx))
	if err != nil {
		tx.rollback()
		return err
	}

	return nil
}

func (s *InMemoryStore[T]) Put(c context.Context, uid string, value T) error {
	setUID(&value, uid)
	s.write(c, uid, func() {
		s.Items[uid] = value
	})
	return nil
}

func (s *InMemoryStore[T]) Delete(c context.Context, uid string) error {
	s.write(c, uid, func() {
		delete(s.Items, uid)
	})
	return nil
}

func (s *InMemoryStore[T]) write(c context.Context, uid string, mutate func()) {
	tx, inTransaction := inmemTransactionFrom(c)
	if !inTransaction {
		inmemTxLock.Lock()
		defer inmemTxLock.Unlock()
	}

	s.Lock()
	defer s.Unlock()

	if inTransaction {
		previous, existed := s.Items[uid]
		tx.onRollback(func() {
			s.Lock()
			defer s.Unlock()
			if existed {
				s.Items[uid] = previous
			} else {
				delete(s.Items, uid)
			}
		})
	}

	mutate()
}

func (s *InMemoryStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	s.Lock()
	defer s.Unlock()

	result, exists := s.Items[uid]
	return result, exists, nil
}

// List returns all items ordered by uid.
func (s *InMemoryStore[T]) List(c context.Context) ([]T, error) {
	s.Lock()
	defer s.Unlock()

	uids := make([]string, 0, len(s.Items))
	for uid := range s.Items {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	result := make([]T, 0, len(uids))
	for _, uid := range uids {
		result = append(result, s.Items[uid])
	}

	return result, nil
}

func (s *InMemoryStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	all, err := s.List(c)
	if err != nil {
		return nil, err
	}

	result := []T{}
	for _, item := range all {
		selected := true
		for _, filter := range filters {
			ok, err := matches(item, filter)
			if err != nil {
				return nil, err
			}
			if !ok {
				selected = false
				break
			}
		}
		if selected {
			result = append(result, item)
		}
	}

	if orderByField != "" {
		err = sortByField(result, orderByField)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}
