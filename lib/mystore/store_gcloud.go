package mystore

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/datastore"
)

type gcloudStore[T any] struct {
	client *datastore.Client
	kind   string
}

func newGcloudStore[T any](client *datastore.Client) *gcloudStore[T] {
	return &gcloudStore[T]{
		client: client,
		kind:   kindOf[T](),
	}
}

func datastoreTransactionFrom(c context.Context) (*datastore.Transaction, bool) {
	tx, ok := c.Value(ctxTransactionKey{}).(*datastore.Transaction)
	return tx, ok
}

func (s *gcloudStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	if _, inTransaction := datastoreTransactionFrom(c); inTransaction {
		return f(c)
	}

	var err error
	for i := 1; i <= 3; i++ {
		err = s.runInTransaction(c, f)
		if err != nil {
			if errors.Is(err, datastore.ErrConcurrentTransaction) {
				// requires idempotency of the business logic
				log.Printf("Concurrent transaction error, retrying (%d of %d): %s", i, 3, err)
				continue
			}
			return err
		}
		return nil
	}
	return err
}

func (s *gcloudStore[T]) runInTransaction(c context.Context, f func(c context.Context) error) error {
	t, err := s.client.NewTransaction(c)
	if err != nil {
		return fmt.Errorf("error creating transaction: %w", err)
	}

	err = f(context.WithValue(c, ctxTransactionKey{}, t))
	if err != nil {
		rollbackErr := t.Rollback()
		if rollbackErr != nil {
			log.Printf("error rolling-back transaction %p: %s", t, rollbackErr)
		}
		return err
	}

	_, err = t.Commit()
	if err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

func (s *gcloudStore[T]) key(uid string) *datastore.Key {
	return datastore.NameKey(s.kind, uid, nil)
}

func (s *gcloudStore[T]) Put(c context.Context, uid string, value T) error {
	setUID(&value, uid)

	if tx, inTransaction := datastoreTransactionFrom(c); inTransaction {
		_, err := tx.Put(s.key(uid), &value)
		if err != nil {
			return fmt.Errorf("error transactionally storing entity %s with uid %s: %s", s.kind, uid, err)
		}
		return nil
	}

	_, err := s.client.Put(c, s.key(uid), &value)
	if err != nil {
		return fmt.Errorf("error storing entity %s with uid %s: %s", s.kind, uid, err)
	}
	return nil
}

func (s *gcloudStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	value := new(T)

	var err error
	if tx, inTransaction := datastoreTransactionFrom(c); inTransaction {
		err = tx.Get(s.key(uid), value)
	} else {
		err = s.client.Get(c, s.key(uid), value)
	}
	if err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return *value, false, nil
		}
		return *value, false, fmt.Errorf("error fetching entity %s with uid %s: %s", s.kind, uid, err)
	}

	return *value, true, nil
}

func (s *gcloudStore[T]) Delete(c context.Context, uid string) error {
	var err error
	if tx, inTransaction := datastoreTransactionFrom(c); inTransaction {
		err = tx.Delete(s.key(uid))
	} else {
		err = s.client.Delete(c, s.key(uid))
	}
	if err != nil {
		return fmt.Errorf("error deleting entity %s with uid %s: %s", s.kind, uid, err)
	}
	return nil
}

func (s *gcloudStore[T]) List(c context.Context) ([]T, error) {
	return s.getAll(c, datastore.NewQuery(s.kind))
}

func (s *gcloudStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	q := datastore.NewQuery(s.kind)
	for _, f := range filters {
		if _, ok := supportedOperators[f.Compare]; !ok {
			return nil, fmt.Errorf("unsupported operator %q", f.Compare)
		}
		q = q.FilterField(f.Field, f.Compare, f.Value)
	}
	if orderByField != "" {
		q = q.Order(orderByField)
	}
	return s.getAll(c, q)
}

func (s *gcloudStore[T]) getAll(c context.Context, q *datastore.Query) ([]T, error) {
	tx, inTransaction := datastoreTransactionFrom(c)
	if !inTransaction {
		result := []T{}
		_, err := s.client.GetAll(c, q, &result)
		if err != nil {
			return nil, fmt.Errorf("error fetching entities %s: %s", s.kind, err)
		}
		return result, nil
	}

	// Only ancestor queries can run inside a transaction:
	// resolve the keys outside and read the entities transactionally.
	keys, err := s.client.GetAll(c, q.KeysOnly(), nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching keys of %s: %s", s.kind, err)
	}
	result := make([]T, len(keys))
	err = tx.GetMulti(keys, result)
	if err != nil {
		return nil, fmt.Errorf("error transactionally fetching entities %s: %s", s.kind, err)
	}
	return result, nil
}
