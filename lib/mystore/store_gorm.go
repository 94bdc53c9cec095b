package mystore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// gormStore keeps T in its own table. T must declare its key as `UID string `gorm:"primaryKey"``.
type gormStore[T any] struct {
	db     *gorm.DB
	schema *schema.Schema
}

func newGormStore[T any](c context.Context, db *gorm.DB) (*gormStore[T], error) {
	sch, err := schema.Parse(new(T), &sync.Map{}, db.NamingStrategy)
	if err != nil {
		return nil, fmt.Errorf("error parsing schema of %s: %s", kindOf[T](), err)
	}
	if sch.LookUpField("UID") == nil || !sch.LookUpField("UID").PrimaryKey {
		return nil, fmt.Errorf("%s must have primary key field UID", kindOf[T]())
	}

	err = db.WithContext(c).AutoMigrate(new(T))
	if err != nil {
		return nil, fmt.Errorf("error migrating table for %s: %s", kindOf[T](), err)
	}

	return &gormStore[T]{
		db:     db,
		schema: sch,
	}, nil
}

func (s *gormStore[T]) conn(c context.Context) *gorm.DB {
	if tx, ok := c.Value(ctxTransactionKey{}).(*gorm.DB); ok {
		return tx.WithContext(c)
	}
	return s.db.WithContext(c)
}

// reader locks the rows it returns until the surrounding transaction ends.
// A transaction that reads before it writes then waits for concurrent writers of the same rows.
func (s *gormStore[T]) reader(c context.Context) *gorm.DB {
	if tx, ok := c.Value(ctxTransactionKey{}).(*gorm.DB); ok {
		return tx.WithContext(c).Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return s.db.WithContext(c)
}

func (s *gormStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	if _, inTransaction := c.Value(ctxTransactionKey{}).(*gorm.DB); inTransaction {
		return f(c)
	}

	return s.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		return f(context.WithValue(c, ctxTransactionKey{}, tx))
	})
}

func (s *gormStore[T]) Put(c context.Context, uid string, value T) error {
	setUID(&value, uid)

	err := s.conn(c).Clauses(clause.OnConflict{UpdateAll: true}).Create(&value).Error
	if err != nil {
		return fmt.Errorf("error storing %s with uid %s: %s", s.schema.Name, uid, err)
	}
	return nil
}

func (s *gormStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	var value T
	err := s.reader(c).Where("uid = ?", uid).Take(&value).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return value, false, nil
		}
		return value, false, fmt.Errorf("error fetching %s with uid %s: %s", s.schema.Name, uid, err)
	}
	return value, true, nil
}

func (s *gormStore[T]) Delete(c context.Context, uid string) error {
	err := s.conn(c).Where("uid = ?", uid).Delete(new(T)).Error
	if err != nil {
		return fmt.Errorf("error deleting %s with uid %s: %s", s.schema.Name, uid, err)
	}
	return nil
}

func (s *gormStore[T]) List(c context.Context) ([]T, error) {
	return s.Query(c, nil, "UID")
}

func (s *gormStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	q := s.reader(c)
	for _, f := range filters {
		column, err := s.column(f.Field)
		if err != nil {
			return nil, err
		}
		operator, ok := supportedOperators[f.Compare]
		if !ok {
			return nil, fmt.Errorf("unsupported operator %q", f.Compare)
		}
		q = q.Where(fmt.Sprintf("%s %s ?", column, operator), f.Value)
	}

	if orderByField != "" {
		field, descending := parseOrder(orderByField)
		column, err := s.column(field)
		if err != nil {
			return nil, err
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: descending})
	}

	result := []T{}
	err := q.Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %s", s.schema.Name, err)
	}
	return result, nil
}

func (s *gormStore[T]) column(fieldName string) (string, error) {
	field := s.schema.LookUpField(fieldName)
	if field == nil || field.DBName == "" {
		return "", fmt.Errorf("%s has no column for field %s", s.schema.Name, fieldName)
	}
	return field.DBName, nil
}
