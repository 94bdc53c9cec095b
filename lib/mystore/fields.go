package mystore

import (
	"cmp"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

var supportedOperators = map[string]string{
	"=":  "=",
	"!=": "<>",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

func fieldOf(item any, name string) (reflect.Value, error) {
	v := reflect.ValueOf(item)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%T is not a struct", item)
	}
	f := v.FieldByName(name)
	if !f.IsValid() || !f.CanInterface() {
		return reflect.Value{}, fmt.Errorf("%T has no exported field %s", item, name)
	}
	return f, nil
}

func compareValues(a reflect.Value, b reflect.Value) (int, error) {
	if !b.IsValid() {
		return 0, fmt.Errorf("cannot compare %s with nil", a.Type())
	}
	if at, ok := a.Interface().(time.Time); ok {
		bt, ok := b.Interface().(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot compare time with %s", b.Type())
		}
		return at.Compare(bt), nil
	}

	switch a.Kind() {
	case reflect.String:
		if b.Kind() != reflect.String {
			return 0, fmt.Errorf("cannot compare string with %s", b.Type())
		}
		return strings.Compare(a.String(), b.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch b.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return cmp.Compare(a.Int(), b.Int()), nil
		case reflect.Float32, reflect.Float64:
			return cmp.Compare(float64(a.Int()), b.Float()), nil
		}
	case reflect.Float32, reflect.Float64:
		switch b.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return cmp.Compare(a.Float(), float64(b.Int())), nil
		case reflect.Float32, reflect.Float64:
			return cmp.Compare(a.Float(), b.Float()), nil
		}
	case reflect.Bool:
		if b.Kind() == reflect.Bool {
			return cmp.Compare(boolRank(a.Bool()), boolRank(b.Bool())), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %s with %s", a.Type(), b.Type())
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func matches(item any, filter Filter) (bool, error) {
	if _, ok := supportedOperators[filter.Compare]; !ok {
		return false, fmt.Errorf("unsupported operator %q", filter.Compare)
	}
	f, err := fieldOf(item, filter.Field)
	if err != nil {
		return false, err
	}
	result, err := compareValues(f, reflect.ValueOf(filter.Value))
	if err != nil {
		return false, fmt.Errorf("field %s: %s", filter.Field, err)
	}

	switch filter.Compare {
	case "=":
		return result == 0, nil
	case "!=":
		return result != 0, nil
	case "<":
		return result < 0, nil
	case "<=":
		return result <= 0, nil
	case ">":
		return result > 0, nil
	default:
		return result >= 0, nil
	}
}

func parseOrder(orderByField string) (string, bool) {
	if strings.HasPrefix(orderByField, "-") {
		return orderByField[1:], true
	}
	return orderByField, false
}

func sortByField[T any](items []T, orderByField string) error {
	field, descending := parseOrder(orderByField)

	var sortErr error
	sort.SliceStable(items, func(i, j int) bool {
		a, err := fieldOf(items[i], field)
		if err != nil {
			sortErr = err
			return false
		}
		b, err := fieldOf(items[j], field)
		if err != nil {
			sortErr = err
			return false
		}
		result, err := compareValues(a, b)
		if err != nil {
			sortErr = err
			return false
		}
		if descending {
			return result > 0
		}
		return result < 0
	})
	return sortErr
}

// setUID fills an exported UID string field with the storage key when present.
func setUID(value any, uid string) {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return
	}
	f := v.Elem().FieldByName("UID")
	if f.IsValid() && f.CanSet() && f.Kind() == reflect.String {
		f.SetString(uid)
	}
}
