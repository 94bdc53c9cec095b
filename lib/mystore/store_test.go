package mystore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type student struct {
	UID  string `gorm:"primaryKey"`
	Name string
	Age  int
}

type seat struct {
	UID        string `gorm:"primaryKey"`
	StudentUID string
	Number     int
	Taken      bool
}

var (
	student1 = student{UID: "123", Name: "Marc", Age: 42}
	student2 = student{UID: "456", Name: "Eva", Age: 39}
	student3 = student{UID: "789", Name: "Pien", Age: 12}
)

func TestInMemoryStore(t *testing.T) {
	c := context.TODO()
	testStoreBehaviour(t, c, NewInMemoryStore[student](c), NewInMemoryStore[seat](c))
}

func TestSqliteStore(t *testing.T) {
	c := context.TODO()
	db, cleanup, err := Connect(c, Config{DatabaseURL: "sqlite://:memory:"})
	require.NoError(t, err)
	defer cleanup()

	students, err := New[student](c, db)
	require.NoError(t, err)
	seats, err := New[seat](c, db)
	require.NoError(t, err)

	testStoreBehaviour(t, c, students, seats)
}

func testStoreBehaviour(t *testing.T, c context.Context, students Store[student], seats Store[seat]) {
	t.Run("Get not found", func(t *testing.T) {
		_, found, err := students.Get(c, student1.UID)
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Put", func(t *testing.T) {
		assert.NoError(t, students.Put(c, student1.UID, student1))
		assert.NoError(t, students.Put(c, student2.UID, student2))
		assert.NoError(t, students.Put(c, student3.UID, student3))
	})

	t.Run("Get found", func(t *testing.T) {
		got, found, err := students.Get(c, student1.UID)
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, student{UID: "123", Name: "Marc", Age: 42}, got)
	})

	t.Run("Put overwrites", func(t *testing.T) {
		assert.NoError(t, students.Put(c, student1.UID, student{Name: "Marc", Age: 43}))

		got, found, err := students.Get(c, student1.UID)
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, student{UID: "123", Name: "Marc", Age: 43}, got)
	})

	t.Run("List", func(t *testing.T) {
		all, err := students.List(c)
		assert.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("Query with filter and descending order", func(t *testing.T) {
		got, err := students.Query(c, []Filter{{Field: "Age", Compare: ">", Value: 20}}, "-Age")
		assert.NoError(t, err)
		if assert.Len(t, got, 2) {
			assert.Equal(t, "123", got[0].UID)
			assert.Equal(t, "456", got[1].UID)
		}
	})

	t.Run("Query with multiple filters", func(t *testing.T) {
		got, err := students.Query(c, []Filter{
			{Field: "Name", Compare: "=", Value: "Eva"},
			{Field: "Age", Compare: "<=", Value: 39},
		}, "")
		assert.NoError(t, err)
		if assert.Len(t, got, 1) {
			assert.Equal(t, "456", got[0].UID)
		}
	})

	t.Run("Query on unknown field", func(t *testing.T) {
		_, err := students.Query(c, []Filter{{Field: "Shoesize", Compare: "=", Value: 45}}, "")
		assert.Error(t, err)
	})

	t.Run("Query with unsupported operator", func(t *testing.T) {
		_, err := students.Query(c, []Filter{{Field: "Age", Compare: "LIKE", Value: 1}}, "")
		assert.Error(t, err)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.NoError(t, students.Delete(c, student3.UID))
		assert.NoError(t, students.Delete(c, "unknown"))

		_, found, err := students.Get(c, student3.UID)
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Transaction spanning stores commits", func(t *testing.T) {
		err := students.RunInTransaction(c, func(c context.Context) error {
			err := seats.Put(c, "s1", seat{StudentUID: student1.UID, Number: 1, Taken: true})
			if err != nil {
				return err
			}
			return students.Put(c, student3.UID, student3)
		})
		assert.NoError(t, err)

		_, found, _ := seats.Get(c, "s1")
		assert.True(t, found)
		_, found, _ = students.Get(c, student3.UID)
		assert.True(t, found)
	})

	t.Run("Transaction spanning stores rolls back", func(t *testing.T) {
		err := seats.RunInTransaction(c, func(c context.Context) error {
			err := seats.Put(c, "s2", seat{StudentUID: student2.UID, Number: 2, Taken: true})
			if err != nil {
				return err
			}
			err = seats.Delete(c, "s1")
			if err != nil {
				return err
			}
			err = students.Put(c, student2.UID, student{Name: "Eva", Age: 99})
			if err != nil {
				return err
			}

			// nested transactions join the outer one
			err = students.RunInTransaction(c, func(c context.Context) error {
				return students.Delete(c, student1.UID)
			})
			if err != nil {
				return err
			}

			return fmt.Errorf("abort")
		})
		assert.EqualError(t, err, "abort")

		_, found, _ := seats.Get(c, "s2")
		assert.False(t, found)
		_, found, _ = seats.Get(c, "s1")
		assert.True(t, found)
		got, _, _ := students.Get(c, student2.UID)
		assert.Equal(t, 39, got.Age)
		_, found, _ = students.Get(c, student1.UID)
		assert.True(t, found)
	})

	t.Run("Query bool field inside transaction", func(t *testing.T) {
		err := seats.RunInTransaction(c, func(c context.Context) error {
			taken, err := seats.Query(c, []Filter{{Field: "Taken", Compare: "=", Value: true}}, "Number")
			if err != nil {
				return err
			}
			assert.Len(t, taken, 1)
			return nil
		})
		assert.NoError(t, err)
	})
}

func TestGormReadsLockRowsInTransaction(t *testing.T) {
	c := context.TODO()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	sch, err := schema.Parse(new(student), &sync.Map{}, db.NamingStrategy)
	require.NoError(t, err)
	students := &gormStore[student]{db: db, schema: sch}

	t.Run("Get outside transaction does not lock", func(t *testing.T) {
		stmt := students.reader(c).Where("uid = ?", student1.UID).Take(&student{}).Statement
		assert.NotContains(t, stmt.SQL.String(), "FOR UPDATE")
	})

	t.Run("Get inside transaction locks", func(t *testing.T) {
		txCtx := context.WithValue(c, ctxTransactionKey{}, db)
		stmt := students.reader(txCtx).Where("uid = ?", student1.UID).Take(&student{}).Statement
		assert.Contains(t, stmt.SQL.String(), "FOR UPDATE")
	})

	t.Run("Query inside transaction locks", func(t *testing.T) {
		txCtx := context.WithValue(c, ctxTransactionKey{}, db)
		stmt := students.reader(txCtx).Where("age > ?", 18).Find(&[]student{}).Statement
		assert.Contains(t, stmt.SQL.String(), "FOR UPDATE")
	})
}

func TestNewWithoutDatabase(t *testing.T) {
	c := context.TODO()

	s, err := New[student](c, nil)
	assert.NoError(t, err)
	assert.IsType(t, &InMemoryStore[student]{}, s)

	db, cleanup, err := Connect(c, Config{})
	assert.NoError(t, err)
	defer cleanup()
	s, err = New[student](c, db)
	assert.NoError(t, err)
	assert.IsType(t, &InMemoryStore[student]{}, s)
}

func TestConnectUnsupportedURL(t *testing.T) {
	_, _, err := Connect(context.TODO(), Config{DatabaseURL: "mysql://localhost/db"})
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "student", kindOf[student]())
}
