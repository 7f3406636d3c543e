package sql

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"

	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/syssam/sqlrepo"
	"github.com/syssam/sqlrepo/compiler/load"
	"github.com/syssam/sqlrepo/dialect"
	dsql "github.com/syssam/sqlrepo/dialect/sql"
	rschema "github.com/syssam/sqlrepo/schema"
)

func openLite(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func liteUsers(t *testing.T, db *sql.DB) *UserRepo {
	t.Helper()
	repo, err := New[UserRepo](compileUsers(t, dialect.Lite), dsql.Shared(db))
	require.NoError(t, err)
	require.NoError(t, repo.CreateTable(context.Background()))
	return repo
}

func TestLiteTableLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openLite(t)
	repo, err := New[UserRepo](compileUsers(t, dialect.Lite), dsql.Shared(db))
	require.NoError(t, err)

	ok, err := repo.TableExists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.CreateTable(ctx))
	ok, err = repo.TableExists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	drv, err := sqlite.Open(db)
	require.NoError(t, err)
	s, err := drv.InspectSchema(ctx, "", &schema.InspectOptions{Tables: []string{"users"}})
	require.NoError(t, err)
	tbl, ok := s.Table("users")
	require.True(t, ok)
	types := make(map[string]string)
	nulls := make(map[string]bool)
	for _, c := range tbl.Columns {
		types[c.Name] = c.Type.Raw
		nulls[c.Name] = c.Type.Null
	}
	assert.Equal(t, map[string]string{
		"ID":     "integer",
		"Name":   "varchar(255)",
		"Email":  "varchar(255)",
		"Avatar": "blob",
		"Active": "boolean",
	}, types)
	assert.False(t, nulls["Name"])
	assert.True(t, nulls["Email"])
	assert.True(t, nulls["Avatar"])
	assert.False(t, nulls["Active"])
	require.NotNil(t, tbl.PrimaryKey)
	require.Len(t, tbl.PrimaryKey.Parts, 1)
	assert.Equal(t, "ID", tbl.PrimaryKey.Parts[0].C.Name)

	require.NoError(t, repo.DropTable(ctx))
	ok, err = repo.TableExists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	err = repo.DropTable(ctx)
	assert.True(t, sqlrepo.IsMutationError(err))
}

func TestLiteCRUD(t *testing.T) {
	ctx := context.Background()
	repo := liteUsers(t, openLite(t))

	email := "a8m@example.com"
	a := &User{Name: "a8m", Email: &email, Avatar: []byte{1, 2, 3}, Active: true}
	id, err := repo.Create(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, id, a.ID)

	b := &User{Name: "nati"}
	id, err = repo.Create(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	a.Avatar = nil
	a.Email = nil
	n, err := repo.Update(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got.Avatar)
	assert.Nil(t, got.Email)

	a.Avatar = []byte{4, 5, 6}
	require.NoError(t, repo.Upsert(ctx, a))
	got, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5, 6}, got.Avatar)

	c := &User{Name: "ariel"}
	require.NoError(t, repo.Upsert(ctx, c))
	assert.Equal(t, int64(3), c.ID)

	count, err := repo.GetCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	exists, err := repo.NameExists(ctx, "nati")
	require.NoError(t, err)
	assert.True(t, exists)

	names, err := repo.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a8m", "nati", "ariel"}, names)

	require.NoError(t, repo.Rename(ctx, "nati", "noam"))
	byName, err := repo.GetByName(ctx, "noam")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, int64(2), byName[0].ID)

	p, err := repo.Profile(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, &Profile{UserID: 2, Name: "noam"}, p)

	require.NoError(t, repo.Delete(ctx, b))
	_, ok, err := repo.TryGet(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = repo.Get(ctx, 2)
	assert.True(t, sqlrepo.IsNoRows(err))
}

func TestLiteCollections(t *testing.T) {
	ctx := context.Background()
	repo := liteUsers(t, openLite(t))
	for _, name := range []string{"a", "b", "c"} {
		_, err := repo.Create(ctx, &User{Name: name})
		require.NoError(t, err)
	}

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	users, err := all.Slice(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "c", users[2].Name)
	// Enumerating again replays the buffered rows.
	again, err := all.Slice(ctx)
	require.NoError(t, err)
	assert.Equal(t, users, again)

	each, err := repo.GetEach(ctx)
	require.NoError(t, err)
	var ids []int64
	for u, err := range each {
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)

	// Breaking early still releases the connection.
	each, err = repo.GetEach(ctx)
	require.NoError(t, err)
	for range each {
		break
	}
	count, err := repo.GetCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestLiteSingletonBehavior(t *testing.T) {
	ctx := context.Background()
	db := openLite(t)

	strict, err := Compile(tagDef(t, dialect.Lite, rschema.Strict))
	require.NoError(t, err)
	s, err := New[TagRepo](strict, dsql.Shared(db))
	require.NoError(t, err)
	require.NoError(t, s.CreateTable(ctx))
	require.NoError(t, s.Insert(ctx, Tag{Name: "a", Value: 1}))
	require.NoError(t, s.Insert(ctx, Tag{Name: "a", Value: 2}))
	err = s.Insert(ctx, Tag{Name: "c", Value: 2})
	assert.True(t, sqlrepo.IsMutationError(err))
	assert.True(t, sqlrepo.IsUniqueConstraintError(err))

	_, err = s.GetByName(ctx, "a")
	assert.True(t, sqlrepo.IsTooManyRows(err))
	_, _, err = s.TryGetByName(ctx, "a")
	assert.True(t, sqlrepo.IsTooManyRows(err))
	_, err = s.GetByName(ctx, "b")
	assert.True(t, sqlrepo.IsNoRows(err))

	loose, err := Compile(tagDef(t, dialect.Lite, rschema.Loose))
	require.NoError(t, err)
	l, err := New[TagRepo](loose, dsql.Shared(db))
	require.NoError(t, err)
	tag, err := l.GetByName(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, tag)
	assert.Equal(t, "a", tag.Name)
	tag, err = l.GetByName(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, tag)
	_, ok, err := l.TryGetByName(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := l.Upsert(ctx, Tag{Name: "b", Value: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, err := l.GetCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	tag, err = s.GetByName(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int32(1), tag.Value)
}

func TestLiteConcurrentCreate(t *testing.T) {
	const n = 250
	for name, src := range map[string]func(*testing.T, *sql.DB) dsql.Source{
		"pool": func(_ *testing.T, db *sql.DB) dsql.Source { return dsql.Shared(db) },
		"conn": func(t *testing.T, db *sql.DB) dsql.Source {
			conn, err := db.Conn(context.Background())
			require.NoError(t, err)
			t.Cleanup(func() { conn.Close() })
			return dsql.Shared(conn)
		},
		"conns": func(_ *testing.T, db *sql.DB) dsql.Source { return dsql.DBConns(db) },
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			db := openLite(t)
			db.SetMaxOpenConns(8)
			repo, err := New[UserRepo](compileUsers(t, dialect.Lite), src(t, db))
			require.NoError(t, err)
			require.NoError(t, repo.CreateTable(ctx))

			ids := make([]int64, n)
			var g errgroup.Group
			for i := range n {
				g.Go(func() error {
					id, err := repo.Create(ctx, &User{Name: "user"})
					ids[i] = id
					if err != nil || i%10 != 0 {
						return err
					}
					// Background reads interleave with the inserts.
					all, err := repo.GetAll(ctx)
					if err != nil {
						return err
					}
					_, err = all.Slice(ctx)
					return err
				})
			}
			require.NoError(t, g.Wait())

			seen := make(map[int64]bool, n)
			for _, id := range ids {
				assert.NotZero(t, id)
				assert.False(t, seen[id], "identity %d assigned twice", id)
				seen[id] = true
			}
			count, err := repo.GetCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(n), count)
		})
	}
}

type UserIDName struct {
	ID   int64
	Name string
}

type UserNameID struct {
	Name string
	ID   int64
}

// UserViews reads the same query into row types declaring their columns
// in opposite orders.
type UserViews struct {
	IDNames func(ctx context.Context) ([]UserIDName, error) `sql:"select ID, Name from users order by ID"`
	NameIDs func(ctx context.Context) ([]UserNameID, error) `sql:"select ID, Name from users order by ID"`
}

func TestLiteSharedQueryRowTypes(t *testing.T) {
	ctx := context.Background()
	db := openLite(t)
	repo := liteUsers(t, db)
	_, err := repo.Create(ctx, &User{Name: "a8m"})
	require.NoError(t, err)

	def, err := load.Build(reflect.TypeFor[UserViews](), load.WithDialect(dialect.Lite))
	require.NoError(t, err)
	prog, err := Compile(def)
	require.NoError(t, err)
	views, err := New[UserViews](prog, dsql.Shared(db))
	require.NoError(t, err)

	for range 2 {
		a, err := views.IDNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []UserIDName{{ID: 1, Name: "a8m"}}, a)
		b, err := views.NameIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []UserNameID{{Name: "a8m", ID: 1}}, b)
	}
}

type Price struct {
	ID       int64
	Amount   decimal.Decimal
	Discount *decimal.Decimal
}

type PriceRepo struct {
	CreateTable func(ctx context.Context) error
	Create      func(ctx context.Context, p *Price) (int64, error)
	Get         func(ctx context.Context, id int64) (*Price, error) `params:"id"`
	GetByAmount func(ctx context.Context, amount decimal.Decimal) ([]*Price, error)
}

func TestLiteDecimal(t *testing.T) {
	ctx := context.Background()
	db := openLite(t)
	def, err := load.Build(reflect.TypeFor[PriceRepo](), load.WithDialect(dialect.Lite), load.WithTableNaming(users()))
	require.NoError(t, err)
	prog, err := Compile(def)
	require.NoError(t, err)
	assert.Equal(t, "create table prices (ID integer, Amount text not null, Discount text, constraint pk_prices primary key (ID))",
		prog.Plan("CreateTable").Statements[0].SQL)
	repo, err := New[PriceRepo](prog, dsql.Shared(db))
	require.NoError(t, err)
	require.NoError(t, repo.CreateTable(ctx))

	amount := decimal.RequireFromString("12345678901234.5678")
	discount := decimal.RequireFromString("0.0001")
	id, err := repo.Create(ctx, &Price{Amount: amount, Discount: &discount})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &Price{Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, amount.Equal(got.Amount), got.Amount.String())
	require.NotNil(t, got.Discount)
	assert.True(t, discount.Equal(*got.Discount), got.Discount.String())

	byAmount, err := repo.GetByAmount(ctx, decimal.NewFromInt(5))
	require.NoError(t, err)
	require.Len(t, byAmount, 1)
	assert.Nil(t, byAmount[0].Discount)
}
