package sql

import (
	"context"
	"database/sql"
	"iter"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlrepo"
	"github.com/syssam/sqlrepo/compiler/gen"
	"github.com/syssam/sqlrepo/compiler/load"
	"github.com/syssam/sqlrepo/dialect"
	dsql "github.com/syssam/sqlrepo/dialect/sql"
	"github.com/syssam/sqlrepo/schema"
	"github.com/syssam/sqlrepo/schema/naming"
)

type User struct {
	ID     int64
	Name   string
	Email  *string
	Avatar []byte
	Active bool
}

type Profile struct {
	UserID int64
	Name   string
}

type UserRepo struct {
	CreateTable func(ctx context.Context) error
	DropTable   func(ctx context.Context) error
	TableExists func(ctx context.Context) (bool, error)
	Create      func(ctx context.Context, u *User) (int64, error)
	Update      func(ctx context.Context, u *User) (int, error)
	UpdateTx    func(ctx context.Context, u *User, tx *sql.Tx) (int, error)
	Delete      func(ctx context.Context, u *User) error
	Upsert      func(ctx context.Context, u *User) error
	Get         func(ctx context.Context, id int64) (*User, error)       `params:"id"`
	TryGet      func(ctx context.Context, id int64) (*User, bool, error) `params:"id"`
	GetByName   func(ctx context.Context, name string) ([]User, error)
	GetAll      func(ctx context.Context) (*sqlrepo.Collection[*User], error)
	GetEach     func(ctx context.Context) (iter.Seq2[*User, error], error)
	GetCount    func(ctx context.Context) (int64, error)
	NameExists  func(ctx context.Context, name string) (bool, error)  `params:"name"`
	Names       func(ctx context.Context) ([]string, error)           `sql:"select Name from users order by ID"`
	Rename      func(ctx context.Context, from, to string) error      `sql:"update users set Name = @to where Name = @from" params:"from,to"`
	Profile     func(ctx context.Context, id int64) (*Profile, error) `sql:"select u.Name as Name, u.ID as UserID from users u where u.ID = @id" params:"id"`
}

type Tag struct {
	Name  string
	Value int32
}

type TagRepo struct {
	CreateTable  func(ctx context.Context) error
	Insert       func(ctx context.Context, t Tag) error
	Upsert       func(ctx context.Context, t Tag) (int, error)
	GetCount     func(ctx context.Context) (int, error)
	GetByName    func(ctx context.Context, name string) (*Tag, error)
	TryGetByName func(ctx context.Context, name string) (*Tag, bool, error)
}

func users() *naming.Convention { return naming.LowerWords().Plural() }

func userDef(t *testing.T, d dialect.Dialect) *schema.RepositoryDef {
	t.Helper()
	def, err := load.Build(reflect.TypeFor[UserRepo](), load.WithDialect(d), load.WithTableNaming(users()))
	require.NoError(t, err)
	return def
}

func compileUsers(t *testing.T, d dialect.Dialect) *Program {
	t.Helper()
	p, err := Compile(userDef(t, d))
	require.NoError(t, err)
	return p
}

// tagDef keys tags by Value so that names may repeat.
func tagDef(t *testing.T, d dialect.Dialect, b schema.SingletonGetBehavior) *schema.RepositoryDef {
	t.Helper()
	def, err := load.Build(reflect.TypeFor[TagRepo](), load.WithDialect(d), load.WithTableNaming(users()))
	require.NoError(t, err)
	require.NoError(t, def.SetPrimaryKey("Value"))
	require.NoError(t, def.SetSingletonGetBehavior("GetByName", b))
	require.NoError(t, def.SetSingletonGetBehavior("TryGetByName", b))
	return def
}

func statements(p *Program) map[string][]string {
	m := make(map[string][]string)
	for _, ms := range p.Snapshot().Methods {
		m[ms.Method] = ms.SQL
	}
	return m
}

func TestCompileFull(t *testing.T) {
	p := compileUsers(t, dialect.Full)
	assert.Equal(t, "UserRepo", p.Repository)
	assert.Equal(t, dialect.FullName, p.Dialect)

	create := "insert into users (Name, Email, Avatar, Active) values (@Name, @Email, @Avatar, @Active); select scope_identity()"
	update := "update users set Name = @Name, Email = @Email, Avatar = @Avatar, Active = @Active where ID = @ID"
	want := map[string][]string{
		"CreateTable": {"create table users (ID bigint identity(1,1), Name nvarchar(max) not null, Email nvarchar(max), " +
			"Avatar varbinary(max), Active bit not null, constraint pk_users primary key (ID))"},
		"DropTable":   {"drop table users"},
		"TableExists": {"select count(*) from information_schema.tables where table_name = @tableName"},
		"Create":      {create},
		"Update":      {update},
		"UpdateTx":    {update},
		"Delete":      {"delete from users where ID = @ID"},
		"Upsert":      {create, update},
		"Get":         {"select Name, Email, Avatar, Active from users where ID = @ID"},
		"TryGet":      {"select Name, Email, Avatar, Active from users where ID = @ID"},
		"GetByName":   {"select ID, Email, Avatar, Active from users where Name = @Name"},
		"GetAll":      {"select ID, Name, Email, Avatar, Active from users"},
		"GetEach":     {"select ID, Name, Email, Avatar, Active from users"},
		"GetCount":    {"select count(*) from users"},
		"NameExists":  {"select case when exists (select 1 from users where Name = @Name) then 1 else 0 end"},
		"Names":       {"select Name from users order by ID"},
		"Rename":      {"update users set Name = @to where Name = @from"},
		"Profile":     {"select u.Name as Name, u.ID as UserID from users u where u.ID = @id"},
	}
	assert.Equal(t, want, statements(p))
}

func TestCompileLite(t *testing.T) {
	got := statements(compileUsers(t, dialect.Lite))
	assert.Equal(t, []string{"create table users (ID integer, Name varchar(255) not null, Email varchar(255), " +
		"Avatar blob, Active boolean not null, constraint pk_users primary key (ID))"}, got["CreateTable"])
	assert.Equal(t, []string{"select count(*) from sqlite_master where type = 'table' and name = @tableName"}, got["TableExists"])
	assert.Equal(t, []string{
		"insert into users (Name, Email, Avatar, Active) values (@Name, @Email, @Avatar, @Active)",
		"select last_insert_rowid()",
	}, got["Create"])
	assert.Len(t, got["Upsert"], 3)
	assert.Equal(t, []string{"select exists (select 1 from users where Name = @Name)"}, got["NameExists"])
}

func TestCompileUpsertWithoutIdentity(t *testing.T) {
	full, err := Compile(tagDef(t, dialect.Full, schema.Strict))
	require.NoError(t, err)
	assert.Equal(t, []string{"merge into tags with (holdlock) as target using (select @Name as Name, @Value as Value) as source " +
		"on target.Value = source.Value when matched then update set Name = source.Name " +
		"when not matched then insert (Name, Value) values (source.Name, source.Value);"}, statements(full)["Upsert"])

	lite, err := Compile(tagDef(t, dialect.Lite, schema.Strict))
	require.NoError(t, err)
	assert.Equal(t, []string{"insert or replace into tags (Name, Value) values (@Name, @Value)"}, statements(lite)["Upsert"])
	assert.Equal(t, []string{"select Value from tags where Name = @Name"}, statements(lite)["GetByName"])
}

func TestCompileBindings(t *testing.T) {
	p := compileUsers(t, dialect.Lite)

	get := p.Plan("Get")
	require.NotNil(t, get)
	assert.Equal(t, schema.KindGet, get.Kind)
	require.Len(t, get.Statements[0].Bindings, 1)
	b := get.Statements[0].Bindings[0]
	assert.Equal(t, "ID", b.Name)
	assert.Equal(t, FromArgument, b.From)
	assert.Equal(t, 1, b.Arg)

	rename := p.Plan("Rename").Statements[0].Bindings
	require.Len(t, rename, 2)
	assert.Equal(t, "from", rename[0].Name)
	assert.Equal(t, "to", rename[1].Name)

	del := p.Plan("Delete").Statements[0].Bindings
	require.Len(t, del, 1)
	assert.Equal(t, FromEntity, del[0].From)
	assert.Equal(t, []int{0}, del[0].Index)

	exists := p.Plan("TableExists").Statements[0].Bindings
	require.Len(t, exists, 1)
	assert.Equal(t, FromConstant, exists[0].From)
	assert.Equal(t, "users", exists[0].Value)

	assert.Nil(t, p.Plan("Nope"))
	assert.Len(t, p.Plans(), reflect.TypeFor[UserRepo]().NumField())
}

func TestCompileFreezes(t *testing.T) {
	def := userDef(t, dialect.Lite)
	_, err := Compile(def)
	require.NoError(t, err)
	assert.True(t, def.Frozen())
	assert.ErrorIs(t, def.SetTableName("people"), schema.ErrFrozen)
}

func TestCompileRejectsInvalid(t *testing.T) {
	type Repo struct {
		Get    func(isbn string) (*User, error) `params:"isbn"`
		Create func(u User) error
		Insert func(u User) error
	}
	def, err := load.Build(reflect.TypeFor[Repo]())
	require.NoError(t, err)
	_, err = Compile(def)
	require.Error(t, err)
	assert.True(t, gen.IsValidationFailed(err))
	var verr *gen.ValidationFailedError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has(schema.ParameterDoesntHaveProperty))
	assert.True(t, verr.Has(schema.EntityParameterNotPointer))
	assert.True(t, verr.Has(schema.BothCreateAndInsert))
	assert.False(t, def.Frozen())

	_, err = Compile(nil)
	assert.ErrorIs(t, err, gen.ErrGenerationFailed)
}

func TestCompileGenerationError(t *testing.T) {
	type Key struct{ ID int64 }
	type KeyRepo struct {
		Get    func(id int64) (*Key, error) `params:"id"`
		Update func(k Key) error
	}
	def, err := load.Build(reflect.TypeFor[KeyRepo]())
	require.NoError(t, err)
	_, err = Compile(def)
	require.Error(t, err)
	assert.ErrorIs(t, err, gen.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "KeyRepo.Update")
	assert.Contains(t, err.Error(), "no columns outside its primary key")
}

func TestNewChecksContract(t *testing.T) {
	p := compileUsers(t, dialect.Lite)
	_, err := New[TagRepo](p, nil)
	require.Error(t, err)

	repo, err := New[UserRepo](p, nil)
	require.NoError(t, err)
	require.NotNil(t, repo.Get)
	_, err = repo.Get(context.Background(), 1)
	assert.ErrorIs(t, err, dsql.ErrNoSource)
}
