// Package sql compiles validated repository definitions into executable
// programs and binds them to database connections.
//
// Compile turns a *schema.RepositoryDef into a Program: one Plan per
// contract method, each holding the SQL statements of the method, their
// parameter bindings and the reader shaping the result. Bind implements
// the contract by setting every func field to a reflect.MakeFunc
// dispatching to its plan.
//
//	def, _ := load.Build(reflect.TypeFor[UserRepo](), load.WithDialect(dialect.Lite))
//	prog, err := sql.Compile(def)
//	if err != nil {
//		return err // *gen.ValidationFailedError lists every problem
//	}
//	repo, _ := sql.New[UserRepo](prog, dsql.Shared(db))
//	id, err := repo.Create(ctx, &User{Name: "a8m"})
//
// # Statements
//
// Generated statements bind parameters by column name, such as
// "select Name from users where ID = @ID". Attached SQL binds primitive
// arguments by parameter name and entity arguments by column name.
// Statements per method kind:
//
//	CreateTable  create table T (col type [not null], ..., constraint pk_T primary key (...))
//	DropTable    drop table T
//	TableExists  the dialect's catalog query
//	GetCount     select count(*) from T [where ...]
//	Exists       the dialect's exists form of select 1 from T [where ...]
//	Insert       insert into T (all columns) values (...)
//	Create       insert of the non-key columns followed by the identity query
//	Update       update T set non-key columns where key columns
//	Delete       delete from T where key columns
//	Upsert       Create or Update by key value, or the dialect's upsert
//	Get          select unbound columns from T [where ...]
//
// # Connections
//
// Every call leases its connection from a dsql.Source and releases it once
// its rows are read. Collections and sequences are drained by a background
// goroutine, which releases the lease after the last row.
package sql
