// Package sqlrepo compiles repository contracts into working SQL data-access
// objects.
//
// A contract is a struct of func-typed fields. Each field is one operation and
// its name selects what the operation does:
//
//	type UserRepo struct {
//	    CreateTable func(ctx context.Context) error
//	    Insert      func(ctx context.Context, u *User) error
//	    Get         func(ctx context.Context, id int64) (*User, error)
//	    TryGet      func(ctx context.Context, id int64) (*User, bool, error)
//	    GetAll      func(ctx context.Context) ([]*User, error)
//	    GetCount    func(ctx context.Context) (int, error)
//	}
//
// The compiler package infers the table, columns and primary key from the
// entity and the contract, validates both, and fills the func fields with
// implementations for the selected dialect:
//
//	reg := compiler.NewRegistry(compiler.WithConnection(db), compiler.WithDialect(dialect.Lite))
//	if _, err := compiler.Define[UserRepo](reg); err != nil {
//	    return err
//	}
//	repo, err := compiler.Get[UserRepo](ctx, reg)
//
// This package holds the runtime surface shared by all compiled repositories:
// the error types they return and Collection, the background-loaded result set.
package sqlrepo
