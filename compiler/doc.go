// Package compiler turns repository contracts into working repositories.
//
// A contract is a struct of func fields. Each field declares one data
// access method, classified by its name:
//
//	type UserRepo struct {
//		CreateTable func(ctx context.Context) error
//		Create      func(ctx context.Context, u *User) (int64, error)
//		Get         func(ctx context.Context, id int64) (*User, error) `params:"id"`
//		GetByName   func(ctx context.Context, name string) ([]User, error)
//	}
//
//	reg, err := compiler.NewRegistry(
//		compiler.WithDialect(dialect.Lite),
//		compiler.WithConnection(db),
//	)
//	users, err := compiler.Get[UserRepo](ctx, reg)
//	id, err := users.Create(ctx, &User{Name: "a8m"})
//
// Define registers a contract with its own options. Definitions are
// compiled lazily and together: the first Get compiles every definition
// registered before it, and later Gets return the cached repository.
package compiler
