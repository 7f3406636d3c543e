// Package schema holds the description of one repository that the compiler
// pipeline builds, validates and turns into SQL.
//
// The model is a small graph:
//
//   - [RepositoryDef]: the contract type, its entity, its methods and the
//     dialect it is compiled for.
//   - [EntityDef]: the table, ordered columns, primary key, identity and
//     constructor of the row type.
//   - [PropertyDef]: one settable entity field and the column it maps to.
//   - [MethodDef]: one contract operation, its [ParameterDetails], result
//     shape and [MethodKind].
//
// Definitions are mutable through the Set methods of [RepositoryDef] until
// the repository is compiled. After that every setter returns [ErrFrozen].
//
// # Sub-packages
//
//   - [field]: closed registry of primitive column types
//   - [naming]: table and column naming conventions
package schema
