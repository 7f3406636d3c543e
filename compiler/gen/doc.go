// Package gen checks repository definitions and writes snapshots of the
// statements compiled from them.
//
// # Validation
//
// Validate walks a schema.RepositoryDef and returns every problem found,
// one schema.ValidationError per problem. Nothing stops at the first
// error: per-method checks run for every method and the repository-wide
// checks run last. Check wraps a non-empty result in a
// *ValidationFailedError, which matches ErrValidationFailed:
//
//	if err := gen.Check(def); err != nil {
//		var verr *gen.ValidationFailedError
//		if errors.As(err, &verr) && verr.Has(schema.DupePrimaryKey) {
//			// set the key explicitly
//		}
//	}
//
// # Snapshots
//
// A Snapshot lists the SQL text compiled for each method of a repository.
// WriteStatements renders snapshots with jennifer as a file of string
// constants; StatementWriter formats and writes one file per repository in
// parallel:
//
//	cfg := gen.MustNewConfig(gen.WithTarget("internal/statements"))
//	w, _ := gen.NewStatementWriter(cfg)
//	err := w.WriteAll(ctx, snaps...)
//
// # Error Handling
//
//   - SchemaError: a contract or entity type that cannot be described
//   - ConfigError: an invalid option
//   - GenerationError: a statement that cannot be built for a method
//   - ValidationFailedError: the aggregated validation errors
package gen
