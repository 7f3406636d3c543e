package gen

import (
	"errors"
	"reflect"
	"slices"
	"strings"

	"github.com/syssam/sqlrepo/dialect"
	"github.com/syssam/sqlrepo/schema"
	"github.com/syssam/sqlrepo/schema/field"
)

// Validate checks a repository definition and returns every problem found.
// It never stops at the first error.
func Validate(def *schema.RepositoryDef) []schema.ValidationError {
	v := &validator{def: def}
	for _, m := range def.Methods {
		v.method(m)
	}
	v.repository()
	return v.errs
}

// Check validates def and returns a *ValidationFailedError listing every
// problem, or nil if the definition is valid.
func Check(def *schema.RepositoryDef) error {
	if errs := Validate(def); len(errs) > 0 {
		return &ValidationFailedError{Repository: def.Name, Errors: errs}
	}
	return nil
}

type validator struct {
	def  *schema.RepositoryDef
	errs []schema.ValidationError
}

func (v *validator) add(code schema.Code, format string, args ...any) {
	v.errs = append(v.errs, schema.Errorf(code, format, args...))
}

func (v *validator) method(m *schema.MethodDef) {
	name := v.def.Name + "." + m.Name
	if !m.HasError {
		v.add(schema.MissingErrorResult, "%s must return error as its last result", name)
	}
	if m.Extra {
		v.add(schema.UnsupportedReturnType, "%s declares more results than [out,] [result,] error", name)
	}
	for _, p := range m.Parameters {
		if p.Kind == schema.ParamUnsupported {
			v.add(schema.UnsupportedParameterType, "parameter %s of %s has unsupported type %s", p.Name, name, p.Type)
		}
	}
	if m.IsStoredProcedure && v.def.Dialect != nil {
		if _, err := dialect.ProcedureCall(v.def.Dialect, m.CustomSQL, nil); err != nil {
			v.add(schema.StoredProcedureNotSupported, "%s: %v", name, err)
		}
	}
	if m.Kind == schema.KindCustom {
		v.custom(name, m)
		return
	}
	e := v.def.Entity
	if e == nil {
		v.add(schema.CantInferEntityType, "cannot infer the entity type of %s", name)
		return
	}
	for _, p := range m.Primitives() {
		switch {
		case p.Property == nil || !e.IsColumn(p.Property):
			v.add(schema.ParameterDoesntHaveProperty, "parameter %s of %s has no matching property on %s", p.Name, name, e.Name)
		case p.Info.Base() != p.Property.Info.Base():
			v.add(schema.ParameterAndPropertyDontMatch, "parameter %s of %s has type %s but property %s.%s has type %s",
				p.Name, name, p.Type, e.Name, p.Property.Name, p.Property.Type())
		}
	}
	switch m.Kind {
	case schema.KindGet:
		v.get(name, m, e)
	case schema.KindInsert, schema.KindUpdate, schema.KindDelete, schema.KindCreate, schema.KindUpsert:
		v.mutation(name, m, e)
	case schema.KindGetCount:
		if !integer(m.ReturnType) {
			v.add(schema.UnsupportedReturnType, "%s must return an integer count", name)
		}
	case schema.KindExists, schema.KindTableExists:
		if !boolean(m.ReturnType) {
			v.add(schema.UnsupportedReturnType, "%s must return bool", name)
		}
	case schema.KindCreateTable, schema.KindDropTable:
		if m.ReturnType != nil {
			v.add(schema.UnsupportedReturnType, "%s must return only an error", name)
		}
	}
}

func (v *validator) custom(name string, m *schema.MethodDef) {
	if !m.HasCustomSQL() {
		v.add(schema.CustomMethodWithoutSql, "%s matches no method pattern and has no SQL attached", name)
	}
	switch {
	case m.Shape == schema.ShapeUnsupported:
		v.add(schema.UnsupportedReturnType, "%s returns unsupported type %s", name, m.ReturnType)
	case m.Shape.Enumerable():
		if _, ok := field.Lookup(m.Elem); !ok && schema.EntityStruct(m.Elem) == nil {
			v.add(schema.UnsupportedReturnType, "%s returns rows of unsupported type %s", name, m.Elem)
		}
	}
}

func (v *validator) get(name string, m *schema.MethodDef, e *schema.EntityDef) {
	switch {
	case m.IsTryGet:
		if !boolean(m.ReturnType) {
			v.add(schema.TryGetReturnWrongType, "%s must return (*%s, bool, error)", name, e.Name)
		}
		switch {
		case m.OutParameter == nil:
			v.add(schema.TryGetNoOut, "%s has no %s result", name, e.Name)
		case schema.EntityStruct(m.OutParameter.Type) != e.Type:
			v.add(schema.TryGetOutParamWrongType, "%s returns %s instead of %s", name, m.OutParameter.Type, e.Name)
		}
	case m.IsSingleton:
		if m.Shape != schema.ShapeEntity || schema.EntityStruct(m.ReturnType) != e.Type {
			v.add(schema.SingleGetReturnWrongType, "%s must return %s or *%s, got %v", name, e.Name, e.Name, m.ReturnType)
		}
	default:
		if schema.EntityStruct(m.Elem) != e.Type {
			v.add(schema.MultiGetReturnWrongType, "%s must return rows of %s, got %s", name, e.Name, m.ReturnType)
		}
	}
}

func (v *validator) mutation(name string, m *schema.MethodDef, e *schema.EntityDef) {
	ep := m.EntityParameter
	if ep == nil || schema.EntityStruct(ep.Type) != e.Type {
		v.add(schema.MissingEntityParameter, "%s must take a %s argument", name, e.Name)
	} else if (m.Kind == schema.KindCreate || m.Kind == schema.KindUpsert) && e.HasIdentity && ep.Type.Kind() != reflect.Pointer {
		v.add(schema.EntityParameterNotPointer, "%s must take *%s to receive the assigned key", name, e.Name)
	}
	switch m.Kind {
	case schema.KindUpdate, schema.KindDelete, schema.KindUpsert:
		if len(e.PrimaryKey) == 0 {
			v.add(schema.NoPrimaryKey, "%s needs a primary key on %s", name, e.Name)
		}
	}
	if m.ReturnType != nil && !integer(m.ReturnType) {
		v.add(schema.UnsupportedReturnType, "%s may only return an integer, got %s", name, m.ReturnType)
	}
}

func (v *validator) repository() {
	if v.def.HasKind(schema.KindCreate) && v.def.HasKind(schema.KindInsert) {
		v.add(schema.BothCreateAndInsert, "%s declares both Create and Insert methods", v.def.Name)
	}
	e := v.def.Entity
	if e == nil {
		return
	}
	seen := make(map[string]*schema.PropertyDef, len(e.Columns))
	for _, c := range e.Columns {
		key := strings.ToLower(c.Column)
		if prev, ok := seen[key]; ok {
			v.add(schema.DuplicateColumn, "properties %s and %s of %s both map to column %s", prev.Name, c.Name, e.Name, c.Column)
			continue
		}
		seen[key] = c
	}
	if e.HasIdentity {
		if len(e.PrimaryKey) != 1 || !e.PrimaryKey[0].Info.Type.Integer() {
			v.add(schema.InvalidIdentity, "identity of %s needs exactly one integer primary key column", e.Name)
		}
	}
	if !v.def.ExplicitPrimaryKey {
		if sigs := keySignatures(v.def.Methods, e); len(sigs) > 1 {
			v.add(schema.DupePrimaryKey, "cannot infer the primary key of %s from %d singleton getters with different parameters: %s",
				e.Name, len(sigs), strings.Join(sigs, ", "))
		}
	}
}

// keySignatures returns the distinct primitive parameter type lists of
// the singleton getters of e that take at least one parameter.
func keySignatures(methods []*schema.MethodDef, e *schema.EntityDef) []string {
	var sigs []string
	for _, m := range methods {
		if m.Kind != schema.KindGet || !m.IsSingleton || schema.EntityStruct(m.RowType()) != e.Type {
			continue
		}
		ps := m.Primitives()
		if len(ps) == 0 {
			continue
		}
		types := make([]string, len(ps))
		for i, p := range ps {
			types[i] = p.Info.Base().String()
		}
		sig := "(" + strings.Join(types, ", ") + ")"
		if !slices.Contains(sigs, sig) {
			sigs = append(sigs, sig)
		}
	}
	return sigs
}

func integer(t reflect.Type) bool {
	info, ok := field.Lookup(t)
	return ok && !info.Pointer() && info.Type.Integer()
}

func boolean(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Bool
}

// Errors returns the validation errors wrapped in err, if any.
func Errors(err error) []schema.ValidationError {
	var verr *ValidationFailedError
	if errors.As(err, &verr) {
		return verr.Errors
	}
	return nil
}
