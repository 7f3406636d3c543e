package load

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/syssam/sqlrepo/compiler/gen"
	"github.com/syssam/sqlrepo/dialect"
	"github.com/syssam/sqlrepo/schema"
	"github.com/syssam/sqlrepo/schema/field"
	"github.com/syssam/sqlrepo/schema/naming"
)

// Struct tags read from contract and entity fields.
const (
	// TagParams names the non-context parameters of a contract method:
	// `params:"id,name"`.
	TagParams = "params"
	// TagSQL attaches hand-written SQL to a contract method.
	TagSQL = "sql"
	// TagProcedure attaches a stored procedure to a contract method.
	TagProcedure = "procedure"
	// TagSingleton sets the singleton get behavior of a contract method.
	TagSingleton = "singleton"
	// TagColumn overrides the column of an entity field, "-" skips it.
	TagColumn = "db"
)

// Config holds the inputs of Build besides the contract type.
type Config struct {
	// Entity is the entity struct type. When nil it is inferred from the
	// contract methods.
	Entity       reflect.Type
	Dialect      dialect.Dialect
	TableNaming  *naming.Convention
	ColumnNaming *naming.Convention
	Constructors []ConstructorFunc
}

// ConstructorFunc is a function building the entity and the names of its
// parameters, in order.
type ConstructorFunc struct {
	Func   any
	Params []string
}

// Option configures Build.
type Option func(*Config) error

// WithEntity sets the entity type instead of inferring it.
func WithEntity(t reflect.Type) Option {
	return func(c *Config) error {
		if st := schema.EntityStruct(t); st == nil {
			return gen.NewConfigError("Entity", t, "entity must be a struct or a pointer to a struct")
		}
		c.Entity = indirect(t)
		return nil
	}
}

// WithDialect sets the dialect the repository is compiled for.
func WithDialect(d dialect.Dialect) Option {
	return func(c *Config) error {
		if d == nil {
			return gen.NewConfigError("Dialect", nil, "dialect cannot be nil")
		}
		c.Dialect = d
		return nil
	}
}

// WithTableNaming sets the convention deriving the table name from the
// entity type name.
func WithTableNaming(n *naming.Convention) Option {
	return func(c *Config) error {
		if n == nil {
			return gen.NewConfigError("TableNaming", nil, "convention cannot be nil")
		}
		c.TableNaming = n
		return nil
	}
}

// WithColumnNaming sets the convention deriving column names from field names.
func WithColumnNaming(n *naming.Convention) Option {
	return func(c *Config) error {
		if n == nil {
			return gen.NewConfigError("ColumnNaming", nil, "convention cannot be nil")
		}
		c.ColumnNaming = n
		return nil
	}
}

// Constructor registers a function building the entity. params names the
// function parameters, in order; each name must match an entity property.
func Constructor(fn any, params ...string) Option {
	return func(c *Config) error {
		if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
			return gen.NewConfigError("Constructor", fn, "constructor must be a function")
		}
		c.Constructors = append(c.Constructors, ConstructorFunc{Func: fn, Params: params})
		return nil
	}
}

// Build reflects over a contract struct type and returns the inferred
// repository definition. Structural problems are reported as
// *gen.SchemaError; semantic problems are left to gen.Validate.
func Build(contract reflect.Type, opts ...Option) (*schema.RepositoryDef, error) {
	cfg := &Config{
		Dialect:      dialect.Full,
		TableNaming:  naming.NoOp(),
		ColumnNaming: naming.NoOp(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if contract == nil {
		return nil, gen.NewSchemaError("", "", "nil contract type", nil)
	}
	contract = indirect(contract)
	if contract.Kind() != reflect.Struct {
		return nil, gen.NewSchemaError(contract.String(), "", "contract must be a struct of func fields", nil)
	}
	def := &schema.RepositoryDef{
		Contract: contract,
		Name:     contract.Name(),
		Dialect:  cfg.Dialect,
	}
	for i := range contract.NumField() {
		sf := contract.Field(i)
		if !sf.IsExported() {
			continue
		}
		m, err := buildMethod(def.Name, sf)
		if err != nil {
			return nil, err
		}
		def.Methods = append(def.Methods, m)
	}
	et := cfg.Entity
	if et == nil {
		et = inferEntity(def.Methods)
	}
	if et != nil {
		e, err := buildEntity(et, cfg)
		if err != nil {
			return nil, err
		}
		def.Entity = e
	}
	b := &builder{cfg: cfg, def: def, adhoc: make(map[reflect.Type]*schema.EntityDef)}
	if err := b.bind(); err != nil {
		return nil, err
	}
	def.InferKeys()
	return def, nil
}

type builder struct {
	cfg   *Config
	def   *schema.RepositoryDef
	adhoc map[reflect.Type]*schema.EntityDef
}

// bind attaches properties to primitive parameters and row types to methods.
func (b *builder) bind() error {
	e := b.def.Entity
	for _, m := range b.def.Methods {
		if e != nil {
			for _, p := range m.Primitives() {
				p.Property = e.Property(p.Name)
			}
		}
		m.Entity = e
		st := schema.EntityStruct(m.RowType())
		if st == nil || (e != nil && st == e.Type) {
			continue
		}
		ad, ok := b.adhoc[st]
		if !ok {
			var err error
			if ad, err = buildEntity(st, &Config{TableNaming: b.cfg.TableNaming, ColumnNaming: b.cfg.ColumnNaming}); err != nil {
				return err
			}
			b.adhoc[st] = ad
		}
		m.Entity = ad
	}
	return nil
}

// inferEntity returns the struct type of the first entity argument, out
// result or row type of a non-custom method.
func inferEntity(methods []*schema.MethodDef) reflect.Type {
	for _, m := range methods {
		if m.Kind == schema.KindCustom {
			continue
		}
		if p := m.EntityParameter; p != nil {
			return schema.EntityStruct(p.Type)
		}
		if st := schema.EntityStruct(m.RowType()); st != nil {
			return st
		}
	}
	return nil
}

func buildMethod(contract string, sf reflect.StructField) (*schema.MethodDef, error) {
	ft := sf.Type
	if ft.Kind() != reflect.Func {
		return nil, gen.NewSchemaError(contract, sf.Name, fmt.Sprintf("contract field must be a func, got %s", ft), nil)
	}
	if ft.IsVariadic() {
		return nil, gen.NewSchemaError(contract, sf.Name, "variadic methods are not supported", nil)
	}
	m := &schema.MethodDef{
		Name:                 sf.Name,
		Func:                 ft,
		ReturnIndex:          -1,
		SingletonGetBehavior: schema.Strict,
	}
	names, err := paramNames(contract, sf)
	if err != nil {
		return nil, err
	}
	next := 0
	for i := range ft.NumIn() {
		t := ft.In(i)
		p := &schema.ParameterDetails{Kind: schema.ParameterKindOf(t), Index: i, Type: t}
		if p.Kind == schema.ParamContext {
			p.Name = "ctx"
			m.ContextParameter = p
			m.Parameters = append(m.Parameters, p)
			continue
		}
		if next < len(names) {
			p.Name = names[next]
		}
		next++
		switch p.Kind {
		case schema.ParamPrimitive:
			p.Info, _ = field.Lookup(t)
		case schema.ParamEntity:
			if m.EntityParameter == nil {
				m.EntityParameter = p
			}
		case schema.ParamConnection, schema.ParamTransaction:
			if m.ConnectionOrTransactionParameter == nil {
				m.ConnectionOrTransactionParameter = p
			}
		}
		m.Parameters = append(m.Parameters, p)
	}
	defaultNames(m)
	results(m)
	if err := methodTags(contract, sf, m); err != nil {
		return nil, err
	}
	m.Reclassify()
	return m, nil
}

// paramNames returns the names declared in the params tag, or the names
// derived from a By<X>And<Y> method name suffix.
func paramNames(contract string, sf reflect.StructField) ([]string, error) {
	tag, ok := sf.Tag.Lookup(TagParams)
	if !ok {
		return byNames(sf.Name), nil
	}
	n := 0
	for i := range sf.Type.NumIn() {
		if schema.ParameterKindOf(sf.Type.In(i)) != schema.ParamContext {
			n++
		}
	}
	var names []string
	if strings.TrimSpace(tag) != "" {
		for s := range strings.SplitSeq(tag, ",") {
			names = append(names, strings.TrimSpace(s))
		}
	}
	if len(names) != n {
		return nil, gen.NewSchemaError(contract, sf.Name,
			fmt.Sprintf("params tag names %d parameters, method has %d", len(names), n), nil)
	}
	return names, nil
}

// byNames splits the suffix after "By" at every "And" that starts a word.
// GetByNameAndAge yields [Name Age].
func byNames(method string) []string {
	i := strings.Index(method, "By")
	if i < 0 || i+2 >= len(method) || !unicode.IsUpper(rune(method[i+2])) {
		return nil
	}
	rest := method[i+2:]
	var names []string
	for {
		j := andIndex(rest)
		if j < 0 {
			return append(names, rest)
		}
		names = append(names, rest[:j])
		rest = rest[j+3:]
	}
}

func andIndex(s string) int {
	for i := 1; i+3 < len(s); i++ {
		if strings.HasPrefix(s[i:], "And") && unicode.IsUpper(rune(s[i+3])) {
			return i
		}
	}
	return -1
}

// defaultNames names the parameters that got no declared name.
func defaultNames(m *schema.MethodDef) {
	for _, p := range m.Parameters {
		if p.Name != "" {
			continue
		}
		switch p.Kind {
		case schema.ParamEntity:
			p.Name = "entity"
		case schema.ParamConnection:
			p.Name = "conn"
		case schema.ParamTransaction:
			p.Name = "tx"
		default:
			p.Name = fmt.Sprintf("arg%d", p.Index)
		}
	}
}

var errorType = reflect.TypeFor[error]()

// results describes the [out,] [return,] error result layout.
func results(m *schema.MethodDef) {
	ft := m.Func
	n := ft.NumOut()
	if n > 0 && ft.Out(n-1) == errorType {
		m.HasError = true
		n--
	}
	var idx []int
	for i := range n {
		if ft.Out(i) == errorType {
			m.Extra = true
			continue
		}
		idx = append(idx, i)
	}
	switch {
	case len(idx) == 2 && schema.IsTryGetName(m.Name):
		m.OutParameter = &schema.ParameterDetails{
			Name:  "out",
			Kind:  schema.ParamOut,
			Index: idx[0],
			Type:  ft.Out(idx[0]),
		}
	case len(idx) >= 2:
		m.Extra = true
	}
	if len(idx) > 0 {
		m.ReturnIndex = idx[len(idx)-1]
		m.ReturnType = ft.Out(m.ReturnIndex)
	}
	m.Shape, m.Elem = schema.ShapeOf(m.ReturnType)
}

func methodTags(contract string, sf reflect.StructField, m *schema.MethodDef) error {
	if q, ok := sf.Tag.Lookup(TagSQL); ok {
		m.CustomSQL = q
	}
	if p, ok := sf.Tag.Lookup(TagProcedure); ok {
		if m.CustomSQL != "" {
			return gen.NewSchemaError(contract, sf.Name, "sql and procedure tags are exclusive", nil)
		}
		m.CustomSQL = p
		m.IsStoredProcedure = p != ""
	}
	if s, ok := sf.Tag.Lookup(TagSingleton); ok {
		b, err := schema.ParseSingletonGetBehavior(s)
		if err != nil {
			return gen.NewSchemaError(contract, sf.Name, "invalid singleton tag", err)
		}
		m.SingletonGetBehavior = b
	}
	return nil
}

// buildEntity describes the entity struct t: its properties, the
// constructor used to materialize rows and the resulting columns.
func buildEntity(t reflect.Type, cfg *Config) (*schema.EntityDef, error) {
	t = indirect(t)
	if t.Kind() != reflect.Struct {
		return nil, gen.NewSchemaError(t.String(), "", "entity must be a struct", nil)
	}
	e := &schema.EntityDef{
		Type:  t,
		Name:  t.Name(),
		Table: cfg.TableNaming.Convert(t.Name()),
	}
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() || throughPointer(t, f.Index) {
			continue
		}
		tag := f.Tag.Get(TagColumn)
		if tag == "-" {
			continue
		}
		info, ok := field.Lookup(f.Type)
		if !ok {
			return nil, gen.NewSchemaError(e.Name, f.Name,
				fmt.Sprintf("unsupported field type %s (tag the field with `db:\"-\"` to skip it)", f.Type), nil)
		}
		column := tag
		if column == "" {
			column = cfg.ColumnNaming.Convert(f.Name)
		}
		e.Properties = append(e.Properties, &schema.PropertyDef{
			Name:   f.Name,
			Column: column,
			Info:   info,
			Index:  f.Index,
		})
	}
	for _, cf := range cfg.Constructors {
		c, err := constructor(e, cf)
		if err != nil {
			return nil, err
		}
		if c != nil {
			e.Constructors = append(e.Constructors, c)
		}
	}
	for _, c := range e.Constructors {
		if c.Qualifies() && (e.Constructor == nil || len(c.Params) > len(e.Constructor.Params)) {
			e.Constructor = c
		}
	}
	if e.Constructor != nil {
		e.CreateThroughConstructor = true
		e.Columns = append([]*schema.PropertyDef(nil), e.Constructor.Properties...)
	} else {
		e.Columns = append([]*schema.PropertyDef(nil), e.Properties...)
	}
	return e, nil
}

// constructor describes a registered constructor of e. Constructors of
// other types are skipped; zero parameter constructors are the default
// construction and are skipped too.
func constructor(e *schema.EntityDef, cf ConstructorFunc) (*schema.Constructor, error) {
	fv := reflect.ValueOf(cf.Func)
	ft := fv.Type()
	if ft.NumOut() != 1 || indirect(ft.Out(0)) != e.Type {
		if ft.NumOut() == 1 && schema.EntityStruct(ft.Out(0)) != nil {
			return nil, nil
		}
		return nil, gen.NewSchemaError(e.Name, "", fmt.Sprintf("constructor %s must return %s or *%s", ft, e.Name, e.Name), nil)
	}
	if ft.IsVariadic() {
		return nil, gen.NewSchemaError(e.Name, "", fmt.Sprintf("constructor %s is variadic", ft), nil)
	}
	if ft.NumIn() == 0 {
		return nil, nil
	}
	if len(cf.Params) != ft.NumIn() {
		return nil, gen.NewSchemaError(e.Name, "",
			fmt.Sprintf("constructor %s takes %d parameters, %d names given", ft, ft.NumIn(), len(cf.Params)), nil)
	}
	c := &schema.Constructor{Func: fv, Params: cf.Params}
	for _, p := range cf.Params {
		c.Properties = append(c.Properties, e.Property(p))
	}
	return c, nil
}

// throughPointer reports if the field at index is promoted through an
// embedded pointer, which cannot be set on a zero value.
func throughPointer(t reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Pointer {
			return true
		}
		t = f.Type
	}
	return false
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
