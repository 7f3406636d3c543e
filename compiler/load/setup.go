package load

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/syssam/sqlrepo/dialect"
	"github.com/syssam/sqlrepo/schema"
	"github.com/syssam/sqlrepo/schema/naming"
)

// Setup is the schema setup file. Sections are keyed by contract type name.
type Setup struct {
	Repositories map[string]*RepositorySetup `yaml:"repositories"`
}

// RepositorySetup configures one repository.
type RepositorySetup struct {
	Dialect      string                   `yaml:"dialect,omitempty"`
	Table        string                   `yaml:"table,omitempty"`
	TableNaming  string                   `yaml:"tableNaming,omitempty"`
	ColumnNaming string                   `yaml:"columnNaming,omitempty"`
	PluralTables bool                     `yaml:"pluralTables,omitempty"`
	Overrides    map[string]string        `yaml:"overrides,omitempty"`
	PrimaryKey   []string                 `yaml:"primaryKey,omitempty"`
	Properties   map[string]PropertySetup `yaml:"properties,omitempty"`
	Methods      map[string]MethodSetup   `yaml:"methods,omitempty"`
}

// PropertySetup overrides the column of one entity property.
type PropertySetup struct {
	Column string `yaml:"column,omitempty"`
	Width  int    `yaml:"width,omitempty"`
}

// MethodSetup attaches SQL or a singleton behavior to one method.
type MethodSetup struct {
	SQL             string `yaml:"sql,omitempty"`
	StoredProcedure bool   `yaml:"storedProcedure,omitempty"`
	Singleton       string `yaml:"singleton,omitempty"`
}

// ParseSetup decodes a setup file. Unknown keys are errors.
func ParseSetup(r io.Reader) (*Setup, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	s := &Setup{}
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("load: parse setup: %w", err)
	}
	return s, nil
}

// Section returns the section of the named contract, or nil.
func (s *Setup) Section(name string) *RepositorySetup {
	if s == nil {
		return nil
	}
	return s.Repositories[name]
}

// Options returns the build options of the named contract: its dialect
// and naming conventions.
func (s *Setup) Options(name string) ([]Option, error) {
	rs := s.Section(name)
	if rs == nil {
		return nil, nil
	}
	var opts []Option
	if rs.Dialect != "" {
		d, err := dialect.ByName(rs.Dialect)
		if err != nil {
			return nil, fmt.Errorf("load: setup of %s: %w", name, err)
		}
		opts = append(opts, WithDialect(d))
	}
	if rs.TableNaming != "" || rs.PluralTables || len(rs.Overrides) > 0 {
		c, err := naming.Parse(rs.TableNaming)
		if err != nil {
			return nil, fmt.Errorf("load: setup of %s: %w", name, err)
		}
		if rs.PluralTables {
			c = c.Plural()
		}
		opts = append(opts, WithTableNaming(c.WithOverrides(rs.Overrides)))
	}
	if rs.ColumnNaming != "" || len(rs.Overrides) > 0 {
		c, err := naming.Parse(rs.ColumnNaming)
		if err != nil {
			return nil, fmt.Errorf("load: setup of %s: %w", name, err)
		}
		opts = append(opts, WithColumnNaming(c.WithOverrides(rs.Overrides)))
	}
	return opts, nil
}

// Apply applies the section matching def to the built definition. All
// problems, such as unknown properties or methods, are reported together.
func (s *Setup) Apply(def *schema.RepositoryDef) error {
	rs := s.Section(def.Name)
	if rs == nil {
		return nil
	}
	var errs []error
	if rs.Dialect != "" {
		d, err := dialect.ByName(rs.Dialect)
		if err == nil {
			err = def.SetDialect(d)
		}
		errs = append(errs, err)
	}
	if rs.Table != "" {
		errs = append(errs, def.SetTableName(rs.Table))
	}
	if len(rs.PrimaryKey) > 0 {
		errs = append(errs, def.SetPrimaryKey(rs.PrimaryKey...))
	}
	for _, name := range slices.Sorted(maps.Keys(rs.Properties)) {
		ps := rs.Properties[name]
		if ps.Column != "" {
			errs = append(errs, def.SetColumnName(name, ps.Column))
		}
		if ps.Width != 0 {
			errs = append(errs, def.SetStringWidth(name, ps.Width))
		}
	}
	for _, name := range slices.Sorted(maps.Keys(rs.Methods)) {
		ms := rs.Methods[name]
		if ms.SQL != "" || ms.StoredProcedure {
			errs = append(errs, def.SetCustomSQL(name, ms.SQL, ms.StoredProcedure))
		}
		if ms.Singleton != "" {
			b, err := schema.ParseSingletonGetBehavior(ms.Singleton)
			if err == nil {
				err = def.SetSingletonGetBehavior(name, b)
			}
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("load: setup of %s: %w", def.Name, err)
	}
	return nil
}
