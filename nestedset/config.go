package nestedset

import (
	"fmt"
)

// Config describes how nested-set records are laid out in the backing
// store. It is a plain value: construct it once, pass it to the store and
// tree constructors, and never mutate it afterwards.
type Config struct {
	// Table is the physical table (or collection) holding the records.
	Table string

	// Column names for the record fields.
	IDColumn    string
	NameColumn  string
	LeftColumn  string
	RightColumn string

	// GroupColumn and GroupValue enable forest partitioning: when both are
	// set, every query and update issued by the engine is additionally
	// restricted to rows whose group column equals GroupValue, so one
	// physical table can hold many independent trees. Setting one without
	// the other is a configuration error.
	GroupColumn string
	GroupValue  string

	// RootName is the name of the root node, used both for lookups and for
	// auto-created roots.
	RootName string

	// AutoCreateRoot makes a name lookup for RootName create the root row
	// at (1,2) when the partition is empty, instead of returning ErrNotFound.
	AutoCreateRoot bool
}

// DefaultConfig returns the conventional layout: table "nodes" with columns
// id/name/lft/rgt, root named "root", auto-creation enabled, no partitioning.
func DefaultConfig() Config {
	return Config{
		Table:          "nodes",
		IDColumn:       "id",
		NameColumn:     "name",
		LeftColumn:     "lft",
		RightColumn:    "rgt",
		RootName:       "root",
		AutoCreateRoot: true,
	}
}

func (c Config) validate() error {
	if c.Table == "" {
		return fmt.Errorf("config: table name is required")
	}
	for _, col := range []struct{ name, val string }{
		{"id", c.IDColumn},
		{"name", c.NameColumn},
		{"left", c.LeftColumn},
		{"right", c.RightColumn},
	} {
		if col.val == "" {
			return fmt.Errorf("config: %s column name is required", col.name)
		}
	}
	if (c.GroupColumn == "") != (c.GroupValue == "") {
		return fmt.Errorf("config: group column and group value must be set together")
	}
	if c.RootName == "" {
		return fmt.Errorf("config: root name is required")
	}
	return nil
}

// Partitioned reports whether forest partitioning is active.
func (c Config) Partitioned() bool {
	return c.GroupColumn != ""
}

func (c Config) column(f Field) string {
	switch f {
	case FieldID:
		return c.IDColumn
	case FieldName:
		return c.NameColumn
	case FieldLeft:
		return c.LeftColumn
	case FieldRight:
		return c.RightColumn
	case FieldGroup:
		return c.GroupColumn
	}
	return ""
}
