// Package metadata describes registered record types: their columns, their
// relationships and whether they take part in activation tracking.
package metadata

import (
	"sort"
	"sync"
)

// EntityType defines the category of the entity.
type EntityType string

const (
	TypeCatalog EntityType = "catalog"
)

// FieldType defines the data type of a field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInteger   FieldType = "integer"
	TypeNumber    FieldType = "number" // float/decimal
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeID        FieldType = "id"
	TypeReference FieldType = "reference"
)

// RelationKind distinguishes many-to-one from one-to-one references.
type RelationKind string

const (
	RelationForeignKey RelationKind = "foreign_key"
	RelationOneToOne   RelationKind = "one_to_one"
)

// OnDelete is the action taken on the referencing row when the referenced row is deleted.
type OnDelete string

const (
	OnDeleteCascade    OnDelete = "CASCADE"
	OnDeleteProtect    OnDelete = "PROTECT"
	OnDeleteRestrict   OnDelete = "RESTRICT"
	OnDeleteSetNull    OnDelete = "SET NULL"
	OnDeleteSetDefault OnDelete = "SET DEFAULT"
	OnDeleteNoAction   OnDelete = "NO ACTION"
	OnDeleteDoNothing  OnDelete = "DO NOTHING"
)

// ModelDef describes a record type.
type ModelDef struct {
	Name      string        `json:"name"`
	Label     string        `json:"label,omitempty"`
	Type      EntityType    `json:"type"`
	TableName string        `json:"table"`
	Fields    []FieldDef    `json:"fields"`
	Relations []RelationDef `json:"relations,omitempty"`

	// Activatable is true when the Go type implements entity.Activatable.
	Activatable bool `json:"activatable"`
	// ActivatableField is the flag column the type declares (is_active by default).
	ActivatableField string `json:"activatableField,omitempty"`
	// AllowCascadeDelete exempts the type from the cascade rule.
	AllowCascadeDelete bool `json:"allowCascadeDelete,omitempty"`
}

// FieldDef describes a field.
type FieldDef struct {
	Name          string    `json:"name"`
	Column        string    `json:"column"`
	Label         string    `json:"label,omitempty"`
	Type          FieldType `json:"type"`
	Nullable      bool      `json:"nullable,omitempty"`
	ReferenceType string    `json:"referenceType,omitempty"`
	Required      bool      `json:"required,omitempty"`
	ReadOnly      bool      `json:"readOnly,omitempty"`
}

// RelationDef describes a reference from this type's column to another table.
type RelationDef struct {
	Column    string       `json:"column"`
	Kind      RelationKind `json:"kind"`
	RefTable  string       `json:"refTable"`
	RefColumn string       `json:"refColumn"`
	OnDelete  OnDelete     `json:"onDelete"`
}

// Field returns the field stored under column.
func (d ModelDef) Field(column string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return FieldDef{}, false
}

// Columns lists the db columns in declaration order.
func (d ModelDef) Columns() []string {
	cols := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// Registry stores model definitions. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]ModelDef
}

func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]ModelDef),
	}
}

func (r *Registry) Register(def ModelDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[def.Name] = def
}

func (r *Registry) Get(name string) (ModelDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.models[name]
	return d, ok
}

// List returns all definitions sorted by name.
func (r *Registry) List() []ModelDef {
	r.mu.RLock()
	list := make([]ModelDef, 0, len(r.models))
	for _, def := range r.models {
		list = append(list, def)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Activatable returns the definitions of types taking part in activation tracking.
func (r *Registry) Activatable() []ModelDef {
	var out []ModelDef
	for _, def := range r.List() {
		if def.Activatable {
			out = append(out, def)
		}
	}
	return out
}
