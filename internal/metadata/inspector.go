package metadata

import (
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"activatable/internal/core/entity"
	"activatable/internal/core/id"
)

var (
	idType      = reflect.TypeOf(id.ID{})
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// Inspect analyzes a struct and returns its ModelDef.
//
// Columns come from "db" tags. A column tagged `ref:"table(column)"` is a
// relationship; `rel:"one_to_one"` marks it one-to-one and `on_delete:"..."` sets its
// delete rule. A relationship without on_delete cascades, so activatable types must
// state the rule explicitly.
func Inspect(model any, name, table string) ModelDef {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if name == "" {
		name = t.Name()
	}

	def := ModelDef{
		Name:      name,
		Label:     name,
		Type:      TypeCatalog,
		TableName: table,
		Fields:    make([]FieldDef, 0),
	}

	inspectStruct(t, &def)

	// Interfaces are usually satisfied by the pointer type.
	instance := reflect.New(t).Interface()
	if _, ok := instance.(entity.Activatable); ok {
		def.Activatable = true
		def.ActivatableField = entity.ActivatableField(instance)
		def.AllowCascadeDelete = entity.AllowsCascadeDelete(instance)
	}

	return def
}

func inspectStruct(t reflect.Type, def *ModelDef) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Handle embedded structs (flattening)
		if field.Anonymous {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				inspectStruct(ft, def)
			}
			continue
		}

		if field.PkgPath != "" { // unexported
			continue
		}

		column := field.Tag.Get("db")
		if column == "" || column == "-" {
			continue
		}

		fDef := FieldDef{
			Name:     jsonName(field),
			Column:   column,
			Label:    field.Name,
			Required: isRequired(field),
			ReadOnly: isReadOnly(field),
		}
		mapFieldType(&fDef, field)
		def.Fields = append(def.Fields, fDef)

		if ref, ok := field.Tag.Lookup("ref"); ok {
			rel := parseRelation(column, ref, field.Tag)
			def.Relations = append(def.Relations, rel)
		}
	}
}

func parseRelation(column, ref string, tag reflect.StructTag) RelationDef {
	table, col := ref, "id"
	if open := strings.Index(ref, "("); open > 0 && strings.HasSuffix(ref, ")") {
		table = ref[:open]
		col = ref[open+1 : len(ref)-1]
	}

	kind := RelationForeignKey
	if strings.EqualFold(tag.Get("rel"), string(RelationOneToOne)) {
		kind = RelationOneToOne
	}

	return RelationDef{
		Column:    column,
		Kind:      kind,
		RefTable:  strings.TrimSpace(table),
		RefColumn: strings.TrimSpace(col),
		OnDelete:  ParseOnDelete(tag.Get("on_delete")),
	}
}

// ParseOnDelete normalizes a delete rule. Empty means CASCADE, the relational default.
// Both "set_null" and "SET NULL" spellings are accepted.
func ParseOnDelete(s string) OnDelete {
	s = strings.TrimSpace(s)
	if s == "" {
		return OnDeleteCascade
	}
	s = strings.ToUpper(strings.ReplaceAll(s, "_", " "))
	return OnDelete(s)
}

func mapFieldType(def *FieldDef, field reflect.StructField) {
	t := field.Type
	if t.Kind() == reflect.Ptr {
		def.Nullable = true
		t = t.Elem()
	}

	switch t {
	case idType:
		def.Type = TypeID
		if ref, ok := field.Tag.Lookup("ref"); ok {
			def.Type = TypeReference
			def.ReferenceType = strings.SplitN(ref, "(", 2)[0]
		}
		return
	case timeType:
		def.Type = TypeDate
		return
	case decimalType:
		def.Type = TypeNumber
		return
	}

	switch t.Kind() {
	case reflect.String:
		def.Type = TypeString
		if ref, ok := field.Tag.Lookup("ref"); ok {
			def.Type = TypeReference
			def.ReferenceType = strings.SplitN(ref, "(", 2)[0]
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		def.Type = TypeInteger
	case reflect.Float32, reflect.Float64:
		def.Type = TypeNumber
	case reflect.Bool:
		def.Type = TypeBoolean
	default:
		def.Type = TypeString // fallback
	}
}

func jsonName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		parts := strings.Split(tag, ",")
		if parts[0] != "" && parts[0] != "-" {
			return parts[0]
		}
	}
	// Fallback: camelCase
	runes := []rune(field.Name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

func isRequired(field reflect.StructField) bool {
	if tag, ok := field.Tag.Lookup("binding"); ok {
		return strings.Contains(tag, "required")
	}
	return false
}

func isReadOnly(field reflect.StructField) bool {
	return field.Name == "ID" || field.Name == "Version"
}
