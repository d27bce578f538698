package metadata

import (
	"errors"
	"fmt"

	"activatable/internal/core/apperror"
)

// ValidateActivatable checks every activatable definition in reg.
// It returns nil when all types are valid, otherwise one INVALID_MODEL error per
// offending type joined together.
func ValidateActivatable(reg *Registry) error {
	var errs []error
	for _, def := range reg.Activatable() {
		if err := ValidateModel(def); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateModel checks one definition. Non-activatable definitions always pass.
//
// Rules:
//   - the type defines a non-nullable boolean column named after its flag;
//   - unless the type allows cascade delete, no foreign-key or one-to-one relation
//     deletes it in cascade when the referenced row goes away.
func ValidateModel(def ModelDef) error {
	if !def.Activatable {
		return nil
	}

	field, ok := def.Field(def.ActivatableField)
	if !ok || field.Type != TypeBoolean || field.Nullable {
		return apperror.NewInvalidModel(def.Name, fmt.Sprintf(
			"It must define an activatable boolean field that has a field name of %q "+
				"(the activatable field name, which defaults to is_active)", def.ActivatableField)).
			WithDetail("field", def.ActivatableField)
	}

	if def.AllowCascadeDelete {
		return nil
	}

	for _, rel := range def.Relations {
		if rel.Kind != RelationForeignKey && rel.Kind != RelationOneToOne {
			continue
		}
		if rel.OnDelete == OnDeleteCascade {
			return apperror.NewInvalidModel(def.Name,
				"All foreign key and one-to-one relations must set on_delete to something other "+
					"than CASCADE (the default). To explicitly allow cascade deletes, implement "+
					"AllowCascadeDelete() returning true on the model.").
				WithDetail("field", rel.Column).
				WithDetail("refTable", rel.RefTable)
		}
	}

	return nil
}
