package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activatable/internal/app"
	"activatable/internal/config"
	"activatable/internal/core/apperror"
	"activatable/internal/core/id"
	"activatable/internal/domain"
	"activatable/internal/domain/catalogs/unit"
	"activatable/internal/domain/catalogs/warehouse"
	"activatable/internal/metadata"
	"activatable/pkg/logger"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvPrefix+"_CONFIG", "")
	t.Setenv(config.EnvPrefix+"_DATABASE_DSN", "")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidate_InMemory(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "models: 2 activatable of 3 registered")
	assert.NotContains(t, out, "database:")
}

func TestModels_ActivatableOnly(t *testing.T) {
	out, err := run(t, "models", "--activatable")
	require.NoError(t, err)

	var defs []metadata.ModelDef
	require.NoError(t, json.Unmarshal([]byte(out), &defs))
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
		assert.True(t, d.Activatable)
	}
	assert.ElementsMatch(t, []string{"Warehouse", "Unit"}, names)
}

func TestCreate_Warehouse(t *testing.T) {
	data := `{"code":"W1","name":"Main","type":"main","isActive":true,"organizationId":"` + id.New().String() + `"}`
	out, err := run(t, "create", warehouse.Name, "--data", data, "--actor", "ops")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "W1", got["code"])
	assert.Equal(t, true, got["isActive"])
}

func TestCreate_DataFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wh.json")
	data := `{"code":"W2","name":"Retail","type":"retail","organizationId":"` + id.New().String() + `"}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	out, err := run(t, "create", warehouse.Name, "--data", "@"+path)
	require.NoError(t, err)
	assert.Contains(t, out, `"code": "W2"`)
}

func TestCommands_Errors(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(error) bool
	}{
		{"missing data", []string{"create", warehouse.Name}, func(err error) bool {
			return apperror.HasCode(err, apperror.CodeValidation)
		}},
		{"invalid id", []string{"activate", warehouse.Name, "not-a-uuid"}, func(err error) bool {
			return apperror.HasCode(err, apperror.CodeValidation)
		}},
		{"unknown model", []string{"list", "Gadget"}, apperror.IsNotFound},
		{"missing record", []string{"delete", warehouse.Name, id.New().String(), "--force"}, apperror.IsNotFound},
		{"bad active filter", []string{"list", warehouse.Name, "--active", "maybe"}, func(err error) bool {
			return apperror.HasCode(err, apperror.CodeValidation)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestList_EmptyStore(t *testing.T) {
	out, err := run(t, "list", warehouse.Name, "--active", "true")
	require.NoError(t, err)
	assert.Contains(t, out, `"totalCount": 0`)
}

func TestImport_RequiresDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))

	_, err := run(t, "import", warehouse.Name, "--file", path)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func newMemoryApp(t *testing.T) *app.App {
	t.Helper()
	cfg, err := config.FromViper(config.New())
	require.NoError(t, err)
	a, err := app.New(context.Background(), cfg, logger.NewNop(), app.RoleServer)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestDecodeRecords_SplitsByFlag(t *testing.T) {
	a := newMemoryApp(t)
	admin, err := a.Admins.Get(warehouse.Name)
	require.NoError(t, err)

	org := id.New().String()
	items := []json.RawMessage{
		json.RawMessage(`{"code":"A","name":"Active","type":"main","isActive":true,"organizationId":"` + org + `"}`),
		json.RawMessage(`{"code":"B","name":"Closed","type":"transit","isActive":false,"organizationId":"` + org + `"}`),
	}
	records, err := decodeRecords(context.Background(), admin, items)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	active, inactive := splitByFlag(records)
	assert.Len(t, active, 1)
	assert.Len(t, inactive, 1)
	assert.NotEqual(t, active[0], inactive[0])

	items = append(items, json.RawMessage(`{"code":"C","name":"No type"}`))
	_, err = decodeRecords(context.Background(), admin, items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 2")
}

func TestPrepare_RunsCreateChecksOverBatch(t *testing.T) {
	a := newMemoryApp(t)
	ctx := context.Background()

	warehouses, err := a.Admins.Get(warehouse.Name)
	require.NoError(t, err)
	org := id.New().String()
	records, err := decodeRecords(ctx, warehouses, []json.RawMessage{
		json.RawMessage(`{"code":"A","name":"A","type":"main","isActive":true,"isDefault":true,"organizationId":"` + org + `"}`),
		json.RawMessage(`{"code":"B","name":"B","type":"main","isActive":true,"isDefault":true,"organizationId":"` + org + `"}`),
	})
	require.NoError(t, err)
	assert.True(t, apperror.HasCode(warehouses.Prepare(ctx, records), apperror.CodeValidation))

	units, err := a.Admins.Get(unit.Name)
	require.NoError(t, err)
	records, err = decodeRecords(ctx, units, []json.RawMessage{
		json.RawMessage(`{"code":"KG","name":"Kilogram","symbol":"kg","type":"weight","isEnabled":true,"isBase":true,"conversionFactor":"1"}`),
		json.RawMessage(`{"code":"KG2","name":"Kilo","symbol":" kg ","type":"weight","isEnabled":true,"isBase":true,"conversionFactor":"1"}`),
	})
	require.NoError(t, err)
	assert.True(t, apperror.HasCode(units.Prepare(ctx, records), apperror.CodeConflict))

	_, err = units.Create(ctx, []byte(`{"code":"G","name":"Gram","symbol":"g","type":"weight","isEnabled":true,"isBase":true,"conversionFactor":"1"}`))
	require.NoError(t, err)
	records, err = decodeRecords(ctx, units, []json.RawMessage{
		json.RawMessage(`{"code":"G2","name":"Gram","symbol":"g","type":"weight","isEnabled":true,"isBase":true,"conversionFactor":"1"}`),
	})
	require.NoError(t, err)
	err = units.Prepare(ctx, records)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict), "symbol taken by a stored unit")

	assert.True(t, apperror.HasCode(units.Prepare(ctx, []domain.Model{&warehouse.Warehouse{}}), apperror.CodeValidation))
}
