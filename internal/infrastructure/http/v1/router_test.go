package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activatable/internal/activation"
	"activatable/internal/core/id"
	"activatable/internal/core/tx/inproc"
	"activatable/internal/domain/catalogs/unit"
	"activatable/internal/domain/catalogs/warehouse"
	v1 "activatable/internal/infrastructure/http/v1"
	"activatable/internal/infrastructure/http/v1/middleware"
	"activatable/internal/infrastructure/storage/memory"
	"activatable/internal/infrastructure/storage/postgres"
	"activatable/internal/metadata"
	"activatable/pkg/logger"
)

type recorded struct {
	mu     sync.Mutex
	events []activation.Event
}

func (r *recorded) Receive(_ context.Context, ev activation.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorded) all() []activation.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]activation.Event(nil), r.events...)
}

type apiFixture struct {
	handler http.Handler
	changed *recorded
	updated *recorded
	whRepo  *memory.Repo[*warehouse.Warehouse]
}

func newAPI(t *testing.T, idem middleware.IdempotencyStore) *apiFixture {
	t.Helper()

	log := logger.NewNop()
	txm := inproc.New()
	signals := activation.NewSignals()
	changed, updated := &recorded{}, &recorded{}
	signals.Changed.Connect(changed)
	signals.Updated.Connect(updated)
	dispatcher := activation.NewDispatcher(signals, txm, activation.WithLogger(log))

	whDef, unitDef := warehouse.Definition(), unit.Definition()
	whRepo := memory.NewRepo[*warehouse.Warehouse](whDef.Name, whDef.ActivatableField, func() *warehouse.Warehouse { return &warehouse.Warehouse{} })
	unitRepo := memory.NewRepo[*unit.Unit](unitDef.Name, unitDef.ActivatableField, func() *unit.Unit { return &unit.Unit{} })

	reg := metadata.NewRegistry()
	reg.Register(whDef)
	reg.Register(unitDef)

	router := v1.NewRouter(v1.RouterConfig{
		Logger:      log,
		Registry:    reg,
		Warehouses:  warehouse.NewService(whRepo, txm, dispatcher, log),
		Units:       unit.NewService(unitRepo, txm, dispatcher, log),
		Idempotency: idem,
		Version:     "test",
	})

	return &apiFixture{handler: router, changed: changed, updated: updated, whRepo: whRepo}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f *apiFixture) createWarehouse(t *testing.T, code string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/catalog/warehouses", map[string]any{
		"code":           code,
		"name":           "Warehouse " + code,
		"type":           "main",
		"organizationId": id.New().String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestWarehouseLifecycle(t *testing.T) {
	f := newAPI(t, nil)
	whID := f.createWarehouse(t, "W1")

	require.Len(t, f.changed.all(), 1, "creation announces the flag")
	assert.True(t, f.changed.all()[0].IsActive)

	w := f.do(t, http.MethodPost, "/api/v1/catalog/warehouses/"+whID+"/deactivate", nil, middleware.HeaderActor, "ops")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["isActive"])

	events := f.changed.all()
	require.Len(t, events, 2)
	assert.False(t, events[1].IsActive)
	assert.Equal(t, "ops", events[1].Actor)

	// soft delete of an inactive record writes nothing new
	w = f.do(t, http.MethodDelete, "/api/v1/catalog/warehouses/"+whID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, f.changed.all(), 2)

	w = f.do(t, http.MethodGet, "/api/v1/catalog/warehouses/"+whID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/catalog/warehouses/"+whID+"?force=true", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/catalog/warehouses/"+whID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])
}

func TestWarehouseForceDeleteProtected(t *testing.T) {
	f := newAPI(t, nil)
	whID := f.createWarehouse(t, "W1")

	parsed, err := id.Parse(whID)
	require.NoError(t, err)
	f.whRepo.Protect(parsed)

	w := f.do(t, http.MethodDelete, "/api/v1/catalog/warehouses/"+whID+"?force=true", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PROTECTED", decode(t, w)["code"])
}

func TestWarehouseList_ActiveFilter(t *testing.T) {
	f := newAPI(t, nil)
	first := f.createWarehouse(t, "W1")
	f.createWarehouse(t, "W2")
	f.do(t, http.MethodPost, "/api/v1/catalog/warehouses/"+first+"/deactivate", nil)

	w := f.do(t, http.MethodGet, "/api/v1/catalog/warehouses?active=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["totalCount"])

	w = f.do(t, http.MethodGet, "/api/v1/catalog/warehouses?active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/catalog/warehouses?filter=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkActivation(t *testing.T) {
	f := newAPI(t, nil)
	a := f.createWarehouse(t, "A")
	b := f.createWarehouse(t, "B")
	f.do(t, http.MethodPost, "/api/v1/catalog/warehouses/"+b+"/deactivate", nil)
	before := len(f.changed.all())

	w := f.do(t, http.MethodPost, "/api/v1/catalog/warehouses/bulk/activate", map[string]any{
		"ids": []string{a, b},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["affected"])

	updated := f.updated.all()
	require.Len(t, updated, 1)
	assert.Len(t, updated[0].InstanceIDs, 2)

	changed := f.changed.all()[before:]
	require.Len(t, changed, 1)
	assert.Equal(t, b, changed[0].InstanceIDs[0].String())

	w = f.do(t, http.MethodPost, "/api/v1/catalog/warehouses/bulk/delete", map[string]any{"all": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["affected"])
	assert.Equal(t, 2, f.whRepo.Len(), "soft delete keeps rows")

	w = f.do(t, http.MethodPost, "/api/v1/catalog/warehouses/bulk/delete", map[string]any{"all": true, "force": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, f.whRepo.Len())
}

func TestBulk_RejectsEmptySelector(t *testing.T) {
	f := newAPI(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/catalog/warehouses/bulk/deactivate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/catalog/warehouses/bulk/deactivate", map[string]any{"ids": []string{"x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnitUsesCustomFlag(t *testing.T) {
	f := newAPI(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/catalog/units", map[string]any{
		"code":      "KG",
		"name":      "Kilogram",
		"type":      "weight",
		"symbol":    "kg",
		"isEnabled": false,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	unitID := decode(t, w)["id"].(string)
	assert.False(t, f.changed.all()[0].IsActive)

	w = f.do(t, http.MethodPost, "/api/v1/catalog/units/"+unitID+"/activate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["isEnabled"])
	assert.Equal(t, unit.Name, f.changed.all()[1].Model)
}

func TestInvalidID(t *testing.T) {
	f := newAPI(t, nil)
	w := f.do(t, http.MethodGet, "/api/v1/catalog/units/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])
}

func TestMetaModels(t *testing.T) {
	f := newAPI(t, nil)

	w := f.do(t, http.MethodGet, "/api/v1/meta/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	assert.Len(t, items, 2)

	w = f.do(t, http.MethodGet, "/api/v1/meta/models/"+unit.Name, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, unit.FlagColumn, decode(t, w)["activatableField"])

	w = f.do(t, http.MethodGet, "/api/v1/meta/models/Nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	f := newAPI(t, nil)

	w := f.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

type memoryIdempotency struct {
	mu      sync.Mutex
	replays map[string]*postgres.IdempotencyReplay
}

func (m *memoryIdempotency) AcquireKey(_ context.Context, key, _, _, _ string) (*postgres.IdempotencyReplay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replays[key], nil
}

func (m *memoryIdempotency) CompleteKey(_ context.Context, key string, status int, ct string, response any) error {
	body, err := json.Marshal(response)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replays[key] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: ct, Body: body}
	return nil
}

func (m *memoryIdempotency) FailKey(ctx context.Context, key string, status int, ct string, response any) error {
	return m.CompleteKey(ctx, key, status, ct, response)
}

func TestIdempotentBulkReplay(t *testing.T) {
	store := &memoryIdempotency{replays: map[string]*postgres.IdempotencyReplay{}}
	f := newAPI(t, store)
	a := f.createWarehouse(t, "A")
	f.do(t, http.MethodPost, "/api/v1/catalog/warehouses/"+a+"/deactivate", nil)

	body := map[string]any{"ids": []string{a}}
	first := f.do(t, http.MethodPost, "/api/v1/catalog/warehouses/bulk/activate", body, middleware.HeaderIdempotencyKey, "k1")
	require.Equal(t, http.StatusOK, first.Code)
	changes := len(f.changed.all())

	second := f.do(t, http.MethodPost, "/api/v1/catalog/warehouses/bulk/activate", body, middleware.HeaderIdempotencyKey, "k1")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Len(t, f.changed.all(), changes, "replay does not run the update again")
}
