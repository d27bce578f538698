// Package app assembles the services shared by the server, the worker and the CLI.
package app

import (
	"context"
	"fmt"

	"activatable/internal/activation"
	"activatable/internal/config"
	"activatable/internal/core/entity"
	"activatable/internal/core/id"
	"activatable/internal/core/tx"
	"activatable/internal/core/tx/inproc"
	"activatable/internal/domain"
	"activatable/internal/domain/catalogs/organization"
	"activatable/internal/domain/catalogs/unit"
	"activatable/internal/domain/catalogs/warehouse"
	"activatable/internal/infrastructure/storage/memory"
	"activatable/internal/infrastructure/storage/postgres"
	"activatable/internal/infrastructure/storage/postgres/activatable_repo"
	"activatable/internal/metadata"
	"activatable/pkg/logger"
)

// Role selects how events leave the process.
type Role int

const (
	// RoleServer records events to the outbox when it is enabled and otherwise
	// delivers them to the audit receiver directly.
	RoleServer Role = iota
	// RoleWorker receives events relayed from the outbox.
	RoleWorker
	// RoleCLI behaves like RoleServer for short-lived operator commands.
	RoleCLI
)

func (r Role) String() string {
	switch r {
	case RoleWorker:
		return "worker"
	case RoleCLI:
		return "cli"
	}
	return "server"
}

// App holds the assembled components.
type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Registry   *metadata.Registry
	Signals    *activation.Signals
	Dispatcher *activation.Dispatcher
	TxManager  tx.Manager

	// Set only when a database is configured.
	Pool      *postgres.Pool
	PgTx      *postgres.TxManager
	Audit     *postgres.AuditService
	Inspector *postgres.SchemaInspector

	Warehouses *warehouse.Service
	Units      *unit.Service
	Admins     *domain.Admins
}

// NewRegistry registers the record types served by this module. The default
// flag column must be configured before it is called.
func NewRegistry() *metadata.Registry {
	reg := metadata.NewRegistry()
	reg.Register(organization.Definition())
	reg.Register(warehouse.Definition())
	reg.Register(unit.Definition())
	return reg
}

// Validate applies the configured default flag column and checks every
// registered type. It touches no database.
func Validate(cfg *config.Config) (*metadata.Registry, error) {
	entity.SetDefaultActivatableField(cfg.Activation.FieldName)
	reg := NewRegistry()
	if err := metadata.ValidateActivatable(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// New builds the application. Start-up validation failures are returned as
// INVALID_MODEL errors and must abort the process.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, role Role) (*App, error) {
	reg, err := Validate(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Signals:  activation.NewSignals(),
	}

	logReceiver := activation.NewLogReceiver(log)
	a.Signals.Changed.Connect(logReceiver, activation.DispatchUID("log"))
	a.Signals.Updated.Connect(logReceiver, activation.DispatchUID("log"))

	if cfg.InMemory() {
		a.buildMemory()
		log.Info("storage: in-memory")
		return a, nil
	}

	if err := a.buildPostgres(ctx, role); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildMemory() {
	txm := inproc.New()
	a.TxManager = txm
	a.Dispatcher = activation.NewDispatcher(a.Signals, txm, activation.WithLogger(a.Log))

	whDef, unitDef := warehouse.Definition(), unit.Definition()
	a.wire(
		memory.NewRepo(whDef.Name, whDef.ActivatableField, func() *warehouse.Warehouse { return &warehouse.Warehouse{} }),
		memory.NewRepo(unitDef.Name, unitDef.ActivatableField, func() *unit.Unit { return &unit.Unit{} }),
	)
}

func (a *App) buildPostgres(ctx context.Context, role Role) error {
	cfg := a.Config

	pc := cfg.PoolConfig()
	pc.ApplicationName = "activatable-" + role.String()
	pool, err := postgres.NewPool(ctx, pc)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool
	a.PgTx = postgres.NewTxManager(pool)
	a.TxManager = a.PgTx
	a.Inspector = postgres.NewSchemaInspector(a.PgTx)

	if cfg.Activation.StrictDBCheck {
		if err := a.Inspector.CheckCascade(ctx, a.Registry); err != nil {
			return err
		}
		a.Log.Info("database foreign keys checked")
	}

	opts := []activation.DispatcherOption{activation.WithLogger(a.Log)}
	if cfg.Activation.OutboxEnabled && role != RoleWorker {
		var outboxOpts []postgres.OutboxOption
		if cfg.Activation.OutboxFilter != "" {
			cond, err := activation.CompileCondition(cfg.Activation.OutboxFilter)
			if err != nil {
				return fmt.Errorf("outbox filter: %w", err)
			}
			outboxOpts = append(outboxOpts, postgres.WithOutboxFilter(cond))
		}
		opts = append(opts, activation.WithRecorder(postgres.NewOutboxPublisher(a.PgTx, outboxOpts...)))
	}
	a.Dispatcher = activation.NewDispatcher(a.Signals, a.PgTx, opts...)

	if cfg.Activation.AuditEnabled {
		audit, err := postgres.NewAuditService(a.PgTx)
		if err != nil {
			return err
		}
		a.Audit = audit
		// With the outbox on, the worker receives the relayed events and audits them.
		if role == RoleWorker || !cfg.Activation.OutboxEnabled {
			a.Signals.Changed.Connect(audit, activation.DispatchUID("audit"))
			a.Signals.Updated.Connect(audit, activation.DispatchUID("audit"))
		}
	}

	a.wire(activatable_repo.NewWarehouseRepo(a.PgTx), activatable_repo.NewUnitRepo(a.PgTx))
	a.Log.Infow("storage: postgres", "outbox", cfg.Activation.OutboxEnabled, "audit", cfg.Activation.AuditEnabled)
	return nil
}

func (a *App) wire(whRepo warehouse.Repository, unitRepo unit.Repository) {
	a.Warehouses = warehouse.NewService(whRepo, a.TxManager, a.Dispatcher, a.Log)
	a.Units = unit.NewService(unitRepo, a.TxManager, a.Dispatcher, a.Log)

	a.Admins = domain.NewAdmins(
		domain.NewModelAdmin(a.Warehouses.ActivatableService, func() *warehouse.Warehouse {
			return warehouse.NewWarehouse("", "", "", id.ID{})
		}),
		domain.NewModelAdmin(a.Units.ActivatableService, func() *unit.Unit {
			return unit.NewUnit("", "", "", "")
		}),
	)
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
