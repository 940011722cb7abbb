package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leasegate/leasegate/config"
	"github.com/leasegate/leasegate/models"
	"github.com/leasegate/leasegate/repositories"
	"github.com/leasegate/leasegate/repositories/sqlitestore"
	"github.com/leasegate/leasegate/services/audit"
	"github.com/leasegate/leasegate/services/governor"
	"github.com/leasegate/leasegate/services/policy"
	"github.com/leasegate/leasegate/services/quota"
	"github.com/leasegate/leasegate/services/tools"
)

// Admitter is the admission surface the HTTP handlers call. It is the quota
// hub when hierarchical quota enforcement is enabled, otherwise the governor
// itself.
type Admitter interface {
	Acquire(ctx context.Context, req *models.AcquireLeaseRequest) models.AcquireLeaseResponse
	Release(ctx context.Context, req *models.ReleaseLeaseRequest) models.ReleaseLeaseResponse
}

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	AuditWriter  *audit.JSONLWriter
	Audit        *audit.Service
	Policy       *policy.FileEngine
	StateStore   *sqlitestore.Store
	ToolRegistry *tools.Registry
	Governor     *governor.Service
	Hub          *quota.Hub
}

// NewDependencies initializes all application dependencies. The audit
// pipeline starts before the governor so recovery events are not dropped.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initAudit(); err != nil {
		return nil, fmt.Errorf("failed to initialize audit pipeline: %w", err)
	}

	if err := deps.initPolicy(); err != nil {
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	if err := deps.initStateStore(); err != nil {
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}

	deps.initGovernor()

	logger.Info("dependencies initialized successfully",
		zap.Bool("durable_state", deps.StateStore != nil),
		zap.Bool("quota_hub", deps.Hub != nil))

	return deps, nil
}

// Admitter returns the admission entry point handlers should use.
func (d *Dependencies) Admitter() Admitter {
	if d.Hub != nil {
		return d.Hub
	}
	return d.Governor
}

func (d *Dependencies) initAudit() error {
	writer, err := audit.NewJSONLWriter(d.Config.Audit.Directory)
	if err != nil {
		return fmt.Errorf("failed to open audit directory: %w", err)
	}
	d.AuditWriter = writer

	d.Audit = audit.NewService(writer, d.Logger, audit.Config{
		BufferSize: d.Config.Audit.QueueSize,
	})
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.Logger.Info("audit pipeline started",
		zap.String("directory", d.Config.Audit.Directory))
	return nil
}

func (d *Dependencies) initPolicy() error {
	engine, err := policy.NewFileEngine(d.Config.Policy.FilePath, d.Config.Policy.ReloadInterval, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to load policy file: %w", err)
	}
	engine.Start()
	d.Policy = engine

	snapshot := engine.CurrentSnapshot()
	d.Logger.Info("policy engine started",
		zap.String("file", d.Config.Policy.FilePath),
		zap.String("version", snapshot.Policy.PolicyVersion),
		zap.String("hash", snapshot.PolicyHash))
	return nil
}

func (d *Dependencies) initStateStore() error {
	if d.Config.State.Path == "" {
		d.Logger.Info("durable state disabled, running in-memory only")
		return nil
	}

	store, err := sqlitestore.New(d.Config.State.Path, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	d.StateStore = store

	d.Logger.Info("state store opened",
		zap.String("path", d.Config.State.Path))
	return nil
}

func (d *Dependencies) initGovernor() {
	// A typed-nil store must not reach the governor as a non-nil interface.
	var store repositories.StateStore
	if d.StateStore != nil {
		store = d.StateStore
	}

	d.ToolRegistry = tools.NewRegistry()
	d.Governor = governor.NewService(d.Config.GovernorOptions(), governor.Dependencies{
		Policy:       d.Policy,
		Audit:        d.Audit,
		ToolRegistry: d.ToolRegistry,
		StateStore:   store,
	}, d.Logger)
	d.Governor.Start()

	if d.Config.Quota.Enabled {
		d.Hub = quota.NewHub(d.Governor, d.Config.QuotaLimits(), d.Logger)
		d.Logger.Info("quota hub enabled",
			zap.Int("org_daily_budget_cents", d.Config.Quota.OrgDailyBudgetCents))
	}
}

// Close gracefully shuts down all dependencies in reverse init order.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error

	if d.Governor != nil {
		d.Governor.Close()
	}

	if d.Audit != nil {
		if err := d.Audit.Stop(5 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.Policy != nil {
		d.Policy.Close()
	}

	if d.StateStore != nil {
		if err := d.StateStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close state store: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
