package tasks

import (
	"fmt"
	"time"

	"github.com/openamphion/amphion/pkg/agentcfg"
	"github.com/openamphion/amphion/pkg/amphorae"
	"github.com/openamphion/amphion/pkg/drivers"
	"github.com/openamphion/amphion/pkg/secrets"
	"github.com/openamphion/amphion/pkg/store"
	"github.com/openamphion/amphion/pkg/telemetry"
)

// Task names used for logging and metrics labels.
const (
	taskAmphoraListenersUpdate     = "amphora-listeners-update"
	taskListenersUpdate            = "listeners-update"
	taskListenersStart             = "listeners-start"
	taskListenerDelete             = "listener-delete"
	taskAmphoraGetInfo             = "amphora-get-info"
	taskAmphoraGetDiagnostics      = "amphora-get-diagnostics"
	taskAmphoraFinalize            = "amphora-finalize"
	taskAmphoraPostNetworkPlug     = "amphora-post-network-plug"
	taskAmphoraePostNetworkPlug    = "amphorae-post-network-plug"
	taskAmphoraPostVIPPlug         = "amphora-post-vip-plug"
	taskAmphoraePostVIPPlug        = "amphorae-post-vip-plug"
	taskAmphoraCertUpload          = "amphora-cert-upload"
	taskAmphoraUpdateVRRPInterface = "amphora-update-vrrp-interface"
	taskAmphoraVRRPUpdate          = "amphora-vrrp-update"
	taskAmphoraVRRPStop            = "amphora-vrrp-stop"
	taskAmphoraVRRPStart           = "amphora-vrrp-start"
	taskAmphoraComputeConnectivity = "amphora-compute-connectivity-wait"
	taskAmphoraConfigUpdate        = "amphora-config-update"
)

// Config is the immutable slice of process configuration the tasks consume.
// Values are read at construction and never mutated by the tasks.
type Config struct {
	// ConnectionMaxRetries bounds connection attempts to a booting amphora.
	ConnectionMaxRetries int

	// ConnectionRetryInterval is the wait between bootstrap connection
	// attempts.
	ConnectionRetryInterval time.Duration

	// ActiveConnectionMaxRetries bounds connection attempts to an amphora
	// that is already serving traffic.
	ActiveConnectionMaxRetries int

	// ActiveConnectionRetryInterval is the wait between steady-state
	// connection attempts.
	ActiveConnectionRetryInterval time.Duration

	// DefaultTopology is the topology used when no flavor override is
	// supplied.
	DefaultTopology amphorae.Topology

	// CertKey is the symmetric key for decrypting at-rest certificate blobs.
	CertKey *[secrets.KeySize]byte
}

// Base carries the collaborators shared by every task: the resolved driver,
// the entity store, the status updater, configuration, and telemetry. The
// driver is resolved exactly once when the Base is constructed; every task
// built on the same Base reuses the same instance.
type Base struct {
	driver     drivers.AmphoraDriver
	driverName string
	store      store.Store
	status     *StatusUpdater
	agentCfg   *agentcfg.Builder
	cfg        Config
	logger     *telemetry.Logger
	metrics    *telemetry.Metrics
}

// NewBase resolves the named driver from the registry and bundles the task
// collaborators.
func NewBase(
	cfg Config,
	registry *drivers.Registry,
	driverName string,
	driverOpts map[string]string,
	st store.Store,
	builder *agentcfg.Builder,
	logger *telemetry.Logger,
	metrics *telemetry.Metrics,
) (*Base, error) {
	driver, err := registry.Resolve(driverName, driverOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve amphora driver: %w", err)
	}

	return &Base{
		driver:     driver,
		driverName: driverName,
		store:      st,
		status:     NewStatusUpdater(st, logger, metrics),
		agentCfg:   builder,
		cfg:        cfg,
		logger:     logger.NewComponentLogger("tasks"),
		metrics:    metrics,
	}, nil
}

// observe records a task execution outcome. Used with defer and a named
// error return.
func (b *Base) observe(task string, start time.Time, errp *error) {
	if b.metrics == nil {
		return
	}
	result := "success"
	if errp != nil && *errp != nil {
		result = "failure"
	}
	b.metrics.RecordTaskExecution(task, result, time.Since(start))
}

// observeRevert records a revert invocation and whether it was skipped
// because the task's own execute failed.
func (b *Base) observeRevert(task string, cause RevertCause) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordTaskRevert(task, cause.String())
}

// recordDriverError counts a classified driver failure.
func (b *Base) recordDriverError(op string, err error) {
	if b.metrics == nil || err == nil {
		return
	}
	b.metrics.RecordDriverError(b.driverName, op, string(drivers.Classify(err)))
}
