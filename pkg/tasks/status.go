package tasks

import (
	"context"

	"github.com/openamphion/amphion/pkg/amphorae"
	"github.com/openamphion/amphion/pkg/store"
	"github.com/openamphion/amphion/pkg/telemetry"
)

// StatusUpdater applies ERROR transitions to entities from task failure and
// compensation paths. Every method is idempotent: marking an entity that is
// already ERROR is a harmless overwrite, since a concurrent worker may have
// gotten there first. Store failures are logged and swallowed so that one
// failed status write cannot prevent the remaining compensations in a
// rollback from running.
type StatusUpdater struct {
	store   store.Store
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
}

// NewStatusUpdater creates a status updater over the given store.
func NewStatusUpdater(st store.Store, logger *telemetry.Logger, metrics *telemetry.Metrics) *StatusUpdater {
	return &StatusUpdater{
		store:   st,
		logger:  logger.NewComponentLogger("status"),
		metrics: metrics,
	}
}

// MarkAmphoraError sets an amphora's status to ERROR.
func (u *StatusUpdater) MarkAmphoraError(ctx context.Context, amphoraID string) {
	status := amphorae.StatusError
	err := u.store.UpdateAmphora(ctx, amphoraID, store.AmphoraChanges{Status: &status})
	if err != nil {
		u.logger.WithAmphoraID(amphoraID).WithError(err).
			Error("Failed to mark amphora ERROR")
		return
	}
	u.record("amphora")
}

// MarkListenerError sets a listener's provisioning status to ERROR.
func (u *StatusUpdater) MarkListenerError(ctx context.Context, listenerID string) {
	status := amphorae.ProvisioningError
	err := u.store.UpdateListener(ctx, listenerID, store.ListenerChanges{ProvisioningStatus: &status})
	if err != nil {
		u.logger.WithListenerID(listenerID).WithError(err).
			Error("Failed to mark listener ERROR")
		return
	}
	u.record("listener")
}

// MarkLoadBalancerError sets a load balancer's provisioning status to ERROR.
func (u *StatusUpdater) MarkLoadBalancerError(ctx context.Context, loadBalancerID string) {
	status := amphorae.ProvisioningError
	err := u.store.UpdateLoadBalancer(ctx, loadBalancerID, store.LoadBalancerChanges{ProvisioningStatus: &status})
	if err != nil {
		u.logger.WithLoadBalancerID(loadBalancerID).WithError(err).
			Error("Failed to mark load balancer ERROR")
		return
	}
	u.record("load_balancer")
}

func (u *StatusUpdater) record(entity string) {
	if u.metrics != nil {
		u.metrics.RecordEntityMarkedError(entity)
	}
}
