package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openamphion/amphion/pkg/amphorae"
	"github.com/openamphion/amphion/pkg/drivers"
	"github.com/openamphion/amphion/pkg/store"
)

// AmphoraListenersUpdate pushes the listener configuration to one amphora
// out of a set, addressed by index. A failure is contained to that amphora:
// it is logged, the amphora is marked ERROR, and the task succeeds anyway.
// The task may run in a failover flow with both amphorae failing, so it must
// never trigger a revert; the health manager repairs what it can later.
type AmphoraListenersUpdate struct {
	*Base
}

// NewAmphoraListenersUpdate creates the task.
func NewAmphoraListenersUpdate(base *Base) *AmphoraListenersUpdate {
	return &AmphoraListenersUpdate{Base: base}
}

// Execute updates the listeners on amphoraIDs[amphoraIndex].
func (t *AmphoraListenersUpdate) Execute(ctx context.Context, loadBalancerID string, amphoraIndex int, amphoraIDs []string, timeouts *drivers.TimeoutConfig) (err error) {
	defer t.observe(taskAmphoraListenersUpdate, time.Now(), &err)

	if amphoraIndex < 0 || amphoraIndex >= len(amphoraIDs) {
		return fmt.Errorf("amphora index %d out of range for %d amphorae", amphoraIndex, len(amphoraIDs))
	}
	targetID := amphoraIDs[amphoraIndex]

	updateErr := func() error {
		amps := make([]*amphorae.Amphora, 0, len(amphoraIDs))
		for _, id := range amphoraIDs {
			amp, getErr := t.store.GetAmphora(ctx, id)
			if getErr != nil {
				return fmt.Errorf("failed to load amphora %s: %w", id, getErr)
			}
			amps = append(amps, amp)
		}

		lb, getErr := t.store.GetLoadBalancer(ctx, loadBalancerID)
		if getErr != nil {
			return fmt.Errorf("failed to load load balancer %s: %w", loadBalancerID, getErr)
		}

		return t.driver.UpdateAmphoraListeners(ctx, lb, amps[amphoraIndex], timeouts)
	}()
	if updateErr != nil {
		t.recordDriverError("update_amphora_listeners", updateErr)
		t.logger.WithTask(taskAmphoraListenersUpdate).WithAmphoraID(targetID).WithError(updateErr).
			Error("Failed to update listeners on amphora, skipping this amphora as it is failing to update")
		t.status.MarkAmphoraError(ctx, targetID)
	}

	return nil
}

// ListenersUpdate pushes the full listener configuration of a load balancer
// to its amphorae.
type ListenersUpdate struct {
	*Base
}

// NewListenersUpdate creates the task.
func NewListenersUpdate(base *Base) *ListenersUpdate {
	return &ListenersUpdate{Base: base}
}

// Execute updates every listener of the load balancer. A missing load
// balancer record is logged and skipped; update-style tasks are best effort
// against deleted entities.
func (t *ListenersUpdate) Execute(ctx context.Context, loadBalancerID string) (err error) {
	defer t.observe(taskListenersUpdate, time.Now(), &err)

	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if errors.Is(err, store.ErrNotFound) {
		t.logger.WithTask(taskListenersUpdate).WithLoadBalancerID(loadBalancerID).
			Error("Load balancer for listeners update not found, skipping update")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load load balancer %s: %w", loadBalancerID, err)
	}

	if err := t.driver.Update(ctx, lb); err != nil {
		t.recordDriverError("update", err)
		return err
	}
	return nil
}

// Revert marks every listener of the load balancer ERROR.
func (t *ListenersUpdate) Revert(ctx context.Context, cause RevertCause, loadBalancerID string) {
	t.observeRevert(taskListenersUpdate, cause)
	if cause.OwnFailure() {
		return
	}

	t.logger.WithTask(taskListenersUpdate).WithLoadBalancerID(loadBalancerID).
		Warn("Reverting listeners updates")

	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		t.logger.WithTask(taskListenersUpdate).WithLoadBalancerID(loadBalancerID).WithError(err).
			Error("Failed to load load balancer for listeners update revert")
		return
	}
	for _, listener := range lb.Listeners {
		t.status.MarkListenerError(ctx, listener.ID)
	}
}

// ListenersStart starts the listeners on the VIP.
type ListenersStart struct {
	*Base
}

// NewListenersStart creates the task.
func NewListenersStart(base *Base) *ListenersStart {
	return &ListenersStart{Base: base}
}

// Execute starts the load balancer's listeners. An empty amphoraID starts
// them on all amphorae; otherwise only on the named one. A load balancer
// without listeners is a no-op.
func (t *ListenersStart) Execute(ctx context.Context, loadBalancerID, amphoraID string) (err error) {
	defer t.observe(taskListenersStart, time.Now(), &err)

	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		return fmt.Errorf("failed to load load balancer %s: %w", loadBalancerID, err)
	}
	if len(lb.Listeners) == 0 {
		return nil
	}

	var amp *amphorae.Amphora
	if amphoraID != "" {
		amp, err = t.store.GetAmphora(ctx, amphoraID)
		if err != nil {
			return fmt.Errorf("failed to load amphora %s: %w", amphoraID, err)
		}
	}

	if err := t.driver.Start(ctx, lb, amp); err != nil {
		t.recordDriverError("start", err)
		return err
	}
	t.logger.WithTask(taskListenersStart).WithLoadBalancerID(loadBalancerID).
		Debug("Started the listeners on the vip")
	return nil
}

// Revert marks every listener of the load balancer ERROR.
func (t *ListenersStart) Revert(ctx context.Context, cause RevertCause, loadBalancerID string) {
	t.observeRevert(taskListenersStart, cause)
	if cause.OwnFailure() {
		return
	}

	t.logger.WithTask(taskListenersStart).WithLoadBalancerID(loadBalancerID).
		Warn("Reverting listeners starts")

	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		t.logger.WithTask(taskListenersStart).WithLoadBalancerID(loadBalancerID).WithError(err).
			Error("Failed to load load balancer for listeners start revert")
		return
	}
	for _, listener := range lb.Listeners {
		t.status.MarkListenerError(ctx, listener.ID)
	}
}

// ListenerDelete removes a listener from the amphorae serving it.
type ListenerDelete struct {
	*Base
}

// NewListenerDelete creates the task.
func NewListenerDelete(base *Base) *ListenerDelete {
	return &ListenerDelete{Base: base}
}

// Execute deletes the listener on the VIP.
func (t *ListenerDelete) Execute(ctx context.Context, listenerID string) (err error) {
	defer t.observe(taskListenerDelete, time.Now(), &err)

	listener, err := t.store.GetListener(ctx, listenerID)
	if err != nil {
		return fmt.Errorf("failed to load listener %s: %w", listenerID, err)
	}

	if err := t.driver.Delete(ctx, listener); err != nil {
		t.recordDriverError("delete", err)
		return err
	}
	t.logger.WithTask(taskListenerDelete).WithListenerID(listenerID).
		Debug("Deleted the listener on the vip")
	return nil
}

// Revert marks the listener ERROR.
func (t *ListenerDelete) Revert(ctx context.Context, cause RevertCause, listenerID string) {
	t.observeRevert(taskListenerDelete, cause)
	if cause.OwnFailure() {
		return
	}

	t.logger.WithTask(taskListenerDelete).WithListenerID(listenerID).
		Warn("Reverting listener delete")
	t.status.MarkListenerError(ctx, listenerID)
}
