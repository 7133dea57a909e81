package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/openamphion/amphion/pkg/amphorae"
	"github.com/openamphion/amphion/pkg/drivers"
	"github.com/openamphion/amphion/pkg/store"
)

// AmphoraUpdateVRRPInterface discovers the VRRP interface device name on
// every allocated amphora of a load balancer and stores it. The discovery is
// a fan-out: a failing amphora is logged, marked ERROR, and skipped, because
// an active/standby load balancer stays functional on the surviving peer.
// The discovery can legitimately fail on an amphora when the load balancer
// has no listener yet.
type AmphoraUpdateVRRPInterface struct {
	*Base
}

// NewAmphoraUpdateVRRPInterface creates the task.
func NewAmphoraUpdateVRRPInterface(base *Base) *AmphoraUpdateVRRPInterface {
	return &AmphoraUpdateVRRPInterface{Base: base}
}

// Execute discovers and stores the VRRP interface on each allocated amphora.
// The returned load balancer snapshot carries only the amphorae that
// survived discovery, each re-fetched after its interface was stored.
func (t *AmphoraUpdateVRRPInterface) Execute(ctx context.Context, loadBalancerID string) (lb *amphorae.LoadBalancer, err error) {
	defer t.observe(taskAmphoraUpdateVRRPInterface, time.Now(), &err)

	lb, err = t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load load balancer %s: %w", loadBalancerID, err)
	}

	timeouts := &drivers.TimeoutConfig{
		MaxRetries:    t.cfg.ActiveConnectionMaxRetries,
		RetryInterval: t.cfg.ActiveConnectionRetryInterval,
	}

	survivors := make([]amphorae.Amphora, 0, len(lb.Amphorae))
	for _, amp := range lb.AllocatedAmphorae() {
		amp := amp
		iface, discoverErr := t.driver.GetVRRPInterface(ctx, &amp, timeouts)
		if discoverErr != nil {
			t.recordDriverError("get_vrrp_interface", discoverErr)
			t.logger.WithTask(taskAmphoraUpdateVRRPInterface).WithAmphoraID(amp.ID).WithError(discoverErr).
				Error("Failed to get amphora VRRP interface, skipping this amphora as it is failing")
			t.status.MarkAmphoraError(ctx, amp.ID)
			continue
		}

		if err := t.store.UpdateAmphora(ctx, amp.ID, store.AmphoraChanges{VRRPInterface: &iface}); err != nil {
			return nil, fmt.Errorf("failed to store VRRP interface for amphora %s: %w", amp.ID, err)
		}
		fresh, err := t.store.GetAmphora(ctx, amp.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload amphora %s: %w", amp.ID, err)
		}
		survivors = append(survivors, *fresh)
	}

	lb.Amphorae = survivors
	return lb, nil
}

// Revert clears the stored VRRP interface on every still-allocated amphora.
// A failed clear is logged and the loop continues.
func (t *AmphoraUpdateVRRPInterface) Revert(ctx context.Context, cause RevertCause, loadBalancerID string) {
	t.observeRevert(taskAmphoraUpdateVRRPInterface, cause)
	if cause.OwnFailure() {
		return
	}

	t.logger.WithTask(taskAmphoraUpdateVRRPInterface).WithLoadBalancerID(loadBalancerID).
		Warn("Reverting amphora VRRP interface discovery")

	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		t.logger.WithTask(taskAmphoraUpdateVRRPInterface).WithLoadBalancerID(loadBalancerID).WithError(err).
			Error("Failed to load load balancer for VRRP interface revert")
		return
	}
	for _, amp := range lb.AllocatedAmphorae() {
		if err := t.store.UpdateAmphora(ctx, amp.ID, store.AmphoraChanges{ClearVRRPInterface: true}); err != nil {
			t.logger.WithTask(taskAmphoraUpdateVRRPInterface).WithAmphoraID(amp.ID).WithError(err).
				Error("Failed to clear amphora VRRP interface")
		}
	}
}

// AmphoraVRRPUpdate pushes the VRRP configuration to the load balancer's
// amphorae.
type AmphoraVRRPUpdate struct {
	*Base
}

// NewAmphoraVRRPUpdate creates the task.
func NewAmphoraVRRPUpdate(base *Base) *AmphoraVRRPUpdate {
	return &AmphoraVRRPUpdate{Base: base}
}

// Execute uploads the VRRP configuration.
func (t *AmphoraVRRPUpdate) Execute(ctx context.Context, loadBalancerID string, netConfigs map[string]amphorae.NetworkConfig) (err error) {
	defer t.observe(taskAmphoraVRRPUpdate, time.Now(), &err)

	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		return fmt.Errorf("failed to load load balancer %s: %w", loadBalancerID, err)
	}

	if err := t.driver.UpdateVRRPConf(ctx, lb, netConfigs); err != nil {
		t.recordDriverError("update_vrrp_conf", err)
		return err
	}
	t.logger.WithTask(taskAmphoraVRRPUpdate).WithLoadBalancerID(loadBalancerID).
		Debug("Uploaded VRRP configuration of loadbalancer amphorae")
	return nil
}

// AmphoraVRRPStop stops the VRRP service on all amphorae of a load balancer.
type AmphoraVRRPStop struct {
	*Base
}

// NewAmphoraVRRPStop creates the task.
func NewAmphoraVRRPStop(base *Base) *AmphoraVRRPStop {
	return &AmphoraVRRPStop{Base: base}
}

// Execute stops the VRRP service.
func (t *AmphoraVRRPStop) Execute(ctx context.Context, loadBalancerID string) (err error) {
	defer t.observe(taskAmphoraVRRPStop, time.Now(), &err)

	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		return fmt.Errorf("failed to load load balancer %s: %w", loadBalancerID, err)
	}

	if err := t.driver.StopVRRPService(ctx, lb); err != nil {
		t.recordDriverError("stop_vrrp_service", err)
		return err
	}
	t.logger.WithTask(taskAmphoraVRRPStop).WithLoadBalancerID(loadBalancerID).
		Debug("Stopped VRRP of loadbalancer amphorae")
	return nil
}

// AmphoraVRRPStart starts the VRRP service on all amphorae of a load
// balancer.
type AmphoraVRRPStart struct {
	*Base
}

// NewAmphoraVRRPStart creates the task.
func NewAmphoraVRRPStart(base *Base) *AmphoraVRRPStart {
	return &AmphoraVRRPStart{Base: base}
}

// Execute starts the VRRP service.
func (t *AmphoraVRRPStart) Execute(ctx context.Context, loadBalancerID string) (err error) {
	defer t.observe(taskAmphoraVRRPStart, time.Now(), &err)

	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		return fmt.Errorf("failed to load load balancer %s: %w", loadBalancerID, err)
	}

	if err := t.driver.StartVRRPService(ctx, lb); err != nil {
		t.recordDriverError("start_vrrp_service", err)
		return err
	}
	t.logger.WithTask(taskAmphoraVRRPStart).WithLoadBalancerID(loadBalancerID).
		Debug("Started VRRP of loadbalancer amphorae")
	return nil
}
