package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/openamphion/amphion/pkg/amphorae"
	"github.com/openamphion/amphion/pkg/drivers"
	"github.com/openamphion/amphion/pkg/secrets"
)

// AmphoraGetInfo queries basic appliance info for one amphora.
type AmphoraGetInfo struct {
	*Base
}

// NewAmphoraGetInfo creates the task.
func NewAmphoraGetInfo(base *Base) *AmphoraGetInfo {
	return &AmphoraGetInfo{Base: base}
}

// Execute returns the appliance info payload.
func (t *AmphoraGetInfo) Execute(ctx context.Context, amphoraID string) (info *amphorae.AmphoraInfo, err error) {
	defer t.observe(taskAmphoraGetInfo, time.Now(), &err)

	amp, err := t.store.GetAmphora(ctx, amphoraID)
	if err != nil {
		return nil, fmt.Errorf("failed to load amphora %s: %w", amphoraID, err)
	}

	info, err = t.driver.GetInfo(ctx, amp)
	if err != nil {
		t.recordDriverError("get_info", err)
		return nil, err
	}
	return info, nil
}

// AmphoraGetDiagnostics queries extended diagnostics for one amphora.
type AmphoraGetDiagnostics struct {
	*Base
}

// NewAmphoraGetDiagnostics creates the task.
func NewAmphoraGetDiagnostics(base *Base) *AmphoraGetDiagnostics {
	return &AmphoraGetDiagnostics{Base: base}
}

// Execute returns the diagnostics payload.
func (t *AmphoraGetDiagnostics) Execute(ctx context.Context, amphoraID string) (diag *amphorae.AmphoraDiagnostics, err error) {
	defer t.observe(taskAmphoraGetDiagnostics, time.Now(), &err)

	amp, err := t.store.GetAmphora(ctx, amphoraID)
	if err != nil {
		return nil, fmt.Errorf("failed to load amphora %s: %w", amphoraID, err)
	}

	diag, err = t.driver.GetDiagnostics(ctx, amp)
	if err != nil {
		t.recordDriverError("get_diagnostics", err)
		return nil, err
	}
	return diag, nil
}

// AmphoraFinalize performs the last appliance setup steps before any
// listeners are configured.
type AmphoraFinalize struct {
	*Base
}

// NewAmphoraFinalize creates the task.
func NewAmphoraFinalize(base *Base) *AmphoraFinalize {
	return &AmphoraFinalize{Base: base}
}

// Execute finalizes the amphora.
func (t *AmphoraFinalize) Execute(ctx context.Context, amphoraID string) (err error) {
	defer t.observe(taskAmphoraFinalize, time.Now(), &err)

	amp, err := t.store.GetAmphora(ctx, amphoraID)
	if err != nil {
		return fmt.Errorf("failed to load amphora %s: %w", amphoraID, err)
	}

	if err := t.driver.FinalizeAmphora(ctx, amp); err != nil {
		t.recordDriverError("finalize_amphora", err)
		return err
	}
	t.logger.WithTask(taskAmphoraFinalize).WithAmphoraID(amphoraID).
		Debug("Finalized the amphora")
	return nil
}

// Revert marks the amphora ERROR.
func (t *AmphoraFinalize) Revert(ctx context.Context, cause RevertCause, amphoraID string) {
	t.observeRevert(taskAmphoraFinalize, cause)
	if cause.OwnFailure() {
		return
	}

	t.logger.WithTask(taskAmphoraFinalize).WithAmphoraID(amphoraID).
		Warn("Reverting amphora finalize")
	t.status.MarkAmphoraError(ctx, amphoraID)
}

// AmphoraPostNetworkPlug notifies one amphora of its newly plugged ports.
type AmphoraPostNetworkPlug struct {
	*Base
}

// NewAmphoraPostNetworkPlug creates the task.
func NewAmphoraPostNetworkPlug(base *Base) *AmphoraPostNetworkPlug {
	return &AmphoraPostNetworkPlug{Base: base}
}

// Execute notifies the amphora of each plugged port.
func (t *AmphoraPostNetworkPlug) Execute(ctx context.Context, amphoraID string, ports []amphorae.Port) (err error) {
	defer t.observe(taskAmphoraPostNetworkPlug, time.Now(), &err)

	amp, err := t.store.GetAmphora(ctx, amphoraID)
	if err != nil {
		return fmt.Errorf("failed to load amphora %s: %w", amphoraID, err)
	}

	for _, port := range ports {
		if err := t.driver.PostNetworkPlug(ctx, amp, port); err != nil {
			t.recordDriverError("post_network_plug", err)
			return err
		}
		t.logger.WithTask(taskAmphoraPostNetworkPlug).WithAmphoraID(amphoraID).
			WithField("compute_id", amp.ComputeID).
			WithField("port_id", port.ID).
			Debug("post_network_plug called on compute instance")
	}
	return nil
}

// Revert marks the amphora ERROR.
func (t *AmphoraPostNetworkPlug) Revert(ctx context.Context, cause RevertCause, amphoraID string) {
	t.observeRevert(taskAmphoraPostNetworkPlug, cause)
	if cause.OwnFailure() {
		return
	}

	t.logger.WithTask(taskAmphoraPostNetworkPlug).WithAmphoraID(amphoraID).
		Warn("Reverting post network plug")
	t.status.MarkAmphoraError(ctx, amphoraID)
}

// AmphoraePostNetworkPlug notifies every amphora of a load balancer that has
// newly plugged ports. It delegates the per-amphora work to
// AmphoraPostNetworkPlug's Execute directly, reusing its logic without
// re-entering the engine's retry machinery per target; the aggregate policy
// is fail fast.
type AmphoraePostNetworkPlug struct {
	*Base
}

// NewAmphoraePostNetworkPlug creates the task.
func NewAmphoraePostNetworkPlug(base *Base) *AmphoraePostNetworkPlug {
	return &AmphoraePostNetworkPlug{Base: base}
}

// Execute notifies each amphora with an entry in addedPorts.
func (t *AmphoraePostNetworkPlug) Execute(ctx context.Context, loadBalancerID string, addedPorts map[string][]amphorae.Port) (err error) {
	defer t.observe(taskAmphoraePostNetworkPlug, time.Now(), &err)

	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		return fmt.Errorf("failed to load load balancer %s: %w", loadBalancerID, err)
	}

	single := NewAmphoraPostNetworkPlug(t.Base)
	for _, amp := range lb.Amphorae {
		ports, ok := addedPorts[amp.ID]
		if !ok {
			continue
		}
		if err := single.Execute(ctx, amp.ID, ports); err != nil {
			return err
		}
	}
	return nil
}

// Revert marks every still-allocated amphora of the load balancer ERROR.
// Amphorae that already failed during execute keep their status so the
// specific earlier failure is not masked.
func (t *AmphoraePostNetworkPlug) Revert(ctx context.Context, cause RevertCause, loadBalancerID string) {
	t.observeRevert(taskAmphoraePostNetworkPlug, cause)
	if cause.OwnFailure() {
		return
	}

	t.logger.WithTask(taskAmphoraePostNetworkPlug).WithLoadBalancerID(loadBalancerID).
		Warn("Reverting post network plug")

	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		t.logger.WithTask(taskAmphoraePostNetworkPlug).WithLoadBalancerID(loadBalancerID).WithError(err).
			Error("Failed to load load balancer for post network plug revert")
		return
	}
	for _, amp := range lb.AllocatedAmphorae() {
		t.status.MarkAmphoraError(ctx, amp.ID)
	}
}

// AmphoraPostVIPPlug notifies one amphora that the VIP port was plugged.
type AmphoraPostVIPPlug struct {
	*Base
}

// NewAmphoraPostVIPPlug creates the task.
func NewAmphoraPostVIPPlug(base *Base) *AmphoraPostVIPPlug {
	return &AmphoraPostVIPPlug{Base: base}
}

// Execute notifies the amphora of the VIP plug using its entry in the
// per-amphora network configuration.
func (t *AmphoraPostVIPPlug) Execute(ctx context.Context, amphoraID, loadBalancerID string, netConfigs map[string]amphorae.NetworkConfig) (err error) {
	defer t.observe(taskAmphoraPostVIPPlug, time.Now(), &err)

	if _, ok := netConfigs[amphoraID]; !ok {
		return fmt.Errorf("no network configuration for amphora %s", amphoraID)
	}

	amp, err := t.store.GetAmphora(ctx, amphoraID)
	if err != nil {
		return fmt.Errorf("failed to load amphora %s: %w", amphoraID, err)
	}
	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		return fmt.Errorf("failed to load load balancer %s: %w", loadBalancerID, err)
	}

	if err := t.driver.PostVIPPlug(ctx, amp, lb, netConfigs); err != nil {
		t.recordDriverError("post_vip_plug", err)
		return err
	}
	t.logger.WithTask(taskAmphoraPostVIPPlug).WithAmphoraID(amphoraID).
		Debug("Notified amphora of vip plug")
	return nil
}

// Revert marks the amphora and its owning load balancer ERROR.
func (t *AmphoraPostVIPPlug) Revert(ctx context.Context, cause RevertCause, amphoraID, loadBalancerID string) {
	t.observeRevert(taskAmphoraPostVIPPlug, cause)
	if cause.OwnFailure() {
		return
	}

	t.logger.WithTask(taskAmphoraPostVIPPlug).WithAmphoraID(amphoraID).
		Warn("Reverting post vip plug")
	t.status.MarkAmphoraError(ctx, amphoraID)
	t.status.MarkLoadBalancerError(ctx, loadBalancerID)
}

// AmphoraePostVIPPlug notifies every amphora of a load balancer that the VIP
// port was plugged, delegating to AmphoraPostVIPPlug per target.
type AmphoraePostVIPPlug struct {
	*Base
}

// NewAmphoraePostVIPPlug creates the task.
func NewAmphoraePostVIPPlug(base *Base) *AmphoraePostVIPPlug {
	return &AmphoraePostVIPPlug{Base: base}
}

// Execute notifies each amphora of the load balancer.
func (t *AmphoraePostVIPPlug) Execute(ctx context.Context, loadBalancerID string, netConfigs map[string]amphorae.NetworkConfig) (err error) {
	defer t.observe(taskAmphoraePostVIPPlug, time.Now(), &err)

	lb, err := t.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		return fmt.Errorf("failed to load load balancer %s: %w", loadBalancerID, err)
	}

	single := NewAmphoraPostVIPPlug(t.Base)
	for _, amp := range lb.Amphorae {
		if err := single.Execute(ctx, amp.ID, loadBalancerID, netConfigs); err != nil {
			return err
		}
	}
	return nil
}

// Revert marks the load balancer ERROR.
func (t *AmphoraePostVIPPlug) Revert(ctx context.Context, cause RevertCause, loadBalancerID string) {
	t.observeRevert(taskAmphoraePostVIPPlug, cause)
	if cause.OwnFailure() {
		return
	}

	t.logger.WithTask(taskAmphoraePostVIPPlug).WithLoadBalancerID(loadBalancerID).
		Warn("Reverting amphorae post vip plug")
	t.status.MarkLoadBalancerError(ctx, loadBalancerID)
}

// AmphoraCertUpload decrypts an at-rest-encrypted certificate blob and
// uploads the plaintext to the amphora. The plaintext exists only for the
// duration of the driver call and is never persisted. No revert is defined;
// a failure here propagates and relies on the flow's outer compensation for
// the finalize and plug steps.
type AmphoraCertUpload struct {
	*Base
}

// NewAmphoraCertUpload creates the task.
func NewAmphoraCertUpload(base *Base) *AmphoraCertUpload {
	return &AmphoraCertUpload{Base: base}
}

// Execute decrypts sealedPEM and uploads it.
func (t *AmphoraCertUpload) Execute(ctx context.Context, amphoraID, sealedPEM string) (err error) {
	defer t.observe(taskAmphoraCertUpload, time.Now(), &err)

	t.logger.WithTask(taskAmphoraCertUpload).WithAmphoraID(amphoraID).
		Debug("Uploading certificate to amphora")

	pem, err := secrets.Decrypt(t.cfg.CertKey, sealedPEM)
	if err != nil {
		return fmt.Errorf("failed to decrypt certificate for amphora %s: %w", amphoraID, err)
	}

	amp, err := t.store.GetAmphora(ctx, amphoraID)
	if err != nil {
		return fmt.Errorf("failed to load amphora %s: %w", amphoraID, err)
	}

	if err := t.driver.UploadCertAmp(ctx, amp, pem); err != nil {
		t.recordDriverError("upload_cert_amp", err)
		return err
	}
	return nil
}

// AmphoraComputeConnectivityWait polls the amphora until its agent responds.
// Bootstrap-time unreachability is always fatal: the topology has not yet
// established redundancy, so an instance that never becomes reachable means
// provisioning failed. This differs from steady-state GetInfo uses, where a
// transient blip on an already-active peer is tolerated.
type AmphoraComputeConnectivityWait struct {
	*Base
}

// NewAmphoraComputeConnectivityWait creates the task.
func NewAmphoraComputeConnectivityWait(base *Base) *AmphoraComputeConnectivityWait {
	return &AmphoraComputeConnectivityWait{Base: base}
}

// Execute polls GetInfo until the amphora responds, a timeout-class error is
// raised, or the configured attempts are exhausted. On timeout or exhaustion
// the amphora is marked ERROR and the error returned; on success the info
// payload is returned with no status write.
func (t *AmphoraComputeConnectivityWait) Execute(ctx context.Context, amphoraID string) (info *amphorae.AmphoraInfo, err error) {
	defer t.observe(taskAmphoraComputeConnectivity, time.Now(), &err)
	start := time.Now()

	amp, err := t.store.GetAmphora(ctx, amphoraID)
	if err != nil {
		return nil, fmt.Errorf("failed to load amphora %s: %w", amphoraID, err)
	}

	var lastErr error
	for attempt := 0; attempt <= t.cfg.ConnectionMaxRetries; attempt++ {
		info, lastErr = t.driver.GetInfo(ctx, amp)
		if lastErr == nil {
			t.logger.WithTask(taskAmphoraComputeConnectivity).WithAmphoraID(amphoraID).
				Debugf("Successfully connected to amphora: %+v", info)
			if t.metrics != nil {
				t.metrics.RecordConnectivityWait(time.Since(start))
			}
			return info, nil
		}
		t.recordDriverError("get_info", lastErr)

		if drivers.IsTimeout(lastErr) {
			break
		}
		if !drivers.IsTransient(lastErr) {
			return nil, lastErr
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.cfg.ConnectionRetryInterval):
		}
	}

	t.logger.WithTask(taskAmphoraComputeConnectivity).WithAmphoraID(amphoraID).WithError(lastErr).
		Error("Amphora compute instance failed to become reachable. " +
			"This either means the compute driver failed to fully boot the " +
			"instance inside the timeout interval or the instance is not " +
			"reachable via the management network")
	t.status.MarkAmphoraError(ctx, amphoraID)
	return nil, lastErr
}

// AmphoraConfigUpdate renders a fresh agent configuration and pushes it to
// the amphora. A flavor may override the topology; otherwise the process
// default applies.
type AmphoraConfigUpdate struct {
	*Base
}

// NewAmphoraConfigUpdate creates the task.
func NewAmphoraConfigUpdate(base *Base) *AmphoraConfigUpdate {
	return &AmphoraConfigUpdate{Base: base}
}

// flavorTopologyKey is the flavor setting that overrides the configured
// default topology.
const flavorTopologyKey = "loadbalancer_topology"

// Execute builds and pushes the agent configuration. Drivers or images
// without the update capability are logged and skipped, not failed: the
// capability is optional until the amphora image is upgraded.
func (t *AmphoraConfigUpdate) Execute(ctx context.Context, amphoraID string, flavor map[string]string) (err error) {
	defer t.observe(taskAmphoraConfigUpdate, time.Now(), &err)

	topology := t.cfg.DefaultTopology
	if v, ok := flavor[flavorTopologyKey]; ok && v != "" {
		topology = amphorae.Topology(v)
	}

	config, err := t.agentCfg.Build(amphoraID, topology)
	if err != nil {
		return fmt.Errorf("failed to build agent config for amphora %s: %w", amphoraID, err)
	}

	amp, err := t.store.GetAmphora(ctx, amphoraID)
	if err != nil {
		return fmt.Errorf("failed to load amphora %s: %w", amphoraID, err)
	}

	if err := t.driver.UpdateAmphoraAgentConfig(ctx, amp, config); err != nil {
		t.recordDriverError("update_amphora_agent_config", err)
		if drivers.IsUnsupported(err) {
			t.logger.WithTask(taskAmphoraConfigUpdate).WithAmphoraID(amphoraID).
				Error("Amphora does not support agent configuration update. " +
					"Please update the amphora image for this amphora. Skipping")
			return nil
		}
		return err
	}
	return nil
}
