package drivers

import (
	"context"
	"sync"

	"github.com/openamphion/amphion/pkg/amphorae"
)

func init() {
	Register("noop", func(_ map[string]string) (AmphoraDriver, error) {
		return NewNoopDriver(), nil
	})
}

// NoopDriver succeeds on every operation and records what was called. Used
// for development and as a stand-in driver in tests.
type NoopDriver struct {
	mu sync.Mutex

	// calls records one entry per operation, "op:target".
	calls []string
}

// NewNoopDriver creates a no-op driver.
func NewNoopDriver() *NoopDriver {
	return &NoopDriver{}
}

// Calls returns a copy of the recorded operation log.
func (d *NoopDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *NoopDriver) record(op, target string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, op+":"+target)
}

// UpdateAmphoraListeners implements AmphoraDriver.
func (d *NoopDriver) UpdateAmphoraListeners(_ context.Context, _ *amphorae.LoadBalancer, amp *amphorae.Amphora, _ *TimeoutConfig) error {
	d.record("update_amphora_listeners", amp.ID)
	return nil
}

// Update implements AmphoraDriver.
func (d *NoopDriver) Update(_ context.Context, lb *amphorae.LoadBalancer) error {
	d.record("update", lb.ID)
	return nil
}

// Start implements AmphoraDriver.
func (d *NoopDriver) Start(_ context.Context, lb *amphorae.LoadBalancer, _ *amphorae.Amphora) error {
	d.record("start", lb.ID)
	return nil
}

// Delete implements AmphoraDriver.
func (d *NoopDriver) Delete(_ context.Context, listener *amphorae.Listener) error {
	d.record("delete", listener.ID)
	return nil
}

// GetInfo implements AmphoraDriver.
func (d *NoopDriver) GetInfo(_ context.Context, amp *amphorae.Amphora) (*amphorae.AmphoraInfo, error) {
	d.record("get_info", amp.ID)
	return &amphorae.AmphoraInfo{HostName: "amphora-" + amp.ID, Version: "noop"}, nil
}

// GetDiagnostics implements AmphoraDriver.
func (d *NoopDriver) GetDiagnostics(_ context.Context, amp *amphorae.Amphora) (*amphorae.AmphoraDiagnostics, error) {
	d.record("get_diagnostics", amp.ID)
	return &amphorae.AmphoraDiagnostics{
		Info: amphorae.AmphoraInfo{HostName: "amphora-" + amp.ID, Version: "noop"},
	}, nil
}

// FinalizeAmphora implements AmphoraDriver.
func (d *NoopDriver) FinalizeAmphora(_ context.Context, amp *amphorae.Amphora) error {
	d.record("finalize_amphora", amp.ID)
	return nil
}

// PostNetworkPlug implements AmphoraDriver.
func (d *NoopDriver) PostNetworkPlug(_ context.Context, amp *amphorae.Amphora, port amphorae.Port) error {
	d.record("post_network_plug", amp.ID+"/"+port.ID)
	return nil
}

// PostVIPPlug implements AmphoraDriver.
func (d *NoopDriver) PostVIPPlug(_ context.Context, amp *amphorae.Amphora, lb *amphorae.LoadBalancer, _ map[string]amphorae.NetworkConfig) error {
	d.record("post_vip_plug", amp.ID+"/"+lb.ID)
	return nil
}

// UploadCertAmp implements AmphoraDriver.
func (d *NoopDriver) UploadCertAmp(_ context.Context, amp *amphorae.Amphora, _ []byte) error {
	d.record("upload_cert_amp", amp.ID)
	return nil
}

// GetVRRPInterface implements AmphoraDriver.
func (d *NoopDriver) GetVRRPInterface(_ context.Context, amp *amphorae.Amphora, _ *TimeoutConfig) (string, error) {
	d.record("get_vrrp_interface", amp.ID)
	return "eth1", nil
}

// UpdateVRRPConf implements AmphoraDriver.
func (d *NoopDriver) UpdateVRRPConf(_ context.Context, lb *amphorae.LoadBalancer, _ map[string]amphorae.NetworkConfig) error {
	d.record("update_vrrp_conf", lb.ID)
	return nil
}

// StopVRRPService implements AmphoraDriver.
func (d *NoopDriver) StopVRRPService(_ context.Context, lb *amphorae.LoadBalancer) error {
	d.record("stop_vrrp_service", lb.ID)
	return nil
}

// StartVRRPService implements AmphoraDriver.
func (d *NoopDriver) StartVRRPService(_ context.Context, lb *amphorae.LoadBalancer) error {
	d.record("start_vrrp_service", lb.ID)
	return nil
}

// UpdateAmphoraAgentConfig implements AmphoraDriver.
func (d *NoopDriver) UpdateAmphoraAgentConfig(_ context.Context, amp *amphorae.Amphora, _ []byte) error {
	d.record("update_amphora_agent_config", amp.ID)
	return nil
}
