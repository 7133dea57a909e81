package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/openamphion/amphion/pkg/agentcfg"
	"github.com/openamphion/amphion/pkg/amphorae"
	"github.com/openamphion/amphion/pkg/drivers"
	"github.com/openamphion/amphion/pkg/secrets"
	"github.com/openamphion/amphion/pkg/store"
	"github.com/openamphion/amphion/pkg/telemetry"
)

// Mock store for testing. Load balancer snapshots are assembled from the
// entity maps on read so status updates are visible through re-fetches.
type mockStore struct {
	mu            sync.Mutex
	amphorae      map[string]*amphorae.Amphora
	listeners     map[string]*amphorae.Listener
	loadBalancers map[string]*amphorae.LoadBalancer
	ampOrder      []string
	listenerOrder []string
	failUpdates   bool
}

func newMockStore() *mockStore {
	return &mockStore{
		amphorae:      make(map[string]*amphorae.Amphora),
		listeners:     make(map[string]*amphorae.Listener),
		loadBalancers: make(map[string]*amphorae.LoadBalancer),
	}
}

func (s *mockStore) addLoadBalancer(lb amphorae.LoadBalancer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadBalancers[lb.ID] = &lb
}

func (s *mockStore) addAmphora(amp amphorae.Amphora) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amphorae[amp.ID] = &amp
	s.ampOrder = append(s.ampOrder, amp.ID)
}

func (s *mockStore) addListener(l amphorae.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[l.ID] = &l
	s.listenerOrder = append(s.listenerOrder, l.ID)
}

func (s *mockStore) GetAmphora(_ context.Context, id string) (*amphorae.Amphora, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amp, ok := s.amphorae[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *amp
	return &out, nil
}

func (s *mockStore) UpdateAmphora(_ context.Context, id string, changes store.AmphoraChanges) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdates {
		return errUpdateFailed
	}
	amp, ok := s.amphorae[id]
	if !ok {
		return store.ErrNotFound
	}
	if changes.Status != nil {
		amp.Status = *changes.Status
	}
	if changes.ClearVRRPInterface {
		amp.VRRPInterface = nil
	} else if changes.VRRPInterface != nil {
		iface := *changes.VRRPInterface
		amp.VRRPInterface = &iface
	}
	return nil
}

func (s *mockStore) GetListener(_ context.Context, id string) (*amphorae.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listeners[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *l
	return &out, nil
}

func (s *mockStore) UpdateListener(_ context.Context, id string, changes store.ListenerChanges) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdates {
		return errUpdateFailed
	}
	l, ok := s.listeners[id]
	if !ok {
		return store.ErrNotFound
	}
	if changes.ProvisioningStatus != nil {
		l.ProvisioningStatus = *changes.ProvisioningStatus
	}
	return nil
}

func (s *mockStore) GetLoadBalancer(_ context.Context, id string) (*amphorae.LoadBalancer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lb, ok := s.loadBalancers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *lb
	out.Listeners = nil
	out.Amphorae = nil
	for _, lid := range s.listenerOrder {
		if s.listeners[lid].LoadBalancerID == id {
			out.Listeners = append(out.Listeners, *s.listeners[lid])
		}
	}
	for _, aid := range s.ampOrder {
		if s.amphorae[aid].LoadBalancerID == id {
			out.Amphorae = append(out.Amphorae, *s.amphorae[aid])
		}
	}
	return &out, nil
}

func (s *mockStore) UpdateLoadBalancer(_ context.Context, id string, changes store.LoadBalancerChanges) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdates {
		return errUpdateFailed
	}
	lb, ok := s.loadBalancers[id]
	if !ok {
		return store.ErrNotFound
	}
	if changes.ProvisioningStatus != nil {
		lb.ProvisioningStatus = *changes.ProvisioningStatus
	}
	return nil
}

func (s *mockStore) amphoraStatus(t *testing.T, id string) amphorae.Status {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	amp, ok := s.amphorae[id]
	if !ok {
		t.Fatalf("amphora %s not in store", id)
	}
	return amp.Status
}

func (s *mockStore) listenerStatus(t *testing.T, id string) amphorae.ProvisioningStatus {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listeners[id]
	if !ok {
		t.Fatalf("listener %s not in store", id)
	}
	return l.ProvisioningStatus
}

func (s *mockStore) loadBalancerStatus(t *testing.T, id string) amphorae.ProvisioningStatus {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	lb, ok := s.loadBalancers[id]
	if !ok {
		t.Fatalf("load balancer %s not in store", id)
	}
	return lb.ProvisioningStatus
}

var errUpdateFailed = errors.New("store update failed")

// Mock driver for testing. Per-operation error hooks let tests fail a single
// call or target; every call is recorded.
type mockDriver struct {
	mu    sync.Mutex
	calls []string

	updateListenersErr func(amp *amphorae.Amphora) error
	updateErr          error
	startErr           error
	deleteErr          error
	getInfoFn          func(call int, amp *amphorae.Amphora) (*amphorae.AmphoraInfo, error)
	getInfoCalls       int
	finalizeErr        error
	postNetworkPlugErr error
	postVIPPlugErr     error
	uploadErr          error
	uploadedPEM        []byte
	vrrpInterfaceFn    func(amp *amphorae.Amphora) (string, error)
	vrrpConfErr        error
	vrrpStopErr        error
	vrrpStartErr       error
	agentConfigErr     error
	lastAgentConfig    []byte
	lastStartAmphora   *amphorae.Amphora
}

func (d *mockDriver) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *mockDriver) callCount(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == prefix || len(c) > len(prefix) && c[:len(prefix)+1] == prefix+":" {
			n++
		}
	}
	return n
}

func (d *mockDriver) UpdateAmphoraListeners(_ context.Context, _ *amphorae.LoadBalancer, amp *amphorae.Amphora, _ *drivers.TimeoutConfig) error {
	d.record("update_amphora_listeners:" + amp.ID)
	if d.updateListenersErr != nil {
		return d.updateListenersErr(amp)
	}
	return nil
}

func (d *mockDriver) Update(_ context.Context, lb *amphorae.LoadBalancer) error {
	d.record("update:" + lb.ID)
	return d.updateErr
}

func (d *mockDriver) Start(_ context.Context, lb *amphorae.LoadBalancer, amp *amphorae.Amphora) error {
	d.record("start:" + lb.ID)
	d.mu.Lock()
	d.lastStartAmphora = amp
	d.mu.Unlock()
	return d.startErr
}

func (d *mockDriver) Delete(_ context.Context, listener *amphorae.Listener) error {
	d.record("delete:" + listener.ID)
	return d.deleteErr
}

func (d *mockDriver) GetInfo(_ context.Context, amp *amphorae.Amphora) (*amphorae.AmphoraInfo, error) {
	d.record("get_info:" + amp.ID)
	d.mu.Lock()
	call := d.getInfoCalls
	d.getInfoCalls++
	fn := d.getInfoFn
	d.mu.Unlock()
	if fn != nil {
		return fn(call, amp)
	}
	return &amphorae.AmphoraInfo{HostName: amp.ID}, nil
}

func (d *mockDriver) GetDiagnostics(_ context.Context, amp *amphorae.Amphora) (*amphorae.AmphoraDiagnostics, error) {
	d.record("get_diagnostics:" + amp.ID)
	return &amphorae.AmphoraDiagnostics{Info: amphorae.AmphoraInfo{HostName: amp.ID}}, nil
}

func (d *mockDriver) FinalizeAmphora(_ context.Context, amp *amphorae.Amphora) error {
	d.record("finalize_amphora:" + amp.ID)
	return d.finalizeErr
}

func (d *mockDriver) PostNetworkPlug(_ context.Context, amp *amphorae.Amphora, port amphorae.Port) error {
	d.record("post_network_plug:" + amp.ID + ":" + port.ID)
	return d.postNetworkPlugErr
}

func (d *mockDriver) PostVIPPlug(_ context.Context, amp *amphorae.Amphora, _ *amphorae.LoadBalancer, _ map[string]amphorae.NetworkConfig) error {
	d.record("post_vip_plug:" + amp.ID)
	return d.postVIPPlugErr
}

func (d *mockDriver) UploadCertAmp(_ context.Context, amp *amphorae.Amphora, pem []byte) error {
	d.record("upload_cert_amp:" + amp.ID)
	d.mu.Lock()
	d.uploadedPEM = append([]byte(nil), pem...)
	d.mu.Unlock()
	return d.uploadErr
}

func (d *mockDriver) GetVRRPInterface(_ context.Context, amp *amphorae.Amphora, _ *drivers.TimeoutConfig) (string, error) {
	d.record("get_vrrp_interface:" + amp.ID)
	if d.vrrpInterfaceFn != nil {
		return d.vrrpInterfaceFn(amp)
	}
	return "eth1", nil
}

func (d *mockDriver) UpdateVRRPConf(_ context.Context, lb *amphorae.LoadBalancer, _ map[string]amphorae.NetworkConfig) error {
	d.record("update_vrrp_conf:" + lb.ID)
	return d.vrrpConfErr
}

func (d *mockDriver) StopVRRPService(_ context.Context, lb *amphorae.LoadBalancer) error {
	d.record("stop_vrrp_service:" + lb.ID)
	return d.vrrpStopErr
}

func (d *mockDriver) StartVRRPService(_ context.Context, lb *amphorae.LoadBalancer) error {
	d.record("start_vrrp_service:" + lb.ID)
	return d.vrrpStartErr
}

func (d *mockDriver) UpdateAmphoraAgentConfig(_ context.Context, amp *amphorae.Amphora, config []byte) error {
	d.record("update_amphora_agent_config:" + amp.ID)
	d.mu.Lock()
	d.lastAgentConfig = append([]byte(nil), config...)
	d.mu.Unlock()
	return d.agentConfigErr
}

// testKey is a fixed secretbox key for cert upload tests.
var testKey = &[secrets.KeySize]byte{1, 2, 3, 4, 5, 6, 7, 8}

func newTestBase(t *testing.T, st *mockStore, driver *mockDriver) *Base {
	t.Helper()

	registry := drivers.NewRegistry()
	if err := registry.Register("mock", func(map[string]string) (drivers.AmphoraDriver, error) {
		return driver, nil
	}); err != nil {
		t.Fatalf("Failed to register mock driver: %v", err)
	}

	logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  "fatal",
		Format: "json",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	cfg := Config{
		ConnectionMaxRetries:          3,
		ConnectionRetryInterval:       0,
		ActiveConnectionMaxRetries:    2,
		ActiveConnectionRetryInterval: 0,
		DefaultTopology:               amphorae.TopologySingle,
		CertKey:                       testKey,
	}

	base, err := NewBase(cfg, registry, "mock", nil, st, agentcfg.NewBuilder(agentcfg.Settings{}), logger, metrics)
	if err != nil {
		t.Fatalf("Failed to create task base: %v", err)
	}
	return base
}
