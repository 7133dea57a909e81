package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/openamphion/amphion/pkg/amphorae"
	"github.com/openamphion/amphion/pkg/store"
)

func TestAmphoraUpdateVRRPInterfaceSkipsFailingAmphora(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	driver := &mockDriver{
		vrrpInterfaceFn: func(amp *amphorae.Amphora) (string, error) {
			if amp.ID == "amp-2" {
				// Happens when an active/standby LB has no listener.
				return "", errors.New("no vrrp interface configured")
			}
			return "eth1", nil
		},
	}
	task := NewAmphoraUpdateVRRPInterface(newTestBase(t, st, driver))

	lb, err := task.Execute(context.Background(), "lb-1")
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}

	if len(lb.Amphorae) != 1 {
		t.Fatalf("surviving amphorae = %d, want 1", len(lb.Amphorae))
	}
	survivor := lb.Amphorae[0]
	if survivor.ID != "amp-1" {
		t.Errorf("survivor = %s, want amp-1", survivor.ID)
	}
	if survivor.VRRPInterface == nil || *survivor.VRRPInterface != "eth1" {
		t.Errorf("survivor VRRP interface = %v, want eth1", survivor.VRRPInterface)
	}

	if got := st.amphoraStatus(t, "amp-2"); got != amphorae.StatusError {
		t.Errorf("failing amphora status = %v, want %v", got, amphorae.StatusError)
	}
	failed, err := st.GetAmphora(context.Background(), "amp-2")
	if err != nil {
		t.Fatalf("Failed to load amphora: %v", err)
	}
	if failed.VRRPInterface != nil {
		t.Errorf("failing amphora VRRP interface = %v, want unset", failed.VRRPInterface)
	}
}

func TestAmphoraUpdateVRRPInterfaceSkipsNonAllocated(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	errStatus := amphorae.StatusError
	if err := st.UpdateAmphora(context.Background(), "amp-2",
		store.AmphoraChanges{Status: &errStatus}); err != nil {
		t.Fatalf("Failed to seed amphora status: %v", err)
	}

	driver := &mockDriver{}
	task := NewAmphoraUpdateVRRPInterface(newTestBase(t, st, driver))

	lb, err := task.Execute(context.Background(), "lb-1")
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if len(lb.Amphorae) != 1 || lb.Amphorae[0].ID != "amp-1" {
		t.Errorf("surviving amphorae = %+v, want only amp-1", lb.Amphorae)
	}
	if got := driver.callCount("get_vrrp_interface"); got != 1 {
		t.Errorf("driver get_vrrp_interface calls = %d, want 1", got)
	}
}

func TestAmphoraUpdateVRRPInterfaceRevert(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	task := NewAmphoraUpdateVRRPInterface(newTestBase(t, st, &mockDriver{}))
	ctx := context.Background()

	if _, err := task.Execute(ctx, "lb-1"); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}

	task.Revert(ctx, OwnExecutionFailed(errors.New("boom")), "lb-1")
	amp, err := st.GetAmphora(ctx, "amp-1")
	if err != nil {
		t.Fatalf("Failed to load amphora: %v", err)
	}
	if amp.VRRPInterface == nil {
		t.Error("own-failure revert must not clear the VRRP interface")
	}

	task.Revert(ctx, UpstreamFailure(), "lb-1")
	for _, id := range []string{"amp-1", "amp-2"} {
		amp, err := st.GetAmphora(ctx, id)
		if err != nil {
			t.Fatalf("Failed to load amphora: %v", err)
		}
		if amp.VRRPInterface != nil {
			t.Errorf("amphora %s VRRP interface = %v after revert, want unset", id, amp.VRRPInterface)
		}
	}
}

func TestVRRPServiceTasks(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	driver := &mockDriver{}
	base := newTestBase(t, st, driver)
	ctx := context.Background()

	netConfigs := map[string]amphorae.NetworkConfig{
		"amp-1": {AmphoraID: "amp-1"},
		"amp-2": {AmphoraID: "amp-2"},
	}

	if err := NewAmphoraVRRPUpdate(base).Execute(ctx, "lb-1", netConfigs); err != nil {
		t.Fatalf("VRRP update returned error: %v", err)
	}
	if err := NewAmphoraVRRPStop(base).Execute(ctx, "lb-1"); err != nil {
		t.Fatalf("VRRP stop returned error: %v", err)
	}
	if err := NewAmphoraVRRPStart(base).Execute(ctx, "lb-1"); err != nil {
		t.Fatalf("VRRP start returned error: %v", err)
	}

	for _, call := range []string{"update_vrrp_conf", "stop_vrrp_service", "start_vrrp_service"} {
		if got := driver.callCount(call); got != 1 {
			t.Errorf("driver %s calls = %d, want 1", call, got)
		}
	}
}

func TestStatusUpdaterSwallowsStoreFailures(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	base := newTestBase(t, st, &mockDriver{})
	ctx := context.Background()

	st.failUpdates = true
	// Must not panic or propagate; the remaining compensations in a rollback
	// depend on it.
	base.status.MarkAmphoraError(ctx, "amp-1")
	base.status.MarkListenerError(ctx, "listener-1")
	base.status.MarkLoadBalancerError(ctx, "lb-1")

	st.failUpdates = false
	if got := st.amphoraStatus(t, "amp-1"); got != amphorae.StatusAllocated {
		t.Errorf("amphora status = %v, want %v unchanged", got, amphorae.StatusAllocated)
	}
}
