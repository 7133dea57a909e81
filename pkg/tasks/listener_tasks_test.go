package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/openamphion/amphion/pkg/amphorae"
	"github.com/openamphion/amphion/pkg/drivers"
)

func seedLoadBalancer(st *mockStore) {
	st.addLoadBalancer(amphorae.LoadBalancer{
		ID:                 "lb-1",
		ProvisioningStatus: amphorae.ProvisioningActive,
		Topology:           amphorae.TopologyActiveStandby,
	})
	st.addAmphora(amphorae.Amphora{
		ID: "amp-1", LoadBalancerID: "lb-1", ComputeID: "vm-1",
		Status: amphorae.StatusAllocated,
	})
	st.addAmphora(amphorae.Amphora{
		ID: "amp-2", LoadBalancerID: "lb-1", ComputeID: "vm-2",
		Status: amphorae.StatusAllocated,
	})
	st.addListener(amphorae.Listener{
		ID: "listener-1", LoadBalancerID: "lb-1",
		ProvisioningStatus: amphorae.ProvisioningActive,
	})
	st.addListener(amphorae.Listener{
		ID: "listener-2", LoadBalancerID: "lb-1",
		ProvisioningStatus: amphorae.ProvisioningActive,
	})
}

func TestAmphoraListenersUpdateSkipsFailingAmphora(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)

	driver := &mockDriver{
		updateListenersErr: func(amp *amphorae.Amphora) error {
			if amp.ID == "amp-2" {
				return drivers.NewUnclassifiedError("haproxy reload failed", nil)
			}
			return nil
		},
	}
	task := NewAmphoraListenersUpdate(newTestBase(t, st, driver))

	err := task.Execute(context.Background(), "lb-1", 1, []string{"amp-1", "amp-2"}, nil)
	if err != nil {
		t.Fatalf("Execute() returned error for a per-target failure: %v", err)
	}

	if got := st.amphoraStatus(t, "amp-2"); got != amphorae.StatusError {
		t.Errorf("failing amphora status = %v, want %v", got, amphorae.StatusError)
	}
	if got := st.amphoraStatus(t, "amp-1"); got != amphorae.StatusAllocated {
		t.Errorf("healthy amphora status = %v, want %v", got, amphorae.StatusAllocated)
	}
}

func TestAmphoraListenersUpdateIndexOutOfRange(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	task := NewAmphoraListenersUpdate(newTestBase(t, st, &mockDriver{}))

	if err := task.Execute(context.Background(), "lb-1", 5, []string{"amp-1"}, nil); err == nil {
		t.Error("Execute() with out-of-range index should fail")
	}
}

func TestAmphoraListenersUpdateMarksTargetOnMissingLoadBalancer(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	driver := &mockDriver{}
	task := NewAmphoraListenersUpdate(newTestBase(t, st, driver))

	// The load balancer lookup is inside the skip scope: the failure is
	// contained to the target amphora.
	err := task.Execute(context.Background(), "lb-missing", 0, []string{"amp-1", "amp-2"}, nil)
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if got := st.amphoraStatus(t, "amp-1"); got != amphorae.StatusError {
		t.Errorf("target amphora status = %v, want %v", got, amphorae.StatusError)
	}
	if driver.callCount("update_amphora_listeners") != 0 {
		t.Error("driver should not be called when the load balancer is missing")
	}
}

func TestListenersUpdateMissingLoadBalancerSkips(t *testing.T) {
	st := newMockStore()
	driver := &mockDriver{}
	task := NewListenersUpdate(newTestBase(t, st, driver))

	if err := task.Execute(context.Background(), "lb-missing"); err != nil {
		t.Fatalf("Execute() on missing load balancer should skip, got error: %v", err)
	}
	if driver.callCount("update") != 0 {
		t.Error("driver update should not be called for a missing load balancer")
	}
}

func TestListenersUpdatePropagatesDriverFailure(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	driver := &mockDriver{updateErr: drivers.NewTransientError("agent unreachable", nil)}
	task := NewListenersUpdate(newTestBase(t, st, driver))

	err := task.Execute(context.Background(), "lb-1")
	if !drivers.IsTransient(err) {
		t.Errorf("Execute() error = %v, want transient driver error", err)
	}
}

func TestListenersUpdateRevert(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	task := NewListenersUpdate(newTestBase(t, st, &mockDriver{}))
	ctx := context.Background()

	// Own execute failed: compensation must not touch any entity.
	task.Revert(ctx, OwnExecutionFailed(errors.New("boom")), "lb-1")
	if got := st.listenerStatus(t, "listener-1"); got != amphorae.ProvisioningActive {
		t.Errorf("listener status after own-failure revert = %v, want %v", got, amphorae.ProvisioningActive)
	}

	// Downstream failure: every listener goes ERROR. A second invocation is
	// an idempotent overwrite.
	task.Revert(ctx, UpstreamFailure(), "lb-1")
	task.Revert(ctx, UpstreamFailure(), "lb-1")
	for _, id := range []string{"listener-1", "listener-2"} {
		if got := st.listenerStatus(t, id); got != amphorae.ProvisioningError {
			t.Errorf("listener %s status = %v, want %v", id, got, amphorae.ProvisioningError)
		}
	}
}

func TestListenersStartNoListeners(t *testing.T) {
	st := newMockStore()
	st.addLoadBalancer(amphorae.LoadBalancer{ID: "lb-empty", Topology: amphorae.TopologySingle})
	driver := &mockDriver{}
	task := NewListenersStart(newTestBase(t, st, driver))

	if err := task.Execute(context.Background(), "lb-empty", ""); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if driver.callCount("start") != 0 {
		t.Error("driver start should not be called for a load balancer without listeners")
	}
}

func TestListenersStartNamedAmphora(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	driver := &mockDriver{}
	task := NewListenersStart(newTestBase(t, st, driver))

	if err := task.Execute(context.Background(), "lb-1", "amp-1"); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if driver.lastStartAmphora == nil || driver.lastStartAmphora.ID != "amp-1" {
		t.Errorf("driver start amphora = %+v, want amp-1", driver.lastStartAmphora)
	}
}

func TestListenersStartAllAmphorae(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	driver := &mockDriver{}
	task := NewListenersStart(newTestBase(t, st, driver))

	if err := task.Execute(context.Background(), "lb-1", ""); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if driver.lastStartAmphora != nil {
		t.Errorf("driver start amphora = %+v, want nil for all-amphorae start", driver.lastStartAmphora)
	}
}

func TestListenerDelete(t *testing.T) {
	st := newMockStore()
	seedLoadBalancer(st)
	driver := &mockDriver{}
	task := NewListenerDelete(newTestBase(t, st, driver))
	ctx := context.Background()

	if err := task.Execute(ctx, "listener-1"); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if driver.callCount("delete") != 1 {
		t.Errorf("driver delete calls = %d, want 1", driver.callCount("delete"))
	}

	task.Revert(ctx, OwnExecutionFailed(errors.New("boom")), "listener-1")
	if got := st.listenerStatus(t, "listener-1"); got != amphorae.ProvisioningActive {
		t.Errorf("listener status after own-failure revert = %v, want %v", got, amphorae.ProvisioningActive)
	}

	task.Revert(ctx, UpstreamFailure(), "listener-1")
	if got := st.listenerStatus(t, "listener-1"); got != amphorae.ProvisioningError {
		t.Errorf("listener status after upstream revert = %v, want %v", got, amphorae.ProvisioningError)
	}
}
