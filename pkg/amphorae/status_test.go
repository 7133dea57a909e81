package amphorae

import "testing"

func TestStatusPredicates(t *testing.T) {
	if !StatusError.IsTerminal() || !StatusDeleted.IsTerminal() {
		t.Error("ERROR and DELETED should be terminal")
	}
	if StatusAllocated.IsTerminal() || StatusBooting.IsTerminal() {
		t.Error("ALLOCATED and BOOTING should not be terminal")
	}

	for _, s := range []Status{StatusBooting, StatusAllocated, StatusReady, StatusError, StatusDeleted} {
		if err := s.Validate(); err != nil {
			t.Errorf("Validate(%s) returned error: %v", s, err)
		}
	}
	if err := Status("RESTING").Validate(); err == nil {
		t.Error("Validate() of an unknown status should fail")
	}
}

func TestProvisioningStatusPredicates(t *testing.T) {
	for _, s := range []ProvisioningStatus{ProvisioningPendingCreate, ProvisioningPendingUpdate, ProvisioningPendingDelete} {
		if !s.IsTransitional() {
			t.Errorf("%s should be transitional", s)
		}
	}
	if ProvisioningActive.IsTransitional() || ProvisioningError.IsTransitional() {
		t.Error("ACTIVE and ERROR should not be transitional")
	}
	if err := ProvisioningStatus("LIMBO").Validate(); err == nil {
		t.Error("Validate() of an unknown provisioning status should fail")
	}
}

func TestTopology(t *testing.T) {
	if TopologySingle.ToleratesAmphoraLoss() {
		t.Error("SINGLE should not tolerate amphora loss")
	}
	if !TopologyActiveStandby.ToleratesAmphoraLoss() {
		t.Error("ACTIVE_STANDBY should tolerate amphora loss")
	}
	if err := Topology("TRIPLE").Validate(); err == nil {
		t.Error("Validate() of an unknown topology should fail")
	}
}

func TestAllocatedAmphorae(t *testing.T) {
	lb := &LoadBalancer{
		Amphorae: []Amphora{
			{ID: "amp-1", Status: StatusAllocated},
			{ID: "amp-2", Status: StatusError},
			{ID: "amp-3", Status: StatusAllocated},
			{ID: "amp-4", Status: StatusBooting},
		},
	}

	allocated := lb.AllocatedAmphorae()
	if len(allocated) != 2 {
		t.Fatalf("AllocatedAmphorae() returned %d amphorae, want 2", len(allocated))
	}
	if allocated[0].ID != "amp-1" || allocated[1].ID != "amp-3" {
		t.Errorf("AllocatedAmphorae() = %q, %q; want amp-1, amp-3", allocated[0].ID, allocated[1].ID)
	}
}
