package amphorae

import "fmt"

// Status represents the lifecycle status of an amphora.
type Status string

const (
	// StatusBooting indicates the compute instance is still coming up.
	StatusBooting Status = "BOOTING"

	// StatusAllocated indicates the amphora is assigned to a load balancer
	// and serving (or ready to serve) traffic.
	StatusAllocated Status = "ALLOCATED"

	// StatusReady indicates the amphora is built but not yet assigned.
	StatusReady Status = "READY"

	// StatusError indicates the amphora has failed and needs external
	// repair or failover. Terminal for the orchestration core.
	StatusError Status = "ERROR"

	// StatusDeleted indicates the amphora has been removed.
	StatusDeleted Status = "DELETED"
)

// IsTerminal returns true if the status represents a final state for the
// orchestration core.
func (s Status) IsTerminal() bool {
	return s == StatusError || s == StatusDeleted
}

// Validate checks if the amphora status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusBooting, StatusAllocated, StatusReady, StatusError, StatusDeleted:
		return nil
	default:
		return fmt.Errorf("invalid amphora status: %s", s)
	}
}

// ProvisioningStatus represents the externally visible lifecycle state of a
// load balancer or listener.
type ProvisioningStatus string

const (
	// ProvisioningActive indicates the entity is provisioned and healthy.
	ProvisioningActive ProvisioningStatus = "ACTIVE"

	// ProvisioningPendingCreate indicates the entity is being created.
	ProvisioningPendingCreate ProvisioningStatus = "PENDING_CREATE"

	// ProvisioningPendingUpdate indicates the entity is being updated.
	ProvisioningPendingUpdate ProvisioningStatus = "PENDING_UPDATE"

	// ProvisioningPendingDelete indicates the entity is being deleted.
	ProvisioningPendingDelete ProvisioningStatus = "PENDING_DELETE"

	// ProvisioningError indicates provisioning failed.
	ProvisioningError ProvisioningStatus = "ERROR"

	// ProvisioningDeleted indicates the entity has been deleted.
	ProvisioningDeleted ProvisioningStatus = "DELETED"
)

// IsTransitional returns true if the status represents an in-flight change.
func (s ProvisioningStatus) IsTransitional() bool {
	return s == ProvisioningPendingCreate || s == ProvisioningPendingUpdate ||
		s == ProvisioningPendingDelete
}

// Validate checks if the provisioning status is valid.
func (s ProvisioningStatus) Validate() error {
	switch s {
	case ProvisioningActive, ProvisioningPendingCreate, ProvisioningPendingUpdate,
		ProvisioningPendingDelete, ProvisioningError, ProvisioningDeleted:
		return nil
	default:
		return fmt.Errorf("invalid provisioning status: %s", s)
	}
}

// Topology represents the deployment shape of a load balancer.
type Topology string

const (
	// TopologySingle runs one amphora; losing it takes the load balancer down.
	TopologySingle Topology = "SINGLE"

	// TopologyActiveStandby runs a VRRP pair; one amphora may be lost without
	// losing the load balancer.
	TopologyActiveStandby Topology = "ACTIVE_STANDBY"
)

// ToleratesAmphoraLoss returns true if a single amphora failure leaves the
// load balancer functional.
func (t Topology) ToleratesAmphoraLoss() bool {
	return t == TopologyActiveStandby
}

// Validate checks if the topology is valid.
func (t Topology) Validate() error {
	switch t {
	case TopologySingle, TopologyActiveStandby:
		return nil
	default:
		return fmt.Errorf("invalid load balancer topology: %s", t)
	}
}
