// Package store provides persistence for load balancer, listener, and
// amphora records behind narrow repository interfaces. The orchestration
// core only needs get and field-level update operations; updates are
// last-writer-wins on the fields they touch, with no entity-level locking.
package store

import (
	"context"
	"errors"

	"github.com/openamphion/amphion/pkg/amphorae"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// AmphoraChanges describes field-level updates to an amphora record. Nil
// fields are left untouched.
type AmphoraChanges struct {
	// Status sets the amphora status.
	Status *amphorae.Status

	// VRRPInterface sets the discovered VRRP interface device name.
	VRRPInterface *string

	// ClearVRRPInterface unsets the VRRP interface field.
	ClearVRRPInterface bool
}

// ListenerChanges describes field-level updates to a listener record.
type ListenerChanges struct {
	// ProvisioningStatus sets the listener provisioning status.
	ProvisioningStatus *amphorae.ProvisioningStatus
}

// LoadBalancerChanges describes field-level updates to a load balancer
// record.
type LoadBalancerChanges struct {
	// ProvisioningStatus sets the load balancer provisioning status.
	ProvisioningStatus *amphorae.ProvisioningStatus
}

// AmphoraRepository reads and updates amphora records.
type AmphoraRepository interface {
	// GetAmphora retrieves an amphora snapshot by ID.
	GetAmphora(ctx context.Context, id string) (*amphorae.Amphora, error)

	// UpdateAmphora applies field changes to an amphora record.
	UpdateAmphora(ctx context.Context, id string, changes AmphoraChanges) error
}

// ListenerRepository reads and updates listener records.
type ListenerRepository interface {
	// GetListener retrieves a listener snapshot by ID.
	GetListener(ctx context.Context, id string) (*amphorae.Listener, error)

	// UpdateListener applies field changes to a listener record.
	UpdateListener(ctx context.Context, id string, changes ListenerChanges) error
}

// LoadBalancerRepository reads and updates load balancer records. Snapshots
// include the load balancer's listeners and amphorae.
type LoadBalancerRepository interface {
	// GetLoadBalancer retrieves a load balancer snapshot by ID.
	GetLoadBalancer(ctx context.Context, id string) (*amphorae.LoadBalancer, error)

	// UpdateLoadBalancer applies field changes to a load balancer record.
	UpdateLoadBalancer(ctx context.Context, id string, changes LoadBalancerChanges) error
}

// Store bundles the entity repositories backed by one database.
type Store interface {
	AmphoraRepository
	ListenerRepository
	LoadBalancerRepository
}
