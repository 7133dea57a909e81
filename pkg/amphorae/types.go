// Package amphorae defines the domain model shared by the amphora
// orchestration tasks: load balancers, listeners, amphorae, and the network
// descriptors passed to the amphora driver. All entities are snapshots of
// records owned by the persistent store; tasks read a snapshot at the start
// of an operation and write field-level updates at the end.
package amphorae

import (
	"encoding/json"
	"time"
)

// LoadBalancer is a snapshot of a load balancer record.
type LoadBalancer struct {
	// ID is the unique identifier for this load balancer.
	ID string `json:"id"`

	// ProvisioningStatus is the externally visible lifecycle state.
	ProvisioningStatus ProvisioningStatus `json:"provisioning_status"`

	// Topology determines how many amphorae participate and whether a
	// single amphora failure is tolerated.
	Topology Topology `json:"topology"`

	// VIPAddress is the virtual IP served by the amphorae.
	VIPAddress string `json:"vip_address,omitempty"`

	// Listeners are the listeners configured on this load balancer, in
	// creation order.
	Listeners []Listener `json:"listeners,omitempty"`

	// Amphorae are the appliances backing this load balancer, in
	// allocation order.
	Amphorae []Amphora `json:"amphorae,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// AllocatedAmphorae returns the amphorae still in ALLOCATED status.
func (lb *LoadBalancer) AllocatedAmphorae() []Amphora {
	out := make([]Amphora, 0, len(lb.Amphorae))
	for _, amp := range lb.Amphorae {
		if amp.Status == StatusAllocated {
			out = append(out, amp)
		}
	}
	return out
}

// Amphora is a snapshot of an amphora record.
type Amphora struct {
	// ID is the unique identifier for this amphora.
	ID string `json:"id"`

	// LoadBalancerID is the owning load balancer, if assigned.
	LoadBalancerID string `json:"load_balancer_id,omitempty"`

	// ComputeID is the compute instance backing this amphora.
	ComputeID string `json:"compute_id,omitempty"`

	// LBNetworkIP is the address of the amphora on the management network.
	LBNetworkIP string `json:"lb_network_ip,omitempty"`

	// Status is the current lifecycle status.
	Status Status `json:"status"`

	// Role is the VRRP role in an active/standby pair (MASTER, BACKUP).
	Role string `json:"role,omitempty"`

	// VRRPInterface is the device name the VRRP service binds to, once
	// discovered from the appliance. Nil until discovery runs.
	VRRPInterface *string `json:"vrrp_interface,omitempty"`

	// VRRPIP is the address used for VRRP traffic between peers.
	VRRPIP string `json:"vrrp_ip,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Listener is a snapshot of a listener record.
type Listener struct {
	// ID is the unique identifier for this listener.
	ID string `json:"id"`

	// LoadBalancerID is the owning load balancer.
	LoadBalancerID string `json:"load_balancer_id,omitempty"`

	// ProvisioningStatus is the externally visible lifecycle state.
	ProvisioningStatus ProvisioningStatus `json:"provisioning_status"`

	// Protocol is the listener protocol (TCP, HTTP, ...).
	Protocol string `json:"protocol,omitempty"`

	// Port is the listening port.
	Port int `json:"port,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// AmphoraInfo is the payload returned by a driver info query.
type AmphoraInfo struct {
	// HostName is the appliance hostname.
	HostName string `json:"hostname"`

	// Version is the agent version running on the appliance.
	Version string `json:"version"`

	// APIVersion is the agent API version.
	APIVersion string `json:"api_version,omitempty"`

	// ActiveTunedProfiles are the tuning profiles active on the appliance.
	ActiveTunedProfiles string `json:"active_tuned_profiles,omitempty"`
}

// AmphoraDiagnostics is the payload returned by a driver diagnostics query.
type AmphoraDiagnostics struct {
	// Info is the basic appliance info.
	Info AmphoraInfo `json:"info"`

	// CPULoad is the 1-minute load average.
	CPULoad float64 `json:"cpu_load"`

	// MemoryFree is the free memory in kilobytes.
	MemoryFree int64 `json:"memory_free"`

	// ListenerErrors maps listener IDs to process-level error strings.
	ListenerErrors map[string]string `json:"listener_errors,omitempty"`
}

// NetworkConfig carries the per-amphora network wiring handed to VIP plug
// and VRRP configuration operations, keyed by amphora ID at the task
// boundary.
type NetworkConfig struct {
	// AmphoraID is the amphora this configuration belongs to.
	AmphoraID string `json:"amphora_id"`

	// VRRPPort is the port carrying VRRP traffic.
	VRRPPort Port `json:"vrrp_port"`

	// VIPSubnet is the subnet the VIP lives in.
	VIPSubnet Subnet `json:"vip_subnet"`

	// VRRPPriority is the VRRP priority for this amphora.
	VRRPPriority int `json:"vrrp_priority,omitempty"`
}

// DecodeNetworkConfigs assembles per-amphora network configurations from
// their serialized task-input form.
func DecodeNetworkConfigs(raw []byte) (map[string]NetworkConfig, error) {
	configs := make(map[string]NetworkConfig)
	if err := json.Unmarshal(raw, &configs); err != nil {
		return nil, err
	}
	return configs, nil
}
