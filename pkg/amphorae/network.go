package amphorae

import (
	"encoding/json"
	"fmt"
)

// Port is an immutable descriptor of a network port plugged into an amphora.
// Ports are assembled from serialized task input and handed to the driver;
// they are never persisted by the orchestration core.
type Port struct {
	// ID is the port identifier in the network service.
	ID string `json:"id"`

	// Name is the port name, if any.
	Name string `json:"name,omitempty"`

	// MACAddress is the port MAC address.
	MACAddress string `json:"mac_address,omitempty"`

	// Network is the network the port is attached to.
	Network Network `json:"network"`

	// FixedIPs are the addresses assigned to the port.
	FixedIPs []FixedIP `json:"fixed_ips,omitempty"`
}

// Network is an immutable network descriptor.
type Network struct {
	// ID is the network identifier in the network service.
	ID string `json:"id"`

	// Name is the network name, if any.
	Name string `json:"name,omitempty"`

	// MTU is the network MTU, if known.
	MTU int `json:"mtu,omitempty"`
}

// Subnet is an immutable subnet descriptor.
type Subnet struct {
	// ID is the subnet identifier in the network service.
	ID string `json:"id"`

	// CIDR is the subnet address range.
	CIDR string `json:"cidr,omitempty"`

	// GatewayIP is the subnet gateway address.
	GatewayIP string `json:"gateway_ip,omitempty"`

	// HostRoutes are additional routes for hosts in the subnet.
	HostRoutes []HostRoute `json:"host_routes,omitempty"`
}

// HostRoute is a static route pushed to hosts in a subnet.
type HostRoute struct {
	// Destination is the route destination CIDR.
	Destination string `json:"destination"`

	// NextHop is the route next hop address.
	NextHop string `json:"nexthop"`
}

// FixedIP is an address assignment on a port.
type FixedIP struct {
	// IPAddress is the assigned address.
	IPAddress string `json:"ip_address"`

	// Subnet is the subnet the address belongs to.
	Subnet Subnet `json:"subnet"`
}

// DecodePorts assembles port descriptors from their serialized task-input
// form.
func DecodePorts(raw []byte) ([]Port, error) {
	var ports []Port
	if err := json.Unmarshal(raw, &ports); err != nil {
		return nil, fmt.Errorf("failed to decode ports: %w", err)
	}
	for i, port := range ports {
		if port.ID == "" {
			return nil, fmt.Errorf("port %d has no id", i)
		}
	}
	return ports, nil
}
