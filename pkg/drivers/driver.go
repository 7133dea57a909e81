package drivers

import (
	"context"
	"time"

	"github.com/openamphion/amphion/pkg/amphorae"
)

// TimeoutConfig bounds a blocking driver call: how many connection attempts
// to make and how long to wait between them. Sourced from process-wide
// configuration and read-only at call time.
type TimeoutConfig struct {
	// MaxRetries is the maximum number of connection attempts.
	MaxRetries int `json:"max_retries"`

	// RetryInterval is the wait between connection attempts.
	RetryInterval time.Duration `json:"retry_interval"`
}

// AmphoraDriver is the capability interface every amphora driver implements.
// Every operation takes an already loaded entity snapshot, blocks for at most
// the supplied (or configured) timeout, and fails with a *DriverError so the
// retry policy can classify the failure.
type AmphoraDriver interface {
	// UpdateAmphoraListeners pushes the load balancer's listener
	// configuration to one amphora.
	UpdateAmphoraListeners(ctx context.Context, lb *amphorae.LoadBalancer, amp *amphorae.Amphora, timeouts *TimeoutConfig) error

	// Update pushes the full listener configuration of a load balancer to
	// all of its amphorae.
	Update(ctx context.Context, lb *amphorae.LoadBalancer) error

	// Start starts the listeners on the VIP. A nil amphora starts listeners
	// on all amphorae of the load balancer.
	Start(ctx context.Context, lb *amphorae.LoadBalancer, amp *amphorae.Amphora) error

	// Delete removes a listener from the amphorae serving it.
	Delete(ctx context.Context, listener *amphorae.Listener) error

	// GetInfo queries basic appliance info, proving reachability.
	GetInfo(ctx context.Context, amp *amphorae.Amphora) (*amphorae.AmphoraInfo, error)

	// GetDiagnostics queries extended appliance diagnostics.
	GetDiagnostics(ctx context.Context, amp *amphorae.Amphora) (*amphorae.AmphoraDiagnostics, error)

	// FinalizeAmphora performs the last appliance setup steps before any
	// listeners are configured.
	FinalizeAmphora(ctx context.Context, amp *amphorae.Amphora) error

	// PostNetworkPlug notifies the amphora that a port was plugged into it.
	PostNetworkPlug(ctx context.Context, amp *amphorae.Amphora, port amphorae.Port) error

	// PostVIPPlug notifies the amphora that the VIP port was plugged.
	PostVIPPlug(ctx context.Context, amp *amphorae.Amphora, lb *amphorae.LoadBalancer, netConfigs map[string]amphorae.NetworkConfig) error

	// UploadCertAmp uploads a PEM bundle to the amphora.
	UploadCertAmp(ctx context.Context, amp *amphorae.Amphora, pem []byte) error

	// GetVRRPInterface returns the device name the VRRP service binds to on
	// the amphora.
	GetVRRPInterface(ctx context.Context, amp *amphorae.Amphora, timeouts *TimeoutConfig) (string, error)

	// UpdateVRRPConf pushes VRRP configuration to the load balancer's
	// amphorae.
	UpdateVRRPConf(ctx context.Context, lb *amphorae.LoadBalancer, netConfigs map[string]amphorae.NetworkConfig) error

	// StopVRRPService stops the VRRP service on the load balancer's amphorae.
	StopVRRPService(ctx context.Context, lb *amphorae.LoadBalancer) error

	// StartVRRPService starts the VRRP service on the load balancer's
	// amphorae.
	StartVRRPService(ctx context.Context, lb *amphorae.LoadBalancer) error

	// UpdateAmphoraAgentConfig pushes a new agent configuration blob to the
	// amphora. Drivers or images without this capability fail with an
	// unsupported-class error.
	UpdateAmphoraAgentConfig(ctx context.Context, amp *amphorae.Amphora, config []byte) error
}
