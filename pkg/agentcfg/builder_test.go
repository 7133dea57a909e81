package agentcfg

import (
	"strings"
	"testing"

	"github.com/openamphion/amphion/pkg/amphorae"
)

func TestBuildRendersSettings(t *testing.T) {
	builder := NewBuilder(Settings{
		Debug:             true,
		HeartbeatInterval: 30,
		HealthEndpoints:   "192.0.2.10:5555,192.0.2.11:5555",
	})

	out, err := builder.Build("amp-1", amphorae.TopologyActiveStandby)
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}

	config := string(out)
	for _, want := range []string{
		"debug = true",
		"amphora_id = amp-1",
		"loadbalancer_topology = ACTIVE_STANDBY",
		"heartbeat_interval = 30",
		"controller_ip_port_list = 192.0.2.10:5555,192.0.2.11:5555",
	} {
		if !strings.Contains(config, want) {
			t.Errorf("rendered config missing %q:\n%s", want, config)
		}
	}
}

func TestBuildDefaultsHeartbeatInterval(t *testing.T) {
	builder := NewBuilder(Settings{})

	out, err := builder.Build("amp-1", amphorae.TopologySingle)
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	if !strings.Contains(string(out), "heartbeat_interval = 10") {
		t.Errorf("rendered config missing default heartbeat interval:\n%s", out)
	}
}

func TestBuildRejectsInvalidTopology(t *testing.T) {
	builder := NewBuilder(Settings{})
	if _, err := builder.Build("amp-1", amphorae.Topology("TRIPLE")); err == nil {
		t.Error("Build() with an invalid topology should fail")
	}
}
