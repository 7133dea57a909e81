// Package agentcfg renders the configuration file pushed to an amphora's
// management agent.
package agentcfg

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/openamphion/amphion/pkg/amphorae"
)

const agentConfigTemplate = `[DEFAULT]
debug = {{ .Debug }}

[amphora_agent]
amphora_id = {{ .AmphoraID }}

[controller]
loadbalancer_topology = {{ .Topology }}
heartbeat_interval = {{ .HeartbeatInterval }}

[health_manager]
controller_ip_port_list = {{ .HealthEndpoints }}
`

// Settings are the process-wide agent settings threaded into the builder at
// construction.
type Settings struct {
	// Debug enables debug logging on the agent.
	Debug bool

	// HeartbeatInterval is the health heartbeat interval in seconds.
	HeartbeatInterval int

	// HealthEndpoints is the comma-separated list of health manager
	// endpoints the agent reports to.
	HealthEndpoints string
}

// Builder renders agent configuration blobs.
type Builder struct {
	settings Settings
	tmpl     *template.Template
}

// NewBuilder creates a builder with the given process-wide settings.
func NewBuilder(settings Settings) *Builder {
	if settings.HeartbeatInterval <= 0 {
		settings.HeartbeatInterval = 10
	}
	return &Builder{
		settings: settings,
		tmpl:     template.Must(template.New("agent").Parse(agentConfigTemplate)),
	}
}

// Build renders the agent configuration for one amphora under the given
// topology.
func (b *Builder) Build(amphoraID string, topology amphorae.Topology) ([]byte, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err := b.tmpl.Execute(&buf, struct {
		Debug             bool
		AmphoraID         string
		Topology          amphorae.Topology
		HeartbeatInterval int
		HealthEndpoints   string
	}{
		Debug:             b.settings.Debug,
		AmphoraID:         amphoraID,
		Topology:          topology,
		HeartbeatInterval: b.settings.HeartbeatInterval,
		HealthEndpoints:   b.settings.HealthEndpoints,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render agent config: %w", err)
	}

	return buf.Bytes(), nil
}
