// Package tasks implements the orchestration tasks that drive the lifecycle
// of load-balancer amphorae: listener start/stop/update/delete, network and
// VIP port plugging, VRRP configuration and service control, agent
// configuration push, certificate upload, and the compute connectivity wait.
//
// Tasks are invoked by an external workflow engine. Each task exposes an
// Execute method and, where compensation is meaningful, a Revert method. The
// engine passes a RevertCause so a compensation can tell whether its own
// Execute failed (no-op, avoids double reporting) or a downstream task
// triggered the rollback (mark the affected entities ERROR).
//
// Two failure-isolation shapes recur. Single-target tasks fail fast: any
// driver error propagates to the engine's retry and abort machinery. Fan-out
// tasks skip and continue: a per-target failure is logged, the target amphora
// is marked ERROR, and iteration proceeds, because in an active/standby
// topology a surviving peer keeps the load balancer functional and one dead
// amphora should not force a full rollback.
//
// Every task re-fetches entity snapshots from the store before acting on
// them; inbound identifiers are never trusted to carry fresh state.
package tasks
