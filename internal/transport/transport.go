// Package transport carries the interface contracts a real distributed
// transport would implement. Distributed/HTTP transport and node-discovery
// are explicitly out of scope for the core (spec.md §1): this package is
// the "interfaces only" boundary spec.md §6 reserves for them, wiring
// gRPC's connection-level concerns (keepalive, server options) without
// generating any service stubs, since nothing in the core actually serves
// or dials a network connection.
package transport

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/roasbeef/actorflow/internal/dispatch"
)

// ActionDispatcher is the contract a remote collaborator implements to
// forward an action-dispatch call to an actor living in a different
// process (spec.md §1 "distributed/HTTP transport ... interfaces only").
// A real implementation would marshal this over gRPC using a generated
// service stub; this module defines only the Go-level contract such a
// stub would satisfy.
type ActionDispatcher interface {
	// DispatchRemote forwards a call_by_action_name invocation to the
	// actor named actorName on whichever node hosts it.
	DispatchRemote(ctx context.Context, actorName, method, argsJSON string) (dispatch.ActionResult, error)
}

// ClusterDiscovery is the contract a node-discovery adapter implements to
// let the interpreter resolve which node in a cluster currently hosts a
// given actor name (spec.md §1 "node-discovery adapters (cluster-manager
// integration)").
type ClusterDiscovery interface {
	// ResolveActor returns the network address of the node hosting
	// actorName, or ok=false if no node currently claims it.
	ResolveActor(ctx context.Context, actorName string) (addr string, ok bool, err error)

	// Members returns the addresses of every node currently participating
	// in the cluster.
	Members(ctx context.Context) ([]string, error)
}

// ServerConfig holds the connection-level parameters for a gRPC server
// fronting an ActionDispatcher/ClusterDiscovery implementation, mirroring
// the teacher's keepalive configuration surface.
type ServerConfig struct {
	// ListenAddr is the address to listen on.
	ListenAddr string

	// ServerPingTime is how long the server waits before pinging an idle
	// client. Defaults to 5 minutes when zero.
	ServerPingTime time.Duration

	// ServerPingTimeout bounds how long the server waits for a ping ack
	// before considering the connection dead. Defaults to 1 minute when
	// zero.
	ServerPingTimeout time.Duration

	// ClientPingMinWait is the minimum time the server tolerates between
	// client-initiated pings before penalizing the connection. Defaults to
	// 5 seconds when zero.
	ClientPingMinWait time.Duration

	// ClientAllowPingWithoutStream allows client pings even when no
	// stream is active.
	ClientAllowPingWithoutStream bool
}

// DefaultServerConfig returns a ServerConfig with the teacher's defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:                   "localhost:17182",
		ServerPingTime:               5 * time.Minute,
		ServerPingTimeout:            1 * time.Minute,
		ClientPingMinWait:            5 * time.Second,
		ClientAllowPingWithoutStream: true,
	}
}

// ServerOptions builds the gRPC server options (keepalive parameters and
// enforcement policy) a real transport server would pass to
// grpc.NewServer, following the teacher's buildServerOptions shape.
func ServerOptions(cfg ServerConfig) []grpc.ServerOption {
	defaults := DefaultServerConfig()
	if cfg.ServerPingTime == 0 {
		cfg.ServerPingTime = defaults.ServerPingTime
	}
	if cfg.ServerPingTimeout == 0 {
		cfg.ServerPingTimeout = defaults.ServerPingTimeout
	}
	if cfg.ClientPingMinWait == 0 {
		cfg.ClientPingMinWait = defaults.ClientPingMinWait
	}

	serverKeepalive := keepalive.ServerParameters{
		Time:    cfg.ServerPingTime,
		Timeout: cfg.ServerPingTimeout,
	}

	clientKeepalive := keepalive.EnforcementPolicy{
		MinTime:             cfg.ClientPingMinWait,
		PermitWithoutStream: cfg.ClientAllowPingWithoutStream,
	}

	return []grpc.ServerOption{
		grpc.KeepaliveParams(serverKeepalive),
		grpc.KeepaliveEnforcementPolicy(clientKeepalive),
	}
}
