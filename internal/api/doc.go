// Package api implements the HTTP REST API and WebSocket live feed for the
// occupancy service.
//
// This package provides:
//   - REST endpoints to list locations and read their occupancy
//   - A command endpoint mirroring the MQTT occupancy command topic
//   - A WebSocket hub broadcasting occupancy transitions
//   - JWT bearer authentication with role-based permissions
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API is a thin view over the tracker. Reads take the tracker's lock
// only long enough to copy state; commands go through Tracker.ExecuteAs, the
// same path MQTT commands take, so HTTP and bus clients see one ordering.
// The hub is handed to the tracker as its live feed and receives every
// transition on the "occupancy.changed" channel.
//
// # Live feed
//
//	{"type":"subscribe","id":"1","payload":{"channels":["occupancy.changed"],"locations":["kitchen"]}}
//
// A subscribe is acknowledged with a response and then an
// "occupancy.snapshot" event holding the current state of the filtered
// locations.
// Omitting locations keeps the current filter (initially every location).
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
//
// # Security
//
// Every route except /health requires an HS256 bearer token issued by the
// Gray Logic core with the shared secret. Browsers cannot set headers on a
// WebSocket upgrade, so /ws also accepts the token as ?token=.
package api
