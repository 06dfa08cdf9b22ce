// Package ports defines the interfaces that connect the application layer to
// infrastructure adapters.
//
// Ports are the boundaries between the replication core and the outside
// world. They state what the core needs from external systems without fixing
// how those needs are met.
//
// # Port Interfaces
//
//   - [CaptureSource]: fetches a frame from the capture server on demand
//   - [NavigationSource]: switches the active session/window, lists sessions
//   - [Transport]: immediate and store-and-forward delivery plus reachability
//   - [Renderer]: pure frame-to-visual-lines projection
//   - [KVStore]: durable key-value storage for learned and cached state
//   - [Logger]: structured logging abstraction
//
// The application layer (internal/app) depends only on these interfaces;
// adapters (internal/adapters) implement them with HTTP, websocket, the file
// system and zerolog. Tests supply in-memory implementations.
package ports
