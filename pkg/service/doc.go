// Package service wires the listeners, session registry, renderer, storage
// sink and loggers into a running server.
//
// A Service owns up to three listeners, each enabled by a non-empty
// address in its configuration:
//
//   - pull: TLS (or plain TCP) stream server running authenticated
//     command sessions (package session)
//   - push: HTTP telemetry intake (package intake)
//   - echo: connectivity probe (package echo)
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.Secret = "..."
//
//	svc, err := service.New(cfg, service.Options{})
//	if err != nil { ... }
//	if err := svc.Start(ctx); err != nil { ... }
//	defer svc.Stop(context.Background())
//
// # Shutdown
//
// Stop closes every listener first, so no new connections are accepted,
// then waits for in-flight sessions and intake requests to finish. When
// the caller's context expires first the remaining sessions are closed.
//
// # Event Callbacks
//
// OnEvent handlers receive listener and session lifecycle events. They run
// on the goroutine that produced the event and must not block.
package service
