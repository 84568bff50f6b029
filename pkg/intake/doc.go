// Package intake implements push mode: agents POST typed telemetry to the
// HTTP intake and receive an acknowledgement carrying the next command to
// run.
//
// Routes:
//
//	POST /         telemetry intake (JSON body, wire.TelemetryRequest)
//	GET  /         HTML status page
//	GET  /status   JSON status document
//	GET  /health   liveness probe
//
// Every request is tracked in the session registry as a push session for
// the duration of the request. Push requests carry no handshake.
package intake
