// Package relay carries protocol messages between devices over HTTP.
//
// Client implements domain.RelayClient; it is the channel transport of a
// device run from the command line. Server is the store-and-forward service
// behind it, run by cmd/relay.
//
// HTTP API
//
//	POST /register              signed DeviceRegistration
//	GET  /devices/{identity}    registered devices of an identity (hex)
//	POST /msg                   an Outbound, routed per channel kind
//	GET  /msg/{device}?limit=N  queued Envelopes of a device
//	POST /msg/{device}/ack      {"seqs": [...]} removes delivered envelopes
//	GET  /metrics               Prometheus metrics
//
// Requests and responses are JSON; message payloads stay CBOR and travel as
// base64 strings. Non-2xx statuses are returned as errors carrying the method,
// path and status text.
package relay
