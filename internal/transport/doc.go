// Package transport routes outbound protocol messages to devices.
//
// Route decides which devices receive an outbound message according to its
// channel kind; the relay server uses it for real deliveries. Hub is an
// in-process network of device endpoints used by the demo and by tests to
// run multi-device scenarios deterministically.
package transport
