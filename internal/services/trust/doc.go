// Package trust lets the local user establish trust with contacts.
//
// The service turns user actions (invite, accept or reject, SAS entry) into
// local and dialog messages for the protocol engine, and feeds it the
// messages other devices sent through the relay.
package trust
