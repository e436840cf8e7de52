// Package app wires the dependencies of one device for the CLI.
//
// Config is read from a TOML file and command line flags. NewWire builds
// the logging backend, device database, keystore, relay client and identity
// service from it; Open additionally unlocks the owned identity and starts
// the protocol engine and trust service.
package app
