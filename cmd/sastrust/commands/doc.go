// Package commands defines the sastrust CLI. Each --home directory is one
// device.
//
// Commands
//
//   - init          Create a new identity with this device as its first device
//   - link          Make this device another device of an existing identity
//   - fingerprint   Print the identity and its fingerprint
//   - register      Announce this device to the relay and learn its siblings
//   - invite        Start trust establishment with a contact identity
//   - recv          Fetch and process queued protocol messages
//   - dialogs       List the pending dialogs
//   - accept        Accept an invitation
//   - reject        Reject an invitation
//   - sas           Type the code shown on the contact's device
//   - contacts      List trusted contacts
//   - instances     List running protocol instances
//   - abort         Abandon a running protocol instance
//   - demo          Run Alice and Bob in-process
//
// # Implementation
//
// The root command merges the optional TOML config file with the flags
// before any subcommand runs. Commands that act on protocol state unlock
// the identity and start the engine; dialog changes they cause are printed.
package commands
