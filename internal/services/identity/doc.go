// Package identity manages the owned identity of a device.
//
// It enforces the passphrase policy, generates the signing and key-agreement
// key pairs and the seed key, keeps them in the encrypted keystore, records
// the public part in the device database, and links further devices to an
// existing identity. Devices announce themselves to the relay with a signed
// registration and learn about their siblings from its directory.
package identity
