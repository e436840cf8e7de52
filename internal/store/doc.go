// Package store provides persistence for one device.
//
// The device database (DB) is a bbolt file holding the owned identity
// record, contacts, the commitment replay guard, live protocol instances,
// the outbox, parked messages and dialogs. Protocol steps reach it through
// domain.Tx so every write of a step commits or rolls back together.
//
// The private keys of the owned identity live apart from the database in an
// scrypt and ChaCha20-Poly1305 protected keystore file (KeyStore). The seed
// key is handed to the database in memory with Unlock.
package store
