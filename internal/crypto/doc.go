// Package crypto exposes the primitives used by trust establishment.
//
// Contents
//
//   - Hash commitments bound to the committing identity (Commit, Open)
//   - Short authentication strings from two seeds and the responder
//     identity (ComputeSAS, SASHalves)
//   - SAS seeds, random or derived from the owned seed key (NewSeed,
//     DeriveSeed)
//   - Owned identity generation over Ed25519 and X25519 (NewOwnedIdentity)
//   - Short identity fingerprints for display and logging (Fingerprint)
//
// # Notes
//
// Functions that need randomness take an io.Reader so tests can supply a
// deterministic source. Production callers pass crypto/rand.Reader.
package crypto
