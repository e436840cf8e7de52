// Package trustsas defines the trust establishment protocol in which two
// users confirm each other's identity by comparing a short authentication
// string (SAS).
//
// The inviter commits to a random seed and sends the commitment. The invitee
// answers with a seed derived from the commitment, after which the inviter
// opens the commitment. Both sides then derive the same SAS from the two
// seeds and the invitee identity; each user types the half shown on the other
// user's screen. Contacts are only written once the local user entered a
// matching SAS and the peer confirmed the same.
//
// Every state change made on one device is propagated to the other devices of
// the same owned identity, which replay it without talking to the peer.
package trustsas
