package domain

import (
	interfaces "sastrust/internal/domain/interfaces"
	types "sastrust/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Fingerprint        = types.Fingerprint
	UID                = types.UID
	Seed               = types.Seed
	ProtocolID         = types.ProtocolID
	StateID            = types.StateID
	MessageID          = types.MessageID
	CryptoIdentity     = types.CryptoIdentity
	OwnedIdentity      = types.OwnedIdentity
	CoreDetails        = types.CoreDetails
	TrustOriginKind    = types.TrustOriginKind
	TrustOrigin        = types.TrustOrigin
	Contact            = types.Contact
	ChannelKind        = types.ChannelKind
	Outbound           = types.Outbound
	ReceivedMessage    = types.ReceivedMessage
	DialogID           = types.DialogID
	DialogCategory     = types.DialogCategory
	Dialog             = types.Dialog
	InstanceKey        = types.InstanceKey
	InstanceRecord     = types.InstanceRecord
	QueuedOutbound     = types.QueuedOutbound
	PendingMessage     = types.PendingMessage
	Envelope           = types.Envelope
	DeviceRegistration = types.DeviceRegistration
	X25519Public       = types.X25519Public
	X25519Private      = types.X25519Private
	Ed25519Public      = types.Ed25519Public
	Ed25519Private     = types.Ed25519Private
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityStore   = interfaces.IdentityStore
	ReplayGuard     = interfaces.ReplayGuard
	InstanceStore   = interfaces.InstanceStore
	Outbox          = interfaces.Outbox
	PendingStore    = interfaces.PendingStore
	DialogStore     = interfaces.DialogStore
	Tx              = interfaces.Tx
	Database        = interfaces.Database
	KeyStore        = interfaces.KeyStore
	Transport       = interfaces.Transport
	RelayClient     = interfaces.RelayClient
	IdentityService = interfaces.IdentityService
	TrustService    = interfaces.TrustService
)

// Sizes of fixed-length values.
const (
	UIDSize            = types.UIDSize
	SeedSize           = types.SeedSize
	CryptoIdentitySize = types.CryptoIdentitySize
)

// Channel kinds.
const (
	ChannelNone                = types.ChannelNone
	ChannelLocal               = types.ChannelLocal
	ChannelAsymmetricBroadcast = types.ChannelAsymmetricBroadcast
	ChannelAsymmetricDevices   = types.ChannelAsymmetricDevices
	ChannelOwnedDevices        = types.ChannelOwnedDevices
	ChannelUserInterface       = types.ChannelUserInterface
)

// Dialog categories.
const (
	DialogNone                 = types.DialogNone
	DialogInviteSent           = types.DialogInviteSent
	DialogAcceptInvite         = types.DialogAcceptInvite
	DialogSasExchange          = types.DialogSasExchange
	DialogSasConfirmed         = types.DialogSasConfirmed
	DialogInvitationAccepted   = types.DialogInvitationAccepted
	DialogMutualTrustConfirmed = types.DialogMutualTrustConfirmed
	DialogDelete               = types.DialogDelete
)

// Trust origin kinds, weakest first.
const (
	TrustOriginNone         = types.TrustOriginNone
	TrustOriginLegacy       = types.TrustOriginLegacy
	TrustOriginIntroduction = types.TrustOriginIntroduction
	TrustOriginGroup        = types.TrustOriginGroup
	TrustOriginDirect       = types.TrustOriginDirect
)

// Constructors and parsers re-exported for callers that only import domain.
var (
	NewUID                 = types.NewUID
	ParseUID               = types.ParseUID
	NewCryptoIdentity      = types.NewCryptoIdentity
	ParseCryptoIdentity    = types.ParseCryptoIdentity
	ParseCryptoIdentityHex = types.ParseCryptoIdentityHex
)
