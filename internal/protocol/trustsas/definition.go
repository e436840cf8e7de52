package trustsas

import (
	"errors"
	"fmt"

	"gopkg.in/op/go-logging.v1"

	"sastrust/internal/crypto"
	"sastrust/internal/domain"
	"sastrust/internal/protocol"
)

// ProtocolID identifies trust establishment with SAS.
const ProtocolID domain.ProtocolID = 1

// Name labels the protocol in logs and metrics.
const Name = "trust-establishment-sas"

var (
	// ErrCommitmentReplayed cancels an invite whose commitment was seen before.
	ErrCommitmentReplayed = errors.New("trustsas: commitment replayed")
	// ErrInvitationRejected cancels an invite the user declined.
	ErrInvitationRejected = errors.New("trustsas: invitation rejected")
	// ErrDecommitmentInvalid cancels when the commitment does not open.
	ErrDecommitmentInvalid = errors.New("trustsas: invalid decommitment")
	// ErrSASMismatch cancels a sibling device that received a wrong SAS.
	ErrSASMismatch = errors.New("trustsas: propagated SAS does not match")
	// ErrInvalidInvite rejects invites to oneself or to nobody.
	ErrInvalidInvite = errors.New("trustsas: invalid invite")
	// ErrMalformedMessage wraps messages with missing or inconsistent fields.
	ErrMalformedMessage = errors.New("trustsas: malformed message")
)

// Config parameterizes the protocol.
type Config struct {
	// SASDigits is the full SAS length; each user types half of it.
	SASDigits int
	Log       *logging.Logger
}

// New returns the protocol definition.
func New(cfg Config) (*protocol.Definition, error) {
	if cfg.SASDigits == 0 {
		cfg.SASDigits = crypto.DefaultSASDigits
	}
	if err := crypto.ValidateSASDigits(cfg.SASDigits); err != nil {
		return nil, err
	}
	if cfg.Log == nil {
		return nil, errors.New("trustsas: missing logger")
	}
	s := &steps{digits: cfg.SASDigits, log: cfg.Log}

	return &protocol.Definition{
		ID:          ProtocolID,
		Name:        Name,
		Transitions: s.table(),
		NewState:    newState,
		NewMessage:  newMessage,
		Terminal: func(id domain.StateID) bool {
			return id == MutualTrustConfirmedID || id == CancelledID
		},
	}, nil
}

func (s *steps) table() []protocol.Transition {
	return []protocol.Transition{
		{Name: "SendCommitment", From: protocol.InitialStateID,
			Message: InviteRequestID, Channel: domain.ChannelLocal, Run: s.sendCommitment},
		{Name: "StoreDecommitment", From: protocol.InitialStateID,
			Message: PropagatedInviteID, Channel: domain.ChannelOwnedDevices, Run: s.storeDecommitment},
		{Name: "ShowSasDialogAndSendDecommitment", From: WaitingForSeedID,
			Message: SeedMessageID, Channel: domain.ChannelAsymmetricDevices, Run: s.showSasDialogAndSendDecommitment},
		{Name: "StoreAndPropagateCommitment", From: protocol.InitialStateID,
			Message: CommitmentMessageID, Channel: domain.ChannelAsymmetricBroadcast, Run: s.storeAndPropagateCommitment},
		{Name: "StoreCommitmentAndAskForConfirmation", From: protocol.InitialStateID,
			Message: PropagatedCommitmentID, Channel: domain.ChannelOwnedDevices, Run: s.storeCommitmentAndAskForConfirmation},
		{Name: "SendSeedAndPropagateConfirmation", From: WaitingForConfirmationID,
			Message: InviteResponseID, Channel: domain.ChannelUserInterface, Run: s.sendSeedAndPropagateConfirmation},
		{Name: "ReceiveConfirmationFromOtherDevice", From: WaitingForConfirmationID,
			Message: PropagatedConfirmationID, Channel: domain.ChannelOwnedDevices, Run: s.receiveConfirmationFromOtherDevice},
		{Name: "ShowSasDialog", From: WaitingForDecommitmentID,
			Message: DecommitmentMessageID, Channel: domain.ChannelAsymmetricDevices, Run: s.showSasDialog},
		{Name: "CheckSas", From: WaitingForUserSASID,
			Message: SasEntryID, Channel: domain.ChannelUserInterface, Run: s.checkSas},
		{Name: "CheckPropagatedSas", From: WaitingForUserSASID,
			Message: PropagatedSasID, Channel: domain.ChannelOwnedDevices, Run: s.checkPropagatedSas},
		{Name: "AddTrust", From: ContactSASCheckedID,
			Message: MutualTrustMessageID, Channel: domain.ChannelAsymmetricDevices, Run: s.addTrust},
		{Name: "NotifiedMutualTrustEstablishedLegacy", From: ContactIdentityTrustedLegacyID,
			Message: MutualTrustMessageID, Channel: domain.ChannelAsymmetricDevices, Run: s.notifiedMutualTrustLegacy},
	}
}

func newState(id domain.StateID) (protocol.State, error) {
	switch id {
	case WaitingForSeedID:
		return &WaitingForSeed{}, nil
	case WaitingForConfirmationID:
		return &WaitingForConfirmation{}, nil
	case WaitingForDecommitmentID:
		return &WaitingForDecommitment{}, nil
	case WaitingForUserSASID:
		return &WaitingForUserSAS{}, nil
	case ContactSASCheckedID:
		return &ContactSASChecked{}, nil
	case ContactIdentityTrustedLegacyID:
		return &ContactIdentityTrustedLegacy{}, nil
	case MutualTrustConfirmedID:
		return &MutualTrustConfirmed{}, nil
	case CancelledID:
		return &Cancelled{}, nil
	default:
		return nil, fmt.Errorf("trustsas: unknown state %d", id)
	}
}

func newMessage(id domain.MessageID) (protocol.Message, error) {
	switch id {
	case InviteRequestID:
		return &InviteRequest{}, nil
	case CommitmentMessageID:
		return &CommitmentMessage{}, nil
	case PropagatedInviteID:
		return &PropagatedInvite{}, nil
	case PropagatedCommitmentID:
		return &PropagatedCommitment{}, nil
	case InviteResponseID:
		return &InviteResponse{}, nil
	case PropagatedConfirmationID:
		return &PropagatedConfirmation{}, nil
	case SeedMessageID:
		return &SeedMessage{}, nil
	case DecommitmentMessageID:
		return &DecommitmentMessage{}, nil
	case SasEntryID:
		return &SasEntry{}, nil
	case PropagatedSasID:
		return &PropagatedSas{}, nil
	case MutualTrustMessageID:
		return &MutualTrustMessage{}, nil
	default:
		return nil, fmt.Errorf("trustsas: unknown message %d", id)
	}
}
