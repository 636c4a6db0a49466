package core

// ConsensusMessageType tags the payload carried by a ConsensusPayload
// envelope (spec.md §4.I "Messages (carried in ExtensiblePayload)").
type ConsensusMessageType byte

const (
	MessageChangeView ConsensusMessageType = iota
	MessagePrepareRequest
	MessagePrepareResponse
	MessageCommit
	MessageRecoveryRequest
	MessageRecoveryMessage
)

func (t ConsensusMessageType) String() string {
	switch t {
	case MessageChangeView:
		return "ChangeView"
	case MessagePrepareRequest:
		return "PrepareRequest"
	case MessagePrepareResponse:
		return "PrepareResponse"
	case MessageCommit:
		return "Commit"
	case MessageRecoveryRequest:
		return "RecoveryRequest"
	case MessageRecoveryMessage:
		return "RecoveryMessage"
	default:
		return "Unknown"
	}
}

// ChangeViewReason records why a validator gave up on the current view,
// carried for diagnostics and included verbatim in RecoveryMessage replay.
type ChangeViewReason byte

const (
	ReasonTimeout ChangeViewReason = iota
	ReasonChangeAgreement
	ReasonTxNotFound
	ReasonTxRejectedByPolicy
	ReasonTxInvalid
	ReasonBlockRejectedByPolicy
)

// ChangeView is broadcast by a validator that has seen no progress within
// its view timer (spec.md §4.I "View change").
type ChangeView struct {
	Reason    ChangeViewReason
	Timestamp uint64
	NewView   byte
}

// PrepareRequest is the primary's block proposal for the current view
// (spec.md §4.I "PrepareRequest{version, prev-hash, timestamp, nonce,
// tx-hashes}").
type PrepareRequest struct {
	Version           byte
	PrevHash          UInt256
	Timestamp         uint64
	Nonce             uint64
	TransactionHashes []UInt256
}

// PrepareResponse is a backup's agreement with the primary's proposal,
// identified by its hash so a backup can agree before it has fetched
// every transaction body (spec.md §4.I "PrepareResponse{preparation-hash}").
type PrepareResponse struct {
	PreparationHash UInt256
}

// Commit carries a validator's signature over the block's signing data,
// sent once ≥ m PrepareResponses (or, for the primary, its own
// PrepareRequest) have been observed to match (spec.md §4.I "Commit").
// BLSSignature is a second signature over the same data under the
// validator's BLS key; RecoveryMessage relays it per Commit, and
// AggregateCommitSignatures can fold several into one aggregate. The block
// witness itself is always assembled from Signature, never from BLSSignature.
type Commit struct {
	Signature    []byte
	BLSSignature []byte
}

// RecoveryRequest asks every reachable validator to replay the evidence
// it holds for the current view (spec.md §4.I "Recovery").
type RecoveryRequest struct {
	Timestamp uint64
}

// ChangeViewCompact is one validator's ChangeView, as replayed inside a
// RecoveryMessage.
type ChangeViewCompact struct {
	ValidatorIndex uint16
	OriginalView   byte
	Reason         ChangeViewReason
	Timestamp      uint64
}

// PreparationCompact is one validator's PrepareResponse (or, for the
// primary, its PrepareRequest), as replayed inside a RecoveryMessage.
type PreparationCompact struct {
	ValidatorIndex uint16
}

// CommitCompact is one validator's Commit, as replayed inside a
// RecoveryMessage.
type CommitCompact struct {
	ValidatorIndex uint16
	ViewNumber     byte
	Signature      []byte
	BLSSignature   []byte
}

// RecoveryMessage aggregates everything the sending validator has
// observed for the current view, so a validator that fell behind (or just
// joined) can catch up without replaying every individual message
// (spec.md §4.I "RecoveryMessage{change-view-compact×, prepare-request?,
// preparation-hash?, preparation-messages×, commit-messages×}").
type RecoveryMessage struct {
	ChangeViews         []ChangeViewCompact
	PrepareRequest      *PrepareRequest
	PreparationHash     *UInt256
	PreparationMessages []PreparationCompact
	CommitMessages      []CommitCompact
}

// ConsensusPayload is the envelope every dBFT message travels in:
// validator identity, view/block context, and the typed message itself
// (spec.md §4.I's "ExtensiblePayload" carrier, scoped down to what the
// consensus engine itself needs — wire framing for the P2P layer is out
// of scope, see spec.md §1).
type ConsensusPayload struct {
	ValidatorIndex uint16
	ViewNumber     byte
	BlockIndex     uint32
	Type           ConsensusMessageType
	Message        interface{}
}
