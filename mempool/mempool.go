package mempool

import (
	"chainforge/crypto"
	"chainforge/types"
)

// RejectKind enumerates the reasons admit(tx) can refuse a transaction.
type RejectKind int

const (
	BadSignature RejectKind = iota + 1
	FeeBelowFloor
	DuplicateHash
	SenderQuotaExceeded
	NonceGap
	InsufficientBalance
	PoolFull
)

func (k RejectKind) String() string {
	switch k {
	case BadSignature:
		return "BadSignature"
	case FeeBelowFloor:
		return "FeeBelowFloor"
	case DuplicateHash:
		return "DuplicateHash"
	case SenderQuotaExceeded:
		return "SenderQuotaExceeded"
	case NonceGap:
		return "NonceGap"
	case InsufficientBalance:
		return "InsufficientBalance"
	case PoolFull:
		return "PoolFull"
	default:
		return "Unknown"
	}
}

// AdmitResult is the outcome of admit(tx): either Ok (Kind == 0) or a
// specific Reject(Kind).
type AdmitResult struct {
	Kind RejectKind
}

func (r AdmitResult) Ok() bool { return r.Kind == 0 }

func Accepted() AdmitResult           { return AdmitResult{} }
func Rejected(k RejectKind) AdmitResult { return AdmitResult{Kind: k} }

// AccountView is the narrow read-only capability the pool needs from the
// store to validate nonces and balances, handed to the pool through
// Reshape rather than reached through ambient global state.
type AccountView interface {
	GetAccount(addr crypto.Address) types.Account
}

// Config holds the pool's bounded-memory parameters: capacity, the
// per-sender cap, and the minimum admissible fee.
type Config struct {
	MaxCapacity  int
	MaxPerSender int
	MinFeePerGas uint64
}

// Pool is the fee-prioritized transaction pool contract.
//
// Implementations must serialize admit/remove/reshape against each other
// under a single mutex; SelectForBlock is a consistent read snapshot.
type Pool interface {
	Admit(tx types.Transaction) AdmitResult
	SelectForBlock(maxGas uint64, baseFee uint64) types.Transactions
	Remove(hashes []crypto.Hash)
	Reshape(accounts AccountView)
	Size() int
	Has(hash crypto.Hash) bool
}
