package domain

import "time"

// SigningStage identifies where in the co-signing flow a run currently is,
// or where it failed. Stages advance strictly in the order listed.
type SigningStage string

const (
	StageBuild    SigningStage = "build" // platform transaction build, before the signing flow
	StageValidate SigningStage = "validate"
	StageSign     SigningStage = "sign"
	StageCombine  SigningStage = "combine"
	StageSubmit   SigningStage = "submit"
	StageDone     SigningStage = "done"
)

// SubmissionRoute records which path carried a transaction to the network.
type SubmissionRoute string

const (
	RouteWallet     SubmissionRoute = "wallet"
	RouteBlockfrost SubmissionRoute = "blockfrost"
)

// SubmissionResult is the terminal value of a signing flow. TxHash, once
// obtained, is the durable identifier for the on-chain transaction.
type SubmissionResult struct {
	Success     bool
	TxHash      string
	Route       SubmissionRoute
	Error       string
	Fingerprint string // blake2b-256 of the unsigned tx payload, once validated
}

// SubmissionRecord is the persisted outcome of one coordinator run, one row
// per intent execution attempt.
type SubmissionRecord struct {
	ID            string
	IntentID      string
	WalletAddress string
	Pair          string
	Side          TradeSide
	Action        IntentAction
	Stage         SigningStage // last stage reached
	Success       bool
	TxHash        string
	Route         SubmissionRoute
	Error         string
	Fingerprint   string // blake2b-256 of the unsigned tx payload
	CreatedAt     time.Time
}
