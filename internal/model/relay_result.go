package model

// Relay statuses.
const (
	RelayStatusPending   = "pending"
	RelayStatusSucceeded = "succeeded"
	RelayStatusReverted  = "reverted"
)

// RelayResult records the outcome of submitting an authorization on-chain.
type RelayResult struct {
	AuthorizationID string `json:"authorization_id"`
	Method          string `json:"method"`
	TxHash          string `json:"tx_hash"`
	BlockNumber     uint64 `json:"block_number"`
	GasUsed         uint64 `json:"gas_used"`
	SimulatedAmount string `json:"simulated_amount"`
	Status          string `json:"status"`
	SubmittedAt     string `json:"submitted_at"`
}
