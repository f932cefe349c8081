package vault

import "context"

// Vault defines the multisig/custodial-signing interface. The vault holds
// the custodied asset's on-chain representation and executes transactions
// once enough members approve them.
type Vault interface {
	// CreateVault creates a multisig vault from a member set. threshold is
	// the absolute number of approvals required.
	CreateVault(ctx context.Context, members []Member, threshold int, memo string) (*CreatedVault, error)

	// SubmitTransaction submits a proposed transaction to a vault.
	SubmitTransaction(ctx context.Context, vaultID string, instructions []Instruction) (*SubmittedTransaction, error)

	// GetApprovalStatus reports current approvals of a vault transaction.
	GetApprovalStatus(ctx context.Context, vaultID string, transactionIndex int64) (*ApprovalStatus, error)

	// Execute executes an approved vault transaction.
	Execute(ctx context.Context, vaultID string, transactionIndex int64) (*ExecuteResult, error)

	// TransferAsset moves an on-chain asset into the vault's custody.
	TransferAsset(ctx context.Context, vaultID, assetMint string) (*ExecuteResult, error)
}

// Member is one multisig member with its permission set.
type Member struct {
	Wallet      string   `json:"wallet"`
	Permissions []string `json:"permissions"`
}

// Full voting permissions granted to eligible holders at finalization.
var FullPermissions = []string{"propose", "vote", "execute"}

// CreatedVault identifies a newly created vault.
type CreatedVault struct {
	VaultID      string `json:"vault_id"`
	VaultAddress string `json:"vault_address"`
}

// Instruction is one opaque instruction inside a vault transaction.
type Instruction struct {
	Program string            `json:"program"`
	Action  string            `json:"action"`
	Params  map[string]string `json:"params,omitempty"`
}

// SubmittedTransaction identifies a transaction submitted to a vault.
type SubmittedTransaction struct {
	TransactionIndex int64  `json:"transaction_index"`
	ProposalRef      string `json:"proposal_ref"`
}

// ApprovalStatus reports the approval tally of a vault transaction.
type ApprovalStatus struct {
	Approvals  int `json:"approvals"`
	Rejections int `json:"rejections"`
	Threshold  int `json:"threshold"`
}

// ExecuteResult reports the outcome of executing a vault transaction.
type ExecuteResult struct {
	Signature string `json:"signature"`
	Executed  bool   `json:"executed"`
}
