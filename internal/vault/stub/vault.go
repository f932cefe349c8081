package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fracpool/internal/vault"
)

// ErrUnavailable is a convenience error for failure-injection tests.
var ErrUnavailable = errors.New("governance vault unavailable")

// Transaction is one recorded vault transaction.
type Transaction struct {
	Index        int64
	Instructions []vault.Instruction
	Approvals    int
	Executed     bool
}

// VaultState is the stub-side record of one created vault.
type VaultState struct {
	VaultID      string
	VaultAddress string
	Members      []vault.Member
	Threshold    int
	Memo         string
	Assets       []string
	Transactions []*Transaction
}

// Vault implements vault.Vault for testing.
type Vault struct {
	mu     sync.Mutex
	vaults map[string]*VaultState
	nextID int

	CreateErr   error // injected failure for CreateVault
	SubmitErr   error // injected failure for SubmitTransaction
	ExecuteErr  error // injected failure for Execute
	TransferErr error // injected failure for TransferAsset
}

// NewVault creates a new stub vault service.
func NewVault() *Vault {
	return &Vault{vaults: make(map[string]*VaultState)}
}

// Compile-time interface check.
var _ vault.Vault = (*Vault)(nil)

// CreateVault records a vault and returns its generated identifiers.
func (s *Vault) CreateVault(_ context.Context, members []vault.Member, threshold int, memo string) (*vault.CreatedVault, error) {
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := fmt.Sprintf("vault-%d", s.nextID)
	address := fmt.Sprintf("pda-%d", s.nextID)
	state := &VaultState{
		VaultID:      id,
		VaultAddress: address,
		Members:      append([]vault.Member(nil), members...),
		Threshold:    threshold,
		Memo:         memo,
	}
	// Addressable by id and by PDA; callers use either.
	s.vaults[id] = state
	s.vaults[address] = state
	return &vault.CreatedVault{VaultID: id, VaultAddress: address}, nil
}

// SubmitTransaction records a transaction against a vault.
func (s *Vault) SubmitTransaction(_ context.Context, vaultID string, instructions []vault.Instruction) (*vault.SubmittedTransaction, error) {
	if s.SubmitErr != nil {
		return nil, s.SubmitErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vaults[vaultID]
	if !ok {
		return nil, fmt.Errorf("vault %s not found", vaultID)
	}

	tx := &Transaction{
		Index:        int64(len(v.Transactions)),
		Instructions: append([]vault.Instruction(nil), instructions...),
	}
	v.Transactions = append(v.Transactions, tx)
	return &vault.SubmittedTransaction{
		TransactionIndex: tx.Index,
		ProposalRef:      fmt.Sprintf("%s/tx/%d", vaultID, tx.Index),
	}, nil
}

// GetApprovalStatus reports the recorded approval tally.
func (s *Vault) GetApprovalStatus(_ context.Context, vaultID string, transactionIndex int64) (*vault.ApprovalStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vaults[vaultID]
	if !ok || transactionIndex < 0 || transactionIndex >= int64(len(v.Transactions)) {
		return nil, fmt.Errorf("transaction %s/%d not found", vaultID, transactionIndex)
	}
	tx := v.Transactions[transactionIndex]
	return &vault.ApprovalStatus{Approvals: tx.Approvals, Rejections: 0, Threshold: v.Threshold}, nil
}

// Execute marks a transaction executed.
func (s *Vault) Execute(_ context.Context, vaultID string, transactionIndex int64) (*vault.ExecuteResult, error) {
	if s.ExecuteErr != nil {
		return nil, s.ExecuteErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vaults[vaultID]
	if !ok || transactionIndex < 0 || transactionIndex >= int64(len(v.Transactions)) {
		return nil, fmt.Errorf("transaction %s/%d not found", vaultID, transactionIndex)
	}
	v.Transactions[transactionIndex].Executed = true
	return &vault.ExecuteResult{
		Signature: fmt.Sprintf("sig-%s-%d", vaultID, transactionIndex),
		Executed:  true,
	}, nil
}

// TransferAsset records an asset as held by the vault.
func (s *Vault) TransferAsset(_ context.Context, vaultID, assetMint string) (*vault.ExecuteResult, error) {
	if s.TransferErr != nil {
		return nil, s.TransferErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vaults[vaultID]
	if !ok {
		return nil, fmt.Errorf("vault %s not found", vaultID)
	}
	v.Assets = append(v.Assets, assetMint)
	return &vault.ExecuteResult{Signature: fmt.Sprintf("sig-transfer-%s", assetMint), Executed: true}, nil
}

// Approve records n approvals on a transaction.
func (s *Vault) Approve(vaultID string, transactionIndex int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vaults[vaultID]
	if !ok || transactionIndex < 0 || transactionIndex >= int64(len(v.Transactions)) {
		return
	}
	v.Transactions[transactionIndex].Approvals = n
}

// Vaults returns a snapshot of all recorded vault state, for assertions.
func (s *Vault) Vaults() map[string]*VaultState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*VaultState, len(s.vaults))
	for k, v := range s.vaults {
		if k != v.VaultID {
			continue // skip the PDA alias
		}
		cp := *v
		out[k] = &cp
	}
	return out
}
