package governance

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"fracpool/internal/auth"
	"fracpool/internal/domain"
	ledgerstub "fracpool/internal/ledger/stub"
	"fracpool/internal/storage/memory"
	"fracpool/internal/vault"
	vaultstub "fracpool/internal/vault/stub"
)

// Snapshot weights: major 59%, minor 1%, second 40%.
const (
	adminWallet  = "admin-wallet"
	majorHolder  = "wallet-major"
	minorHolder  = "wallet-minor"
	secondHolder = "wallet-second"
	poolMint     = "mint-1"
)

type fixture struct {
	engine    *Engine
	pools     *memory.PoolStore
	proposals *memory.ProposalStore
	activity  *memory.ActivityStore
	ledger    *ledgerstub.Index
	vault     *vaultstub.Vault
	pool      *domain.Pool
}

// newFixture seeds a graduated, finalized pool whose snapshot carries
// three members at 59, 1 and 40 percent vote power against a 60 percent
// approval threshold.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	pools := memory.NewPoolStore()
	proposals := memory.NewProposalStore()
	activity := memory.NewActivityStore()
	ledgerIndex := ledgerstub.NewIndex()
	governanceVault := vaultstub.NewVault()
	policy := auth.NewStaticPolicy([]string{adminWallet}, nil)

	created, err := governanceVault.CreateVault(ctx, []vault.Member{
		{Wallet: majorHolder, Permissions: vault.FullPermissions},
		{Wallet: minorHolder, Permissions: vault.FullPermissions},
		{Wallet: secondHolder, Permissions: vault.FullPermissions},
	}, 2, "governance")
	if err != nil {
		t.Fatalf("create governance vault: %v", err)
	}

	mint := poolMint
	pool := &domain.Pool{
		PoolID:           "pool-1",
		AssetID:          "asset-1",
		Status:           domain.PoolStatusGraduated,
		CustodyStatus:    domain.CustodyStatusStored,
		TotalShares:      100,
		SharesSold:       100,
		SharePriceUSD:    1000,
		MaxInvestors:     50,
		Graduated:        true,
		BagsTokenMint:    &mint,
		TokenStatus:      domain.TokenStatusGraduated,
		SquadMultisigPDA: &created.VaultAddress,
		SquadThreshold:   60,
		FinalizationStep: domain.FinalizationStepDone,
		SquadMembers: []domain.SquadMember{
			{Wallet: majorHolder, TokenBalance: 59000, OwnershipPercent: 59, Permissions: vault.FullPermissions},
			{Wallet: minorHolder, TokenBalance: 1000, OwnershipPercent: 1, Permissions: vault.FullPermissions},
			{Wallet: secondHolder, TokenBalance: 40000, OwnershipPercent: 40, Permissions: vault.FullPermissions},
		},
	}
	if err := pools.Create(ctx, pool); err != nil {
		t.Fatalf("seed pool: %v", err)
	}

	ledgerIndex.SetBalance(mint, majorHolder, 59000)
	ledgerIndex.SetBalance(mint, minorHolder, 1000)
	ledgerIndex.SetBalance(mint, secondHolder, 40000)

	engine := NewEngine(proposals, pools, ledgerIndex, governanceVault, policy, zap.NewNop(),
		WithActivityStore(activity))

	return &fixture{
		engine:    engine,
		pools:     pools,
		proposals: proposals,
		activity:  activity,
		ledger:    ledgerIndex,
		vault:     governanceVault,
		pool:      pool,
	}
}

func (f *fixture) createProposal(t *testing.T, proposalType domain.ProposalType, payload domain.ProposalPayload) *domain.Proposal {
	t.Helper()
	prop, err := f.engine.CreateProposal(context.Background(), f.pool.PoolID, majorHolder, proposalType, payload, 7)
	if err != nil {
		t.Fatalf("CreateProposal failed: %v", err)
	}
	return prop
}

// approve drives a proposal to approved with the 59% and 1% holders.
func (f *fixture) approve(t *testing.T, proposalID string) *domain.Proposal {
	t.Helper()
	ctx := context.Background()
	if _, err := f.engine.Vote(ctx, proposalID, majorHolder, true); err != nil {
		t.Fatalf("major vote failed: %v", err)
	}
	prop, err := f.engine.Vote(ctx, proposalID, minorHolder, true)
	if err != nil {
		t.Fatalf("minor vote failed: %v", err)
	}
	if prop.Status != domain.ProposalStatusApproved {
		t.Fatalf("status after approval votes: got %s, want approved", prop.Status)
	}
	return prop
}

// backdate pushes a proposal's voting deadline into the past.
func (f *fixture) backdate(t *testing.T, proposalID string) {
	t.Helper()
	ctx := context.Background()
	prop, err := f.proposals.GetByID(ctx, proposalID)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	prop.VotingDeadline = time.Now().UTC().Add(-time.Hour)
	if err := f.proposals.Update(ctx, prop); err != nil {
		t.Fatalf("backdate proposal: %v", err)
	}
}

func TestCreateProposal(t *testing.T) {
	f := newFixture(t)

	prop := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 150000})

	if prop.Status != domain.ProposalStatusActive {
		t.Errorf("status: got %s, want active", prop.Status)
	}
	if prop.TotalVotePower != 100 {
		t.Errorf("total vote power: got %.2f, want 100 (frozen from the snapshot)", prop.TotalVotePower)
	}
	if prop.ApprovalThreshold != 60 {
		t.Errorf("threshold: got %.2f, want 60", prop.ApprovalThreshold)
	}
	if remaining := time.Until(prop.VotingDeadline); remaining < 6*24*time.Hour {
		t.Errorf("deadline too close: %s", remaining)
	}
}

func TestCreateProposalValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		ptype   domain.ProposalType
		payload domain.ProposalPayload
		days    int
		wantErr error
	}{
		{"unknown type", "liquidate", domain.ProposalPayload{}, 7, ErrInvalidType},
		{"zero deadline", domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 1}, 0, ErrInvalidDeadline},
		{"relist without price", domain.ProposalTypeRelistForSale, domain.ProposalPayload{}, 7, ErrInvalidPayload},
		{"offer without buyer", domain.ProposalTypeAcceptOffer, domain.ProposalPayload{OfferAmountUSD: 100}, 7, ErrInvalidPayload},
		{"offer without amount", domain.ProposalTypeAcceptOffer, domain.ProposalPayload{BuyerWallet: "w"}, 7, ErrInvalidPayload},
		{"threshold out of range", domain.ProposalTypeChangeThreshold, domain.ProposalPayload{NewThreshold: 101}, 7, ErrInvalidPayload},
		{"add member without wallet", domain.ProposalTypeAddMember, domain.ProposalPayload{}, 7, ErrInvalidPayload},
		{"remove member without wallet", domain.ProposalTypeRemoveMember, domain.ProposalPayload{}, 7, ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateProposal(ctx, f.pool.PoolID, majorHolder, tt.ptype, tt.payload, tt.days)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Proposer must currently hold the token.
	_, err := f.engine.CreateProposal(ctx, f.pool.PoolID, "wallet-stranger",
		domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 1}, 7)
	if !errors.Is(err, ErrNotATokenHolder) {
		t.Errorf("expected ErrNotATokenHolder, got %v", err)
	}
}

func TestCreateProposalRequiresGraduation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ungraduated := &domain.Pool{
		PoolID:       "pool-2",
		AssetID:      "asset-2",
		Status:       domain.PoolStatusActive,
		TotalShares:  100,
		MaxInvestors: 10,
	}
	if err := f.pools.Create(ctx, ungraduated); err != nil {
		t.Fatalf("seed pool: %v", err)
	}

	_, err := f.engine.CreateProposal(ctx, ungraduated.PoolID, majorHolder,
		domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 1}, 7)
	if !errors.Is(err, ErrPoolNotGraduated) {
		t.Errorf("expected ErrPoolNotGraduated, got %v", err)
	}
}

func TestVoteApprovalAtThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 150000})

	// 59 of 100 vote power: one short of the 60% threshold.
	got, err := f.engine.Vote(ctx, prop.ProposalID, majorHolder, true)
	if err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if got.Status != domain.ProposalStatusActive {
		t.Errorf("status at 59: got %s, want active", got.Status)
	}
	if got.ForVotePower != 59 {
		t.Errorf("votes for: got %.2f, want 59", got.ForVotePower)
	}

	// One more percent tips it over.
	got, err = f.engine.Vote(ctx, prop.ProposalID, minorHolder, true)
	if err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if got.Status != domain.ProposalStatusApproved {
		t.Errorf("status at 60: got %s, want approved", got.Status)
	}
	if got.ForVotePower != 60 {
		t.Errorf("votes for: got %.2f, want 60", got.ForVotePower)
	}
}

func TestVoteOncePerWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 150000})

	if _, err := f.engine.Vote(ctx, prop.ProposalID, secondHolder, true); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	// Same wallet, either side.
	if _, err := f.engine.Vote(ctx, prop.ProposalID, secondHolder, true); !errors.Is(err, ErrAlreadyVoted) {
		t.Errorf("expected ErrAlreadyVoted, got %v", err)
	}
	if _, err := f.engine.Vote(ctx, prop.ProposalID, secondHolder, false); !errors.Is(err, ErrAlreadyVoted) {
		t.Errorf("expected ErrAlreadyVoted, got %v", err)
	}
}

func TestVoteRequiresLiveHolding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 150000})

	// A snapshot member who has since sold everything cannot vote.
	f.ledger.SetBalance(poolMint, secondHolder, 0)
	if _, err := f.engine.Vote(ctx, prop.ProposalID, secondHolder, true); !errors.Is(err, ErrNotATokenHolder) {
		t.Errorf("expected ErrNotATokenHolder, got %v", err)
	}

	// A wallet that never held at all cannot vote either.
	if _, err := f.engine.Vote(ctx, prop.ProposalID, "wallet-stranger", true); !errors.Is(err, ErrNotATokenHolder) {
		t.Errorf("expected ErrNotATokenHolder, got %v", err)
	}
}

func TestVoteOutsideSnapshotCarriesZeroWeight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 150000})

	// Bought in after graduation: holds plenty live, but is not in the
	// snapshot. The vote is recorded with weight zero.
	f.ledger.SetBalance(poolMint, "wallet-late", 50000)

	got, err := f.engine.Vote(ctx, prop.ProposalID, "wallet-late", true)
	if err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if got.ForVotePower != 0 {
		t.Errorf("tally moved by an off-snapshot vote: %.2f", got.ForVotePower)
	}
	if len(got.VotesFor) != 1 {
		t.Fatalf("vote not recorded: %d", len(got.VotesFor))
	}
	vote := got.VotesFor[0]
	if vote.VotePower != 0 || vote.PowerSource != domain.VotePowerSourceLive {
		t.Errorf("vote = %+v, want zero power tagged live", vote)
	}
	if vote.TokenBalance != 50000 {
		t.Errorf("live balance not recorded: %.2f", vote.TokenBalance)
	}
}

func TestVoteAfterDeadlineExpiresProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 150000})
	f.backdate(t, prop.ProposalID)

	_, err := f.engine.Vote(ctx, prop.ProposalID, majorHolder, true)
	if !errors.Is(err, ErrVotingClosed) {
		t.Fatalf("expected ErrVotingClosed, got %v", err)
	}

	// The late vote's side effect: the proposal is expired, not left
	// active.
	got, err := f.engine.GetProposal(ctx, prop.ProposalID)
	if err != nil {
		t.Fatalf("GetProposal failed: %v", err)
	}
	if got.Status != domain.ProposalStatusExpired {
		t.Errorf("status: got %s, want expired", got.Status)
	}
}

func TestExecuteRelist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 175000})

	// Not approved yet.
	if _, err := f.engine.ExecuteProposal(ctx, prop.ProposalID, adminWallet); !errors.Is(err, ErrProposalNotApproved) {
		t.Errorf("expected ErrProposalNotApproved, got %v", err)
	}

	f.approve(t, prop.ProposalID)

	// Neither admin nor holder.
	if _, err := f.engine.ExecuteProposal(ctx, prop.ProposalID, "wallet-stranger"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}

	got, err := f.engine.ExecuteProposal(ctx, prop.ProposalID, secondHolder)
	if err != nil {
		t.Fatalf("ExecuteProposal failed: %v", err)
	}
	if got.Status != domain.ProposalStatusExecuted {
		t.Errorf("status: got %s, want executed", got.Status)
	}
	if got.Result == nil || got.Result.ResultType != domain.ExecutionResultSuccess {
		t.Fatalf("result: %+v, want success", got.Result)
	}
	if got.Result.ExecutedBy != secondHolder {
		t.Errorf("executed by: got %s, want %s", got.Result.ExecutedBy, secondHolder)
	}

	pool, _ := f.pools.GetByID(ctx, f.pool.PoolID)
	if pool.Status != domain.PoolStatusListed || pool.ResaleListingPriceUSD != 175000 {
		t.Errorf("pool after relist: status=%s price=%.2f", pool.Status, pool.ResaleListingPriceUSD)
	}

	// Execution is terminal.
	if _, err := f.engine.ExecuteProposal(ctx, prop.ProposalID, adminWallet); !errors.Is(err, ErrProposalNotApproved) {
		t.Errorf("expected ErrProposalNotApproved on repeat, got %v", err)
	}
}

// A pool that moved past the proposal's target state between approval and
// execution must not be dragged backwards. The execution still terminates
// the proposal, with a failed result.
func TestExecuteRelistAfterPoolAdvanced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prop := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 150000})
	f.approve(t, prop.ProposalID)

	// The asset is sold before anyone executes the relist.
	pool, err := f.pools.GetByID(ctx, f.pool.PoolID)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	pool.Status = domain.PoolStatusSold
	pool.ResaleSoldPriceUSD = 160000
	if err := f.pools.Update(ctx, pool); err != nil {
		t.Fatalf("advance pool: %v", err)
	}

	got, err := f.engine.ExecuteProposal(ctx, prop.ProposalID, majorHolder)
	if err != nil {
		t.Fatalf("ExecuteProposal failed: %v", err)
	}
	if got.Status != domain.ProposalStatusExecuted {
		t.Errorf("status: got %s, want executed", got.Status)
	}
	if got.Result == nil || got.Result.ResultType != domain.ExecutionResultFailed {
		t.Fatalf("result: %+v, want failed", got.Result)
	}

	pool, _ = f.pools.GetByID(ctx, f.pool.PoolID)
	if pool.Status != domain.PoolStatusSold {
		t.Errorf("pool status regressed: got %s, want sold", pool.Status)
	}
	if pool.ResaleListingPriceUSD != 0 {
		t.Errorf("listing price set on a sold pool: %.2f", pool.ResaleListingPriceUSD)
	}
}

// Same protection for accept_offer: a distributing pool cannot be pushed
// back to sold by a stale proposal.
func TestExecuteAcceptOfferAfterPoolAdvanced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prop := f.createProposal(t, domain.ProposalTypeAcceptOffer, domain.ProposalPayload{
		OfferAmountUSD: 160000,
		BuyerWallet:    "wallet-buyer",
	})
	f.approve(t, prop.ProposalID)

	pool, err := f.pools.GetByID(ctx, f.pool.PoolID)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	pool.Status = domain.PoolStatusDistributing
	if err := f.pools.Update(ctx, pool); err != nil {
		t.Fatalf("advance pool: %v", err)
	}

	got, err := f.engine.ExecuteProposal(ctx, prop.ProposalID, majorHolder)
	if err != nil {
		t.Fatalf("ExecuteProposal failed: %v", err)
	}
	if got.Result == nil || got.Result.ResultType != domain.ExecutionResultFailed {
		t.Fatalf("result: %+v, want failed", got.Result)
	}

	pool, _ = f.pools.GetByID(ctx, f.pool.PoolID)
	if pool.Status != domain.PoolStatusDistributing {
		t.Errorf("pool status regressed: got %s, want distributing", pool.Status)
	}
	if pool.ResaleBuyerWallet != nil {
		t.Errorf("buyer recorded on an advanced pool: %s", *pool.ResaleBuyerWallet)
	}
}

func TestExecuteAcceptOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Pre-built vault transaction referenced by the proposal.
	submitted, err := f.vault.SubmitTransaction(ctx, *f.pool.SquadMultisigPDA, []vault.Instruction{
		{Program: "treasury", Action: "transfer"},
	})
	if err != nil {
		t.Fatalf("submit vault tx: %v", err)
	}

	prop := f.createProposal(t, domain.ProposalTypeAcceptOffer, domain.ProposalPayload{
		OfferAmountUSD:        160000,
		BuyerWallet:           "wallet-buyer",
		VaultTransactionIndex: &submitted.TransactionIndex,
	})
	f.approve(t, prop.ProposalID)

	got, err := f.engine.ExecuteProposal(ctx, prop.ProposalID, adminWallet)
	if err != nil {
		t.Fatalf("ExecuteProposal failed: %v", err)
	}
	if got.Result.ResultType != domain.ExecutionResultSuccess {
		t.Fatalf("result: %+v", got.Result)
	}
	if got.Result.ExecutionTx == "" {
		t.Error("expected a vault execution signature")
	}

	pool, _ := f.pools.GetByID(ctx, f.pool.PoolID)
	if pool.Status != domain.PoolStatusSold {
		t.Errorf("pool status: got %s, want sold", pool.Status)
	}
	if pool.ResaleSoldPriceUSD != 160000 || pool.ResaleBuyerWallet == nil || *pool.ResaleBuyerWallet != "wallet-buyer" {
		t.Errorf("sale not recorded: price=%.2f buyer=%v", pool.ResaleSoldPriceUSD, pool.ResaleBuyerWallet)
	}
}

func TestExecuteFailureStillMarksExecuted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	submitted, err := f.vault.SubmitTransaction(ctx, *f.pool.SquadMultisigPDA, []vault.Instruction{
		{Program: "treasury", Action: "transfer"},
	})
	if err != nil {
		t.Fatalf("submit vault tx: %v", err)
	}

	prop := f.createProposal(t, domain.ProposalTypeAcceptOffer, domain.ProposalPayload{
		OfferAmountUSD:        160000,
		BuyerWallet:           "wallet-buyer",
		VaultTransactionIndex: &submitted.TransactionIndex,
	})
	f.approve(t, prop.ProposalID)

	f.vault.ExecuteErr = vaultstub.ErrUnavailable
	got, err := f.engine.ExecuteProposal(ctx, prop.ProposalID, adminWallet)
	if err != nil {
		t.Fatalf("ExecuteProposal must not error on action failure, got %v", err)
	}
	if got.Status != domain.ProposalStatusExecuted {
		t.Errorf("status: got %s, want executed despite the failure", got.Status)
	}
	if got.Result.ResultType != domain.ExecutionResultFailed {
		t.Errorf("result type: got %s, want failed", got.Result.ResultType)
	}
	if got.Result.Message == "" {
		t.Error("expected a failure message in the result")
	}

	// The pool was not touched.
	pool, _ := f.pools.GetByID(ctx, f.pool.PoolID)
	if pool.Status != domain.PoolStatusGraduated {
		t.Errorf("pool status changed on failed execution: %s", pool.Status)
	}
}

func TestExecuteChangeThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.createProposal(t, domain.ProposalTypeChangeThreshold, domain.ProposalPayload{NewThreshold: 75})
	f.approve(t, prop.ProposalID)

	got, err := f.engine.ExecuteProposal(ctx, prop.ProposalID, adminWallet)
	if err != nil {
		t.Fatalf("ExecuteProposal failed: %v", err)
	}
	if got.Result.ResultType != domain.ExecutionResultSuccess {
		t.Fatalf("result: %+v", got.Result)
	}

	pool, _ := f.pools.GetByID(ctx, f.pool.PoolID)
	if pool.SquadThreshold != 75 {
		t.Errorf("threshold: got %.2f, want 75", pool.SquadThreshold)
	}

	// A proposal created afterwards picks up the new threshold.
	other := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 1})
	if other.ApprovalThreshold != 75 {
		t.Errorf("new proposal threshold: got %.2f, want 75", other.ApprovalThreshold)
	}
}

func TestExecuteAddAndRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	add := f.createProposal(t, domain.ProposalTypeAddMember, domain.ProposalPayload{MemberWallet: "wallet-new"})
	f.approve(t, add.ProposalID)
	got, err := f.engine.ExecuteProposal(ctx, add.ProposalID, adminWallet)
	if err != nil {
		t.Fatalf("ExecuteProposal failed: %v", err)
	}
	if got.Result.ResultType != domain.ExecutionResultSuccess {
		t.Fatalf("add result: %+v", got.Result)
	}

	pool, _ := f.pools.GetByID(ctx, f.pool.PoolID)
	member := pool.SquadMember("wallet-new")
	if member == nil {
		t.Fatal("member not added")
	}
	// No payload ownership: the new member has no snapshot weight.
	if member.OwnershipPercent != 0 {
		t.Errorf("new member ownership: got %.2f, want 0", member.OwnershipPercent)
	}

	remove := f.createProposal(t, domain.ProposalTypeRemoveMember, domain.ProposalPayload{MemberWallet: minorHolder})
	f.approve(t, remove.ProposalID)
	if _, err := f.engine.ExecuteProposal(ctx, remove.ProposalID, adminWallet); err != nil {
		t.Fatalf("ExecuteProposal failed: %v", err)
	}

	pool, _ = f.pools.GetByID(ctx, f.pool.PoolID)
	if pool.SquadMember(minorHolder) != nil {
		t.Error("member not removed")
	}

	// Removing a wallet that is not a member fails softly.
	again := f.createProposal(t, domain.ProposalTypeRemoveMember, domain.ProposalPayload{MemberWallet: minorHolder})
	f.approve(t, again.ProposalID)
	got, err = f.engine.ExecuteProposal(ctx, again.ProposalID, adminWallet)
	if err != nil {
		t.Fatalf("ExecuteProposal failed: %v", err)
	}
	if got.Result.ResultType != domain.ExecutionResultFailed {
		t.Errorf("result: got %s, want failed", got.Result.ResultType)
	}
}

func TestCancelProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prop := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 150000})

	// Only the proposer or an admin.
	if _, err := f.engine.CancelProposal(ctx, prop.ProposalID, secondHolder); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}

	got, err := f.engine.CancelProposal(ctx, prop.ProposalID, majorHolder)
	if err != nil {
		t.Fatalf("CancelProposal failed: %v", err)
	}
	if got.Status != domain.ProposalStatusCancelled {
		t.Errorf("status: got %s, want cancelled", got.Status)
	}

	// An approved proposal is past the point of cancellation.
	other := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 1})
	f.approve(t, other.ProposalID)
	if _, err := f.engine.CancelProposal(ctx, other.ProposalID, adminWallet); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("expected ErrNotCancellable, got %v", err)
	}
}

func TestExpireDueProposals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	overdue := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 1})
	f.backdate(t, overdue.ProposalID)
	current := f.createProposal(t, domain.ProposalTypeChangeThreshold, domain.ProposalPayload{NewThreshold: 70})
	approved := f.createProposal(t, domain.ProposalTypeAddMember, domain.ProposalPayload{MemberWallet: "w"})
	f.approve(t, approved.ProposalID)

	n, err := f.engine.ExpireDueProposals(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ExpireDueProposals failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expired count: got %d, want 1", n)
	}

	got, _ := f.engine.GetProposal(ctx, overdue.ProposalID)
	if got.Status != domain.ProposalStatusExpired {
		t.Errorf("overdue proposal: got %s, want expired", got.Status)
	}
	got, _ = f.engine.GetProposal(ctx, current.ProposalID)
	if got.Status != domain.ProposalStatusActive {
		t.Errorf("current proposal: got %s, want active", got.Status)
	}
	got, _ = f.engine.GetProposal(ctx, approved.ProposalID)
	if got.Status != domain.ProposalStatusApproved {
		t.Errorf("approved proposal: got %s, want approved", got.Status)
	}
}

func TestListProposals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createProposal(t, domain.ProposalTypeRelistForSale, domain.ProposalPayload{AskingPriceUSD: 1})
	second := f.createProposal(t, domain.ProposalTypeChangeThreshold, domain.ProposalPayload{NewThreshold: 70})

	list, err := f.engine.ListProposals(ctx, f.pool.PoolID)
	if err != nil {
		t.Fatalf("ListProposals failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d proposals, want 2", len(list))
	}
	if list[0].ProposalID != first.ProposalID || list[1].ProposalID != second.ProposalID {
		t.Errorf("order: got %s then %s", list[0].ProposalID, list[1].ProposalID)
	}
}
