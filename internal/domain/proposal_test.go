package domain

import "testing"

func TestValidProposalType(t *testing.T) {
	for _, typ := range []ProposalType{
		ProposalTypeRelistForSale, ProposalTypeAcceptOffer,
		ProposalTypeChangeThreshold, ProposalTypeAddMember, ProposalTypeRemoveMember,
	} {
		if !ValidProposalType(typ) {
			t.Errorf("%s should be valid", typ)
		}
	}
	if ValidProposalType("liquidate") {
		t.Error("unknown type should be invalid")
	}
}

func TestProposalHasVoted(t *testing.T) {
	p := &Proposal{
		VotesFor:     []Vote{{Wallet: "a"}},
		VotesAgainst: []Vote{{Wallet: "b"}},
	}
	if !p.HasVoted("a") || !p.HasVoted("b") {
		t.Error("voters in either ledger count as having voted")
	}
	if p.HasVoted("c") {
		t.Error("non-voter reported as voted")
	}
}

func TestProposalRecomputeTallies(t *testing.T) {
	p := &Proposal{
		VotesFor:     []Vote{{Wallet: "a", VotePower: 40}, {Wallet: "b", VotePower: 19}},
		VotesAgainst: []Vote{{Wallet: "c", VotePower: 30}},
		// Stale cached values the recompute must overwrite.
		ForVotePower:     999,
		AgainstVotePower: 999,
	}
	p.RecomputeTallies()

	if p.ForVotePower != 59 || p.AgainstVotePower != 30 {
		t.Errorf("tallies: for=%f against=%f", p.ForVotePower, p.AgainstVotePower)
	}
	if p.ForVoteCount != 2 || p.AgainstVoteCount != 1 {
		t.Errorf("counts: for=%d against=%d", p.ForVoteCount, p.AgainstVoteCount)
	}
}

func TestProposalThresholdReached(t *testing.T) {
	p := &Proposal{TotalVotePower: 100, ApprovalThreshold: 60, ForVotePower: 59}
	if p.ThresholdReached() {
		t.Error("59 of 100 should not reach a 60% threshold")
	}
	p.ForVotePower = 60
	if !p.ThresholdReached() {
		t.Error("60 of 100 should reach a 60% threshold")
	}
}

func TestProposalThresholdUnreachableWithZeroPower(t *testing.T) {
	// With no snapshot members the threshold is unreachable; the proposal
	// can only end by cancellation or expiry.
	p := &Proposal{TotalVotePower: 0, ApprovalThreshold: 60, ForVotePower: 50}
	if p.ThresholdReached() {
		t.Error("zero total vote power must never reach the threshold")
	}
}
