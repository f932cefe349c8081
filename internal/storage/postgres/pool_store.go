package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fracpool/internal/domain"
	"fracpool/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
//
// Every mutation is a single-row write. Update is guarded by the version
// column, so concurrent read-modify-write cycles on one pool serialize the
// same way findOneAndUpdate would on a document store.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

const poolColumns = `
	pool_id, asset_id, escrow_id,
	total_shares, shares_sold, share_price_usd, target_amount_usd,
	min_buy_in_usd, max_investors, projected_roi, participants,
	status, custody_status, distribution_status, token_status, finalization_step,
	liquidity_model, amm_liquidity_percent, vendor_payment_percent,
	bags_token_mint, graduated, graduation_market_cap,
	squad_multisig_pda, squad_threshold, squad_members,
	vendor_paid_at, vendor_payment_usd, vendor_payment_tx_index, custody_tracking_number,
	resale_listing_price_usd, resale_sold_price_usd, resale_buyer_wallet, resale_sold_at,
	distribution_amount, distribution_royalty, distributions,
	deleted, version, created_at, updated_at`

// Create inserts a new pool. Returns ErrDuplicateKey if pool_id exists,
// ErrAssetClaimed if the asset-claim index rejects the row.
func (s *PoolStore) Create(ctx context.Context, p *domain.Pool) error {
	if p == nil || p.PoolID == "" || p.AssetID == "" {
		return storage.ErrInvalidInput
	}

	participants, members, distributions, err := marshalPoolLists(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pools (
			pool_id, asset_id, escrow_id,
			total_shares, shares_sold, share_price_usd, target_amount_usd,
			min_buy_in_usd, max_investors, projected_roi, participants,
			status, custody_status, distribution_status, token_status, finalization_step,
			liquidity_model, amm_liquidity_percent, vendor_payment_percent,
			bags_token_mint, graduated, graduation_market_cap,
			squad_multisig_pda, squad_threshold, squad_members,
			vendor_paid_at, vendor_payment_usd, vendor_payment_tx_index, custody_tracking_number,
			resale_listing_price_usd, resale_sold_price_usd, resale_buyer_wallet, resale_sold_at,
			distribution_amount, distribution_royalty, distributions,
			deleted, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37, 1
		)
	`

	_, err = s.pool.Exec(ctx, query,
		p.PoolID, p.AssetID, p.EscrowID,
		p.TotalShares, p.SharesSold, p.SharePriceUSD, p.TargetAmountUSD,
		p.MinBuyInUSD, p.MaxInvestors, p.ProjectedROI, participants,
		string(p.Status), string(p.CustodyStatus), string(p.DistributionStatus), string(p.TokenStatus), string(p.FinalizationStep),
		string(p.LiquidityModel), p.AMMLiquidityPercent, p.VendorPaymentPercent,
		p.BagsTokenMint, p.Graduated, p.GraduationMarketCap,
		p.SquadMultisigPDA, p.SquadThreshold, members,
		p.VendorPaidAt, p.VendorPaymentUSD, p.VendorPaymentTxIndex, p.CustodyTrackingNumber,
		p.ResaleListingPriceUSD, p.ResaleSoldPriceUSD, p.ResaleBuyerWallet, p.ResaleSoldAt,
		p.DistributionAmount, p.DistributionRoyalty, distributions,
		p.Deleted,
	)
	if err != nil {
		if isAssetClaimError(err) {
			return storage.ErrAssetClaimed
		}
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pool: %w", err)
	}

	p.Version = 1
	return nil
}

// GetByID retrieves a pool by its ID. Returns ErrNotFound if it does not
// exist or is soft-deleted.
func (s *PoolStore) GetByID(ctx context.Context, poolID string) (*domain.Pool, error) {
	query := `SELECT` + poolColumns + `
		FROM pools
		WHERE pool_id = $1 AND NOT deleted
	`

	row := s.pool.QueryRow(ctx, query, poolID)
	p, err := scanPool(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool by id: %w", err)
	}
	return p, nil
}

// Update writes the full pool record conditional on p.Version matching the
// stored version, then bumps it. Returns ErrVersionConflict when a
// concurrent writer got there first.
func (s *PoolStore) Update(ctx context.Context, p *domain.Pool) error {
	if p == nil || p.PoolID == "" {
		return storage.ErrInvalidInput
	}

	participants, members, distributions, err := marshalPoolLists(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE pools SET
			escrow_id = $3,
			shares_sold = $4, participants = $5,
			status = $6, custody_status = $7, distribution_status = $8,
			token_status = $9, finalization_step = $10,
			liquidity_model = $11, amm_liquidity_percent = $12, vendor_payment_percent = $13,
			bags_token_mint = $14, graduated = $15, graduation_market_cap = $16,
			squad_multisig_pda = $17, squad_threshold = $18, squad_members = $19,
			vendor_paid_at = $20, vendor_payment_usd = $21, vendor_payment_tx_index = $22,
			custody_tracking_number = $23,
			resale_listing_price_usd = $24, resale_sold_price_usd = $25,
			resale_buyer_wallet = $26, resale_sold_at = $27,
			distribution_amount = $28, distribution_royalty = $29, distributions = $30,
			version = version + 1, updated_at = now()
		WHERE pool_id = $1 AND version = $2 AND NOT deleted
		RETURNING version
	`

	var newVersion int64
	err = s.pool.QueryRow(ctx, query,
		p.PoolID, p.Version, p.EscrowID,
		p.SharesSold, participants,
		string(p.Status), string(p.CustodyStatus), string(p.DistributionStatus),
		string(p.TokenStatus), string(p.FinalizationStep),
		string(p.LiquidityModel), p.AMMLiquidityPercent, p.VendorPaymentPercent,
		p.BagsTokenMint, p.Graduated, p.GraduationMarketCap,
		p.SquadMultisigPDA, p.SquadThreshold, members,
		p.VendorPaidAt, p.VendorPaymentUSD, p.VendorPaymentTxIndex,
		p.CustodyTrackingNumber,
		p.ResaleListingPriceUSD, p.ResaleSoldPriceUSD,
		p.ResaleBuyerWallet, p.ResaleSoldAt,
		p.DistributionAmount, p.DistributionRoyalty, distributions,
	).Scan(&newVersion)
	if err != nil {
		if isAssetClaimError(err) {
			return storage.ErrAssetClaimed
		}
		if isNotFoundError(err) {
			// Distinguish a missing pool from a lost version race.
			var exists bool
			checkErr := s.pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM pools WHERE pool_id = $1 AND NOT deleted)`,
				p.PoolID,
			).Scan(&exists)
			if checkErr != nil {
				return fmt.Errorf("update pool existence check: %w", checkErr)
			}
			if !exists {
				return storage.ErrNotFound
			}
			return storage.ErrVersionConflict
		}
		return fmt.Errorf("update pool: %w", err)
	}

	p.Version = newVersion
	return nil
}

// GetByAsset retrieves the non-deleted pool holding the active claim on an
// asset. Returns ErrNotFound if none.
func (s *PoolStore) GetByAsset(ctx context.Context, assetID string) (*domain.Pool, error) {
	query := `SELECT` + poolColumns + `
		FROM pools
		WHERE asset_id = $1 AND NOT deleted
		  AND status NOT IN ('closed', 'failed', 'dead', 'burned')
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, assetID)
	p, err := scanPool(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool by asset: %w", err)
	}
	return p, nil
}

// GetByStatus retrieves non-deleted pools in a given status, ordered by
// creation time ASC.
func (s *PoolStore) GetByStatus(ctx context.Context, status domain.PoolStatus) ([]*domain.Pool, error) {
	query := `SELECT` + poolColumns + `
		FROM pools
		WHERE status = $1 AND NOT deleted
		ORDER BY created_at ASC, pool_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("get pools by status: %w", err)
	}
	defer rows.Close()

	var pools []*domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool rows: %w", err)
	}
	return pools, nil
}

// SoftDelete marks a pool deleted, releasing its asset claim.
func (s *PoolStore) SoftDelete(ctx context.Context, poolID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pools SET deleted = TRUE, version = version + 1, updated_at = now()
		WHERE pool_id = $1 AND NOT deleted
	`, poolID)
	if err != nil {
		return fmt.Errorf("soft delete pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// marshalPoolLists serializes the JSONB columns of a pool.
func marshalPoolLists(p *domain.Pool) (participants, members, distributions []byte, err error) {
	participants, err = json.Marshal(orEmptyParticipants(p.Participants))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal participants: %w", err)
	}
	members, err = json.Marshal(orEmptyMembers(p.SquadMembers))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal squad members: %w", err)
	}
	distributions, err = json.Marshal(orEmptyDistributions(p.Distributions))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal distributions: %w", err)
	}
	return participants, members, distributions, nil
}

func orEmptyParticipants(v []domain.Participant) []domain.Participant {
	if v == nil {
		return []domain.Participant{}
	}
	return v
}

func orEmptyMembers(v []domain.SquadMember) []domain.SquadMember {
	if v == nil {
		return []domain.SquadMember{}
	}
	return v
}

func orEmptyDistributions(v []domain.DistributionEntry) []domain.DistributionEntry {
	if v == nil {
		return []domain.DistributionEntry{}
	}
	return v
}

// scanPool scans a single row into a Pool.
func scanPool(row pgx.Row) (*domain.Pool, error) {
	var p domain.Pool
	var status, custodyStatus, distributionStatus, tokenStatus, finalizationStep, liquidityModel string
	var participants, members, distributions []byte
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&p.PoolID, &p.AssetID, &p.EscrowID,
		&p.TotalShares, &p.SharesSold, &p.SharePriceUSD, &p.TargetAmountUSD,
		&p.MinBuyInUSD, &p.MaxInvestors, &p.ProjectedROI, &participants,
		&status, &custodyStatus, &distributionStatus, &tokenStatus, &finalizationStep,
		&liquidityModel, &p.AMMLiquidityPercent, &p.VendorPaymentPercent,
		&p.BagsTokenMint, &p.Graduated, &p.GraduationMarketCap,
		&p.SquadMultisigPDA, &p.SquadThreshold, &members,
		&p.VendorPaidAt, &p.VendorPaymentUSD, &p.VendorPaymentTxIndex, &p.CustodyTrackingNumber,
		&p.ResaleListingPriceUSD, &p.ResaleSoldPriceUSD, &p.ResaleBuyerWallet, &p.ResaleSoldAt,
		&p.DistributionAmount, &p.DistributionRoyalty, &distributions,
		&p.Deleted, &p.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PoolStatus(status)
	p.CustodyStatus = domain.CustodyStatus(custodyStatus)
	p.DistributionStatus = domain.DistributionStatus(distributionStatus)
	p.TokenStatus = domain.TokenStatus(tokenStatus)
	p.FinalizationStep = domain.FinalizationStep(finalizationStep)
	p.LiquidityModel = domain.LiquidityModel(liquidityModel)
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt

	if err := json.Unmarshal(participants, &p.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}
	if err := json.Unmarshal(members, &p.SquadMembers); err != nil {
		return nil, fmt.Errorf("unmarshal squad members: %w", err)
	}
	if err := json.Unmarshal(distributions, &p.Distributions); err != nil {
		return nil, fmt.Errorf("unmarshal distributions: %w", err)
	}

	return &p, nil
}
