package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"swappiIndexer/internal/model"
	"swappiIndexer/internal/storage"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for entities and applier state.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.EntityStore = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, id string) (*model.Token, error) {
	var (
		token  model.Token
		supply string
		nums   [4]string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, symbol, name, decimals, total_supply::text, derived_eth::text,
			trade_volume::text, trade_volume_usd::text, total_liquidity::text, tx_count
		FROM tokens WHERE id=$1
	`, id)
	if err := row.Scan(&token.ID, &token.Symbol, &token.Name, &token.Decimals, &supply,
		&nums[0], &nums[1], &nums[2], &nums[3], &token.TxCount); err != nil {
		return nil, notFound(err)
	}
	total, ok := new(big.Int).SetString(supply, 10)
	if !ok {
		return nil, fmt.Errorf("token %s: invalid total supply %q", id, supply)
	}
	token.TotalSupply = total
	if err := parseDecimals(nums[:], &token.DerivedETH, &token.TradeVolume, &token.TradeVolumeUSD, &token.TotalLiquidity); err != nil {
		return nil, fmt.Errorf("token %s: %w", id, err)
	}
	return &token, nil
}

func (s *Store) SaveToken(ctx context.Context, token *model.Token) error {
	if token == nil || token.ID == "" {
		return storage.ErrInvalidInput
	}
	supply := "0"
	if token.TotalSupply != nil {
		supply = token.TotalSupply.String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (
			id, symbol, name, decimals, total_supply, derived_eth, trade_volume,
			trade_volume_usd, total_liquidity, tx_count, updated_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10, now())
		ON CONFLICT (id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			decimals = EXCLUDED.decimals,
			total_supply = EXCLUDED.total_supply,
			derived_eth = EXCLUDED.derived_eth,
			trade_volume = EXCLUDED.trade_volume,
			trade_volume_usd = EXCLUDED.trade_volume_usd,
			total_liquidity = EXCLUDED.total_liquidity,
			tx_count = EXCLUDED.tx_count,
			updated_at = now()
	`,
		token.ID,
		token.Symbol,
		token.Name,
		int16(token.Decimals),
		supply,
		token.DerivedETH.String(),
		token.TradeVolume.String(),
		token.TradeVolumeUSD.String(),
		token.TotalLiquidity.String(),
		int64(token.TxCount),
	)
	return err
}

func (s *Store) GetPair(ctx context.Context, id string) (*model.Pair, error) {
	var (
		pair model.Pair
		nums [11]string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, token0, token1, reserve0::text, reserve1::text, reserve_eth::text, reserve_usd::text,
			total_supply::text, token0_price::text, token1_price::text, volume_token0::text,
			volume_token1::text, volume_usd::text, tx_count, liquidity_provider_count,
			created_at_timestamp, created_at_block, last_sync_tx
		FROM pairs WHERE id=$1
	`, id)
	if err := row.Scan(&pair.ID, &pair.Token0, &pair.Token1,
		&nums[0], &nums[1], &nums[2], &nums[3], &nums[4], &nums[5], &nums[6], &nums[7], &nums[8], &nums[9], &nums[10],
		&pair.TxCount, &pair.LiquidityProviderCount, &pair.CreatedAtTimestamp, &pair.CreatedAtBlock, &pair.LastSyncTx); err != nil {
		return nil, notFound(err)
	}
	if err := parseDecimals(nums[:],
		&pair.Reserve0, &pair.Reserve1, &pair.ReserveETH, &pair.ReserveUSD, &pair.TotalSupply,
		&pair.Token0Price, &pair.Token1Price, &pair.VolumeToken0, &pair.VolumeToken1, &pair.VolumeUSD,
	); err != nil {
		return nil, fmt.Errorf("pair %s: %w", id, err)
	}
	return &pair, nil
}

func (s *Store) SavePair(ctx context.Context, pair *model.Pair) error {
	if pair == nil || pair.ID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pairs (
			id, token0, token1, reserve0, reserve1, reserve_eth, reserve_usd, total_supply,
			token0_price, token1_price, volume_token0, volume_token1, volume_usd, tx_count,
			liquidity_provider_count, created_at_timestamp, created_at_block, last_sync_tx, updated_at
		) VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6::numeric,$7::numeric,$8::numeric,$9::numeric,
			$10::numeric,$11::numeric,$12::numeric,$13::numeric,$14,$15,$16,$17,$18,now())
		ON CONFLICT (id) DO UPDATE SET
			reserve0 = EXCLUDED.reserve0,
			reserve1 = EXCLUDED.reserve1,
			reserve_eth = EXCLUDED.reserve_eth,
			reserve_usd = EXCLUDED.reserve_usd,
			total_supply = EXCLUDED.total_supply,
			token0_price = EXCLUDED.token0_price,
			token1_price = EXCLUDED.token1_price,
			volume_token0 = EXCLUDED.volume_token0,
			volume_token1 = EXCLUDED.volume_token1,
			volume_usd = EXCLUDED.volume_usd,
			tx_count = EXCLUDED.tx_count,
			liquidity_provider_count = EXCLUDED.liquidity_provider_count,
			last_sync_tx = EXCLUDED.last_sync_tx,
			updated_at = now()
	`,
		pair.ID,
		pair.Token0,
		pair.Token1,
		pair.Reserve0.String(),
		pair.Reserve1.String(),
		pair.ReserveETH.String(),
		pair.ReserveUSD.String(),
		pair.TotalSupply.String(),
		pair.Token0Price.String(),
		pair.Token1Price.String(),
		pair.VolumeToken0.String(),
		pair.VolumeToken1.String(),
		pair.VolumeUSD.String(),
		int64(pair.TxCount),
		int64(pair.LiquidityProviderCount),
		int64(pair.CreatedAtTimestamp),
		int64(pair.CreatedAtBlock),
		pair.LastSyncTx,
	)
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var (
		user    model.User
		swapped string
	)
	row := s.pool.QueryRow(ctx, `SELECT id, usd_swapped::text FROM users WHERE id=$1`, id)
	if err := row.Scan(&user.ID, &swapped); err != nil {
		return nil, notFound(err)
	}
	if err := parseDecimals([]string{swapped}, &user.UsdSwapped); err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return &user, nil
}

func (s *Store) SaveUser(ctx context.Context, user *model.User) error {
	if user == nil || user.ID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, usd_swapped) VALUES ($1, $2::numeric)
		ON CONFLICT (id) DO UPDATE SET usd_swapped = EXCLUDED.usd_swapped
	`, user.ID, user.UsdSwapped.String())
	return err
}

func (s *Store) GetLiquidityPosition(ctx context.Context, id string) (*model.LiquidityPosition, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, pair, user_id, liquidity_token_balance::text
		FROM liquidity_positions WHERE id=$1
	`, id)
	position, err := scanPosition(row)
	if err != nil {
		return nil, notFound(err)
	}
	return position, nil
}

func (s *Store) SaveLiquidityPosition(ctx context.Context, position *model.LiquidityPosition) error {
	if position == nil || position.ID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO liquidity_positions (id, pair, user_id, liquidity_token_balance)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (id) DO UPDATE SET liquidity_token_balance = EXCLUDED.liquidity_token_balance
	`, position.ID, position.Pair, position.User, position.LiquidityTokenBalance.String())
	return err
}

func (s *Store) ListLiquidityPositionsByUser(ctx context.Context, user string) ([]*model.LiquidityPosition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pair, user_id, liquidity_token_balance::text
		FROM liquidity_positions WHERE user_id=$1 ORDER BY id
	`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*model.LiquidityPosition
	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, position)
	}
	return result, rows.Err()
}

// InsertSnapshot appends a snapshot; an existing id yields storage.ErrDuplicateKey.
func (s *Store) InsertSnapshot(ctx context.Context, snapshot *model.LiquidityPositionSnapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return storage.ErrInvalidInput
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO liquidity_position_snapshots (
			id, liquidity_position, ts, block, user_id, pair, token0_price_usd, token1_price_usd,
			reserve0, reserve1, reserve_usd, liquidity_token_total_supply, liquidity_token_balance
		) VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9::numeric,$10::numeric,$11::numeric,$12::numeric,$13::numeric)
		ON CONFLICT (id) DO NOTHING
	`,
		snapshot.ID,
		snapshot.LiquidityPosition,
		int64(snapshot.Timestamp),
		int64(snapshot.Block),
		snapshot.User,
		snapshot.Pair,
		snapshot.Token0PriceUSD.String(),
		snapshot.Token1PriceUSD.String(),
		snapshot.Reserve0.String(),
		snapshot.Reserve1.String(),
		snapshot.ReserveUSD.String(),
		snapshot.LiquidityTokenTotalSupply.String(),
		snapshot.LiquidityTokenBalance.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrDuplicateKey
	}
	return nil
}

func (s *Store) ListSnapshotsByPosition(ctx context.Context, position string) ([]*model.LiquidityPositionSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, liquidity_position, ts, block, user_id, pair, token0_price_usd::text,
			token1_price_usd::text, reserve0::text, reserve1::text, reserve_usd::text,
			liquidity_token_total_supply::text, liquidity_token_balance::text
		FROM liquidity_position_snapshots WHERE liquidity_position=$1 ORDER BY ts, id
	`, position)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*model.LiquidityPositionSnapshot
	for rows.Next() {
		var (
			snap model.LiquidityPositionSnapshot
			nums [7]string
		)
		if err := rows.Scan(&snap.ID, &snap.LiquidityPosition, &snap.Timestamp, &snap.Block, &snap.User, &snap.Pair,
			&nums[0], &nums[1], &nums[2], &nums[3], &nums[4], &nums[5], &nums[6]); err != nil {
			return nil, err
		}
		if err := parseDecimals(nums[:],
			&snap.Token0PriceUSD, &snap.Token1PriceUSD, &snap.Reserve0, &snap.Reserve1,
			&snap.ReserveUSD, &snap.LiquidityTokenTotalSupply, &snap.LiquidityTokenBalance,
		); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
		}
		result = append(result, &snap)
	}
	return result, rows.Err()
}

func (s *Store) GetBundle(ctx context.Context, id string) (*model.Bundle, error) {
	var (
		bundle model.Bundle
		price  string
	)
	row := s.pool.QueryRow(ctx, `SELECT id, eth_price::text FROM bundles WHERE id=$1`, id)
	if err := row.Scan(&bundle.ID, &price); err != nil {
		return nil, notFound(err)
	}
	if err := parseDecimals([]string{price}, &bundle.EthPrice); err != nil {
		return nil, fmt.Errorf("bundle %s: %w", id, err)
	}
	return &bundle, nil
}

func (s *Store) SaveBundle(ctx context.Context, bundle *model.Bundle) error {
	if bundle == nil || bundle.ID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bundles (id, eth_price) VALUES ($1, $2::numeric)
		ON CONFLICT (id) DO UPDATE SET eth_price = EXCLUDED.eth_price
	`, bundle.ID, bundle.EthPrice.String())
	return err
}

func (s *Store) GetFactory(ctx context.Context, id string) (*model.Factory, error) {
	var (
		factory model.Factory
		nums    [3]string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, pair_count, total_volume_usd::text, total_liquidity_eth::text,
			total_liquidity_usd::text, tx_count
		FROM factories WHERE id=$1
	`, id)
	if err := row.Scan(&factory.ID, &factory.PairCount, &nums[0], &nums[1], &nums[2], &factory.TxCount); err != nil {
		return nil, notFound(err)
	}
	if err := parseDecimals(nums[:], &factory.TotalVolumeUSD, &factory.TotalLiquidityETH, &factory.TotalLiquidityUSD); err != nil {
		return nil, fmt.Errorf("factory %s: %w", id, err)
	}
	return &factory, nil
}

func (s *Store) SaveFactory(ctx context.Context, factory *model.Factory) error {
	if factory == nil || factory.ID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO factories (id, pair_count, total_volume_usd, total_liquidity_eth, total_liquidity_usd, tx_count)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6)
		ON CONFLICT (id) DO UPDATE SET
			pair_count = EXCLUDED.pair_count,
			total_volume_usd = EXCLUDED.total_volume_usd,
			total_liquidity_eth = EXCLUDED.total_liquidity_eth,
			total_liquidity_usd = EXCLUDED.total_liquidity_usd,
			tx_count = EXCLUDED.tx_count
	`,
		factory.ID,
		int64(factory.PairCount),
		factory.TotalVolumeUSD.String(),
		factory.TotalLiquidityETH.String(),
		factory.TotalLiquidityUSD.String(),
		int64(factory.TxCount),
	)
	return err
}

// LoadState returns the last applied event position for a name.
func (s *Store) LoadState(ctx context.Context, name string) (model.EventPosition, bool, error) {
	if name == "" {
		return model.EventPosition{}, false, fmt.Errorf("state name required")
	}
	var pos model.EventPosition
	row := s.pool.QueryRow(ctx, `SELECT last_block, last_log_index FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&pos.BlockNumber, &pos.LogIndex); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EventPosition{}, false, nil
		}
		return model.EventPosition{}, false, err
	}
	return pos, true, nil
}

// SaveState upserts the last applied event position for a name.
func (s *Store) SaveState(ctx context.Context, name string, pos model.EventPosition) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_block, last_log_index, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, last_log_index = EXCLUDED.last_log_index, updated_at = now()
	`, name, int64(pos.BlockNumber), int64(pos.LogIndex))
	return err
}

func scanPosition(row pgx.Row) (*model.LiquidityPosition, error) {
	var (
		position model.LiquidityPosition
		balance  string
	)
	if err := row.Scan(&position.ID, &position.Pair, &position.User, &balance); err != nil {
		return nil, err
	}
	if err := parseDecimals([]string{balance}, &position.LiquidityTokenBalance); err != nil {
		return nil, fmt.Errorf("position %s: %w", position.ID, err)
	}
	return &position, nil
}

func parseDecimals(raw []string, dst ...*decimal.Decimal) error {
	if len(raw) != len(dst) {
		return fmt.Errorf("numeric columns %d, targets %d", len(raw), len(dst))
	}
	for i, text := range raw {
		value, err := decimal.NewFromString(text)
		if err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
		*dst[i] = value
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
