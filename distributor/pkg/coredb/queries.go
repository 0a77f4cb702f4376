package coredb

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/account"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/metrics"
)

// ErrCursorConsumed is yielded when a voter sequence is ranged over twice.
var ErrCursorConsumed = errors.New("voter cursor already consumed")

const (
	countAccountsQuery     = `SELECT COUNT(*) FROM accounts`
	countVotersQuery       = `SELECT COUNT(*) FROM accounts WHERE inflationdest = $1`
	circulatingSupplyQuery = `SELECT COALESCE(SUM(balance), 0)::bigint FROM accounts`
	totalVotesQuery        = `SELECT COALESCE(SUM(balance), 0)::bigint FROM accounts WHERE inflationdest = $1`
	votersQuery            = `SELECT accountid, balance FROM accounts WHERE inflationdest = $1 ORDER BY accountid`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db   querier
	pool account.Account
}

func (q queries) scalar(ctx context.Context, name, sql string, dest any, args ...any) error {
	start := time.Now()
	err := q.db.QueryRow(ctx, sql, args...).Scan(dest)
	metrics.RecordCoreDBQuery(name, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%s query failed: %w", name, err)
	}
	return nil
}

func (q queries) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	err := q.scalar(ctx, "count_accounts", countAccountsQuery, &n)
	return n, err
}

func (q queries) CountVoters(ctx context.Context) (int64, error) {
	var n int64
	err := q.scalar(ctx, "count_voters", countVotersQuery, &n, q.pool.Address())
	return n, err
}

func (q queries) CirculatingSupply(ctx context.Context) (currency.Amount, error) {
	return q.sum(ctx, "circulating_supply", circulatingSupplyQuery)
}

func (q queries) TotalVotes(ctx context.Context) (currency.Amount, error) {
	return q.sum(ctx, "total_votes", totalVotesQuery, q.pool.Address())
}

func (q queries) sum(ctx context.Context, name, sql string, args ...any) (currency.Amount, error) {
	var stroops int64
	if err := q.scalar(ctx, name, sql, &stroops, args...); err != nil {
		return currency.Zero, err
	}
	return currency.New(stroops)
}

// Voters streams the accounts voting for the pool. The query runs when the
// sequence is first ranged over; ranging again yields ErrCursorConsumed.
func (q queries) Voters(ctx context.Context) iter.Seq2[account.Voter, error] {
	var consumed atomic.Bool
	return func(yield func(account.Voter, error) bool) {
		if consumed.Swap(true) {
			yield(account.Voter{}, ErrCursorConsumed)
			return
		}

		start := time.Now()
		rows, err := q.db.Query(ctx, votersQuery, q.pool.Address())
		if err != nil {
			metrics.RecordCoreDBQuery("voters", time.Since(start), err)
			yield(account.Voter{}, fmt.Errorf("voters query failed: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id      string
				balance int64
			)
			if err := rows.Scan(&id, &balance); err != nil {
				yield(account.Voter{}, fmt.Errorf("failed to scan voter: %w", err))
				return
			}
			voter, err := newVoter(id, balance)
			if err != nil {
				yield(account.Voter{}, err)
				return
			}
			if !yield(voter, nil) {
				return
			}
		}
		err = rows.Err()
		metrics.RecordCoreDBQuery("voters", time.Since(start), err)
		if err != nil {
			yield(account.Voter{}, fmt.Errorf("voters query failed: %w", err))
		}
	}
}

func newVoter(id string, balance int64) (account.Voter, error) {
	acc, err := account.New(id)
	if err != nil {
		return account.Voter{}, fmt.Errorf("invalid voter %q: %w", id, err)
	}
	stake, err := currency.New(balance)
	if err != nil {
		return account.Voter{}, fmt.Errorf("invalid balance of %s: %w", id, err)
	}
	return account.Voter{Account: acc, Stake: stake}, nil
}
