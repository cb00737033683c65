package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_chapa_bot/internal/domain"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// StatsProvider exposes collection counts for the owner report without leaking
// MongoDB internals to callers.
type StatsProvider struct {
	users        countCollection
	transactions countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the provided user and
// transaction collections.
func NewStatsProvider(users, transactions countCollection) *StatsProvider {
	return &StatsProvider{
		users:        users,
		transactions: transactions,
	}
}

// CountUsers returns the number of documents in the users collection.
func (p *StatsProvider) CountUsers(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.users == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}

// CountTransactions returns the number of journal entries in the given status.
func (p *StatsProvider) CountTransactions(ctx context.Context, status domain.TransactionStatus) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.transactions == nil {
		return 0, errors.New("stats provider is not initialized")
	}
	if !status.Valid() {
		return 0, fmt.Errorf("unknown transaction status %q", status)
	}

	count, err := p.transactions.CountDocuments(ctx, bson.D{{Key: "status", Value: status}})
	if err != nil {
		return 0, fmt.Errorf("count %s transactions: %w", status, err)
	}

	return count, nil
}
