package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrTransactionNotFound is returned when no journal entry matches a tx_ref.
var ErrTransactionNotFound = errors.New("transaction not found")

type transactionCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// TransactionRepository persists the payment journal in MongoDB.
type TransactionRepository struct {
	collection transactionCollection
	now        func() time.Time
}

// NewTransactionRepository constructs a TransactionRepository.
func NewTransactionRepository(collection transactionCollection) *TransactionRepository {
	return &TransactionRepository{
		collection: collection,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Create inserts a journal entry, defaulting the status to
// StatusAwaitingConfirmation and populating timestamps.
func (r *TransactionRepository) Create(ctx context.Context, tx Transaction) (Transaction, error) {
	if r == nil || r.collection == nil {
		return Transaction{}, errors.New("transaction repository is not initialized")
	}
	if ctx == nil {
		return Transaction{}, errors.New("context is required")
	}
	if strings.TrimSpace(tx.TxRef) == "" {
		return Transaction{}, errors.New("tx_ref is required")
	}
	if tx.Status == "" {
		tx.Status = StatusAwaitingConfirmation
	}
	if !tx.Status.Valid() {
		return Transaction{}, fmt.Errorf("unknown transaction status %q", tx.Status)
	}

	now := r.now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, tx); err != nil {
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	return tx, nil
}

// MarkOutcome records the verification outcome of a journal entry. A missing
// entry yields ErrTransactionNotFound.
func (r *TransactionRepository) MarkOutcome(ctx context.Context, txRef string, status TransactionStatus, providerReference string) error {
	if r == nil || r.collection == nil {
		return errors.New("transaction repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(txRef) == "" {
		return errors.New("tx_ref is required")
	}
	if !status.Valid() {
		return fmt.Errorf("unknown transaction status %q", status)
	}

	set := bson.M{
		"status":     status,
		"updated_at": r.now(),
	}
	if providerReference != "" {
		set["provider_reference"] = providerReference
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"tx_ref": txRef}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if result == nil || result.MatchedCount == 0 {
		return fmt.Errorf("mark %s: %w", txRef, ErrTransactionNotFound)
	}

	return nil
}

// GetByTxRef fetches a journal entry by tx_ref.
func (r *TransactionRepository) GetByTxRef(ctx context.Context, txRef string) (Transaction, error) {
	if r == nil || r.collection == nil {
		return Transaction{}, errors.New("transaction repository is not initialized")
	}
	if ctx == nil {
		return Transaction{}, errors.New("context is required")
	}
	if strings.TrimSpace(txRef) == "" {
		return Transaction{}, errors.New("tx_ref is required")
	}

	result := r.collection.FindOne(ctx, bson.M{"tx_ref": txRef})
	if result == nil {
		return Transaction{}, errors.New("find transaction returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Transaction{}, fmt.Errorf("find %s: %w", txRef, ErrTransactionNotFound)
		}
		return Transaction{}, fmt.Errorf("find transaction: %w", err)
	}

	var tx Transaction
	if err := result.Decode(&tx); err != nil {
		return Transaction{}, fmt.Errorf("decode transaction: %w", err)
	}

	return tx, nil
}
