package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func duplicateOn(index string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: reluxrent.bookings index: " + index + " dup key: { _id: BinData(128, \"AAAAAAAA\") }",
	}}}
}

func countingOp(results ...error) (Operation, *int) {
	calls := 0
	return func() error {
		err := results[min(calls, len(results)-1)]
		calls++
		return err
	}, &calls
}

func TestWithRetries(t *testing.T) {
	boom := errors.New("connection reset")
	tests := []struct {
		name      string
		results   []error
		retries   int
		wantErr   error
		wantCalls int
	}{
		{name: "first attempt succeeds", results: []error{nil}, retries: 3, wantCalls: 1},
		{name: "other errors are not retried", results: []error{boom}, retries: 3, wantErr: boom, wantCalls: 1},
		{name: "collision then success", results: []error{duplicateOn("_id_"), duplicateOn("_id_"), nil}, retries: 3, wantCalls: 3},
		{name: "zero retries", results: []error{duplicateOn("_id_")}, retries: 0, wantCalls: 1},
		{name: "retries exhausted", results: []error{duplicateOn("_id_")}, retries: 2, wantCalls: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, calls := countingOp(tt.results...)
			err := WithRetries(context.Background(), op, tt.retries, IsMongoIDCollision)

			last := tt.results[min(tt.wantCalls-1, len(tt.results)-1)]
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else if last == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, IsMongoIDCollision(err))
			}
			assert.Equal(t, tt.wantCalls, *calls)
		})
	}
}

func TestWithRetries_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	op, calls := countingOp(duplicateOn("_id_"))

	start := time.Now()
	err := WithRetries(ctx, op, 5, IsMongoIDCollision)

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsMongoIDCollision(err))
	assert.Equal(t, 1, *calls)
	assert.Less(t, time.Since(start), retryBackoffStep)
}

func TestTry_DoesNotRetryBusinessDuplicate(t *testing.T) {
	op, calls := countingOp(duplicateOn("property_id_1_date_1"))

	err := Try(context.Background(), op)

	assert.Error(t, err)
	assert.Equal(t, 1, *calls)
	assert.True(t, IsMongoDuplicateKeyError(err))
}

func TestDuplicateKeyClassification(t *testing.T) {
	bulk := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{{
		WriteError: mongo.WriteError{Code: 11000, Message: "E11000 duplicate key error collection: reluxrent.conversations index: property_id_1_guest_id_1 dup key"},
	}}}
	tests := []struct {
		name        string
		err         error
		duplicate   bool
		idCollision bool
	}{
		{name: "id collision", err: duplicateOn("_id_"), duplicate: true, idCollision: true},
		{name: "booked night", err: duplicateOn("property_id_1_date_1"), duplicate: true},
		{name: "bulk write", err: bulk, duplicate: true},
		{name: "wrapped", err: errors.Join(errors.New("insert booking"), duplicateOn("_id_")), duplicate: true, idCollision: true},
		{name: "other write error", err: mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 121}}}},
		{name: "nil", err: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.duplicate, IsMongoDuplicateKeyError(tt.err))
			assert.Equal(t, tt.idCollision, IsMongoIDCollision(tt.err))
		})
	}
}

func TestIsMongoWriteConflict(t *testing.T) {
	conflict := mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	assert.True(t, IsMongoWriteConflict(conflict))
	assert.True(t, IsMongoWriteConflict(mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 112}}}))
	assert.False(t, IsMongoWriteConflict(duplicateOn("_id_")))
	assert.False(t, IsMongoWriteConflict(errors.New("write conflict")))
	assert.False(t, IsMongoWriteConflict(nil))
}
