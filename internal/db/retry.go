package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"reluxrent/api/internal/utils"
)

// Operation is one insert attempt. It must generate a fresh ID on every call after the first.
type Operation func() error

// RetryPredicate decides whether a failed attempt may be repeated.
type RetryPredicate func(err error) bool

const (
	DefaultMaxRetries = 3
	retryBackoffStep  = 50 * time.Millisecond
)

// Try runs op, retrying generated-ID collisions with the default settings.
func Try(ctx context.Context, op Operation) error {
	return WithRetries(ctx, op, DefaultMaxRetries, IsMongoIDCollision)
}

// WithRetries runs op once plus up to maxRetries times while shouldRetry accepts the error.
// Backoff grows linearly and stops early when ctx is done.
func WithRetries(ctx context.Context, op Operation, maxRetries int, shouldRetry RetryPredicate) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt >= maxRetries || !shouldRetry(err) {
			return err
		}
		utils.GetLogger().Debug("Generated ID collided, retrying insert", zap.Int("attempt", attempt+1), zap.Error(err))

		timer := time.NewTimer(retryBackoffStep * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

// duplicateKeyErrors collects code 11000 write errors from single and bulk writes.
func duplicateKeyErrors(err error) []mongo.WriteError {
	var out []mongo.WriteError
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				out = append(out, e)
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				out = append(out, e.WriteError)
			}
		}
	}
	return out
}

// IsMongoDuplicateKeyError reports any unique index violation.
func IsMongoDuplicateKeyError(err error) bool {
	return len(duplicateKeyErrors(err)) > 0
}

// IsMongoIDCollision reports a violation of the _id index only.
// Duplicates on other unique indexes, such as a booked night, are conflicts and are never retried.
func IsMongoIDCollision(err error) bool {
	for _, e := range duplicateKeyErrors(err) {
		if strings.Contains(e.Message, "index: _id_") {
			return true
		}
	}
	return false
}

// IsMongoWriteConflict reports a transaction write conflict (code 112): another open
// transaction touched the same document first.
func IsMongoWriteConflict(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(112)
}
