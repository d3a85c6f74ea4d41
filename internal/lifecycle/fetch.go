package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/crestmark/dealtrack/internal/debug"
	"github.com/crestmark/dealtrack/internal/types"
)

// outcome is the discriminated result of one isolated read: either a value
// or a blocker describing the failure. Exactly one side is meaningful.
type outcome[T any] struct {
	value   T
	blocker *types.Blocker
}

func (o outcome[T]) failed() bool {
	return o.blocker != nil
}

// schemaSignatures are error-text fragments that indicate a code/schema
// defect rather than absent or unreachable data. Matching is case-sensitive
// on purpose; these are the literal strings the sqlite driver and
// database/sql produce.
var schemaSignatures = []string{
	"no such column",
	"no such table",
	"has no column named",
	"datatype mismatch",
	"ambiguous column name",
	"sql: expected",
	"sql: Scan error",
	"missing destination name",
}

func isSchemaMismatch(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	for _, sig := range schemaSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

// fetchOne executes a single named read with panic recovery, bounded retry,
// and failure classification. It never panics and never returns an error;
// every call path produces an outcome.
//
// Transient errors are retried twice with exponential backoff. Schema
// mismatches are permanent (retrying a missing column is pointless) and are
// logged at error severity since they indicate a defect, not absent data.
// Error text is redacted outside development environments.
func fetchOne[T any](ctx context.Context, dealID, source string, fn func(context.Context) (T, error)) (result outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			debug.Errorf("derive %s: %s read panicked: %v\n", dealID, source, r)
			result = outcome[T]{blocker: fetchFailedBlocker(source)}
		}
	}()

	var value T
	op := func() error {
		v, err := fn(ctx)
		if err != nil {
			if isSchemaMismatch(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		value = v
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		if isSchemaMismatch(err) {
			debug.Errorf("derive %s: %s read schema mismatch: %s\n",
				dealID, source, debug.RedactErr(err))
			return outcome[T]{blocker: &types.Blocker{
				Code:     types.BlockerSchemaMismatch,
				Message:  fmt.Sprintf("Schema mismatch reading %s data.", source),
				Evidence: map[string]interface{}{"source": source},
			}}
		}
		debug.Logf("derive %s: %s read failed: %s\n", dealID, source, debug.RedactErr(err))
		return outcome[T]{blocker: fetchFailedBlocker(source)}
	}
	return outcome[T]{value: value}
}

func fetchFailedBlocker(source string) *types.Blocker {
	return &types.Blocker{
		Code:     types.FetchFailureCode(source),
		Message:  fmt.Sprintf("Could not read %s data; showing a degraded view.", source),
		Evidence: map[string]interface{}{"source": source},
	}
}
