package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      error
		retryable bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, shared.ErrConcurrentModification, true},
		{"deadlock victim", &pgconn.PgError{Code: "40P01"}, shared.ErrConcurrentModification, true},
		{"unit deadline", fmt.Errorf("list results: %w", context.DeadlineExceeded), shared.ErrTimeout, true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, shared.ErrServiceUnavailable, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, shared.ErrServiceUnavailable, true},
		{"starting up", &pgconn.PgError{Code: "57P03"}, shared.ErrServiceUnavailable, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, nil, false},
		{"domain error", shared.ErrGameNotFound, shared.ErrGameNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			assert.ErrorIs(t, got, tt.err)
			if tt.kind != nil {
				assert.ErrorIs(t, got, tt.kind)
			}
			assert.Equal(t, tt.retryable, shared.IsRetryable(got))
		})
	}

	assert.NoError(t, mapError(nil))
}

func TestNewConnection_InvalidURL(t *testing.T) {
	_, err := NewConnection(context.Background(), DefaultConfig("://not a url"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, shared.IsRetryable(err))
}
