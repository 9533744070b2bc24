package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTenantID(ctx, "42")
	ctx = WithOperator(ctx, "desk-3")
	ctx = WithTenantID(ctx, "")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "42", TenantIDFromContext(ctx))
	assert.Equal(t, "desk-3", OperatorFromContext(ctx))
}
