package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithOrgIDAndFromContext(t *testing.T) {
	ctx := WithOrgID(context.Background(), "org-123")

	orgID, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "org-123", orgID)
}

func TestFromContext_Missing(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrOrgIDNotFound)
}

func TestFromContext_Empty(t *testing.T) {
	ctx := WithOrgID(context.Background(), "")
	_, err := FromContext(ctx)
	assert.ErrorIs(t, err, ErrOrgIDNotFound)
}

func TestMustFromContext_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustFromContext(context.Background())
	})
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-9")

	requestID, err := FromRequestIDContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "req-9", requestID)

	_, err = FromRequestIDContext(context.Background())
	assert.ErrorIs(t, err, ErrNoRequestIDInContext)
}

func TestValidateOwnership(t *testing.T) {
	ctx := WithOrgID(context.Background(), "org-a")

	assert.NoError(t, ValidateOwnership(ctx, "org-a"))
	assert.Error(t, ValidateOwnership(ctx, "org-b"))
	assert.Error(t, ValidateOwnership(context.Background(), "org-a"))
}
