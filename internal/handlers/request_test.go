package handlers

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestRequestContextFollowsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	require.Equal(t, context.Background(), requestContext(nil))

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	require.Equal(t, context.Background(), requestContext(c))

	req := httptest.NewRequest("POST", "/api/notifications/custom", nil)
	c.Request = req.WithContext(context.WithValue(req.Context(), ctxKey{}, "coach"))
	require.Equal(t, "coach", requestContext(c).Value(ctxKey{}))
}
