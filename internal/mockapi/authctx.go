package mockapi

import (
	"context"

	"github.com/and161185/bookly/internal/model"
)

type ctxKey string

const userIDKey ctxKey = "mockapi.userID"

// WithUserID stores authenticated user ID in context.
func WithUserID(ctx context.Context, id model.ID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches user ID from context.
func UserIDFromCtx(ctx context.Context) (model.ID, bool) {
	id, ok := ctx.Value(userIDKey).(model.ID)
	return id, ok && id != ""
}
