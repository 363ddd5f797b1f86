package ctxutil

import (
	"context"
	"strings"
)

type ctxKey string

const requestDataKey ctxKey = "mindfold_request_data"

// RequestData carries the authenticated identity for the current request.
// Every graph read and write is scoped by it.
type RequestData struct {
	TenantID string
	UserID   string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	rd, _ := ctx.Value(requestDataKey).(*RequestData)
	return rd
}

// HasTenant reports whether a non-empty tenant is attached to the context.
func HasTenant(ctx context.Context) bool {
	rd := GetRequestData(ctx)
	return rd != nil && strings.TrimSpace(rd.TenantID) != ""
}
