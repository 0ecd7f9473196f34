package reqctx

import "context"

type ctxKey string

const (
	keyRID     ctxKey = "rid"
	keyOrderID ctxKey = "order_id"
)

// WithRID stores the request correlation id used in settlement logs.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, keyRID, rid)
}

// RID returns correlation id if present.
func RID(ctx context.Context) string {
	v, _ := ctx.Value(keyRID).(string)
	return v
}

func WithOrderID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, keyOrderID, id)
}

// OrderID returns order id if present.
func OrderID(ctx context.Context) uint64 {
	v, _ := ctx.Value(keyOrderID).(uint64)
	return v
}
