package contextkeys

import "context"

type RequestId struct{}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestId{}).(string)
	return id
}
