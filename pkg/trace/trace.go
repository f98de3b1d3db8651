package trace

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// HeaderName carries the request trace id in and out of the API.
const HeaderName = "X-Trace-ID"

const maxInboundLen = 64

type ctxKey struct{}

// NewID returns a 32 char hex id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns "" when ctx carries no id.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromHeader keeps a client id of at most 64 printable ASCII bytes and
// generates a new one otherwise.
func FromHeader(v string) string {
	if v == "" || len(v) > maxInboundLen {
		return NewID()
	}
	for i := 0; i < len(v); i++ {
		if v[i] < 0x21 || v[i] > 0x7e {
			return NewID()
		}
	}
	return v
}
