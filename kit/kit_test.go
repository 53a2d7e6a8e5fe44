package kit

import (
	"context"
	"errors"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}
	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil || resp != "ok" {
		t.Fatalf("got %v, %v", resp, err)
	}
	want := []string{"a_before", "b_before", "endpoint", "b_after", "a_after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestWithRequestIDs(t *testing.T) {
	var seen string
	ep := Chain(WithRequestIDs(func() string { return "req-1" }), WithLogging(nil, "test"))(
		func(ctx context.Context, _ any) (any, error) {
			seen = GetRequestID(ctx)
			return nil, errors.New("fail")
		})
	if _, err := ep(context.Background(), nil); err == nil {
		t.Fatal("error not propagated")
	}
	if seen != "req-1" {
		t.Fatalf("request id = %q", seen)
	}

	ctx := WithRequestID(context.Background(), "given")
	ep = WithRequestIDs(func() string { return "new" })(func(ctx context.Context, _ any) (any, error) {
		return GetRequestID(ctx), nil
	})
	if got, _ := ep(ctx, nil); got != "given" {
		t.Fatalf("existing id overwritten: %v", got)
	}
}

func TestTransportDefault(t *testing.T) {
	if GetTransport(context.Background()) != "http" {
		t.Fatal("default transport")
	}
	if GetTransport(WithTransport(context.Background(), "mcp")) != "mcp" {
		t.Fatal("mcp transport")
	}
}
