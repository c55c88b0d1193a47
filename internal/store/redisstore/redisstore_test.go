package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestConnect_Pings(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Connect(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()
}

func TestConnect_FailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := Connect(context.Background(), addr, "", 0); err == nil {
		t.Fatalf("expected error for closed server")
	}
}
