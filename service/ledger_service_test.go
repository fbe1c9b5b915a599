package service

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/stanbar/stellot-sub000/api/client"
	"github.com/stanbar/stellot-sub000/db"
	"github.com/stanbar/stellot-sub000/ledger"
)

func freePort(c *qt.C) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	c.Assert(err, qt.IsNil)
	port := l.Addr().(*net.TCPAddr).Port
	c.Assert(l.Close(), qt.IsNil)
	return port
}

func TestLedgerServiceLifecycle(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	port := freePort(c)

	ls := NewLedgerService(t.TempDir(), db.TypePebble, "127.0.0.1", port, true)
	c.Assert(ls.Stop(), qt.IsNil)
	c.Assert(ls.Start(ctx), qt.IsNil)
	c.Assert(ls.Start(ctx), qt.ErrorMatches, "service already running")

	cli := client.New(fmt.Sprintf("http://127.0.0.1:%d", port), client.WithRetryBudget(5*time.Second))
	c.Assert(cli.Ping(ctx), qt.IsNil)
	_, err := cli.Election(ctx, 1)
	c.Assert(err, qt.ErrorIs, ledger.ErrElectionNotFound)

	c.Assert(ls.Stop(), qt.IsNil)
	select {
	case <-ls.Done():
	case <-time.After(5 * time.Second):
		c.Fatal("service did not stop")
	}
	host, p := ls.HostPort()
	c.Assert(host, qt.Equals, "127.0.0.1")
	c.Assert(p, qt.Equals, port)
}

func TestLedgerServiceFailsOnBadDatabase(t *testing.T) {
	c := qt.New(t)
	ls := NewLedgerService(t.TempDir(), "bolt", "127.0.0.1", 0, true)
	c.Assert(ls.Start(context.Background()), qt.ErrorMatches, "failed to open ledger database.*")
}
