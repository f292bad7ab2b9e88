package txnfsm_test

import (
	"testing"

	"github.com/shardkit/proxy/pkg/txnfsm"
)

func TestTriggerQueryFromDummyStaysDummyAndSignalsFresh(t *testing.T) {
	f := txnfsm.New(nil)
	fresh := f.Trigger(txnfsm.EventQuery)
	if !fresh {
		t.Error("expected true (fresh) triggering QUERY from Dummy")
	}
	if f.State() != txnfsm.Dummy {
		t.Errorf("state = %v, want Dummy", f.State())
	}
}

func TestTriggerWalksStartPrepareSendLongDataCommitRollback(t *testing.T) {
	f := txnfsm.New(nil)

	if fresh := f.Trigger(txnfsm.EventStart); !fresh || f.State() != txnfsm.Start {
		t.Fatalf("START from Dummy: fresh=%v state=%v, want true/Start", fresh, f.State())
	}
	if fresh := f.Trigger(txnfsm.EventPrepare); fresh || f.State() != txnfsm.Prepare {
		t.Fatalf("PREPARE from Start: fresh=%v state=%v, want false/Prepare", fresh, f.State())
	}
	if fresh := f.Trigger(txnfsm.EventSendLongData); fresh || f.State() != txnfsm.Prepare {
		t.Fatalf("SEND_LONG_DATA from Prepare: fresh=%v state=%v, want false/Prepare", fresh, f.State())
	}
	if fresh := f.Trigger(txnfsm.EventCommitRollback); fresh || f.State() != txnfsm.Dummy {
		t.Fatalf("COMMIT_ROLLBACK from Prepare: fresh=%v state=%v, want false/Dummy", fresh, f.State())
	}
}

func TestTriggerUnmatchedPairIsNoOp(t *testing.T) {
	f := txnfsm.New(nil)
	f.Trigger(txnfsm.EventUse) // Dummy -> Use
	fresh := f.Trigger(txnfsm.EventStart)
	if fresh {
		t.Error("expected false: Use is not Dummy")
	}
	if f.State() != txnfsm.Start {
		t.Errorf("state = %v, want Start", f.State())
	}

	before := f.State()
	fresh = f.Trigger(txnfsm.EventUse) // no row for (USE, Start)
	if fresh {
		t.Error("unmatched pair must return false")
	}
	if f.State() != before {
		t.Errorf("unmatched pair must not change state: got %v, want %v", f.State(), before)
	}
}

func TestQueryFromSetSessionStaysInSetSession(t *testing.T) {
	f := txnfsm.New(nil)
	f.Trigger(txnfsm.EventSetSession)
	if f.State() != txnfsm.SetSession {
		t.Fatalf("state = %v, want SetSession", f.State())
	}
	f.Trigger(txnfsm.EventQuery)
	if f.State() != txnfsm.SetSession {
		t.Errorf("state = %v, want SetSession", f.State())
	}
}

func TestResetStateReturnsToDummy(t *testing.T) {
	f := txnfsm.New(nil)
	f.Trigger(txnfsm.EventStart)
	f.SetAttrs(txnfsm.SessionAttrs{Database: "db", Autocommit: false})
	f.ResetState()
	if f.State() != txnfsm.Dummy {
		t.Errorf("state = %v, want Dummy", f.State())
	}
}

func TestConnTakePut(t *testing.T) {
	f := txnfsm.New(nil)
	if _, ok := f.TakeConn(); ok {
		t.Fatal("expected no cached connection initially")
	}
	f.PutConn(&txnfsm.Conn{Endpoint: "ds0"})
	c, ok := f.TakeConn()
	if !ok || c.Endpoint != "ds0" {
		t.Fatalf("TakeConn = %+v, %v, want ds0/true", c, ok)
	}
	if _, ok := f.TakeConn(); ok {
		t.Fatal("connection should be gone after TakeConn")
	}
}

func TestShardConnTakePutLeavesOtherSlotsIntact(t *testing.T) {
	f := txnfsm.New(nil)
	f.PutShardConn(0, &txnfsm.Conn{Endpoint: "ds0"})
	f.PutShardConn(2, &txnfsm.Conn{Endpoint: "ds2"})

	c, ok := f.GetShardConn(0)
	if !ok || c.Endpoint != "ds0" {
		t.Fatalf("GetShardConn(0) = %+v, %v", c, ok)
	}
	if _, ok := f.GetShardConn(0); ok {
		t.Fatal("slot 0 should be vacant after take")
	}
	c, ok = f.GetShardConn(2)
	if !ok || c.Endpoint != "ds2" {
		t.Fatalf("GetShardConn(2) = %+v, %v, want ds2/true unaffected by slot 0", c, ok)
	}
}
