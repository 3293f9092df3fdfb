package state

import (
	"math/big"
	"testing"

	"github.com/monalisastar/elr-protocol-mainnet/storage"
)

type record struct {
	Name   string
	Amount *big.Int
	Flag   bool
}

func TestKVRoundTripAndMissing(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	var out record
	found, err := mgr.KVGet([]byte("missing"), &out)
	if err != nil || found {
		t.Fatalf("expected missing key, found=%v err=%v", found, err)
	}

	in := record{Name: "shop", Amount: big.NewInt(42), Flag: true}
	if err := mgr.KVPut([]byte("rec"), in); err != nil {
		t.Fatalf("put: %v", err)
	}
	found, err = mgr.KVGet([]byte("rec"), &out)
	if err != nil || !found {
		t.Fatalf("expected stored record, found=%v err=%v", found, err)
	}
	if out.Name != "shop" || out.Amount.Cmp(big.NewInt(42)) != 0 || !out.Flag {
		t.Fatalf("unexpected record %+v", out)
	}
	if err := mgr.KVDelete([]byte("rec")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if found, _ := mgr.KVGet([]byte("rec"), &out); found {
		t.Fatalf("expected record removed")
	}
}

func TestBigScalarsDefaultToZero(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	v, err := mgr.BigGet([]byte("pool"))
	if err != nil {
		t.Fatalf("big get: %v", err)
	}
	if v.Sign() != 0 {
		t.Fatalf("expected zero, got %s", v)
	}
	if err := mgr.BigPut([]byte("pool"), big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative scalar rejected")
	}
	if err := mgr.BigPut([]byte("pool"), big.NewInt(900)); err != nil {
		t.Fatalf("big put: %v", err)
	}
	v, _ = mgr.BigGet([]byte("pool"))
	if v.String() != "900" {
		t.Fatalf("expected 900, got %s", v)
	}
}

func TestKVAppendDeduplicates(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	key := Key([]byte("idx"), []byte{0x01})
	for _, v := range [][]byte{{0xaa}, {0xbb}, {0xaa}} {
		if err := mgr.KVAppend(key, v); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	var list [][]byte
	if err := mgr.KVGetList(key, &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 unique entries, got %d", len(list))
	}

	var empty [][]byte
	if err := mgr.KVGetList([]byte("none"), &empty); err != nil {
		t.Fatalf("get empty list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected initialised empty slice")
	}
}

func TestFlags(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	key := []byte("lock")
	if set, _ := mgr.Flag(key); set {
		t.Fatalf("expected unset flag")
	}
	_ = mgr.SetFlag(key, true)
	if set, _ := mgr.Flag(key); !set {
		t.Fatalf("expected flag set")
	}
	_ = mgr.SetFlag(key, false)
	if set, _ := mgr.Flag(key); set {
		t.Fatalf("expected flag cleared")
	}
}
