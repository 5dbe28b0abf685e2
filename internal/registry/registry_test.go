package registry

import (
	"testing"
	"time"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	key := Key{ApplicationTag: "tormeta", TorrentID: 1}

	if _, ok := r.Lookup(key); ok {
		t.Fatal("expected no service registered yet")
	}

	if err := r.Register(key, "svc-1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	svc, ok := r.Lookup(key)
	if !ok || svc != "svc-1" {
		t.Fatalf("Lookup = (%v, %v), want (svc-1, true)", svc, ok)
	}
}

func TestRegisterCollision(t *testing.T) {
	r := New()
	key := Key{ApplicationTag: "tormeta", TorrentID: 2}

	if err := r.Register(key, "first"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(key, "second"); err == nil {
		t.Fatal("expected ErrCollision on second registration")
	}
}

func TestAwaitReturnsImmediatelyIfAlreadyRegistered(t *testing.T) {
	r := New()
	key := Key{ApplicationTag: "tormeta", TorrentID: 3}
	r.Register(key, "svc")

	svc, err := r.Await(key, time.Second)
	if err != nil || svc != "svc" {
		t.Fatalf("Await = (%v, %v)", svc, err)
	}
}

func TestAwaitBlocksUntilRegistered(t *testing.T) {
	r := New()
	key := Key{ApplicationTag: "tormeta", TorrentID: 4}

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		r.Register(key, "late")
		close(done)
	}()

	svc, err := r.Await(key, time.Second)
	if err != nil || svc != "late" {
		t.Fatalf("Await = (%v, %v)", svc, err)
	}
	<-done
}

func TestAwaitTimesOut(t *testing.T) {
	r := New()
	key := Key{ApplicationTag: "tormeta", TorrentID: 5}

	_, err := r.Await(key, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected ErrAwaitTimeout")
	}
}

func TestDeregister(t *testing.T) {
	r := New()
	key := Key{ApplicationTag: "tormeta", TorrentID: 6}
	r.Register(key, "svc")
	r.Deregister(key)

	if _, ok := r.Lookup(key); ok {
		t.Fatal("expected service to be removed")
	}
}
