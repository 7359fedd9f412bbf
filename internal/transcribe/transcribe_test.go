package transcribe

import (
	"context"
	"fmt"
	"reflect"
	"testing"
)

type fakeBackend struct {
	fail map[string]bool
}

func (f *fakeBackend) Transcribe(ctx context.Context, path string) (string, error) {
	if f.fail[path] {
		return "", fmt.Errorf("boom")
	}
	return "text:" + path, nil
}

func TestTranscribeBatchSubstitutesErrorSentinel(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{fail: map[string]bool{"b.wav": true}}
	got := TranscribeBatch(context.Background(), backend, []string{"a.wav", "b.wav", "c.wav"})
	want := []string{"text:a.wav", TranscriptionError, "text:c.wav"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("TranscribeBatch = %v, want %v", got, want)
	}
}

func TestRegistryDefaultPicksHighestPriority(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	mustRegister(t, r, Info{ServiceID: "a", Priority: 1}, &fakeBackend{})
	mustRegister(t, r, Info{ServiceID: "b", Priority: 5}, &fakeBackend{})
	mustRegister(t, r, Info{ServiceID: "c", Priority: 3}, &fakeBackend{})

	_, info, ok := r.Default()
	if !ok || info.ServiceID != "b" {
		t.Errorf("Default() = %v, ok=%v, want id=b", info, ok)
	}
}

func mustRegister(t *testing.T, r *Registry, info Info, b Backend) {
	t.Helper()
	if err := r.Register(info, b); err != nil {
		t.Fatalf("Register(%v): %v", info, err)
	}
}

func TestRegistryRejectsPriorityCollision(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	mustRegister(t, r, Info{ServiceID: "a", Priority: 1}, &fakeBackend{})
	if err := r.Register(Info{ServiceID: "b", Priority: 1}, &fakeBackend{}); err == nil {
		t.Errorf("Register with colliding priority should fail")
	}
}

func TestRegistryGetMissing(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, _, ok := r.Get("nope")
	if ok {
		t.Errorf("Get(nope) ok = true, want false")
	}
}
