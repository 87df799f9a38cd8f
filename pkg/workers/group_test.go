package workers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeWorker struct {
	name string
	err  error
}

func (f *fakeWorker) Name() string { return f.name }

func (f *fakeWorker) Start(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return nil
}

func TestGroupStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := Group{&fakeWorker{name: "a"}, &fakeWorker{name: "b"}}

	done := make(chan error, 1)
	go func() { done <- g.Start(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("group did not stop")
	}
}

func TestGroupStopsOnFailure(t *testing.T) {
	cause := errors.New("port in use")
	g := Group{&fakeWorker{name: "listener"}, &fakeWorker{name: "http", err: cause}}

	err := g.Start(context.Background())

	if !errors.Is(err, cause) {
		t.Fatalf("expected the worker error, got %v", err)
	}
	if !strings.Contains(err.Error(), "http: port in use") {
		t.Errorf("expected the worker name in the error, got %q", err)
	}
}
