package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chazu/to2/compiler"
)

func TestWorkerSerializesAccess(t *testing.T) {
	w := NewWorker(NewWorkspace(nil))
	defer w.Stop()

	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Do(context.Background(), func(*Workspace) (any, error) {
				counter++
				return nil, nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	w := NewWorker(NewWorkspace(nil))
	defer w.Stop()

	_, err := w.Do(context.Background(), func(*Workspace) (any, error) {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected an error from a panicking job")
	}

	// The worker keeps serving after a panic.
	v, err := w.Do(context.Background(), func(*Workspace) (any, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("Do = %v, %v", v, err)
	}
}

func TestWorkerStop(t *testing.T) {
	w := NewWorker(NewWorkspace(nil))
	w.Stop()
	w.Stop()

	_, err := w.Do(context.Background(), func(*Workspace) (any, error) { return nil, nil })
	if !errors.Is(err, ErrStopped) {
		t.Errorf("Do after Stop = %v, want ErrStopped", err)
	}
}

func TestWorkspaceUpdate(t *testing.T) {
	ws := NewWorkspace([]compiler.Source{
		{Module: "lib", Content: "pub sync fn one() -> int = 1\n"},
		{Module: "app", Content: "use lib\npub sync fn two() -> int = lib::one() + 1\n"},
	})
	if err := ws.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	good := ws.Registry()
	if good == nil || len(ws.Errors()) != 0 {
		t.Fatalf("workspace does not compile: %v", ws.Errors())
	}

	errs, err := ws.Update(compiler.Source{Module: "app", Content: "pub sync fn two() -> int = \"x\"\n"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(errs) != 1 || errs[0].Kind != compiler.IncompatibleTypes {
		t.Errorf("errors = %v", errs)
	}
	if ws.Registry() != good {
		t.Error("a failed rebuild replaced the registry")
	}

	errs, err = ws.Update(compiler.Source{Module: "app", Content: "pub sync fn two() -> int = 2\n"})
	if err != nil || len(errs) != 0 {
		t.Fatalf("Update = %v, %v", errs, err)
	}
	if ws.Registry() == good {
		t.Error("a successful rebuild kept the old registry")
	}
}

func TestWorkspaceSourcesAreSorted(t *testing.T) {
	ws := NewWorkspace([]compiler.Source{{Module: "b"}, {Module: "a"}, {Module: "c"}})
	var names []string
	for _, s := range ws.Sources() {
		names = append(names, s.Module)
	}
	if len(names) != 3 || names[0] != "a" || names[2] != "c" {
		t.Errorf("sources = %v", names)
	}
}
