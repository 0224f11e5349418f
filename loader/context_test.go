package loader

import (
	"errors"
	"sync"
	"testing"
)

func TestManagerCreateLoad(t *testing.T) {
	m := NewManager()
	id := m.Create("greeter")

	payload := EncodePayload("Greeter.Functions", []string{"Handler"}, []byte("code"))
	res, err := m.Load(id, payload)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !res.Success || res.AssemblyName != "Greeter.Functions" {
		t.Errorf("LoadResult = %+v", res)
	}

	ctx, err := m.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ctx.Collectible {
		t.Error("Context not collectible")
	}
	if len(ctx.LoadedModules) != 1 || ctx.LoadedModules[0] != "Greeter.Functions" {
		t.Errorf("LoadedModules = %v", ctx.LoadedModules)
	}
	if ctx.MemoryUsage != uint64(len(payload)) {
		t.Errorf("MemoryUsage = %d, want %d", ctx.MemoryUsage, len(payload))
	}
}

func TestManagerLoadInvalidPayload(t *testing.T) {
	m := NewManager()
	id := m.Create("greeter")

	_, err := m.Load(id, []byte("not a module"))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("Load = %v, want ErrInvalidPayload", err)
	}

	// Rejection leaves the context untouched.
	ctx, _ := m.Get(id)
	if ctx.MemoryUsage != 0 || len(ctx.LoadedModules) != 0 {
		t.Errorf("Context mutated by rejected load: %+v", ctx)
	}
}

func TestManagerLoadUnknownContext(t *testing.T) {
	m := NewManager()
	payload := EncodePayload("A", nil, nil)

	_, err := m.Load("stale-id", payload)
	if !errors.Is(err, ErrContextNotFound) {
		t.Errorf("Load = %v, want ErrContextNotFound", err)
	}
}

func TestManagerUnloadIdempotent(t *testing.T) {
	m := NewManager()
	id := m.Create("greeter")
	payload := EncodePayload("A", nil, []byte("xxxx"))
	if _, err := m.Load(id, payload); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.MemoryUsage() == 0 {
		t.Fatal("No memory attributed before unload")
	}
	if !m.Unload(id) {
		t.Error("First Unload returned false")
	}
	if m.Unload(id) {
		t.Error("Second Unload returned true")
	}
	if m.MemoryUsage() != 0 {
		t.Error("Memory not reclaimed by unload")
	}
	if _, err := m.Get(id); !errors.Is(err, ErrContextNotFound) {
		t.Errorf("Get after unload = %v, want ErrContextNotFound", err)
	}
}

func TestManagerRetire(t *testing.T) {
	m := NewManager()
	id := m.Create("greeter")

	m.Retire(id)
	retired := m.Retired()
	if len(retired) != 1 || retired[0] != id {
		t.Errorf("Retired = %v", retired)
	}
	// Retired contexts stay loaded until explicitly unloaded.
	if _, err := m.Get(id); err != nil {
		t.Errorf("Retired context gone before unload: %v", err)
	}

	m.Unload(id)
	if len(m.Retired()) != 0 {
		t.Error("Unload left context in retired set")
	}

	m.Retire("never-existed") // no-op
	if len(m.Retired()) != 0 {
		t.Error("Retire of unknown id recorded")
	}
}

func TestManagerConcurrentLoadUnload(t *testing.T) {
	m := NewManager()
	payload := EncodePayload("A", nil, []byte("body"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := m.Create("mod")
				_, _ = m.Load(id, payload)
				m.Unload(id)
				m.Unload(id) // double unload must be safe
			}
		}()
	}
	wg.Wait()

	if m.MemoryUsage() != 0 {
		t.Errorf("Leaked memory attribution: %d", m.MemoryUsage())
	}
}
