package drivers

import (
	"fmt"
	"testing"
)

func TestRegistryResolveCachesInstance(t *testing.T) {
	registry := NewRegistry()

	constructed := 0
	err := registry.Register("counting", func(config map[string]string) (AmphoraDriver, error) {
		constructed++
		return NewNoopDriver(), nil
	})
	if err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}

	first, err := registry.Resolve("counting", nil)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	second, err := registry.Resolve("counting", nil)
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}

	if constructed != 1 {
		t.Errorf("factory invoked %d times, want 1", constructed)
	}
	if first != second {
		t.Error("Resolve() should return the same cached instance")
	}
}

func TestRegistryResolveUnknownDriver(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.Resolve("missing", nil); err == nil {
		t.Error("Resolve() of an unregistered driver should fail")
	}
}

func TestRegistryRegisterValidation(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register("", func(map[string]string) (AmphoraDriver, error) {
		return NewNoopDriver(), nil
	}); err == nil {
		t.Error("Register() with empty name should fail")
	}
	if err := registry.Register("nil-factory", nil); err == nil {
		t.Error("Register() with nil factory should fail")
	}

	factory := func(map[string]string) (AmphoraDriver, error) { return NewNoopDriver(), nil }
	if err := registry.Register("dup", factory); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}
	if err := registry.Register("dup", factory); err == nil {
		t.Error("Register() of a duplicate name should fail")
	}
}

func TestRegistryResolveFactoryFailure(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("broken", func(map[string]string) (AmphoraDriver, error) {
		return nil, fmt.Errorf("bad driver options")
	}); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}

	if _, err := registry.Resolve("broken", nil); err == nil {
		t.Error("Resolve() should surface factory failure")
	}
}

func TestDefaultRegistryHasNoop(t *testing.T) {
	driver, err := Default().Resolve("noop", nil)
	if err != nil {
		t.Fatalf("Resolve(noop) returned error: %v", err)
	}
	if driver == nil {
		t.Fatal("Expected non-nil noop driver")
	}
}
