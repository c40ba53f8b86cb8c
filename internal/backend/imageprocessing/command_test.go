package imageprocessing

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

// mockCommand is a simple Command implementation for chain tests
type mockCommand struct {
	name        string
	executeFunc func(image.Image) (image.Image, error)
}

func (m *mockCommand) Name() string {
	return m.name
}

func (m *mockCommand) Execute(img image.Image) (image.Image, error) {
	if m.executeFunc != nil {
		return m.executeFunc(img)
	}
	return img, nil
}

func TestCommandRegistry_Register(t *testing.T) {
	registry := NewCommandRegistry()
	factory := func(params map[string]any) (Command, error) {
		return &mockCommand{name: "TestCommand"}, nil
	}

	if err := registry.Register("TestCommand", factory); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := registry.Register("TestCommand", factory); err == nil {
		t.Error("Expected error for duplicate registration")
	}
	if err := registry.Register("", factory); err == nil {
		t.Error("Expected error for empty name")
	}
	if err := registry.Register("NilFactory", nil); err == nil {
		t.Error("Expected error for nil factory")
	}
	if !registry.IsRegistered("TestCommand") {
		t.Error("Expected TestCommand to be registered")
	}
}

func TestCommandRegistry_Create(t *testing.T) {
	registry := NewCommandRegistry()
	err := registry.Register("Failing", func(params map[string]any) (Command, error) {
		return nil, errors.New("bad params")
	})
	if err != nil {
		t.Fatalf("Failed to register command: %v", err)
	}

	if _, err := registry.Create("Unknown", nil); err == nil {
		t.Error("Expected error for unknown command")
	}
	if _, err := registry.Create("Failing", nil); err == nil {
		t.Error("Expected factory error to be returned")
	}
}

func TestDefaultRegistry_BuiltinCommands(t *testing.T) {
	for _, name := range []string{"ScaleCommand", "CropCommand", "OrientationCommand"} {
		if !DefaultRegistry.IsRegistered(name) {
			t.Errorf("Expected %s to be registered in DefaultRegistry", name)
		}
	}
}

func TestCommandInvoker_EmptyCommandList(t *testing.T) {
	img := newSolidImage(4, 4, color.White)
	result, err := NewCommandInvoker(nil).Execute(img)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != image.Image(img) {
		t.Error("Expected input image to be returned unchanged")
	}
}

func TestCommandInvoker_RunsInOrder(t *testing.T) {
	var order []string
	record := func(name string) *mockCommand {
		return &mockCommand{name: name, executeFunc: func(img image.Image) (image.Image, error) {
			order = append(order, name)
			return img, nil
		}}
	}

	invoker := NewCommandInvoker([]Command{record("first"), record("second")})
	if _, err := invoker.Execute(newSolidImage(2, 2, color.Black)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("Unexpected execution order %v", order)
	}
	names := invoker.Names()
	if len(names) != 2 || names[0] != "first" {
		t.Errorf("Unexpected names %v", names)
	}
}

func TestCommandInvoker_StopsOnError(t *testing.T) {
	called := false
	invoker := NewCommandInvoker([]Command{
		&mockCommand{name: "broken", executeFunc: func(image.Image) (image.Image, error) {
			return nil, errors.New("boom")
		}},
		&mockCommand{name: "after", executeFunc: func(img image.Image) (image.Image, error) {
			called = true
			return img, nil
		}},
	})

	if _, err := invoker.Execute(newSolidImage(2, 2, color.Black)); err == nil {
		t.Fatal("Expected error from failing command")
	}
	if called {
		t.Error("Commands after a failure must not run")
	}
}

func TestNewCommandInvokerFromConfigs(t *testing.T) {
	invoker, err := NewCommandInvokerFromConfigs(DefaultRegistry, []CommandConfig{
		{Name: "CropCommand", Params: map[string]any{"aspectRatio": 1.0}},
		{Name: "ScaleCommand", Params: map[string]any{"width": 8, "height": 8}},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	out, err := invoker.Execute(newSolidImage(40, 20, color.White))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if out.Bounds().Dx() != 8 || out.Bounds().Dy() != 8 {
		t.Errorf("Expected 8x8 output, got %v", out.Bounds())
	}
}

func TestNewCommandInvokerFromConfigs_InvalidConfig(t *testing.T) {
	_, err := NewCommandInvokerFromConfigs(DefaultRegistry, []CommandConfig{
		{Name: "ScaleCommand", Params: map[string]any{"width": 8}},
	})
	if err == nil {
		t.Error("Expected error for missing height")
	}

	_, err = NewCommandInvokerFromConfigs(DefaultRegistry, []CommandConfig{{Name: "UnknownCommand"}})
	if err == nil {
		t.Error("Expected error for unknown command")
	}
}
