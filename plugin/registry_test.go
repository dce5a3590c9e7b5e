package plugin

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/role"
)

// testPlugin implements Plugin + RoleCreated + AfterAuthorize + DanglingReference.
type testPlugin struct {
	roleCreatedCalled    bool
	afterAuthorizeCalled bool
	danglingKinds        []string
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnRoleCreated(_ context.Context, _ *role.Role) error {
	t.roleCreatedCalled = true
	return nil
}

func (t *testPlugin) OnAfterAuthorize(_ context.Context, _ string, _, _ any) error {
	t.afterAuthorizeCalled = true
	return nil
}

func (t *testPlugin) OnDanglingReference(_ context.Context, _, kind, _ string) error {
	t.danglingKinds = append(t.danglingKinds, kind)
	return nil
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

// failingPlugin returns an error from every hook it implements.
type failingPlugin struct{ calls int }

func (f *failingPlugin) Name() string { return "failing" }

func (f *failingPlugin) OnOverrideUpdated(_ context.Context, _ *override.UserPermission) error {
	f.calls++
	return errors.New("boom")
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	// Should dispatch RoleCreated to testPlugin only.
	reg.EmitRoleCreated(ctx, &role.Role{ID: id.NewRoleID(), Name: "admin"})
	if !tp.roleCreatedCalled {
		t.Fatal("OnRoleCreated was not called")
	}

	reg.EmitAfterAuthorize(ctx, "u1", nil, nil)
	if !tp.afterAuthorizeCalled {
		t.Fatal("OnAfterAuthorize was not called")
	}

	reg.EmitDanglingReference(ctx, "u1", "permission", "perm_x")
	reg.EmitDanglingReference(ctx, "u1", "role", "ghost")
	if len(tp.danglingKinds) != 2 || tp.danglingKinds[1] != "role" {
		t.Fatalf("unexpected dangling dispatch: %v", tp.danglingKinds)
	}

	// Should not panic on hooks with no listeners.
	reg.EmitBeforeAuthorize(ctx, "u1", nil)
	reg.EmitRoleDeleted(ctx, id.NewRoleID())
	reg.EmitOverrideDeleted(ctx, "u1")
	reg.EmitCatalogSeeded(ctx, 3, 1)
	reg.EmitShutdown(ctx)
}

func TestRegistryHookErrorDoesNotStopDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)

	first := &failingPlugin{}
	second := &failingPlugin{}
	reg.Register(first)
	reg.Register(second)

	reg.EmitOverrideUpdated(ctx, &override.UserPermission{UserID: "u1"})
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("expected both plugins notified, got %d and %d", first.calls, second.calls)
	}
}
