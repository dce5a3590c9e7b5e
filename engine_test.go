package portcullis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/actor"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/plugin"
	"github.com/xraph/portcullis/role"
	"github.com/xraph/portcullis/store"
	"github.com/xraph/portcullis/store/memory"
)

// ──────────────────────────────────────────────────
// Fixture
// ──────────────────────────────────────────────────

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	eng   *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s := memory.New()
	eng, err := NewEngine(append([]Option{WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{t: t, ctx: context.Background(), store: s, eng: eng}
}

func (f *fixture) permission(name string, module access.Module, q *access.Qualifier, actions ...access.Action) *permission.Permission {
	f.t.Helper()
	p := &permission.Permission{
		ID:       id.NewPermissionID(),
		Name:     name,
		Module:   module,
		Actions:  actions,
		Resource: q,
	}
	if err := f.store.CreatePermission(f.ctx, p); err != nil {
		f.t.Fatal(err)
	}
	return p
}

func (f *fixture) role(name string, perms ...*permission.Permission) *role.Role {
	f.t.Helper()
	r := &role.Role{ID: id.NewRoleID(), Name: name}
	for _, p := range perms {
		r.Permissions = append(r.Permissions, p.ID)
	}
	if err := f.store.CreateRole(f.ctx, r); err != nil {
		f.t.Fatal(err)
	}
	return r
}

func (f *fixture) actor(actorID, roleName string) {
	f.t.Helper()
	if err := f.store.CreateActor(f.ctx, &actor.Actor{ID: actorID, RoleName: roleName}); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fixture) override(u *override.UserPermission) {
	f.t.Helper()
	if err := f.store.SaveUserPermission(f.ctx, u); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fixture) authorize(actorID string, req *Request) *Result {
	f.t.Helper()
	res, err := f.eng.Authorize(f.ctx, actorID, req)
	if err != nil {
		f.t.Fatalf("authorize %s: %v", req, err)
	}
	return res
}

func expect(t *testing.T, res *Result, granted bool, reason Reason) {
	t.Helper()
	if res.Granted != granted || res.Reason != reason {
		t.Fatalf("expected granted=%v reason=%s, got granted=%v reason=%s (%s)",
			granted, reason, res.Granted, res.Reason, res.Detail)
	}
}

func hrRead() *Request { return &Request{Module: access.ModuleHR, Action: access.ActionRead} }

// ──────────────────────────────────────────────────
// Construction
// ──────────────────────────────────────────────────

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine()
	if err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	f := newFixture(t)
	if f.eng.Config().SuperuserRole != DefaultSuperuserRole {
		t.Fatalf("expected default superuser role, got %q", f.eng.Config().SuperuserRole)
	}
	if f.eng.Logger() == nil {
		t.Fatal("expected default logger")
	}
}

// ──────────────────────────────────────────────────
// Precedence scenarios
// ──────────────────────────────────────────────────

func TestRoleGrantAndDenied(t *testing.T) {
	f := newFixture(t)
	p := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	f.role("employee", p)
	f.actor("u1", "employee")

	res := f.authorize("u1", hrRead())
	expect(t, res, true, ReasonRoleGrant)
	if res.PermissionID != p.ID {
		t.Fatalf("expected matched permission %s, got %s", p.ID, res.PermissionID)
	}

	res = f.authorize("u1", &Request{Module: access.ModuleHR, Action: access.ActionDelete})
	expect(t, res, false, ReasonRoleDenied)
}

func TestExplicitRestrictionBeatsRole(t *testing.T) {
	f := newFixture(t)
	p := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	f.role("employee", p)
	f.actor("u1", "employee")
	f.override(&override.UserPermission{UserID: "u1", RestrictedPermissions: []id.PermissionID{p.ID}})

	expect(t, f.authorize("u1", hrRead()), false, ReasonExplicitRestriction)
}

func TestExplicitRestrictionBeatsCustomAndResourceGrants(t *testing.T) {
	f := newFixture(t)
	restricted := f.permission("hr.approve", access.ModuleHR, nil, access.ActionApprove)
	custom := f.permission("hr.approve.extra", access.ModuleHR, nil, access.ActionApprove)
	scoped := f.permission("hr.approve.goal", access.ModuleHR, &access.Qualifier{Type: "goal"}, access.ActionApprove)
	f.role("employee")
	f.actor("u1", "employee")
	f.override(&override.UserPermission{
		UserID:                "u1",
		CustomPermissions:     []id.PermissionID{custom.ID},
		RestrictedPermissions: []id.PermissionID{restricted.ID},
		ResourcePermissions: []override.ResourcePermission{
			{ResourceType: "goal", ResourceID: "g1", PermissionID: scoped.ID, Actions: []access.Action{access.ActionApprove}},
		},
	})

	req := &Request{Module: access.ModuleHR, Action: access.ActionApprove, Resource: &access.Qualifier{Type: "goal", ID: "g1"}}
	expect(t, f.authorize("u1", req), false, ReasonExplicitRestriction)

	// Without a resource the restriction still wins over the custom grant.
	expect(t, f.authorize("u1", &Request{Module: access.ModuleHR, Action: access.ActionApprove}), false, ReasonExplicitRestriction)
}

func TestIDBothGrantedAndRestrictedIsRestricted(t *testing.T) {
	f := newFixture(t)
	p := f.permission("docs.export", access.ModuleDocuments, nil, access.ActionExport)
	f.actor("u1", "employee")
	f.override(&override.UserPermission{
		UserID:                "u1",
		CustomPermissions:     []id.PermissionID{p.ID},
		RestrictedPermissions: []id.PermissionID{p.ID},
	})

	expect(t, f.authorize("u1", &Request{Module: access.ModuleDocuments, Action: access.ActionExport}), false, ReasonExplicitRestriction)
}

func TestRestrictedIDNeverGrantsThroughResourceEntry(t *testing.T) {
	f := newFixture(t)
	p := f.permission("hr.approve.goal", access.ModuleHR, &access.Qualifier{Type: "goal", ID: "g1"}, access.ActionApprove)
	f.actor("u1", "employee")
	f.override(&override.UserPermission{
		UserID:                "u1",
		RestrictedPermissions: []id.PermissionID{p.ID},
		ResourcePermissions: []override.ResourcePermission{
			{ResourceType: "goal", ResourceID: "g2", PermissionID: p.ID},
		},
	})

	// The restriction itself only covers g1, but its id must not grant g2.
	req := &Request{Module: access.ModuleHR, Action: access.ActionApprove, Resource: &access.Qualifier{Type: "goal", ID: "g2"}}
	expect(t, f.authorize("u1", req), false, ReasonRoleDenied)
}

func TestCustomGrant(t *testing.T) {
	f := newFixture(t)
	p := f.permission("assets.assign", access.ModuleAssets, nil, access.ActionAssign)
	f.role("employee")
	f.actor("u1", "employee")
	f.override(&override.UserPermission{UserID: "u1", CustomPermissions: []id.PermissionID{p.ID}})

	res := f.authorize("u1", &Request{Module: access.ModuleAssets, Action: access.ActionAssign})
	expect(t, res, true, ReasonCustomGrant)
	if res.PermissionID != p.ID {
		t.Fatalf("expected matched permission %s, got %s", p.ID, res.PermissionID)
	}
}

func TestCustomGrantCheckedBeforeResourceGrant(t *testing.T) {
	f := newFixture(t)
	p := f.permission("docs.read", access.ModuleDocuments, nil, access.ActionRead)
	f.actor("u1", "employee")
	f.override(&override.UserPermission{
		UserID:              "u1",
		CustomPermissions:   []id.PermissionID{p.ID},
		ResourcePermissions: []override.ResourcePermission{{ResourceType: "document", ResourceID: "42", PermissionID: p.ID}},
	})

	req := &Request{Module: access.ModuleDocuments, Action: access.ActionRead, Resource: &access.Qualifier{Type: "document", ID: "42"}}
	expect(t, f.authorize("u1", req), true, ReasonCustomGrant)
}

func TestResourceGrantScopedToInstance(t *testing.T) {
	f := newFixture(t)
	approve := f.permission("hr.approve", access.ModuleHR, nil, access.ActionApprove)
	f.role("employee")
	f.actor("u1", "employee")
	f.override(&override.UserPermission{
		UserID: "u1",
		ResourcePermissions: []override.ResourcePermission{
			{ResourceType: "goal", ResourceID: "g1", PermissionID: approve.ID, Actions: []access.Action{access.ActionApprove}},
		},
	})

	g1 := &Request{Module: access.ModuleHR, Action: access.ActionApprove, Resource: &access.Qualifier{Type: "goal", ID: "g1"}}
	expect(t, f.authorize("u1", g1), true, ReasonResourceGrant)

	// g2 falls through to the role, which grants nothing.
	g2 := &Request{Module: access.ModuleHR, Action: access.ActionApprove, Resource: &access.Qualifier{Type: "goal", ID: "g2"}}
	expect(t, f.authorize("u1", g2), false, ReasonRoleDenied)
}

func TestResourceGrantDocumentInstance(t *testing.T) {
	f := newFixture(t)
	read := f.permission("docs.read", access.ModuleDocuments, nil, access.ActionRead)
	f.actor("u1", "employee")
	f.override(&override.UserPermission{
		UserID:              "u1",
		ResourcePermissions: []override.ResourcePermission{{ResourceType: "document", ResourceID: "42", PermissionID: read.ID}},
	})

	doc := func(rid string) *Request {
		return &Request{Module: access.ModuleDocuments, Action: access.ActionRead, Resource: &access.Qualifier{Type: "document", ID: rid}}
	}
	expect(t, f.authorize("u1", doc("42")), true, ReasonResourceGrant)
	expect(t, f.authorize("u1", doc("7")), false, ReasonRoleDenied)

	// A separate wildcard entry covers every document.
	u, err := f.store.GetUserPermission(f.ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	u.ResourcePermissions = append(u.ResourcePermissions, override.ResourcePermission{ResourceType: "document", ResourceID: access.Wildcard, PermissionID: read.ID})
	f.override(u)
	expect(t, f.authorize("u1", doc("7")), true, ReasonResourceGrant)
}

func TestResourceGrantActionNarrowing(t *testing.T) {
	f := newFixture(t)
	p := f.permission("projects.rw", access.ModuleProjects, nil, access.ActionRead, access.ActionUpdate)
	f.actor("u1", "employee")
	f.override(&override.UserPermission{
		UserID: "u1",
		ResourcePermissions: []override.ResourcePermission{
			{ResourceType: "project", PermissionID: p.ID, Actions: []access.Action{access.ActionRead}},
		},
	})

	read := &Request{Module: access.ModuleProjects, Action: access.ActionRead, Resource: &access.Qualifier{Type: "project", ID: "p1"}}
	expect(t, f.authorize("u1", read), true, ReasonResourceGrant)

	update := &Request{Module: access.ModuleProjects, Action: access.ActionUpdate, Resource: &access.Qualifier{Type: "project", ID: "p1"}}
	expect(t, f.authorize("u1", update), false, ReasonRoleDenied)
}

func TestResourceGrantIgnoredWithoutRequestResource(t *testing.T) {
	f := newFixture(t)
	p := f.permission("hr.approve", access.ModuleHR, nil, access.ActionApprove)
	f.actor("u1", "employee")
	f.override(&override.UserPermission{
		UserID:              "u1",
		ResourcePermissions: []override.ResourcePermission{{ResourceType: "goal", PermissionID: p.ID}},
	})

	expect(t, f.authorize("u1", &Request{Module: access.ModuleHR, Action: access.ActionApprove}), false, ReasonRoleDenied)
}

func TestSuperuserBypass(t *testing.T) {
	f := newFixture(t)
	f.actor("root", "super_admin")
	p := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	f.override(&override.UserPermission{UserID: "root", RestrictedPermissions: []id.PermissionID{p.ID}})

	// Even an unknown module and a restricted permission are granted.
	expect(t, f.authorize("root", &Request{Module: "no-such-module", Action: "fly"}), true, ReasonSuperuserBypass)
	expect(t, f.authorize("root", hrRead()), true, ReasonSuperuserBypass)
}

func TestSuperuserRoleConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SuperuserRole = "owner"
	f := newFixture(t, WithConfig(cfg))
	f.actor("a", "owner")
	f.actor("b", "super_admin")

	expect(t, f.authorize("a", hrRead()), true, ReasonSuperuserBypass)
	expect(t, f.authorize("b", hrRead()), false, ReasonRoleDenied)
}

func TestNoOverrideEqualsRoleEvaluation(t *testing.T) {
	f := newFixture(t)
	read := f.permission("leave.read", access.ModuleLeave, nil, access.ActionRead)
	approve := f.permission("leave.approve", access.ModuleLeave, nil, access.ActionApprove)
	f.role("manager", read, approve)
	f.role("employee", read)
	f.actor("m", "manager")
	f.actor("e", "employee")

	for _, act := range access.Actions() {
		req := &Request{Module: access.ModuleLeave, Action: act}
		m := f.authorize("m", req)
		e := f.authorize("e", req)
		wantM := act == access.ActionRead || act == access.ActionApprove
		wantE := act == access.ActionRead
		if m.Granted != wantM || e.Granted != wantE {
			t.Fatalf("%s: manager=%v employee=%v", act, m.Granted, e.Granted)
		}
	}
}

func TestOverrideRoleIDTakesPrecedenceOverProfileName(t *testing.T) {
	f := newFixture(t)
	read := f.permission("reports.read", access.ModuleReports, nil, access.ActionRead)
	f.role("employee")
	analyst := f.role("analyst", read)
	f.actor("u1", "employee")
	f.override(&override.UserPermission{UserID: "u1", RoleID: analyst.ID})

	expect(t, f.authorize("u1", &Request{Module: access.ModuleReports, Action: access.ActionRead}), true, ReasonRoleGrant)
}

func TestOverrideWithoutRoleIDFallsBackToName(t *testing.T) {
	f := newFixture(t)
	read := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	f.role("employee", read)
	f.actor("u1", "employee")
	f.override(&override.UserPermission{UserID: "u1"})

	expect(t, f.authorize("u1", hrRead()), true, ReasonRoleGrant)
}

func TestManageDoesNotImplyOtherActions(t *testing.T) {
	f := newFixture(t)
	p := f.permission("admin.manage", access.ModuleAdmin, nil, access.ActionManage)
	f.role("admin", p)
	f.actor("u1", "admin")

	expect(t, f.authorize("u1", &Request{Module: access.ModuleAdmin, Action: access.ActionManage}), true, ReasonRoleGrant)
	expect(t, f.authorize("u1", &Request{Module: access.ModuleAdmin, Action: access.ActionDelete}), false, ReasonRoleDenied)
}

func TestModuleWidePermissionCoversResourceRequests(t *testing.T) {
	f := newFixture(t)
	p := f.permission("docs.read", access.ModuleDocuments, nil, access.ActionRead)
	scoped := f.permission("docs.update.contract", access.ModuleDocuments, &access.Qualifier{Type: "contract"}, access.ActionUpdate)
	f.role("employee", p, scoped)
	f.actor("u1", "employee")

	req := &Request{Module: access.ModuleDocuments, Action: access.ActionRead, Resource: &access.Qualifier{Type: "document", ID: "42"}}
	expect(t, f.authorize("u1", req), true, ReasonRoleGrant)

	// A resource-scoped permission never covers a module-wide request.
	expect(t, f.authorize("u1", &Request{Module: access.ModuleDocuments, Action: access.ActionUpdate}), false, ReasonRoleDenied)

	contract := &Request{Module: access.ModuleDocuments, Action: access.ActionUpdate, Resource: &access.Qualifier{Type: "contract", ID: "c9"}}
	expect(t, f.authorize("u1", contract), true, ReasonRoleGrant)
}

func TestRoundTripRolePermissions(t *testing.T) {
	f := newFixture(t)
	perms := []*permission.Permission{
		f.permission("users.create", access.ModuleUsers, nil, access.ActionCreate, access.ActionUpdate),
		f.permission("projects.export", access.ModuleProjects, nil, access.ActionExport),
		f.permission("notifications.read", access.ModuleNotifications, nil, access.ActionRead),
	}
	f.role("coordinator", perms...)
	f.actor("u1", "coordinator")

	for _, p := range perms {
		for _, act := range p.Actions {
			expect(t, f.authorize("u1", &Request{Module: p.Module, Action: act}), true, ReasonRoleGrant)
		}
	}
}

func TestIdempotentDecisions(t *testing.T) {
	f := newFixture(t)
	p := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	f.role("employee", p)
	f.actor("u1", "employee")

	first := f.authorize("u1", hrRead())
	second := f.authorize("u1", hrRead())
	if first.Granted != second.Granted || first.Reason != second.Reason || first.PermissionID != second.PermissionID {
		t.Fatalf("decisions differ: %+v vs %+v", first, second)
	}
}

// ──────────────────────────────────────────────────
// Failure modes
// ──────────────────────────────────────────────────

func TestActorNotFound(t *testing.T) {
	f := newFixture(t)
	expect(t, f.authorize("ghost", hrRead()), false, ReasonActorNotFound)
}

func TestUnknownRoleNameIsDenied(t *testing.T) {
	f := newFixture(t)
	f.actor("u1", "vanished")
	expect(t, f.authorize("u1", hrRead()), false, ReasonRoleDenied)
}

func TestDanglingPermissionIsSkipped(t *testing.T) {
	rec := &recordingPlugin{}
	f := newFixture(t, WithPlugin(rec))
	gone := f.permission("hr.read.old", access.ModuleHR, nil, access.ActionRead)
	kept := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	f.role("employee", gone, kept)
	f.actor("u1", "employee")
	if err := f.store.DeletePermission(f.ctx, gone.ID); err != nil {
		t.Fatal(err)
	}

	res := f.authorize("u1", hrRead())
	expect(t, res, true, ReasonRoleGrant)
	if res.PermissionID != kept.ID {
		t.Fatalf("expected surviving permission to match, got %s", res.PermissionID)
	}
	if len(rec.dangling) != 1 || rec.dangling[0] != gone.ID.String() {
		t.Fatalf("expected dangling %s reported, got %v", gone.ID, rec.dangling)
	}
}

func TestDanglingRestrictionDoesNotDeny(t *testing.T) {
	f := newFixture(t)
	gone := f.permission("hr.read.old", access.ModuleHR, nil, access.ActionRead)
	kept := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	f.role("employee", kept)
	f.actor("u1", "employee")
	f.override(&override.UserPermission{UserID: "u1", RestrictedPermissions: []id.PermissionID{gone.ID}})
	if err := f.store.DeletePermission(f.ctx, gone.ID); err != nil {
		t.Fatal(err)
	}

	expect(t, f.authorize("u1", hrRead()), true, ReasonRoleGrant)
}

func TestDanglingOverrideRole(t *testing.T) {
	rec := &recordingPlugin{}
	f := newFixture(t, WithPlugin(rec))
	f.actor("u1", "employee")
	f.override(&override.UserPermission{UserID: "u1", RoleID: id.NewRoleID()})

	expect(t, f.authorize("u1", hrRead()), false, ReasonRoleDenied)
	if len(rec.kinds) != 1 || rec.kinds[0] != "role" {
		t.Fatalf("expected one dangling role, got %v", rec.kinds)
	}
}

var errStoreDown = errors.New("store down")

// faultyStore fails the named read inside the snapshot.
type faultyStore struct {
	*memory.Store
	failOn string
}

func (s *faultyStore) ReadSnapshot(ctx context.Context, fn func(store.Reader) error) error {
	return s.Store.ReadSnapshot(ctx, func(r store.Reader) error {
		return fn(&faultyReader{Reader: r, failOn: s.failOn})
	})
}

type faultyReader struct {
	store.Reader
	failOn string
}

func (r *faultyReader) GetActorRoleName(ctx context.Context, actorID string) (string, error) {
	if r.failOn == "actor" {
		return "", errStoreDown
	}
	return r.Reader.GetActorRoleName(ctx, actorID)
}

func (r *faultyReader) GetUserPermission(ctx context.Context, userID string) (*override.UserPermission, error) {
	if r.failOn == "override" {
		return nil, errStoreDown
	}
	return r.Reader.GetUserPermission(ctx, userID)
}

func (r *faultyReader) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	if r.failOn == "role" {
		return nil, errStoreDown
	}
	return r.Reader.GetRoleByName(ctx, name)
}

func (r *faultyReader) ListPermissionsByIDs(ctx context.Context, ids []id.PermissionID) ([]*permission.Permission, error) {
	if r.failOn == "permissions" {
		return nil, errStoreDown
	}
	return r.Reader.ListPermissionsByIDs(ctx, ids)
}

func TestStoreErrorFailsClosed(t *testing.T) {
	for _, failOn := range []string{"actor", "override", "role", "permissions"} {
		t.Run(failOn, func(t *testing.T) {
			mem := memory.New()
			ctx := context.Background()
			p := &permission.Permission{ID: id.NewPermissionID(), Name: "hr.read", Module: access.ModuleHR, Actions: []access.Action{access.ActionRead}}
			_ = mem.CreatePermission(ctx, p)
			_ = mem.CreateRole(ctx, &role.Role{ID: id.NewRoleID(), Name: "employee", Permissions: []id.PermissionID{p.ID}})
			_ = mem.CreateActor(ctx, &actor.Actor{ID: "u1", RoleName: "employee"})

			eng, err := NewEngine(WithStore(&faultyStore{Store: mem, failOn: failOn}))
			if err != nil {
				t.Fatal(err)
			}
			res, err := eng.Authorize(ctx, "u1", hrRead())
			if err != nil {
				t.Fatalf("store failures must not surface as errors: %v", err)
			}
			expect(t, res, false, ReasonStoreError)
		})
	}
}

func TestStoreErrorNotCached(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	_ = mem.CreateActor(ctx, &actor.Actor{ID: "u1", RoleName: "employee"})
	c := newMapCache()
	eng, err := NewEngine(WithStore(&faultyStore{Store: mem, failOn: "role"}), WithCache(c))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Authorize(ctx, "u1", hrRead()); err != nil {
		t.Fatal(err)
	}
	if c.len() != 0 {
		t.Fatal("store-error results must not be cached")
	}
}

// ──────────────────────────────────────────────────
// Cancellation
// ──────────────────────────────────────────────────

// cancellingStore cancels the caller's context during the role read.
type cancellingStore struct {
	*memory.Store
	cancel     context.CancelFunc
	returnData bool
}

func (s *cancellingStore) ReadSnapshot(ctx context.Context, fn func(store.Reader) error) error {
	return s.Store.ReadSnapshot(ctx, func(r store.Reader) error {
		return fn(&cancellingReader{Reader: r, s: s})
	})
}

type cancellingReader struct {
	store.Reader
	s *cancellingStore
}

func (r *cancellingReader) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	r.s.cancel()
	if r.s.returnData {
		return r.Reader.GetRoleByName(context.Background(), name)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	f.actor("root", "super_admin")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.eng.Authorize(ctx, "root", hrRead())
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected ErrCancelled wrapping context.Canceled, got %v", err)
	}
	if res != nil {
		t.Fatal("expected no result on cancellation")
	}
}

func TestCancelledDuringRead(t *testing.T) {
	for _, returnData := range []bool{false, true} {
		t.Run(fmt.Sprintf("returnData=%v", returnData), func(t *testing.T) {
			mem := memory.New()
			bg := context.Background()
			p := &permission.Permission{ID: id.NewPermissionID(), Name: "hr.read", Module: access.ModuleHR, Actions: []access.Action{access.ActionRead}}
			_ = mem.CreatePermission(bg, p)
			_ = mem.CreateRole(bg, &role.Role{ID: id.NewRoleID(), Name: "employee", Permissions: []id.PermissionID{p.ID}})
			_ = mem.CreateActor(bg, &actor.Actor{ID: "u1", RoleName: "employee"})

			ctx, cancel := context.WithCancel(bg)
			defer cancel()
			eng, err := NewEngine(WithStore(&cancellingStore{Store: mem, cancel: cancel, returnData: returnData}))
			if err != nil {
				t.Fatal(err)
			}

			// Even when every read succeeded the grant is discarded.
			res, err := eng.Authorize(ctx, "u1", hrRead())
			if !errors.Is(err, ErrCancelled) {
				t.Fatalf("expected ErrCancelled, got %v (result %+v)", err, res)
			}
			if res != nil {
				t.Fatal("expected no result on cancellation")
			}
		})
	}
}

func TestCancelledIsNotStoreError(t *testing.T) {
	if errors.Is(fmt.Errorf("%w: %w", ErrCancelled, context.Canceled), ErrStoreUnavailable) {
		t.Fatal("cancellation must be distinct from store failure")
	}
}

// ──────────────────────────────────────────────────
// AuthorizeMany, Enforce, Can
// ──────────────────────────────────────────────────

func TestAuthorizeMany(t *testing.T) {
	f := newFixture(t)
	read := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	approve := f.permission("hr.approve", access.ModuleHR, nil, access.ActionApprove)
	f.role("employee", read)
	f.actor("u1", "employee")
	f.override(&override.UserPermission{
		UserID:              "u1",
		ResourcePermissions: []override.ResourcePermission{{ResourceType: "goal", ResourceID: "g1", PermissionID: approve.ID}},
	})

	reqs := []*Request{
		hrRead(),
		{Module: access.ModuleHR, Action: access.ActionDelete},
		{Module: access.ModuleHR, Action: access.ActionApprove, Resource: &access.Qualifier{Type: "goal", ID: "g1"}},
	}
	results, err := f.eng.AuthorizeMany(f.ctx, "u1", reqs)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	expect(t, results[0], true, ReasonRoleGrant)
	expect(t, results[1], false, ReasonRoleDenied)
	expect(t, results[2], true, ReasonResourceGrant)

	// Same semantics as individual calls.
	for i, req := range reqs {
		single := f.authorize("u1", req)
		if single.Granted != results[i].Granted || single.Reason != results[i].Reason {
			t.Fatalf("request %d: batch %s vs single %s", i, results[i].Reason, single.Reason)
		}
	}
}

func TestAuthorizeManyActorNotFound(t *testing.T) {
	f := newFixture(t)
	results, err := f.eng.AuthorizeMany(f.ctx, "ghost", []*Request{hrRead(), hrRead()})
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range results {
		expect(t, res, false, ReasonActorNotFound)
	}
	if results[0] == results[1] {
		t.Fatal("results must be distinct values")
	}
}

func TestAuthorizeManyEmpty(t *testing.T) {
	f := newFixture(t)
	results, err := f.eng.AuthorizeMany(f.ctx, "u1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestEnforce(t *testing.T) {
	f := newFixture(t)
	p := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	f.role("employee", p)
	f.actor("u1", "employee")

	if err := f.eng.Enforce(f.ctx, "u1", hrRead()); err != nil {
		t.Fatalf("expected enforce to pass: %v", err)
	}
	err := f.eng.Enforce(f.ctx, "u1", &Request{Module: access.ModuleHR, Action: access.ActionDelete})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestCan(t *testing.T) {
	f := newFixture(t)
	p := f.permission("docs.read.contract", access.ModuleDocuments, &access.Qualifier{Type: "contract", ID: "c1"}, access.ActionRead)
	f.role("employee", p)
	f.actor("u1", "employee")

	ok, err := f.eng.Can(f.ctx, "u1", access.ModuleDocuments, access.ActionRead)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected module-wide read to be denied")
	}
	ok, err = f.eng.CanOn(f.ctx, "u1", access.ModuleDocuments, access.ActionRead, "contract", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected contract c1 read to be granted")
	}
}

func TestEvalTimeRecorded(t *testing.T) {
	f := newFixture(t)
	f.actor("u1", "employee")
	if res := f.authorize("u1", hrRead()); res.EvalTimeNs <= 0 {
		t.Fatalf("expected positive eval time, got %d", res.EvalTimeNs)
	}
}

func TestDisableSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisableSnapshot = true
	cfg.FetchConcurrency = 1
	f := newFixture(t, WithConfig(cfg))
	p := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	f.role("employee", p)
	f.actor("u1", "employee")

	expect(t, f.authorize("u1", hrRead()), true, ReasonRoleGrant)
}

// ──────────────────────────────────────────────────
// Cache and plugins
// ──────────────────────────────────────────────────

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*Result
	hits    int
}

func newMapCache() *mapCache { return &mapCache{entries: make(map[string]*Result)} }

func (c *mapCache) Get(_ context.Context, actorID string, req *Request) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[ActorKey(actorID)+CacheKey(req)]
	if !ok {
		return nil, false
	}
	c.hits++
	return r.clone(), true
}

func (c *mapCache) Set(_ context.Context, actorID string, req *Request, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ActorKey(actorID)+CacheKey(req)] = result.clone()
}

func (c *mapCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Result)
}

func (c *mapCache) InvalidateActor(_ context.Context, _ string) { c.InvalidateAll(context.Background()) }

func (c *mapCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func TestCacheHit(t *testing.T) {
	c := newMapCache()
	f := newFixture(t, WithCache(c))
	p := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	f.role("employee", p)
	f.actor("u1", "employee")

	expect(t, f.authorize("u1", hrRead()), true, ReasonRoleGrant)
	expect(t, f.authorize("u1", hrRead()), true, ReasonRoleGrant)
	if c.hits != 1 {
		t.Fatalf("expected 1 cache hit, got %d", c.hits)
	}

	// AuthorizeMany serves cached entries too.
	if _, err := f.eng.AuthorizeMany(f.ctx, "u1", []*Request{hrRead()}); err != nil {
		t.Fatal(err)
	}
	if c.hits != 2 {
		t.Fatalf("expected 2 cache hits, got %d", c.hits)
	}
}

func TestCachedDecisionsReachAfterHooks(t *testing.T) {
	c := newMapCache()
	rec := &recordingPlugin{}
	f := newFixture(t, WithCache(c), WithPlugin(rec))
	p := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	f.role("employee", p)
	f.actor("u1", "employee")

	first := f.authorize("u1", hrRead())
	if first.Cached {
		t.Fatal("first decision must not be marked cached")
	}
	for range 2 {
		res := f.authorize("u1", hrRead())
		expect(t, res, true, ReasonRoleGrant)
		if !res.Cached {
			t.Fatal("expected a cached result")
		}
	}
	if _, err := f.eng.AuthorizeMany(f.ctx, "u1", []*Request{hrRead()}); err != nil {
		t.Fatal(err)
	}

	if len(rec.after) != 4 {
		t.Fatalf("expected 4 after hooks, got %d", len(rec.after))
	}
	if rec.before != 1 {
		t.Fatalf("expected 1 before hook, got %d", rec.before)
	}
	if c.len() != 1 {
		t.Fatalf("cache hits must not be stored again, got %d entries", c.len())
	}
}

func TestCacheKeyIsUnambiguous(t *testing.T) {
	reqs := []*Request{
		{Module: "x|admin", Action: access.ActionDelete},
		{Module: access.ModuleAdmin, Action: access.ActionDelete},
		{Module: "hr:read", Action: ""},
		{Module: access.ModuleHR, Action: access.ActionRead},
		{Module: access.ModuleHR, Action: "read@goal"},
		{Module: access.ModuleHR, Action: access.ActionRead, Resource: &access.Qualifier{Type: "goal"}},
		{Module: access.ModuleHR, Action: access.ActionRead, Resource: &access.Qualifier{Type: "goal:g1"}},
		{Module: access.ModuleHR, Action: access.ActionRead, Resource: &access.Qualifier{Type: "goal", ID: "g1"}},
	}
	seen := make(map[string]int)
	for i, req := range reqs {
		for _, actorID := range []string{"alice", "alice|x", `alice"`, "alice:x"} {
			key := ActorKey(actorID) + CacheKey(req)
			if j, dup := seen[key]; dup {
				t.Fatalf("request %d for %q collides with entry %d: %s", i, actorID, j, key)
			}
			seen[key] = i
		}
	}
}

func TestNilRequestRejected(t *testing.T) {
	f := newFixture(t, WithCache(newMapCache()))
	f.actor("root", "super_admin")

	if _, err := f.eng.Authorize(f.ctx, "root", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := f.eng.AuthorizeMany(f.ctx, "root", []*Request{hrRead(), nil}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for a batch entry, got %v", err)
	}
	if err := f.eng.Enforce(f.ctx, "root", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected Enforce to surface ErrInvalidRequest, got %v", err)
	}
}

type recordingPlugin struct {
	mu       sync.Mutex
	before   int
	after    []Reason
	dangling []string
	kinds    []string
}

func (p *recordingPlugin) Name() string { return "recorder" }

func (p *recordingPlugin) OnBeforeAuthorize(_ context.Context, _ string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.before++
	return nil
}

func (p *recordingPlugin) OnAfterAuthorize(_ context.Context, _ string, _, result any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := result.(*Result); ok {
		p.after = append(p.after, r.Reason)
	}
	return nil
}

func (p *recordingPlugin) OnDanglingReference(_ context.Context, _, kind, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
	p.dangling = append(p.dangling, ref)
	return nil
}

var _ plugin.AfterAuthorize = (*recordingPlugin)(nil)

func TestPluginHooks(t *testing.T) {
	rec := &recordingPlugin{}
	f := newFixture(t, WithPlugin(rec))
	f.actor("root", "super_admin")

	f.authorize("root", hrRead())
	f.authorize("ghost", hrRead())
	if rec.before != 2 {
		t.Fatalf("expected 2 before hooks, got %d", rec.before)
	}
	if len(rec.after) != 2 || rec.after[0] != ReasonSuperuserBypass || rec.after[1] != ReasonActorNotFound {
		t.Fatalf("unexpected after hooks: %v", rec.after)
	}
}

// ──────────────────────────────────────────────────
// Concurrency
// ──────────────────────────────────────────────────

func TestConcurrentAuthorizeWithWrites(t *testing.T) {
	f := newFixture(t)
	p := f.permission("hr.read", access.ModuleHR, nil, access.ActionRead)
	r := f.role("employee", p)
	f.actor("u1", "employee")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res, err := f.eng.Authorize(f.ctx, "u1", hrRead())
				if err != nil {
					t.Error(err)
					return
				}
				if res.Reason != ReasonRoleGrant && res.Reason != ReasonRoleDenied && res.Reason != ReasonExplicitRestriction {
					t.Errorf("unexpected reason %s", res.Reason)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			_ = f.store.DetachPermission(f.ctx, r.ID, p.ID)
			_ = f.store.SaveUserPermission(f.ctx, &override.UserPermission{UserID: "u1", RestrictedPermissions: []id.PermissionID{p.ID}})
			_ = f.store.AttachPermission(f.ctx, r.ID, p.ID)
			_ = f.store.DeleteUserPermission(f.ctx, "u1")
		}
	}()
	wg.Wait()
}
