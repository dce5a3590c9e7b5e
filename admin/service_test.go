package admin

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/portcullis"
	"github.com/xraph/portcullis/access"
	"github.com/xraph/portcullis/cache"
	"github.com/xraph/portcullis/catalog"
	"github.com/xraph/portcullis/decisionlog"
	"github.com/xraph/portcullis/id"
	"github.com/xraph/portcullis/override"
	"github.com/xraph/portcullis/permission"
	"github.com/xraph/portcullis/plugin"
	"github.com/xraph/portcullis/plugin/audit"
	"github.com/xraph/portcullis/role"
	"github.com/xraph/portcullis/store/memory"
)

type events struct {
	mu     sync.Mutex
	counts map[string]int
}

func (e *events) Name() string { return "events" }

func (e *events) bump(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counts[name]++
	return nil
}

func (e *events) get(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[name]
}

func (e *events) OnPermissionCreated(context.Context, *permission.Permission) error {
	return e.bump("permission.created")
}

func (e *events) OnRoleUpdated(context.Context, *role.Role) error {
	return e.bump("role.updated")
}

func (e *events) OnOverrideUpdated(context.Context, *override.UserPermission) error {
	return e.bump("override.updated")
}

func (e *events) OnCatalogSeeded(context.Context, int, int) error {
	return e.bump("catalog.seeded")
}

type harness struct {
	svc    *Service
	eng    *portcullis.Engine
	cache  *cache.Memory
	events *events
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ev := &events{counts: map[string]int{}}
	reg := plugin.NewRegistry(nil)
	reg.Register(ev)
	c := cache.NewMemory()
	eng, err := portcullis.NewEngine(
		portcullis.WithStore(memory.New()),
		portcullis.WithCache(c),
		portcullis.WithPlugins(reg),
	)
	require.NoError(t, err)
	return &harness{svc: ForEngine(eng), eng: eng, cache: c, events: ev}
}

func (h *harness) seeded(t *testing.T) *harness {
	t.Helper()
	_, err := h.svc.InitializeDefaultCatalog(context.Background())
	require.NoError(t, err)
	return h
}

func (h *harness) actor(t *testing.T, actorID, roleName string) {
	t.Helper()
	_, err := h.svc.CreateActor(context.Background(), &CreateActorInput{ID: actorID, RoleName: roleName})
	require.NoError(t, err)
}

func (h *harness) permID(t *testing.T, name string) id.PermissionID {
	t.Helper()
	p, err := h.svc.GetPermissionByName(context.Background(), name)
	require.NoError(t, err)
	return p.ID
}

func (h *harness) authorize(t *testing.T, actorID string, module access.Module, action access.Action, resource *access.Qualifier) *portcullis.Result {
	t.Helper()
	res, err := h.eng.Authorize(context.Background(), actorID, &portcullis.Request{Module: module, Action: action, Resource: resource})
	require.NoError(t, err)
	return res
}

func TestInitializeDefaultCatalogIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	defaults := catalog.Defaults()

	first, err := h.svc.InitializeDefaultCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(defaults.Permissions), first.PermissionsCreated)
	assert.Equal(t, len(defaults.Roles), first.RolesCreated)

	second, err := h.svc.InitializeDefaultCatalog(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.PermissionsCreated)
	assert.Zero(t, second.RolesCreated)
	assert.Equal(t, len(defaults.Permissions), second.PermissionsKept)
	assert.Equal(t, len(defaults.Roles), second.RolesKept)

	_, total, err := h.svc.ListPermissions(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, len(defaults.Permissions), total)
	assert.Equal(t, 2, h.events.get("catalog.seeded"))
}

func TestSeedKeepsAdministrativeEdits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t).seeded(t)

	mgr, err := h.svc.GetRoleByName(ctx, catalog.RoleManager)
	require.NoError(t, err)
	_, err = h.svc.UpdateRole(ctx, mgr.ID, &UpdateRoleInput{Permissions: []id.PermissionID{}})
	require.NoError(t, err)

	_, err = h.svc.InitializeDefaultCatalog(ctx)
	require.NoError(t, err)

	mgr, err = h.svc.GetRoleByName(ctx, catalog.RoleManager)
	require.NoError(t, err)
	assert.Empty(t, mgr.Permissions)
}

func TestSeededCatalogDecisions(t *testing.T) {
	h := newHarness(t).seeded(t)
	h.actor(t, "emp", catalog.RoleEmployee)
	h.actor(t, "mgr", catalog.RoleManager)
	h.actor(t, "root", catalog.RoleSuperAdmin)

	res := h.authorize(t, "emp", access.ModuleLeave, access.ActionCreate, nil)
	assert.True(t, res.Granted)
	assert.Equal(t, portcullis.ReasonRoleGrant, res.Reason)

	res = h.authorize(t, "emp", access.ModuleLeave, access.ActionApprove, nil)
	assert.False(t, res.Granted)
	assert.Equal(t, portcullis.ReasonRoleDenied, res.Reason)

	res = h.authorize(t, "mgr", access.ModuleLeave, access.ActionApprove, nil)
	assert.True(t, res.Granted)

	res = h.authorize(t, "root", access.ModuleAdmin, access.ActionManage, nil)
	assert.True(t, res.Granted)
	assert.Equal(t, portcullis.ReasonSuperuserBypass, res.Reason)
}

func TestCreatePermissionValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	valid := CreatePermissionInput{
		Name:    "documents.share",
		Module:  access.ModuleDocuments,
		Actions: []access.Action{access.ActionRead, access.ActionRead, access.ActionExport},
	}

	tests := []struct {
		name   string
		mutate func(*CreatePermissionInput)
	}{
		{"missing name", func(in *CreatePermissionInput) { in.Name = "" }},
		{"blank name", func(in *CreatePermissionInput) { in.Name = "   " }},
		{"unknown module", func(in *CreatePermissionInput) { in.Module = "payroll" }},
		{"no actions", func(in *CreatePermissionInput) { in.Actions = nil }},
		{"unknown action", func(in *CreatePermissionInput) { in.Actions = []access.Action{"fly"} }},
		{"resource without type", func(in *CreatePermissionInput) { in.Resource = ":42" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := h.svc.CreatePermission(ctx, &in)
			require.ErrorIs(t, err, portcullis.ErrInvalidPermission)
		})
	}

	p, err := h.svc.CreatePermission(ctx, &valid)
	require.NoError(t, err)
	assert.Equal(t, []access.Action{access.ActionRead, access.ActionExport}, p.Actions)
	assert.Equal(t, 1, h.events.get("permission.created"))

	_, err = h.svc.CreatePermission(ctx, &valid)
	require.ErrorIs(t, err, portcullis.ErrDuplicatePermissionName)

	scoped := valid
	scoped.Name = "documents.read.contracts"
	scoped.Resource = "document:*"
	p, err = h.svc.CreatePermission(ctx, &scoped)
	require.NoError(t, err)
	require.NotNil(t, p.Resource)
	assert.Equal(t, "document", p.Resource.Type)
	assert.True(t, p.Resource.IsWildcard())
}

func TestSystemRecordsAreProtected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t).seeded(t)

	readID := h.permID(t, "hr.read")
	actions := []access.Action{access.ActionRead, access.ActionUpdate}
	_, err := h.svc.UpdatePermission(ctx, readID, &UpdatePermissionInput{Actions: actions})
	require.ErrorIs(t, err, portcullis.ErrSystemPermissionImmutable)
	require.ErrorIs(t, h.svc.DeletePermission(ctx, readID), portcullis.ErrSystemPermissionImmutable)

	desc := "Read HR records"
	p, err := h.svc.UpdatePermission(ctx, readID, &UpdatePermissionInput{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, p.Description)

	admin, err := h.svc.GetRoleByName(ctx, catalog.RoleAdmin)
	require.NoError(t, err)
	rename := "root"
	_, err = h.svc.UpdateRole(ctx, admin.ID, &UpdateRoleInput{Name: &rename})
	require.ErrorIs(t, err, portcullis.ErrSystemRoleImmutable)
	require.ErrorIs(t, h.svc.DeleteRole(ctx, admin.ID), portcullis.ErrSystemRoleImmutable)
}

func TestRoleLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	read, err := h.svc.CreatePermission(ctx, &CreatePermissionInput{Name: "hr.read", Module: access.ModuleHR, Actions: []access.Action{access.ActionRead}})
	require.NoError(t, err)

	_, err = h.svc.CreateRole(ctx, &CreateRoleInput{Name: "auditor", Permissions: []id.PermissionID{id.NewPermissionID()}})
	require.ErrorIs(t, err, portcullis.ErrPermissionNotFound)

	_, err = h.svc.CreateRole(ctx, &CreateRoleInput{Name: "auditor", Permissions: []id.PermissionID{id.NewRoleID()}})
	require.ErrorIs(t, err, portcullis.ErrInvalidRole)

	_, err = h.svc.CreateRole(ctx, &CreateRoleInput{Name: "auditor", Level: -1})
	require.ErrorIs(t, err, portcullis.ErrInvalidRole)

	r, err := h.svc.CreateRole(ctx, &CreateRoleInput{Name: "auditor", Level: 30, Permissions: []id.PermissionID{read.ID, read.ID}})
	require.NoError(t, err)
	assert.Equal(t, []id.PermissionID{read.ID}, r.Permissions)

	_, err = h.svc.CreateRole(ctx, &CreateRoleInput{Name: "auditor"})
	require.ErrorIs(t, err, portcullis.ErrDuplicateRoleName)

	r, err = h.svc.DetachPermission(ctx, r.ID, read.ID)
	require.NoError(t, err)
	assert.Empty(t, r.Permissions)

	r, err = h.svc.AttachPermission(ctx, r.ID, read.ID)
	require.NoError(t, err)
	assert.True(t, r.HasPermission(read.ID))
	assert.Equal(t, 2, h.events.get("role.updated"))

	_, err = h.svc.AttachPermission(ctx, r.ID, id.NewPermissionID())
	require.ErrorIs(t, err, portcullis.ErrPermissionNotFound)

	require.NoError(t, h.svc.DeleteRole(ctx, r.ID))
	_, err = h.svc.GetRole(ctx, r.ID)
	require.ErrorIs(t, err, portcullis.ErrRoleNotFound)
}

func TestDeletedPermissionLeavesDanglingReference(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.svc.CreatePermission(ctx, &CreatePermissionInput{Name: "assets.read", Module: access.ModuleAssets, Actions: []access.Action{access.ActionRead}})
	require.NoError(t, err)
	r, err := h.svc.CreateRole(ctx, &CreateRoleInput{Name: "clerk", Permissions: []id.PermissionID{p.ID}})
	require.NoError(t, err)
	h.actor(t, "u1", "clerk")

	assert.True(t, h.authorize(t, "u1", access.ModuleAssets, access.ActionRead, nil).Granted)

	require.NoError(t, h.svc.DeletePermission(ctx, p.ID))

	r, err = h.svc.GetRole(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, r.HasPermission(p.ID), "delete must not cascade")

	res := h.authorize(t, "u1", access.ModuleAssets, access.ActionRead, nil)
	assert.False(t, res.Granted)
	assert.Equal(t, portcullis.ReasonRoleDenied, res.Reason)
}

func TestOverrideIncrementalUpdates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t).seeded(t)
	h.actor(t, "u1", catalog.RoleEmployee)

	exportID := h.permID(t, "reports.export")
	leaveWrite := h.permID(t, "leave.write")

	_, err := h.svc.GetOverride(ctx, "u1")
	require.ErrorIs(t, err, portcullis.ErrOverrideNotFound)

	_, err = h.svc.RevokePermission(ctx, "u1", exportID)
	require.ErrorIs(t, err, portcullis.ErrOverrideNotFound)

	u, err := h.svc.GrantPermission(ctx, "u1", exportID)
	require.NoError(t, err)
	assert.Equal(t, []id.PermissionID{exportID}, u.CustomPermissions)
	assert.True(t, h.authorize(t, "u1", access.ModuleReports, access.ActionExport, nil).Granted)

	_, err = h.svc.RestrictPermission(ctx, "u1", exportID)
	require.ErrorIs(t, err, portcullis.ErrConflictingOverride)

	u, err = h.svc.RestrictPermission(ctx, "u1", leaveWrite)
	require.NoError(t, err)
	assert.Equal(t, []id.PermissionID{leaveWrite}, u.RestrictedPermissions)

	res := h.authorize(t, "u1", access.ModuleLeave, access.ActionCreate, nil)
	assert.False(t, res.Granted)
	assert.Equal(t, portcullis.ReasonExplicitRestriction, res.Reason)

	_, err = h.svc.GrantPermission(ctx, "u1", leaveWrite)
	require.ErrorIs(t, err, portcullis.ErrConflictingOverride)

	_, err = h.svc.UnrestrictPermission(ctx, "u1", leaveWrite)
	require.NoError(t, err)
	u, err = h.svc.RevokePermission(ctx, "u1", exportID)
	require.NoError(t, err)
	assert.Empty(t, u.CustomPermissions)
	assert.Empty(t, u.RestrictedPermissions)

	assert.True(t, h.authorize(t, "u1", access.ModuleLeave, access.ActionCreate, nil).Granted)
	assert.False(t, h.authorize(t, "u1", access.ModuleReports, access.ActionExport, nil).Granted)

	_, err = h.svc.GrantPermission(ctx, "u1", id.NewPermissionID())
	require.ErrorIs(t, err, portcullis.ErrPermissionNotFound)

	require.NoError(t, h.svc.DeleteOverride(ctx, "u1"))
	require.ErrorIs(t, h.svc.DeleteOverride(ctx, "u1"), portcullis.ErrOverrideNotFound)
}

func TestResourceGrants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t).seeded(t)
	h.actor(t, "u1", catalog.RoleEmployee)

	approve := h.permID(t, "performance.approve")
	goal := &access.Qualifier{Type: "goal", ID: "g1"}

	_, err := h.svc.GrantResource(ctx, "u1", override.ResourcePermission{PermissionID: approve})
	require.ErrorIs(t, err, portcullis.ErrInvalidOverride)

	_, err = h.svc.GrantResource(ctx, "u1", override.ResourcePermission{ResourceType: "goal", PermissionID: approve, Actions: []access.Action{access.ActionDelete}})
	require.ErrorIs(t, err, portcullis.ErrInvalidOverride)

	u, err := h.svc.GrantResource(ctx, "u1", override.ResourcePermission{ResourceType: "goal", ResourceID: "g1", PermissionID: approve})
	require.NoError(t, err)
	require.Len(t, u.ResourcePermissions, 1)

	res := h.authorize(t, "u1", access.ModulePerformance, access.ActionApprove, goal)
	assert.True(t, res.Granted)
	assert.Equal(t, portcullis.ReasonResourceGrant, res.Reason)
	assert.False(t, h.authorize(t, "u1", access.ModulePerformance, access.ActionApprove, &access.Qualifier{Type: "goal", ID: "g2"}).Granted)

	// Same permission and resource replaces rather than duplicates.
	u, err = h.svc.GrantResource(ctx, "u1", override.ResourcePermission{ResourceType: "goal", ResourceID: "g1", PermissionID: approve, Actions: []access.Action{access.ActionApprove}})
	require.NoError(t, err)
	require.Len(t, u.ResourcePermissions, 1)

	_, err = h.svc.RestrictPermission(ctx, "u1", approve)
	require.ErrorIs(t, err, portcullis.ErrConflictingOverride)

	u, err = h.svc.RevokeResource(ctx, "u1", override.ResourcePermission{ResourceType: "goal", ResourceID: "g1", PermissionID: approve})
	require.NoError(t, err)
	assert.Empty(t, u.ResourcePermissions)
	assert.False(t, h.authorize(t, "u1", access.ModulePerformance, access.ActionApprove, goal).Granted)
}

func TestSetOverride(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t).seeded(t)
	h.actor(t, "u1", catalog.RoleEmployee)

	hrRead := h.permID(t, "hr.read")
	docsRead := h.permID(t, "documents.read")

	_, err := h.svc.SetOverride(ctx, &SetOverrideInput{
		UserID:                "u1",
		CustomPermissions:     []id.PermissionID{hrRead},
		RestrictedPermissions: []id.PermissionID{hrRead},
	})
	require.ErrorIs(t, err, portcullis.ErrConflictingOverride)

	_, err = h.svc.SetOverride(ctx, &SetOverrideInput{UserID: "u1", RoleID: id.NewRoleID()})
	require.ErrorIs(t, err, portcullis.ErrRoleNotFound)

	_, err = h.svc.SetOverride(ctx, &SetOverrideInput{})
	require.ErrorIs(t, err, portcullis.ErrInvalidOverride)

	mgr, err := h.svc.GetRoleByName(ctx, catalog.RoleManager)
	require.NoError(t, err)
	u, err := h.svc.SetOverride(ctx, &SetOverrideInput{
		UserID:                "u1",
		RoleID:                mgr.ID,
		RestrictedPermissions: []id.PermissionID{docsRead},
	})
	require.NoError(t, err)
	assert.Equal(t, mgr.ID, u.RoleID)

	assert.True(t, h.authorize(t, "u1", access.ModuleLeave, access.ActionApprove, nil).Granted, "override role wins over profile role")
	assert.False(t, h.authorize(t, "u1", access.ModuleDocuments, access.ActionRead, nil).Granted)

	u, err = h.svc.ClearRole(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.RoleID.IsNil())
	assert.False(t, h.authorize(t, "u1", access.ModuleLeave, access.ActionApprove, nil).Granted)
}

func TestWritesInvalidateCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t).seeded(t)
	h.actor(t, "u1", catalog.RoleEmployee)
	h.actor(t, "u2", catalog.RoleEmployee)

	h.authorize(t, "u1", access.ModuleHR, access.ActionRead, nil)
	h.authorize(t, "u2", access.ModuleHR, access.ActionRead, nil)
	require.Equal(t, 2, h.cache.Len())

	_, err := h.svc.GrantPermission(ctx, "u1", h.permID(t, "hr.read"))
	require.NoError(t, err)
	assert.Equal(t, 1, h.cache.Len(), "override write drops only that actor")
	assert.True(t, h.authorize(t, "u1", access.ModuleHR, access.ActionRead, nil).Granted)
	assert.Equal(t, 1, h.events.get("override.updated"))

	emp, err := h.svc.GetRoleByName(ctx, catalog.RoleEmployee)
	require.NoError(t, err)
	_, err = h.svc.AttachPermission(ctx, emp.ID, h.permID(t, "hr.read"))
	require.NoError(t, err)
	assert.Zero(t, h.cache.Len(), "role write drops everything")
	assert.True(t, h.authorize(t, "u2", access.ModuleHR, access.ActionRead, nil).Granted)
}

func TestActorLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t).seeded(t)

	_, err := h.svc.CreateActor(ctx, &CreateActorInput{ID: "u1", RoleName: "ghost"})
	require.ErrorIs(t, err, portcullis.ErrRoleNotFound)

	_, err = h.svc.CreateActor(ctx, &CreateActorInput{ID: "u1", RoleName: catalog.RoleEmployee, Email: "not-an-email"})
	require.ErrorIs(t, err, portcullis.ErrInvalidActor)

	h.actor(t, "u1", catalog.RoleEmployee)
	_, err = h.svc.CreateActor(ctx, &CreateActorInput{ID: "u1", RoleName: catalog.RoleEmployee})
	require.ErrorIs(t, err, portcullis.ErrDuplicateActor)

	assert.False(t, h.authorize(t, "u1", access.ModuleLeave, access.ActionApprove, nil).Granted)
	a, err := h.svc.ChangeRole(ctx, "u1", catalog.RoleHRManager)
	require.NoError(t, err)
	assert.Equal(t, catalog.RoleHRManager, a.RoleName)
	assert.True(t, h.authorize(t, "u1", access.ModuleLeave, access.ActionApprove, nil).Granted)

	list, err := h.svc.ListActors(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, h.svc.DeleteActor(ctx, "u1"))
	res := h.authorize(t, "u1", access.ModuleLeave, access.ActionApprove, nil)
	assert.Equal(t, portcullis.ReasonActorNotFound, res.Reason)
	require.ErrorIs(t, h.svc.DeleteActor(ctx, "u1"), portcullis.ErrActorNotFound)
}

func TestCachedSuperuserGrantStaysWithItsActor(t *testing.T) {
	h := newHarness(t).seeded(t)
	h.actor(t, "alice", catalog.RoleSuperAdmin)
	h.actor(t, "alice|x", catalog.RoleEmployee)

	root := h.authorize(t, "alice", access.Module("x|admin"), access.ActionDelete, nil)
	assert.True(t, root.Granted)
	assert.Equal(t, portcullis.ReasonSuperuserBypass, root.Reason)

	other := h.authorize(t, "alice|x", access.ModuleAdmin, access.ActionDelete, nil)
	assert.False(t, other.Granted)
	assert.Equal(t, portcullis.ReasonRoleDenied, other.Reason)
	assert.False(t, other.Cached)
}

func TestCachedDecisionsAreAudited(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t).seeded(t)
	h.eng.Plugins().Register(audit.New(h.eng.Store()))
	h.actor(t, "bob", catalog.RoleEmployee)

	for range 3 {
		h.authorize(t, "bob", access.ModuleDashboard, access.ActionRead, nil)
	}

	entries, total, err := h.svc.ListDecisionLogs(ctx, &decisionlog.QueryFilter{ActorID: "bob"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, entries, 3)
	assert.Equal(t, 1, h.cache.Len())
}
