package identity

import (
	"context"
	"errors"
	"testing"

	"foodtrace.org/internal/store"
)

func newTestRegistry() *Registry {
	return NewRegistry(store.NewInMemory())
}

func register(t *testing.T, r *Registry, caller, alias string, opts ...func(*RegisterRequest)) Info {
	t.Helper()
	req := RegisterRequest{FullID: "x509::" + alias, Alias: alias}
	for _, opt := range opts {
		opt(&req)
	}
	info, err := r.Register(context.Background(), caller, req)
	if err != nil {
		t.Fatalf("register %s: %v", alias, err)
	}
	return info
}

func TestBootstrapFirstAdmin(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	info := register(t, r, "", "root")
	if !info.IsAdmin {
		t.Fatal("first registration should become admin")
	}
	if info.RegisteredBy != "root" {
		t.Fatalf("bootstrap registration should be self-authorized, got %q", info.RegisteredBy)
	}

	// Once an admin exists, anonymous registration is rejected.
	_, err := r.Register(ctx, "", RegisterRequest{FullID: "x509::eve", Alias: "eve"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	second := register(t, r, "root", "alice")
	if second.IsAdmin {
		t.Fatal("second registration must not be admin")
	}
	if second.RegisteredBy != "root" {
		t.Fatalf("unexpected registeredBy %q", second.RegisteredBy)
	}
}

func TestRegisterUniqueness(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	register(t, r, "", "root")

	if _, err := r.Register(ctx, "root", RegisterRequest{FullID: "x509::other", Alias: "Root"}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("alias reuse (case-insensitive) should fail, got %v", err)
	}
	if _, err := r.Register(ctx, "root", RegisterRequest{FullID: "x509::root", Alias: "fresh"}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("credential reuse should fail, got %v", err)
	}
}

func TestRoleAssignmentIdempotent(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	register(t, r, "", "root")
	register(t, r, "root", "alice")

	if err := r.AssignRole(ctx, "root", "alice", "farmer"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := r.AssignRole(ctx, "root", "alice", "farmer"); err != nil {
		t.Fatalf("re-assign should be a no-op: %v", err)
	}
	info, err := r.GetByAlias(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(info.Roles) != 1 || info.Roles[0] != "farmer" {
		t.Fatalf("unexpected roles %v", info.Roles)
	}

	if err := r.RemoveRole(ctx, "root", "alice", "farmer"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := r.RemoveRole(ctx, "root", "alice", "farmer"); err != nil {
		t.Fatalf("re-remove should be a no-op: %v", err)
	}
	info, _ = r.GetByAlias(ctx, "alice")
	if len(info.Roles) != 0 {
		t.Fatalf("expected no roles, got %v", info.Roles)
	}

	if err := r.AssignRole(ctx, "root", "alice", "pilot"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown role should fail, got %v", err)
	}
	if err := r.AssignRole(ctx, "alice", "alice", "farmer"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin grant should fail, got %v", err)
	}
}

func TestAdminFlagAndSelfDemotionGuard(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	register(t, r, "", "root")
	register(t, r, "root", "alice")

	if err := r.MakeAdmin(ctx, "root", "alice"); err != nil {
		t.Fatalf("make admin: %v", err)
	}
	info, _ := r.GetByAlias(ctx, "alice")
	if !info.IsAdmin {
		t.Fatal("alice should be admin")
	}

	if err := r.RemoveAdmin(ctx, "alice", "alice"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("self-demotion should fail, got %v", err)
	}
	if err := r.RemoveAdmin(ctx, "root", "alice"); err != nil {
		t.Fatalf("demote: %v", err)
	}
	info, _ = r.GetByAlias(ctx, "alice")
	if info.IsAdmin {
		t.Fatal("alice should no longer be admin")
	}
}

func TestGetByIDResolvesAlias(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	register(t, r, "", "root")
	register(t, r, "root", "bob")

	info, err := r.GetByID(ctx, "x509::bob")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if info.Alias != "bob" {
		t.Fatalf("unexpected alias %q", info.Alias)
	}
	if _, err := r.GetByID(ctx, "x509::nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByRoleAndCounts(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	register(t, r, "", "root")
	register(t, r, "root", "alice")
	register(t, r, "root", "bob")

	if err := r.AssignRole(ctx, "root", "alice", "farmer"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := r.AssignRole(ctx, "root", "bob", "farmer"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := r.AssignRole(ctx, "root", "bob", "certifier"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	farmers, err := r.ListByRole(ctx, "farmer")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(farmers) != 2 {
		t.Fatalf("expected 2 farmers, got %d", len(farmers))
	}

	admins, err := r.ListByRole(ctx, "admin")
	if err != nil {
		t.Fatalf("list admins: %v", err)
	}
	if len(admins) != 1 || admins[0].Alias != "root" {
		t.Fatalf("unexpected admins %+v", admins)
	}

	counts, err := r.ListRoleCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.TotalUsers != 3 {
		t.Fatalf("expected 3 users, got %d", counts.TotalUsers)
	}
	if counts.Counts["farmer"] != 2 || counts.Counts["certifier"] != 1 || counts.Counts["admin"] != 1 {
		t.Fatalf("unexpected counts %v", counts.Counts)
	}
}

func TestAuthenticate(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	register(t, r, "", "root", func(req *RegisterRequest) {
		req.Password = "hunter2"
	})

	info, err := r.Authenticate(ctx, "root", "hunter2")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if info.PasswordHash != "" {
		t.Fatal("password hash must never leave the registry")
	}

	if _, err := r.Authenticate(ctx, "root", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("wrong password: expected ErrUnauthorized, got %v", err)
	}
	if _, err := r.Authenticate(ctx, "ghost", "hunter2"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown alias: expected ErrUnauthorized, got %v", err)
	}

	// No password on record disables credential auth entirely.
	register(t, r, "root", "nopass")
	if _, err := r.Authenticate(ctx, "nopass", ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("passwordless account: expected ErrUnauthorized, got %v", err)
	}
}
