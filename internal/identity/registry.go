package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"foodtrace.org/internal/auth"
	"foodtrace.org/internal/ids"
	"foodtrace.org/internal/store"
)

const (
	aliasPrefix = "identity/"
	idPrefix    = "identityid/"

	maxFieldLength = 256
)

// Registry is the authoritative owner of participant records, role grants and
// admin flags. All mutation goes through an admin check here, not upstream.
type Registry struct {
	store store.Store
	now   func() time.Time
}

// NewRegistry creates a registry on top of the given document store.
func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s, now: time.Now}
}

type idIndex struct {
	Alias string `json:"alias"`
}

// RegisterRequest carries the fields accepted at registration time.
type RegisterRequest struct {
	FullID       string
	Alias        string
	Organization string
	Password     string
}

// Register creates a new identity. The caller must be an admin, except in
// bootstrap mode: while the registry holds no admin, the first registration is
// self-authorized and the new identity becomes the initial admin.
func (r *Registry) Register(ctx context.Context, caller string, req RegisterRequest) (Info, error) {
	fullID := strings.TrimSpace(req.FullID)
	alias := normalizeAlias(req.Alias)
	if err := requireField(fullID, "fullId"); err != nil {
		return Info{}, err
	}
	if err := requireField(alias, "alias"); err != nil {
		return Info{}, err
	}

	bootstrap, err := r.bootstrapMode(ctx)
	if err != nil {
		return Info{}, err
	}
	var registeredBy string
	if bootstrap {
		registeredBy = alias
	} else {
		admin, err := r.requireAdmin(ctx, caller)
		if err != nil {
			return Info{}, err
		}
		registeredBy = admin.Alias
	}

	if _, err := r.store.Get(ctx, aliasPrefix+alias); err == nil {
		return Info{}, fmt.Errorf("%w: alias %q in use", ErrAlreadyRegistered, alias)
	} else if err != store.ErrNotFound {
		return Info{}, err
	}
	if _, err := r.store.Get(ctx, idPrefix+fullID); err == nil {
		return Info{}, fmt.Errorf("%w: credential already enrolled", ErrAlreadyRegistered)
	} else if err != store.ErrNotFound {
		return Info{}, err
	}

	now := r.now().UTC()
	info := Info{
		FullID:       fullID,
		Alias:        alias,
		Organization: strings.TrimSpace(req.Organization),
		Roles:        []string{},
		IsAdmin:      bootstrap,
		RegisteredBy: registeredBy,
		RegisteredAt: now,
		LastUpdated:  now,
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return Info{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		info.PasswordHash = hash
	}

	infoDoc, err := json.Marshal(info)
	if err != nil {
		return Info{}, err
	}
	indexDoc, err := json.Marshal(idIndex{Alias: alias})
	if err != nil {
		return Info{}, err
	}
	err = r.store.Apply(ctx, ids.New(), []store.Write{
		{Key: aliasPrefix + alias, Value: infoDoc, Version: 0},
		{Key: idPrefix + fullID, Value: indexDoc, Version: 0},
	})
	if err == store.ErrConflict {
		return Info{}, fmt.Errorf("%w: alias %q in use", ErrAlreadyRegistered, alias)
	}
	if err != nil {
		return Info{}, err
	}
	return redact(info), nil
}

// AssignRole grants a role to an identity. No-op when already granted.
func (r *Registry) AssignRole(ctx context.Context, caller, alias, role string) error {
	role = strings.TrimSpace(strings.ToLower(role))
	if !ValidRoles[role] {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	return r.mutate(ctx, caller, alias, func(info *Info) error {
		if info.HasRole(role) {
			return nil
		}
		info.Roles = append(info.Roles, role)
		sort.Strings(info.Roles)
		return nil
	})
}

// RemoveRole revokes a role from an identity. No-op when not present.
func (r *Registry) RemoveRole(ctx context.Context, caller, alias, role string) error {
	role = strings.TrimSpace(strings.ToLower(role))
	if !ValidRoles[role] {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	return r.mutate(ctx, caller, alias, func(info *Info) error {
		out := info.Roles[:0]
		for _, existing := range info.Roles {
			if existing != role {
				out = append(out, existing)
			}
		}
		info.Roles = out
		return nil
	})
}

// MakeAdmin grants the admin flag.
func (r *Registry) MakeAdmin(ctx context.Context, caller, alias string) error {
	return r.mutate(ctx, caller, alias, func(info *Info) error {
		info.IsAdmin = true
		return nil
	})
}

// RemoveAdmin revokes the admin flag. Admins cannot demote themselves, which
// keeps at least one admin reachable for recovery.
func (r *Registry) RemoveAdmin(ctx context.Context, caller, alias string) error {
	if normalizeAlias(caller) == normalizeAlias(alias) {
		return fmt.Errorf("%w: admins cannot remove their own admin status", ErrUnauthorized)
	}
	return r.mutate(ctx, caller, alias, func(info *Info) error {
		info.IsAdmin = false
		return nil
	})
}

// GetByAlias returns the identity registered under alias.
func (r *Registry) GetByAlias(ctx context.Context, alias string) (Info, error) {
	info, _, err := r.load(ctx, alias)
	if err != nil {
		return Info{}, err
	}
	return redact(info), nil
}

// GetByID resolves an identity by its credential id.
func (r *Registry) GetByID(ctx context.Context, fullID string) (Info, error) {
	doc, err := r.store.Get(ctx, idPrefix+strings.TrimSpace(fullID))
	if err == store.ErrNotFound {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, err
	}
	var idx idIndex
	if err := json.Unmarshal(doc.Value, &idx); err != nil {
		return Info{}, err
	}
	return r.GetByAlias(ctx, idx.Alias)
}

// ListByRole returns identities holding role, ordered by registration time.
// Passing "admin" filters on the admin flag instead.
func (r *Registry) ListByRole(ctx context.Context, role string) ([]Info, error) {
	role = strings.TrimSpace(strings.ToLower(role))
	if role != "admin" && !ValidRoles[role] {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	var out []Info
	err := r.scan(ctx, func(info Info) {
		if role == "admin" && info.IsAdmin || role != "admin" && info.HasRole(role) {
			out = append(out, redact(info))
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].Alias < out[j].Alias
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out, nil
}

// ListRoleCounts returns per-role membership counts plus the total number of
// registered identities.
func (r *Registry) ListRoleCounts(ctx context.Context) (RoleCounts, error) {
	counts := RoleCounts{Counts: make(map[string]int, len(ValidRoles)+1)}
	for role := range ValidRoles {
		counts.Counts[role] = 0
	}
	counts.Counts["admin"] = 0
	err := r.scan(ctx, func(info Info) {
		counts.TotalUsers++
		if info.IsAdmin {
			counts.Counts["admin"]++
		}
		for _, role := range info.Roles {
			counts.Counts[role]++
		}
	})
	if err != nil {
		return RoleCounts{}, err
	}
	return counts, nil
}

// Authenticate verifies alias credentials and returns the identity on success.
func (r *Registry) Authenticate(ctx context.Context, alias, password string) (Info, error) {
	info, _, err := r.load(ctx, alias)
	if err != nil {
		return Info{}, ErrUnauthorized
	}
	if info.PasswordHash == "" {
		return Info{}, ErrUnauthorized
	}
	if err := auth.VerifyPassword(info.PasswordHash, password); err != nil {
		return Info{}, ErrUnauthorized
	}
	return redact(info), nil
}

// --- internals ---

func (r *Registry) mutate(ctx context.Context, caller, alias string, fn func(*Info) error) error {
	if _, err := r.requireAdmin(ctx, caller); err != nil {
		return err
	}
	info, version, err := r.load(ctx, alias)
	if err != nil {
		return err
	}
	if err := fn(&info); err != nil {
		return err
	}
	info.LastUpdated = r.now().UTC()
	doc, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return r.store.Apply(ctx, ids.New(), []store.Write{
		{Key: aliasPrefix + info.Alias, Value: doc, Version: version},
	})
}

func (r *Registry) load(ctx context.Context, alias string) (Info, uint64, error) {
	alias = normalizeAlias(alias)
	if alias == "" {
		return Info{}, 0, fmt.Errorf("%w: alias is required", ErrInvalidInput)
	}
	doc, err := r.store.Get(ctx, aliasPrefix+alias)
	if err == store.ErrNotFound {
		return Info{}, 0, fmt.Errorf("%w: %s", ErrNotFound, alias)
	}
	if err != nil {
		return Info{}, 0, err
	}
	var info Info
	if err := json.Unmarshal(doc.Value, &info); err != nil {
		return Info{}, 0, err
	}
	return info, doc.Version, nil
}

func (r *Registry) requireAdmin(ctx context.Context, caller string) (Info, error) {
	caller = normalizeAlias(caller)
	if caller == "" {
		return Info{}, fmt.Errorf("%w: admin credentials required", ErrUnauthorized)
	}
	info, _, err := r.load(ctx, caller)
	if err != nil {
		return Info{}, fmt.Errorf("%w: caller %q is not registered", ErrUnauthorized, caller)
	}
	if !info.IsAdmin {
		return Info{}, fmt.Errorf("%w: caller %q is not an admin", ErrUnauthorized, caller)
	}
	return info, nil
}

func (r *Registry) bootstrapMode(ctx context.Context) (bool, error) {
	found := false
	err := r.scan(ctx, func(info Info) {
		if info.IsAdmin {
			found = true
		}
	})
	if err != nil {
		return false, err
	}
	return !found, nil
}

func (r *Registry) scan(ctx context.Context, fn func(Info)) error {
	cursor := ""
	for {
		docs, next, err := r.store.Query(ctx, aliasPrefix, 100, cursor)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			var info Info
			if err := json.Unmarshal(doc.Value, &info); err != nil {
				return err
			}
			fn(info)
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

func normalizeAlias(alias string) string {
	return strings.TrimSpace(strings.ToLower(alias))
}

func requireField(v, name string) error {
	if v == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
	}
	if len(v) > maxFieldLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidInput, name, maxFieldLength)
	}
	return nil
}

func redact(info Info) Info {
	info.PasswordHash = ""
	if info.Roles == nil {
		info.Roles = []string{}
	}
	return info
}
