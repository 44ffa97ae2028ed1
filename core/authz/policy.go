package authz

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const (
	PermRead   = "nc:read"
	PermWrite  = "nc:write"
	PermDelete = "nc:delete"
)

const (
	RoleViewer  = "viewer"
	RoleAuthor  = "author"
	RoleManager = "manager"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Role hierarchy: manager > author > viewer.
var defaultPolicies = [][]string{
	{RoleViewer, "nc", "read"},
	{RoleAuthor, "nc", "write"},
	{RoleManager, "nc", "delete"},
}

var defaultInheritance = [][]string{
	{RoleAuthor, RoleViewer},
	{RoleManager, RoleAuthor},
}

type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("authz model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz enforcer: %w", err)
	}
	if _, err := e.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("authz policies: %w", err)
	}
	if _, err := e.AddGroupingPolicies(defaultInheritance); err != nil {
		return nil, fmt.Errorf("authz roles: %w", err)
	}
	return &Policy{enforcer: e}, nil
}

// Allowed reports whether any of roles grants perm ("nc:read" style).
func (p *Policy) Allowed(roles []string, perm string) bool {
	if p == nil {
		return false
	}
	obj, act, ok := strings.Cut(perm, ":")
	if !ok {
		return false
	}
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		allowed, err := p.enforcer.Enforce(role, obj, act)
		if err == nil && allowed {
			return true
		}
	}
	return false
}

// ParseRoles splits a comma separated role header.
func ParseRoles(raw, fallback string) []string {
	var roles []string
	for _, part := range strings.Split(raw, ",") {
		if r := strings.ToLower(strings.TrimSpace(part)); r != "" {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 && strings.TrimSpace(fallback) != "" {
		roles = append(roles, strings.ToLower(strings.TrimSpace(fallback)))
	}
	return roles
}
