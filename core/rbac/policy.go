package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermSchemaView   Permission = "schema.view"
	PermSchemaUpdate Permission = "schema.update"
)

type Role struct {
	Name        string
	Permissions []Permission
	// Inherits lists roles whose permissions this role also holds.
	Inherits []string
}

const modelText = `
[request_definition]
r = sub, perm

[policy_definition]
p = sub, perm

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.perm == p.perm
`

// Policy answers permission checks for role names.
type Policy struct {
	enforcer *casbin.Enforcer
}

func DefaultRoles() []Role {
	return []Role{
		{Name: "viewer", Permissions: []Permission{PermSchemaView}},
		{Name: "admin", Permissions: []Permission{PermSchemaUpdate}, Inherits: []string{"viewer"}},
	}
}

// NewPolicy builds the enforcer for roles. It panics only when the built-in
// model text is invalid.
func NewPolicy(roles []Role) *Policy {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		panic(fmt.Sprintf("rbac model: %v", err))
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		panic(fmt.Sprintf("rbac enforcer: %v", err))
	}
	for _, role := range roles {
		for _, perm := range role.Permissions {
			_, _ = e.AddPolicy(role.Name, string(perm))
		}
		for _, parent := range role.Inherits {
			_, _ = e.AddGroupingPolicy(role.Name, parent)
		}
	}
	return &Policy{enforcer: e}
}

func (p *Policy) Allowed(roles []string, perm Permission) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(role, string(perm))
		if err == nil && ok {
			return true
		}
	}
	return false
}
