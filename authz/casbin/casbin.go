package casbin

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"strings"

	sqladapter "github.com/Blank-Xu/sql-adapter"
	casbinv3 "github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/persist"
	"github.com/whisperwall/whisperwall/authz"
)

// rbacModel: subjects resolve through role grouping, actions may be
// wildcarded per object.
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
m = g(r.sub, p.sub) && r.obj == p.obj && (r.act == p.act || p.act == "*")
`

// Provider implements authz.Provider using casbin. With a SQL adapter and
// auto-save enabled, every grouping-policy mutation is written through to
// the database, so role membership survives restarts.
type Provider struct {
	enforcer *casbinv3.Enforcer
}

var _ authz.Provider = (*Provider)(nil)

func NewProvider(persistAdapter persist.Adapter) (*Provider, error) {
	casbinModel, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	enforcer, err := casbinv3.NewEnforcer(casbinModel, persistAdapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)

	err = enforcer.LoadPolicy()
	if err != nil {
		return nil, fmt.Errorf("failed to load stored policy: %w", err)
	}

	return &Provider{enforcer: enforcer}, nil
}

// NewSQLAdapter creates the persistence adapter backing the durable mirror
// of the policy, stored in tableName.
func NewSQLAdapter(db *sql.DB, driverName, tableName string) (*sqladapter.Adapter, error) {
	adapter, err := sqladapter.NewAdapter(db, driverName, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sql adapter: %w", err)
	}

	return adapter, nil
}

func (p *Provider) Enforce(sub, obj, act string) (bool, error) {
	allowed, err := p.enforcer.Enforce(sub, obj, act)
	if err != nil {
		return false, fmt.Errorf("failed to enforce policy: %w", err)
	}

	return allowed, nil
}

func (p *Provider) AddGroupingPolicy(sub, group string) error {
	_, err := p.enforcer.AddGroupingPolicy(sub, group)
	if err != nil {
		return fmt.Errorf("failed to add grouping policy: %w", err)
	}

	return nil
}

func (p *Provider) RemoveGroupingPolicy(sub, group string) error {
	_, err := p.enforcer.RemoveGroupingPolicy(sub, group)
	if err != nil {
		return fmt.Errorf("failed to remove grouping policy: %w", err)
	}

	return nil
}

func (p *Provider) GroupMembers(group string) ([]string, error) {
	members, err := p.enforcer.GetUsersForRole(group)
	if err != nil {
		return nil, fmt.Errorf("failed to get role members: %w", err)
	}

	return members, nil
}

// AddPolicyFromCSV seeds policy and grouping rules from CSV lines,
// skipping rules that already exist so seeding is idempotent.
func (p *Provider) AddPolicyFromCSV(content string) error {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read policy content: %w", err)
	}

	for _, record := range records {
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		if len(record) == 0 || record[0] == "" || strings.HasPrefix(record[0], "#") {
			continue
		}

		err := p.addRecord(record)
		if err != nil {
			return fmt.Errorf("failed to add policy record %v: %w", record, err)
		}
	}

	return nil
}

func (p *Provider) addRecord(record []string) error {
	args := make([]any, 0, len(record)-1)
	for _, field := range record[1:] {
		args = append(args, field)
	}

	switch record[0] {
	case "p":
		exists, err := p.enforcer.HasPolicy(args...)
		if err != nil {
			return fmt.Errorf("failed to check policy: %w", err)
		}

		if !exists {
			_, err = p.enforcer.AddPolicy(args...)
			if err != nil {
				return fmt.Errorf("failed to add policy: %w", err)
			}
		}
	case "g":
		exists, err := p.enforcer.HasGroupingPolicy(args...)
		if err != nil {
			return fmt.Errorf("failed to check grouping policy: %w", err)
		}

		if !exists {
			_, err = p.enforcer.AddGroupingPolicy(args...)
			if err != nil {
				return fmt.Errorf("failed to add grouping policy: %w", err)
			}
		}
	default:
		return UnknownPolicyTypeError{PolicyType: record[0]}
	}

	return nil
}

type UnknownPolicyTypeError struct {
	PolicyType string
}

func (err UnknownPolicyTypeError) Error() string {
	return "unknown policy type: " + err.PolicyType
}
