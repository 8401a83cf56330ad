package model

import (
	"strings"
	"time"

	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
)

// PolicyKind names a family of policies.
type PolicyKind string

const PolicyKindRetention PolicyKind = "retention"

// PolicyKey identifies a policy: its kind and the entity it is attached to.
type PolicyKey struct {
	Kind       PolicyKind
	EntityType command.EntityType
	EntityName command.EntityName
}

func (k PolicyKey) compare(other PolicyKey) int {
	if c := strings.Compare(string(k.Kind), string(other.Kind)); c != 0 {
		return c
	}
	if c := strings.Compare(string(k.EntityType), string(other.EntityType)); c != 0 {
		return c
	}
	return k.EntityName.Compare(other.EntityName)
}

func (k PolicyKey) String() string {
	return string(k.EntityType) + " " + k.EntityName.Script() + " policy " + string(k.Kind)
}

// PolicyModel is the folded state of one policy.
type PolicyModel interface {
	Key() PolicyKey
	Equal(other PolicyModel) bool
}

// RetentionPolicyModel is a table or database retention policy.
type RetentionPolicyModel struct {
	entityType     command.EntityType
	entityName     command.EntityName
	softDelete     time.Duration
	recoverability bool
}

// NewRetentionPolicyModel builds a retention policy model.
func NewRetentionPolicyModel(entityType command.EntityType, name command.EntityName, softDelete time.Duration, recoverability bool) *RetentionPolicyModel {
	return &RetentionPolicyModel{
		entityType:     entityType,
		entityName:     name,
		softDelete:     softDelete,
		recoverability: recoverability,
	}
}

func (p *RetentionPolicyModel) Key() PolicyKey {
	return PolicyKey{Kind: PolicyKindRetention, EntityType: p.entityType, EntityName: p.entityName}
}

func (p *RetentionPolicyModel) SoftDelete() time.Duration { return p.softDelete }
func (p *RetentionPolicyModel) Recoverability() bool      { return p.recoverability }

func (p *RetentionPolicyModel) Equal(other PolicyModel) bool {
	o, ok := other.(*RetentionPolicyModel)
	if !ok || p == nil || o == nil {
		return ok && p == nil && o == nil
	}
	return p.Key() == o.Key() &&
		p.softDelete.Truncate(100*time.Nanosecond) == o.softDelete.Truncate(100*time.Nanosecond) &&
		p.recoverability == o.recoverability
}

// AlterCommand renders the policy as a full replace.
func (p *RetentionPolicyModel) AlterCommand() *command.AlterRetentionPolicy {
	return &command.AlterRetentionPolicy{
		EntityType:     p.entityType,
		EntityName:     p.entityName,
		SoftDelete:     p.softDelete,
		Recoverability: p.recoverability,
	}
}
