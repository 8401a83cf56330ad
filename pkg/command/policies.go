package command

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultSoftDelete is the retention applied when a policy omits it.
	DefaultSoftDelete = 36500 * day

	recoverabilityEnabled  = "Enabled"
	recoverabilityDisabled = "Disabled"
)

// retentionPolicyRecord is the JSON payload of a retention policy. Fields stay
// textual until converted by toTyped.
type retentionPolicyRecord struct {
	SoftDeletePeriod *string `json:"SoftDeletePeriod,omitempty"`
	SoftDelete       *string `json:"SoftDelete,omitempty"`
	Recoverability   *string `json:"Recoverability,omitempty"`
}

func (r retentionPolicyRecord) toTyped() (time.Duration, bool, error) {
	softDeleteField, softDeleteText := "SoftDeletePeriod", FormatTimespan(DefaultSoftDelete)
	switch {
	case r.SoftDeletePeriod != nil:
		softDeleteText = *r.SoftDeletePeriod
	case r.SoftDelete != nil:
		softDeleteField, softDeleteText = "SoftDelete", *r.SoftDelete
	}
	softDelete, err := ParseTimespan(softDeleteText)
	if err != nil {
		return 0, false, &PolicyDecodeError{Policy: "retention", Field: softDeleteField, Value: softDeleteText, Err: err}
	}

	recoverability := true
	if r.Recoverability != nil {
		switch {
		case strings.EqualFold(*r.Recoverability, recoverabilityEnabled):
		case strings.EqualFold(*r.Recoverability, recoverabilityDisabled):
			recoverability = false
		default:
			return 0, false, &PolicyDecodeError{Policy: "retention", Field: "Recoverability", Value: *r.Recoverability}
		}
	}
	return softDelete, recoverability, nil
}

// DecodeRetentionPolicy decodes a retention policy JSON payload, applying the
// engine defaults for omitted fields.
func DecodeRetentionPolicy(payload string) (softDelete time.Duration, recoverability bool, err error) {
	var record retentionPolicyRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return 0, false, &PolicyDecodeError{Policy: "retention", Err: err}
	}
	return record.toTyped()
}

// EncodeRetentionPolicy renders the JSON payload of a retention policy.
func EncodeRetentionPolicy(softDelete time.Duration, recoverability bool) string {
	period := FormatTimespan(softDelete)
	flag := recoverabilityDisabled
	if recoverability {
		flag = recoverabilityEnabled
	}
	payload, _ := json.MarshalIndent(retentionPolicyRecord{
		SoftDeletePeriod: &period,
		Recoverability:   &flag,
	}, "", "  ")
	return string(payload)
}

// AlterRetentionPolicy models ".alter <table|database> E policy retention ```{...}```".
type AlterRetentionPolicy struct {
	EntityType     EntityType
	EntityName     EntityName
	SoftDelete     time.Duration
	Recoverability bool
}

// NewAlterRetentionPolicy validates the entity type.
func NewAlterRetentionPolicy(entityType EntityType, name EntityName, softDelete time.Duration, recoverability bool) (*AlterRetentionPolicy, error) {
	if err := checkPolicyEntity(entityType); err != nil {
		return nil, err
	}
	return &AlterRetentionPolicy{
		EntityType:     entityType,
		EntityName:     name,
		SoftDelete:     softDelete,
		Recoverability: recoverability,
	}, nil
}

func (c *AlterRetentionPolicy) Kind() Kind               { return KindAlterRetentionPolicy }
func (c *AlterRetentionPolicy) Equal(other Command) bool { return equalCommands(c, other) }
func (c *AlterRetentionPolicy) Hash() uint64             { return hashCommand(c) }
func (c *AlterRetentionPolicy) String() string           { return c.Script() }

func (c *AlterRetentionPolicy) Script() string {
	return ".alter " + string(c.EntityType) + " " + c.EntityName.Script() + " policy retention\n" +
		fence + "\n" + EncodeRetentionPolicy(c.SoftDelete, c.Recoverability) + "\n" + fence
}

func (c *AlterRetentionPolicy) semanticKey() string {
	var k keyWriter
	k.str(string(c.EntityType))
	k.name(c.EntityName)
	k.str(FormatTimespan(c.SoftDelete))
	k.flag(c.Recoverability)
	return k.String()
}

// DeleteRetentionPolicy models ".delete <table|database> E policy retention".
type DeleteRetentionPolicy struct {
	EntityType EntityType
	EntityName EntityName
}

// NewDeleteRetentionPolicy validates the entity type.
func NewDeleteRetentionPolicy(entityType EntityType, name EntityName) (*DeleteRetentionPolicy, error) {
	if err := checkPolicyEntity(entityType); err != nil {
		return nil, err
	}
	return &DeleteRetentionPolicy{EntityType: entityType, EntityName: name}, nil
}

func (c *DeleteRetentionPolicy) Kind() Kind               { return KindDeleteRetentionPolicy }
func (c *DeleteRetentionPolicy) Equal(other Command) bool { return equalCommands(c, other) }
func (c *DeleteRetentionPolicy) Hash() uint64             { return hashCommand(c) }
func (c *DeleteRetentionPolicy) String() string           { return c.Script() }

func (c *DeleteRetentionPolicy) Script() string {
	return ".delete " + string(c.EntityType) + " " + c.EntityName.Script() + " policy retention"
}

func (c *DeleteRetentionPolicy) semanticKey() string {
	var k keyWriter
	k.str(string(c.EntityType))
	k.name(c.EntityName)
	return k.String()
}

func checkPolicyEntity(entityType EntityType) error {
	switch entityType {
	case EntityTypeDatabase, EntityTypeTable:
		return nil
	default:
		return &UnsupportedCommandKindError{Keyword: "policy retention", Kind: fmt.Sprintf("on entity type '%s'", entityType)}
	}
}

// parsePolicyTarget parses "<table|database> E policy <kind>" and returns the
// policy kind word.
func parsePolicyTarget(s *scanner, keyword string) (EntityType, EntityName, string, error) {
	var entityType EntityType
	switch word := strings.ToLower(s.word()); word {
	case "table":
		entityType = EntityTypeTable
	case "database":
		entityType = EntityTypeDatabase
	default:
		return "", EntityName{}, "", &UnsupportedCommandKindError{Keyword: keyword, Kind: word + " policy"}
	}
	name, err := s.name()
	if err != nil {
		return "", EntityName{}, "", err
	}
	if err := s.expectWord("policy"); err != nil {
		return "", EntityName{}, "", err
	}
	return entityType, name, strings.ToLower(s.word()), nil
}

func parseAlterRetentionPolicy(s *scanner, entityType EntityType, name EntityName) (Command, error) {
	var payload string
	switch s.peek() {
	case '`':
		text, err := s.fenced()
		if err != nil {
			return nil, err
		}
		payload = text
	case '"', '\'', '@':
		text, err := s.quoted()
		if err != nil {
			return nil, err
		}
		payload = text.text
	default:
		return nil, s.errorf("expected a retention policy payload")
	}
	softDelete, recoverability, err := DecodeRetentionPolicy(payload)
	if err != nil {
		return nil, err
	}
	return NewAlterRetentionPolicy(entityType, name, softDelete, recoverability)
}
