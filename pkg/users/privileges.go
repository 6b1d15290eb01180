package users

import (
	"fmt"
	"strings"
)

// PrivilegeType is a single grantable privilege.
type PrivilegeType uint8

const (
	PrivilegeCreate PrivilegeType = 1 << iota
	PrivilegeSelect
	PrivilegeInsert
	PrivilegeDrop
	PrivilegeSetting
	PrivilegeGrant
)

var allPrivilegeTypes = []PrivilegeType{
	PrivilegeCreate,
	PrivilegeSelect,
	PrivilegeInsert,
	PrivilegeDrop,
	PrivilegeSetting,
	PrivilegeGrant,
}

func (p PrivilegeType) String() string {
	switch p {
	case PrivilegeCreate:
		return "CREATE"
	case PrivilegeSelect:
		return "SELECT"
	case PrivilegeInsert:
		return "INSERT"
	case PrivilegeDrop:
		return "DROP"
	case PrivilegeSetting:
		return "SET"
	case PrivilegeGrant:
		return "GRANT"
	default:
		return fmt.Sprintf("PrivilegeType(%d)", uint8(p))
	}
}

// ParsePrivilegeType parses a privilege name, case-insensitively.
func ParsePrivilegeType(name string) (PrivilegeType, error) {
	for _, p := range allPrivilegeTypes {
		if strings.EqualFold(p.String(), name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown privilege `%s`", name)
}

// PrivilegeSet is a set of privilege types.
type PrivilegeSet uint8

// AllPrivileges contains every privilege type.
const AllPrivileges = PrivilegeSet(PrivilegeCreate | PrivilegeSelect | PrivilegeInsert | PrivilegeDrop | PrivilegeSetting | PrivilegeGrant)

// NewPrivilegeSet returns a set holding the given types.
func NewPrivilegeSet(types ...PrivilegeType) PrivilegeSet {
	var s PrivilegeSet
	for _, t := range types {
		s |= PrivilegeSet(t)
	}
	return s
}

// Contains returns true if every type is in the set.
func (s PrivilegeSet) Contains(types ...PrivilegeType) bool {
	want := NewPrivilegeSet(types...)
	return s&want == want
}

func (s PrivilegeSet) Union(other PrivilegeSet) PrivilegeSet { return s | other }

func (s PrivilegeSet) Difference(other PrivilegeSet) PrivilegeSet { return s &^ other }

func (s PrivilegeSet) IsEmpty() bool { return s == 0 }

// Types returns the types in the set in a stable order.
func (s PrivilegeSet) Types() []PrivilegeType {
	types := make([]PrivilegeType, 0, len(allPrivilegeTypes))
	for _, p := range allPrivilegeTypes {
		if s.Contains(p) {
			types = append(types, p)
		}
	}
	return types
}

func (s PrivilegeSet) String() string {
	types := s.Types()
	names := make([]string, 0, len(types))
	for _, p := range types {
		names = append(names, p.String())
	}
	return strings.Join(names, ",")
}

// ParsePrivilegeSet parses a comma separated list of privilege names. `ALL`
// stands for every privilege.
func ParsePrivilegeSet(value string) (PrivilegeSet, error) {
	var s PrivilegeSet
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.EqualFold(part, "ALL") {
			s |= AllPrivileges
			continue
		}
		p, err := ParsePrivilegeType(part)
		if err != nil {
			return 0, err
		}
		s |= PrivilegeSet(p)
	}
	return s, nil
}
