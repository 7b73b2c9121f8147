package users

import (
	"fmt"
	"strings"
)

// Privilege is the access level of a registered user.
//
// The set is closed: only PrivilegeStandard and PrivilegeAdmin exist, and any
// other value is rejected both at registration and when a persisted store is
// loaded.
type Privilege string

const (
	// PrivilegeStandard grants access to the user's own sandbox.
	PrivilegeStandard Privilege = "user"

	// PrivilegeAdmin additionally allows deleting users.
	PrivilegeAdmin Privilege = "admin"
)

// ParsePrivilege converts the wire/persisted representation into a Privilege.
func ParsePrivilege(s string) (Privilege, error) {
	switch Privilege(s) {
	case PrivilegeStandard, PrivilegeAdmin:
		return Privilege(s), nil
	default:
		return "", fmt.Errorf("unknown privilege %q", s)
	}
}

// IsValid reports whether p is one of the known privileges.
func (p Privilege) IsValid() bool {
	return p == PrivilegeStandard || p == PrivilegeAdmin
}

func (p Privilege) String() string {
	return string(p)
}

// Record is a single registered user.
type Record struct {
	Username  string
	Password  string
	Privilege Privilege
}

// Snapshot is the full persisted content of a user store.
//
// Backends load and save whole snapshots; the Store never issues partial
// updates.
type Snapshot struct {
	Passwords  map[string]string
	Privileges map[string]Privilege
}

// NewSnapshot returns an empty, initialized snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Passwords:  make(map[string]string),
		Privileges: make(map[string]Privilege),
	}
}

// Validate checks that every user has both a password and a known privilege.
func (s *Snapshot) Validate() error {
	for name := range s.Passwords {
		if _, ok := s.Privileges[name]; !ok {
			return corruptError("user %q has a password but no privilege", name)
		}
	}
	for name, priv := range s.Privileges {
		if _, ok := s.Passwords[name]; !ok {
			return corruptError("user %q has a privilege but no password", name)
		}
		if !priv.IsValid() {
			return corruptError("user %q has unknown privilege %q", name, priv)
		}
		if err := ValidateUsername(name); err != nil {
			return corruptError("user %q: %v", name, err)
		}
	}
	return nil
}

// Records returns the snapshot as a map of records keyed by username.
func (s *Snapshot) Records() map[string]Record {
	records := make(map[string]Record, len(s.Passwords))
	for name, pw := range s.Passwords {
		records[name] = Record{
			Username:  name,
			Password:  pw,
			Privilege: s.Privileges[name],
		}
	}
	return records
}

// snapshotOf builds a snapshot from a record map.
func snapshotOf(records map[string]Record) *Snapshot {
	snap := NewSnapshot()
	for name, rec := range records {
		snap.Passwords[name] = rec.Password
		snap.Privileges[name] = rec.Privilege
	}
	return snap
}

// ValidateUsername checks that name can be used as a sandbox directory name.
//
// A username must be a single, non-hidden path component: no separators, not
// "." or "..", no leading dot and no NUL bytes.
func ValidateUsername(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty username")
	case name == "." || name == "..":
		return fmt.Errorf("username %q is reserved", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("username %q must not start with a dot", name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("username %q contains a path separator", name)
	case strings.ContainsAny(name, " \t\r\n"):
		return fmt.Errorf("username %q contains whitespace", name)
	}
	return nil
}
