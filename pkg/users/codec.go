package users

import (
	"encoding/json"
	"fmt"
)

// document is the on-disk JSON layout shared by the file and S3 backends:
//
//	{"passwords":[{"alice":"pw"}],"privileges":[{"alice":"admin"}]}
//
// Each top-level key holds a single-element list wrapping the actual map.
// The wrapping is kept so stores written by earlier deployments stay readable.
type document struct {
	Passwords  []map[string]string `json:"passwords"`
	Privileges []map[string]string `json:"privileges"`
}

// EncodeSnapshot serializes snap into the persisted JSON document.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	passwords := make(map[string]string, len(snap.Passwords))
	for name, pw := range snap.Passwords {
		passwords[name] = pw
	}
	privileges := make(map[string]string, len(snap.Privileges))
	for name, priv := range snap.Privileges {
		privileges[name] = string(priv)
	}

	data, err := json.Marshal(document{
		Passwords:  []map[string]string{passwords},
		Privileges: []map[string]string{privileges},
	})
	if err != nil {
		return nil, fmt.Errorf("encode user store: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses the persisted JSON document and validates it.
//
// Multiple list elements are merged in order; an empty list is an empty store.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, corruptError("decode user store: %v", err)
	}

	snap := NewSnapshot()
	for _, m := range doc.Passwords {
		for name, pw := range m {
			snap.Passwords[name] = pw
		}
	}
	for _, m := range doc.Privileges {
		for name, priv := range m {
			snap.Privileges[name] = Privilege(priv)
		}
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}
