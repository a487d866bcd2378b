package store

import "encoding/json"

// Canonical JSON encode/decode for the three entities whose rows carry a
// json column alongside indexed columns (spec §6). Decoding captures any
// field this build doesn't recognize into an `unknown` side-channel and
// re-encoding merges it back in, so round-tripping through a newer schema
// never silently drops data (the round-trip law in spec §8).

type userAlias User

func (u *User) MarshalJSON() ([]byte, error) {
	return marshalWithUnknown((*userAlias)(u), u.unknown)
}

func (u *User) UnmarshalJSON(data []byte) error {
	known, unknown, err := unmarshalWithUnknown(data, (*userAlias)(u))
	if err != nil {
		return err
	}
	_ = known
	u.unknown = unknown
	return nil
}

type applicationAlias Application

func (a *Application) MarshalJSON() ([]byte, error) {
	return marshalWithUnknown((*applicationAlias)(a), a.unknown)
}

func (a *Application) UnmarshalJSON(data []byte) error {
	_, unknown, err := unmarshalWithUnknown(data, (*applicationAlias)(a))
	if err != nil {
		return err
	}
	a.unknown = unknown
	return nil
}

type jobAlias Job

func (j *Job) MarshalJSON() ([]byte, error) {
	return marshalWithUnknown((*jobAlias)(j), j.unknown)
}

func (j *Job) UnmarshalJSON(data []byte) error {
	_, unknown, err := unmarshalWithUnknown(data, (*jobAlias)(j))
	if err != nil {
		return err
	}
	j.unknown = unknown
	return nil
}

// marshalWithUnknown encodes v (a pointer to an alias of the public
// struct, so its own Marshal/UnmarshalJSON methods don't recurse) and
// merges in any previously-unrecognized fields, known fields taking
// precedence.
func marshalWithUnknown(v any, unknown map[string]json.RawMessage) ([]byte, error) {
	known, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(unknown) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(unknown)+8)
	for k, raw := range unknown {
		merged[k] = raw
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	for k, raw := range knownMap {
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// unmarshalWithUnknown decodes data into v and returns the set of
// top-level keys present in data but not produced when v is re-marshaled
// (i.e. fields unrecognized by the current schema).
func unmarshalWithUnknown(data []byte, v any) (map[string]json.RawMessage, map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, nil, err
	}

	reEncoded, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(reEncoded, &known); err != nil {
		return nil, nil, err
	}

	unknown := make(map[string]json.RawMessage)
	for k, raw := range all {
		if _, ok := known[k]; !ok {
			unknown[k] = raw
		}
	}
	return known, unknown, nil
}
