package message

// Metadata is a mapping from string keys to tagged Values, attached to
// every Message. Iteration order is not part of the contract; only content
// equality and the access-operation semantics documented per method matter.
type Metadata struct {
	values map[string]Value
}

// NewMetadata returns an empty Metadata ready to use.
func NewMetadata() Metadata {
	return Metadata{values: make(map[string]Value)}
}

func (m *Metadata) ensure() {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
}

// Has reports whether key is present.
func (m Metadata) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Get is the typed-get-or-throw accessor: it returns the stored Value or
// ErrMetadataMissingKey if key is absent. Callers needing a specific kind
// call the Value's typed accessor on the result.
func (m Metadata) Get(key string) (Value, error) {
	v, ok := m.values[key]
	if !ok {
		return Value{}, &ErrMetadataMissingKey{Key: key}
	}
	return v, nil
}

// GetOpt is the typed-get-optional accessor: ok is false if key is absent,
// never an error.
func (m Metadata) GetOpt(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// GetString, GetInt, GetBool, GetDouble are convenience wrappers combining
// Get with the Value's typed accessor, the common case in action code.
func (m Metadata) GetString(key string) (string, error) {
	v, err := m.Get(key)
	if err != nil {
		return "", err
	}
	return v.String()
}

func (m Metadata) GetInt(key string) (int64, error) {
	v, err := m.Get(key)
	if err != nil {
		return 0, err
	}
	return v.Int()
}

func (m Metadata) GetBool(key string) (bool, error) {
	v, err := m.Get(key)
	if err != nil {
		return false, err
	}
	return v.Bool()
}

// GetBoolOr returns the bool stored at key, or def if the key is absent or
// not a bool. Used for optional flags like "toAllServers".
func (m Metadata) GetBoolOr(key string, def bool) bool {
	v, ok := m.values[key]
	if !ok {
		return def
	}
	b, err := v.Bool()
	if err != nil {
		return def
	}
	return b
}

// Set is insert-or-assign.
func (m *Metadata) Set(key string, v Value) {
	m.ensure()
	m.values[key] = v
}

// TrySet is insert-if-absent: it returns true if the value was inserted,
// false if key was already present (in which case the existing value is
// left untouched).
func (m *Metadata) TrySet(key string, v Value) bool {
	m.ensure()
	if _, ok := m.values[key]; ok {
		return false
	}
	m.values[key] = v
	return true
}

// Merge moves every key present in other but absent from m into m. Keys
// that already exist in m are left alone and remain in other. Both m and
// other are modified: migrated keys are deleted from other.
func (m *Metadata) Merge(other *Metadata) {
	m.ensure()
	if other.values == nil {
		return
	}
	for k, v := range other.values {
		if _, exists := m.values[k]; !exists {
			m.values[k] = v
			delete(other.values, k)
		}
	}
}

// Update overwrites m with every key/value in other (other wins on
// collision) and returns a Metadata holding the values that were shadowed,
// i.e. the prior value of every key that other overwrote. Keys that other
// inserted fresh are not present in the returned map.
func (m *Metadata) Update(other Metadata) Metadata {
	m.ensure()
	shadowed := NewMetadata()
	for k, v := range other.values {
		if prev, exists := m.values[k]; exists {
			shadowed.values[k] = prev
		}
		m.values[k] = v
	}
	return shadowed
}

// Keys returns the set of keys currently stored, in no particular order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}

// Len reports the number of entries.
func (m Metadata) Len() int {
	return len(m.values)
}

// Clone returns a deep-enough copy: top-level entries are copied into a new
// map, but Value itself is treated as immutable and shared.
func (m Metadata) Clone() Metadata {
	out := NewMetadata()
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// Equal reports whether m and other hold the same keys and values.
func (m Metadata) Equal(other Metadata) bool {
	if len(m.values) != len(other.values) {
		return false
	}
	for k, v := range m.values {
		ov, ok := other.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// ErrMetadataMissingKey is returned by Get when the requested key isn't
// present. It is the MetadataError kind named in spec.md §7: missing-key
// errors propagate up the action chain and abort processing of that one
// message.
type ErrMetadataMissingKey struct {
	Key string
}

func (e *ErrMetadataMissingKey) Error() string {
	return "metadata: missing key \"" + e.Key + "\""
}
