package actor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Missing is the sentinel value returned by KVState reads that resolve to an
// absent path. It is distinct from a stored nil/null value.
type Missing struct{}

// IsMissing reports whether v is the Missing sentinel.
func IsMissing(v any) bool {
	_, ok := v.(Missing)
	return ok
}

// missingValue is the single shared Missing instance.
var missingValue any = Missing{}

// pathSegment is one dotted component of a KV-State path, optionally
// carrying an array index (either "name[i]" or a bare "[i]").
type pathSegment struct {
	name     string
	hasIndex bool
	index    int
}

// parsePath parses the XPath-lite grammar described in spec.md §4.4:
//
//	path    := ["$", "."]? segment ("." segment)*
//	segment := name | name "[" index "]" | "[" index "]"
//	index   := non-negative integer
func parsePath(path string) ([]pathSegment, error) {
	trimmed := strings.TrimPrefix(path, "$.")
	trimmed = strings.TrimPrefix(trimmed, "$")
	trimmed = strings.TrimPrefix(trimmed, ".")

	if trimmed == "" {
		return nil, nil
	}

	parts := strings.Split(trimmed, ".")
	segs := make([]pathSegment, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment in %q",
				ErrKVInvalidPath, path)
		}

		name := part
		hasIndex := false
		index := -1

		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, fmt.Errorf("%w: malformed index in %q",
					ErrKVInvalidPath, path)
			}

			name = part[:open]
			idxStr := part[open+1 : len(part)-1]

			n, err := strconv.Atoi(idxStr)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad index %q in %q",
					ErrKVInvalidPath, idxStr, path)
			}

			hasIndex = true
			index = n
		}

		segs = append(segs, pathSegment{
			name:     name,
			hasIndex: hasIndex,
			index:    index,
		})
	}

	return segs, nil
}

// KVState is the per-actor dynamic key-value tree described in spec.md §4.4.
// The root is always a mapping. Reads of a missing path return the Missing
// sentinel rather than an error; writes auto-vivify intermediate mappings and
// pad sequences with nil elements.
//
// KVState is safe for concurrent use, though in normal operation an actor's
// KVState is only ever touched from its own mailbox consumer, which already
// serializes access (spec.md §3 invariant).
type KVState struct {
	mu   sync.Mutex
	root map[string]any
}

// NewKVState creates an empty KVState whose root is an empty mapping.
func NewKVState() *KVState {
	return &KVState{root: make(map[string]any)}
}

// Select reads the value at path, returning the Missing sentinel if any
// segment along the way is absent.
func (s *KVState) Select(path string) any {
	segs, err := parsePath(path)
	if err != nil {
		return missingValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cur any = s.root
	for _, seg := range segs {
		cur = descendRead(cur, seg)
		if IsMissing(cur) {
			return missingValue
		}
	}

	return cur
}

// descendRead resolves a single path segment against cur, returning Missing
// if the segment cannot be resolved.
func descendRead(cur any, seg pathSegment) any {
	if seg.name != "" {
		m, ok := cur.(map[string]any)
		if !ok {
			return missingValue
		}

		v, ok := m[seg.name]
		if !ok {
			return missingValue
		}

		cur = v
	}

	if seg.hasIndex {
		arr, ok := cur.([]any)
		if !ok {
			return missingValue
		}

		if seg.index < 0 || seg.index >= len(arr) {
			return missingValue
		}

		cur = arr[seg.index]
	}

	return cur
}

// Has reports whether path resolves to a non-missing, non-nil value.
func (s *KVState) Has(path string) bool {
	v := s.Select(path)
	return !IsMissing(v) && v != nil
}

// Put writes value at path, creating intermediate mapping nodes and padding
// sequences with nil elements as needed (spec.md §4.4 "Write"). It returns
// ErrKVTypeConflict if an intermediate node exists and is incompatible with
// the segment being written through it.
func (s *KVState) Put(path string, value any) error {
	segs, err := parsePath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrKVInvalidPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return putInto(s.root, segs, value)
}

// putInto walks segs from root (always a mapping, per the KV-State
// invariant that the root node is a mapping), creating/resizing containers
// as required, and assigns value at the final segment.
func putInto(root map[string]any, segs []pathSegment, value any) error {
	var container any = root

	// store writes a replacement for container back into its parent, so a
	// sequence grown by a bare "[i]" segment stays attached to the tree.
	store := func(any) {}

	for i, seg := range segs {
		last := i == len(segs)-1

		if seg.name != "" {
			m, ok := container.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: expected mapping at %q",
					ErrKVTypeConflict, seg.name)
			}

			if last && !seg.hasIndex {
				m[seg.name] = value
				return nil
			}

			child, exists := m[seg.name]
			if !exists || child == nil {
				if seg.hasIndex {
					child = make([]any, 0)
				} else {
					child = make(map[string]any)
				}
				m[seg.name] = child
			}

			container = child
			store = func(v any) { m[seg.name] = v }

			if seg.hasIndex {
				arr, ok := container.([]any)
				if !ok {
					return fmt.Errorf(
						"%w: expected sequence at %q",
						ErrKVTypeConflict, seg.name,
					)
				}

				arr = growSlice(arr, seg.index)
				m[seg.name] = arr

				if last {
					arr[seg.index] = value
					return nil
				}

				next := arr[seg.index]
				if next == nil {
					next = make(map[string]any)
					arr[seg.index] = next
				}

				container = next
				idx := seg.index
				store = func(v any) { arr[idx] = v }
			}

			continue
		}

		// Bare "[i]" segment: container itself must be a sequence.
		arr, ok := container.([]any)
		if !ok {
			return fmt.Errorf("%w: expected sequence", ErrKVTypeConflict)
		}

		arr = growSlice(arr, seg.index)
		store(arr)

		if last {
			arr[seg.index] = value
			return nil
		}

		next := arr[seg.index]
		if next == nil {
			next = make(map[string]any)
			arr[seg.index] = next
		}

		container = next
		idx := seg.index
		store = func(v any) { arr[idx] = v }
	}

	return nil
}

// growSlice extends arr with nil elements so that index is addressable.
func growSlice(arr []any, index int) []any {
	if index < 0 {
		return arr
	}

	for len(arr) <= index {
		arr = append(arr, nil)
	}

	return arr
}

// Remove deletes the final name of path from its parent mapping. It returns
// whether a removal actually occurred. Removal of an array element is not
// supported (spec.md §4.4 "Remove").
func (s *KVState) Remove(path string) bool {
	segs, err := parsePath(path)
	if err != nil || len(segs) == 0 {
		return false
	}

	last := segs[len(segs)-1]
	if last.name == "" || last.hasIndex {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cur any = s.root
	for _, seg := range segs[:len(segs)-1] {
		cur = descendRead(cur, seg)
		if IsMissing(cur) {
			return false
		}
	}

	m, ok := cur.(map[string]any)
	if !ok {
		return false
	}

	if _, exists := m[last.name]; !exists {
		return false
	}

	delete(m, last.name)
	return true
}

// GetString reads path as a string, coercing scalars per JSON rules and
// falling back to def on missing/null/incompatible values.
func (s *KVState) GetString(path string, def string) string {
	v := s.Select(path)
	if IsMissing(v) || v == nil {
		return def
	}

	switch t := v.(type) {
	case string:
		return t
	case bool, float64, int, int64:
		return fmt.Sprintf("%v", t)
	default:
		return def
	}
}

// GetInt reads path as an int, coercing JSON numeric/string values.
func (s *KVState) GetInt(path string, def int) int {
	return int(s.GetLong(path, int64(def)))
}

// GetLong reads path as an int64, coercing JSON numeric/string values.
func (s *KVState) GetLong(path string, def int64) int64 {
	v := s.Select(path)
	if IsMissing(v) || v == nil {
		return def
	}

	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// GetDouble reads path as a float64, coercing JSON numeric/string values.
func (s *KVState) GetDouble(path string, def float64) float64 {
	v := s.Select(path)
	if IsMissing(v) || v == nil {
		return def
	}

	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// GetBool reads path as a bool, coercing JSON-ish string/number values.
func (s *KVState) GetBool(path string, def bool) bool {
	v := s.Select(path)
	if IsMissing(v) || v == nil {
		return def
	}

	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return def
		}
		return b
	case float64:
		return t != 0
	default:
		return def
	}
}

// ToJSON renders the subtree at path (or the whole tree when path is empty)
// as pretty-printed JSON.
func (s *KVState) ToJSON(path string) (string, error) {
	var v any
	if path == "" {
		s.mu.Lock()
		v = s.root
		s.mu.Unlock()
	} else {
		v = s.Select(path)
		if IsMissing(v) {
			v = nil
		}
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// ToYAML renders the subtree at path (or the whole tree when path is empty)
// as YAML.
func (s *KVState) ToYAML(path string) (string, error) {
	var v any
	if path == "" {
		s.mu.Lock()
		v = s.root
		s.mu.Unlock()
	} else {
		v = s.Select(path)
		if IsMissing(v) {
			v = nil
		}
	}

	b, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
