package backend

// CopyBackend is the reference engine: every commit and every branch
// performs a transitive deep copy of the reachable subgraph of the given
// vnodes, restoring pointer identity within the copy via a node map —
// grounded on original_source's copy.py CopyBackend/CopyVersion/CopyVnode.
// It is the P6 oracle every split variant is checked against.
type CopyBackend struct{}

// NewCopyBackend returns a backend ready to create independent heads.
func NewCopyBackend() *CopyBackend {
	return &CopyBackend{}
}

func (b *CopyBackend) IsVnode(value any) bool {
	_, ok := value.(*CopyVnode)
	return ok
}

func (b *CopyBackend) Commit(vnodes []Vnode) (Version, []Vnode, error) {
	if _, err := validateCommitInput(b, vnodes); err != nil {
		return nil, nil, err
	}
	commit := &CopyVersion{backend: b, isHead: false}
	result, err := b.clone(vnodes, commit)
	if err != nil {
		return nil, nil, err
	}
	return commit, result, nil
}

func (b *CopyBackend) Branch(vnodes []Vnode) (Version, []Vnode, error) {
	if err := validateBranchInput(b, vnodes); err != nil {
		return nil, nil, err
	}
	head := &CopyVersion{backend: b, isHead: true}
	result, err := b.clone(vnodes, head)
	if err != nil {
		return nil, nil, err
	}
	return head, result, nil
}

// clone groups vnodes by their current version (vnodes may come from several
// distinct commits at once — CopyBackend is naturally confluent, there is no
// shared timeline to protect), clones each group together with every vnode
// reachable from it through fields, under its own node map so that shared
// structure within one source version is deduplicated in the copy, then
// rewrites every field that pointed at a cloned vnode to point at its clone
// instead — grounded on copy.py's CopyBackend._clone. Fields only hold vnodes
// of the setter's own version (invariant V3), so every reference resolves
// within its group's node map.
func (b *CopyBackend) clone(vnodes []Vnode, version *CopyVersion) ([]Vnode, error) {
	byVersion := map[Version][]*CopyVnode{}
	for _, vn := range vnodes {
		cv := vn.(*CopyVnode)
		byVersion[cv.version] = append(byVersion[cv.version], cv)
	}

	// One node map per source version, exactly like _clone's node_maps dict:
	// a field's cross-reference only resolves against the node map of its own
	// vnode's version, never against a different group's.
	nodeMaps := map[Version]map[*CopyVnode]*CopyVnode{}
	for srcVersion, group := range byVersion {
		nodeMap := make(map[*CopyVnode]*CopyVnode, len(group))
		pending := append([]*CopyVnode(nil), group...)
		for len(pending) > 0 {
			cv := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			if _, seen := nodeMap[cv]; seen {
				continue
			}
			nodeMap[cv] = &CopyVnode{version: version, values: map[string]any{}}
			for _, val := range cv.values {
				if inner, ok := val.(*CopyVnode); ok {
					pending = append(pending, inner)
				}
			}
		}
		nodeMaps[srcVersion] = nodeMap
	}
	for srcVersion := range byVersion {
		nodeMap := nodeMaps[srcVersion]
		for old, fresh := range nodeMap {
			for field, val := range old.values {
				if inner, ok := val.(*CopyVnode); ok {
					mapped, ok := nodeMap[inner]
					if !ok {
						return nil, invariant("field %q of a cloned vnode references a vnode outside its cloned batch", field)
					}
					fresh.values[field] = mapped
					continue
				}
				fresh.values[field] = val
			}
		}
	}

	result := make([]Vnode, len(vnodes))
	for i, vn := range vnodes {
		cv := vn.(*CopyVnode)
		result[i] = nodeMaps[cv.version][cv]
	}
	return result, nil
}

// CopyVersion is either a head or a commit; both kinds just tag a batch of
// CopyVnodes, with no token of their own (CopyBackend never compares
// versions, only object identity).
type CopyVersion struct {
	backend *CopyBackend
	isHead  bool
}

func (v *CopyVersion) Backend() Backend { return v.backend }
func (v *CopyVersion) IsHead() bool     { return v.isHead }
func (v *CopyVersion) IsCommit() bool   { return !v.isHead }

func (v *CopyVersion) NewNode() (Vnode, error) {
	if !v.isHead {
		return nil, invariant("cannot create a node from a commit version")
	}
	return &CopyVnode{version: v, values: map[string]any{}}, nil
}

// CopyVnode stores fields in a plain map, same as NopVnode; the persistence
// here lives entirely in how Commit/Branch clone, not in the vnode itself.
type CopyVnode struct {
	version *CopyVersion
	values  map[string]any
}

func (v *CopyVnode) Backend() Backend { return v.version.Backend() }
func (v *CopyVnode) Version() Version { return v.version }

func (v *CopyVnode) Get(field string) (any, error) {
	val, ok := v.values[field]
	if !ok {
		return nil, notFound("field %q was never set", field)
	}
	return val, nil
}

func (v *CopyVnode) Set(field string, value any) error {
	if !v.version.IsHead() {
		return invariant("can only set fields on a head version")
	}
	if _, err := resolveSetValue(v.Backend(), v.version, value); err != nil {
		return err
	}
	v.values[field] = value
	return nil
}

func (v *CopyVnode) Delete(field string) error {
	if !v.version.IsHead() {
		return invariant("can only delete fields on a head version")
	}
	if _, ok := v.values[field]; !ok {
		return notFound("field %q was never set", field)
	}
	delete(v.values, field)
	return nil
}

func (v *CopyVnode) Commit() (Vnode, error) { return commitSingle(v) }
func (v *CopyVnode) Branch() (Vnode, error) { return branchSingle(v) }

// Equal is plain pointer comparison: clone already rewrites every
// cross-reference to a fully resolved *CopyVnode, so Get never reallocates.
func (v *CopyVnode) Equal(other Vnode) bool {
	o, ok := other.(*CopyVnode)
	return ok && o == v
}
