package backend

// NopBackend is the no-persistence engine: a single head, no commit support
// at all — grounded on original_source's nop.py NopBackend/NopVersion/
// NopVnode verbatim (field storage there is already a plain map, so no
// dnode layer is warranted here).
type NopBackend struct {
	head *nopVersion
}

// NewNopBackend returns a backend with no head yet; the first Branch call
// creates it.
func NewNopBackend() *NopBackend {
	return &NopBackend{}
}

func (b *NopBackend) IsVnode(value any) bool {
	_, ok := value.(*NopVnode)
	return ok
}

func (b *NopBackend) Commit(vnodes []Vnode) (Version, []Vnode, error) {
	if _, err := validateCommitInput(b, vnodes); err != nil {
		return nil, nil, err
	}
	return nil, nil, unsupported("NopBackend does not support commit")
}

func (b *NopBackend) Branch(vnodes []Vnode) (Version, []Vnode, error) {
	if err := validateBranchInput(b, vnodes); err != nil {
		return nil, nil, err
	}
	if len(vnodes) > 0 {
		return nil, nil, unsupported("NopBackend does not support branching from a commit")
	}
	if b.head != nil {
		return nil, nil, invariant("NopBackend only supports a single head")
	}
	b.head = &nopVersion{backend: b}
	return b.head, nil, nil
}

type nopVersion struct {
	backend Backend
}

func (v *nopVersion) Backend() Backend { return v.backend }
func (v *nopVersion) IsHead() bool     { return true }
func (v *nopVersion) IsCommit() bool   { return false }
func (v *nopVersion) NewNode() (Vnode, error) {
	return &NopVnode{version: v, values: map[string]any{}}, nil
}

// NopVnode stores fields in a plain map; there is no history to preserve.
type NopVnode struct {
	version *nopVersion
	values  map[string]any
}

func (v *NopVnode) Backend() Backend { return v.version.Backend() }
func (v *NopVnode) Version() Version { return v.version }

func (v *NopVnode) Get(field string) (any, error) {
	val, ok := v.values[field]
	if !ok {
		return nil, notFound("field %q was never set", field)
	}
	return val, nil
}

func (v *NopVnode) Set(field string, value any) error {
	if _, err := resolveSetValue(v.Backend(), v.version, value); err != nil {
		return err
	}
	v.values[field] = value
	return nil
}

func (v *NopVnode) Delete(field string) error {
	if _, ok := v.values[field]; !ok {
		return notFound("field %q was never set", field)
	}
	delete(v.values, field)
	return nil
}

func (v *NopVnode) Commit() (Vnode, error) { return commitSingle(v) }
func (v *NopVnode) Branch() (Vnode, error) { return branchSingle(v) }

// Equal is plain pointer comparison: NopVnode fields store child vnodes
// directly, so Get never allocates a new wrapper for an existing node.
func (v *NopVnode) Equal(other Vnode) bool {
	o, ok := other.(*NopVnode)
	return ok && o == v
}
