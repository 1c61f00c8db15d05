package property

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Owner holds an ordered list of properties. Processors and composite
// properties are owners; together they form a tree.
type Owner interface {
	Identifier() string
	Path() string
	Properties() []Property
	Property(identifier string) Property
	PropertyModified(p Property)
	AddOwnerObserver(o OwnerObserver)
	RemoveOwnerObserver(o OwnerObserver)
}

// OwnerObserver is notified about structural changes of an owner.
//
// OnWillRemoveProperty runs while the property is still attached and
// reachable by path. Observers holding references to it must release them
// there; after the call returns the property is detached.
type OwnerObserver interface {
	OnDidAddProperty(owner Owner, p Property, index int)
	OnWillRemoveProperty(owner Owner, p Property, index int)
	OnDidRemoveProperty(owner Owner, p Property, index int)
}

// OwnerObserverFuncs adapts optional functions to OwnerObserver.
type OwnerObserverFuncs struct {
	DidAdd     func(owner Owner, p Property, index int)
	WillRemove func(owner Owner, p Property, index int)
	DidRemove  func(owner Owner, p Property, index int)
}

func (f *OwnerObserverFuncs) OnDidAddProperty(owner Owner, p Property, index int) {
	if f.DidAdd != nil {
		f.DidAdd(owner, p, index)
	}
}

func (f *OwnerObserverFuncs) OnWillRemoveProperty(owner Owner, p Property, index int) {
	if f.WillRemove != nil {
		f.WillRemove(owner, p, index)
	}
}

func (f *OwnerObserverFuncs) OnDidRemoveProperty(owner Owner, p Property, index int) {
	if f.DidRemove != nil {
		f.DidRemove(owner, p, index)
	}
}

// OwnerBase implements the property list of an Owner. Embedders call
// InitOwner with themselves before adding properties.
type OwnerBase struct {
	omu        sync.RWMutex
	self       Owner
	properties []Property
	frozen     bool

	ownerObservers observerList[OwnerObserver]
}

// InitOwner records the outer Owner so children can reach it.
func (o *OwnerBase) InitOwner(self Owner) {
	o.self = self
}

func (o *OwnerBase) ownerBase() *OwnerBase { return o }

// AddProperty appends p. The identifier must be unique among siblings.
func (o *OwnerBase) AddProperty(p Property) error {
	o.omu.Lock()
	if o.frozen {
		o.omu.Unlock()
		return fmt.Errorf("add %q: %w", p.Identifier(), ErrShapeFrozen)
	}
	if p.Owner() != nil {
		o.omu.Unlock()
		return fmt.Errorf("add %q: %w", p.Identifier(), ErrAlreadyOwned)
	}
	for _, existing := range o.properties {
		if existing.Identifier() == p.Identifier() {
			o.omu.Unlock()
			return fmt.Errorf("add %q: %w", p.Identifier(), ErrDuplicateIdentifier)
		}
	}
	o.properties = append(o.properties, p)
	index := len(o.properties) - 1
	o.omu.Unlock()

	p.base().setOwner(o.self)
	o.ownerObservers.each(func(obs OwnerObserver) {
		obs.OnDidAddProperty(o.self, p, index)
	})
	return nil
}

// AddProperties adds each property in order, stopping at the first error.
func (o *OwnerBase) AddProperties(ps ...Property) error {
	for _, p := range ps {
		if err := o.AddProperty(p); err != nil {
			return err
		}
	}
	return nil
}

// RemoveProperty detaches the property with the given identifier.
//
// Owner observers receive OnWillRemoveProperty before anything changes.
// If the property is itself an owner its children are removed first,
// deepest first, with the same ordering guarantee.
func (o *OwnerBase) RemoveProperty(identifier string) (Property, error) {
	o.omu.RLock()
	frozen := o.frozen
	o.omu.RUnlock()
	if frozen {
		return nil, fmt.Errorf("remove %q: %w", identifier, ErrShapeFrozen)
	}
	p := o.remove(identifier)
	if p == nil {
		return nil, fmt.Errorf("remove %q: %w", identifier, ErrNotFound)
	}
	return p, nil
}

func (o *OwnerBase) remove(identifier string) Property {
	o.omu.RLock()
	index := slices.IndexFunc(o.properties, func(p Property) bool {
		return p.Identifier() == identifier
	})
	if index < 0 {
		o.omu.RUnlock()
		return nil
	}
	p := o.properties[index]
	o.omu.RUnlock()

	if nested, ok := p.(interface{ ownerBase() *OwnerBase }); ok {
		nested.ownerBase().Dispose()
	}

	o.ownerObservers.each(func(obs OwnerObserver) {
		obs.OnWillRemoveProperty(o.self, p, index)
	})

	o.omu.Lock()
	if i := slices.Index(o.properties, p); i >= 0 {
		o.properties = slices.Delete(o.properties, i, i+1)
	}
	o.omu.Unlock()
	p.base().setOwner(nil)

	o.ownerObservers.each(func(obs OwnerObserver) {
		obs.OnDidRemoveProperty(o.self, p, index)
	})
	return p
}

// Dispose removes every property, last first, ignoring the frozen flag.
// It is the end of the owner's lifetime.
func (o *OwnerBase) Dispose() {
	for {
		o.omu.RLock()
		n := len(o.properties)
		var last string
		if n > 0 {
			last = o.properties[n-1].Identifier()
		}
		o.omu.RUnlock()
		if n == 0 {
			return
		}
		o.remove(last)
	}
}

// Properties returns a copy of the property list in insertion order.
func (o *OwnerBase) Properties() []Property {
	o.omu.RLock()
	defer o.omu.RUnlock()
	return slices.Clone(o.properties)
}

// Property returns the direct child with the given identifier, or nil.
func (o *OwnerBase) Property(identifier string) Property {
	o.omu.RLock()
	defer o.omu.RUnlock()
	for _, p := range o.properties {
		if p.Identifier() == identifier {
			return p
		}
	}
	return nil
}

// PropertyByPath resolves a dotted path relative to this owner,
// descending through composite properties.
func (o *OwnerBase) PropertyByPath(path string) (Property, error) {
	head, rest, nested := strings.Cut(path, ".")
	p := o.Property(head)
	if p == nil {
		return nil, fmt.Errorf("%q: %w", path, ErrNotFound)
	}
	if !nested {
		return p, nil
	}
	sub, ok := p.(interface{ ownerBase() *OwnerBase })
	if !ok {
		return nil, fmt.Errorf("%q: %q is not a composite: %w", path, head, ErrNotFound)
	}
	return sub.ownerBase().PropertyByPath(rest)
}

// Walk visits every property depth first, composites before their children.
func (o *OwnerBase) Walk(fn func(Property)) {
	for _, p := range o.Properties() {
		fn(p)
		if sub, ok := p.(interface{ ownerBase() *OwnerBase }); ok {
			sub.ownerBase().Walk(fn)
		}
	}
}

// AnyModified reports whether any child is modified.
func (o *OwnerBase) AnyModified() bool {
	for _, p := range o.Properties() {
		if p.Modified() {
			return true
		}
	}
	return false
}

// ResetAllModified clears the modified flag of every child, recursively.
func (o *OwnerBase) ResetAllModified() {
	for _, p := range o.Properties() {
		p.ResetModified()
	}
}

func (o *OwnerBase) AddOwnerObserver(obs OwnerObserver) {
	o.ownerObservers.add(obs)
}

func (o *OwnerBase) RemoveOwnerObserver(obs OwnerObserver) {
	o.ownerObservers.remove(obs)
}

// Freeze fixes the shape. Nested composites are frozen too.
func (o *OwnerBase) Freeze() {
	o.omu.Lock()
	o.frozen = true
	children := slices.Clone(o.properties)
	o.omu.Unlock()
	for _, p := range children {
		if sub, ok := p.(interface{ ownerBase() *OwnerBase }); ok {
			sub.ownerBase().Freeze()
		}
	}
}

func (o *OwnerBase) Frozen() bool {
	o.omu.RLock()
	defer o.omu.RUnlock()
	return o.frozen
}
