package network

import (
	"slices"
	"strings"

	"github.com/roach88/procnet/internal/property"
)

// Link copies the value of one property into another whenever the source
// changes. Links are one-way; two links in opposite directions settle
// because setting an equal value does not notify.
type Link struct {
	Source property.Property
	Target property.Property

	net      *Network
	observer *property.Callback
}

func (l *Link) String() string {
	return l.Source.Path() + " => " + l.Target.Path()
}

func (l *Link) SourceProcessor() string { return rootOf(l.Source.Path()) }

func (l *Link) TargetProcessor() string { return rootOf(l.Target.Path()) }

func rootOf(path string) string {
	head, _, _ := strings.Cut(path, ".")
	return head
}

func (l *Link) propagate(property.Property) {
	if err := l.Target.SetValue(l.Source.Value()); err != nil {
		l.net.logger.Error("property link propagation failed",
			"link", l.String(),
			"error", err,
		)
	}
}

// Link connects the property at srcPath to the one at dstPath and copies
// the current value immediately. The target must accept the source's value.
func (n *Network) Link(srcPath, dstPath string) (*Link, error) {
	src, err := n.Property(srcPath)
	if err != nil {
		return nil, err
	}
	dst, err := n.Property(dstPath)
	if err != nil {
		return nil, err
	}
	if src == dst {
		return nil, configErr(CodeIncompatibleProperty, srcPath, "cannot link a property to itself")
	}
	for _, existing := range n.Links() {
		if existing.Source == src && existing.Target == dst {
			return existing, nil
		}
	}
	if err := dst.SetValue(src.Value()); err != nil {
		return nil, &ConfigError{Code: CodeIncompatibleProperty, Path: srcPath + " => " + dstPath, Message: "target rejects source value", Err: err}
	}

	l := &Link{Source: src, Target: dst, net: n}
	l.observer = property.OnChange(l.propagate)
	src.AddObserver(l.observer)

	n.mu.Lock()
	n.links = append(n.links, l)
	n.mu.Unlock()
	return l, nil
}

// Unlink removes the link between the two paths, if any.
func (n *Network) Unlink(srcPath, dstPath string) bool {
	for _, l := range n.Links() {
		if l.Source.Path() == srcPath && l.Target.Path() == dstPath {
			n.removeLink(l)
			return true
		}
	}
	return false
}

func (n *Network) removeLink(l *Link) {
	l.Source.RemoveObserver(l.observer)
	n.mu.Lock()
	n.links = slices.DeleteFunc(n.links, func(x *Link) bool { return x == l })
	n.mu.Unlock()
}

// Links returns the links in creation order.
func (n *Network) Links() []*Link {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.links)
}
