package network

import "github.com/roach88/procnet/internal/processor"

// Observer is notified about structural changes of a network.
type Observer interface {
	OnProcessorAdded(p processor.Processor)
	OnWillRemoveProcessor(p processor.Processor)
	OnConnectionAdded(c Connection)
	OnConnectionRemoved(c Connection)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	ProcessorAdded      func(p processor.Processor)
	WillRemoveProcessor func(p processor.Processor)
	ConnectionAdded     func(c Connection)
	ConnectionRemoved   func(c Connection)
}

func (f *ObserverFuncs) OnProcessorAdded(p processor.Processor) {
	if f.ProcessorAdded != nil {
		f.ProcessorAdded(p)
	}
}

func (f *ObserverFuncs) OnWillRemoveProcessor(p processor.Processor) {
	if f.WillRemoveProcessor != nil {
		f.WillRemoveProcessor(p)
	}
}

func (f *ObserverFuncs) OnConnectionAdded(c Connection) {
	if f.ConnectionAdded != nil {
		f.ConnectionAdded(c)
	}
}

func (f *ObserverFuncs) OnConnectionRemoved(c Connection) {
	if f.ConnectionRemoved != nil {
		f.ConnectionRemoved(c)
	}
}

// AddObserver registers o. Duplicates are ignored.
func (n *Network) AddObserver(o Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.observers {
		if existing == o {
			return
		}
	}
	n.observers = append(n.observers, o)
}

// RemoveObserver unregisters o. Unknown observers are ignored.
func (n *Network) RemoveObserver(o Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, existing := range n.observers {
		if existing == o {
			n.observers = append(n.observers[:i], n.observers[i+1:]...)
			return
		}
	}
}

func (n *Network) notify(fn func(Observer)) {
	n.mu.RLock()
	snapshot := make([]Observer, len(n.observers))
	copy(snapshot, n.observers)
	n.mu.RUnlock()
	for _, o := range snapshot {
		fn(o)
	}
}
