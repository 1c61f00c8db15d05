package port

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when reading an unconnected inport.
	ErrNotConnected = errors.New("port not connected")

	// ErrNotReady is returned when the source has no committed data for
	// the current pass. It is the explicit "no data" result.
	ErrNotReady = errors.New("port has no data for this pass")

	// ErrAlreadyConnected is returned when connecting a single inport twice.
	ErrAlreadyConnected = errors.New("inport already connected")

	// ErrIncompatible is returned when the data types do not match.
	ErrIncompatible = errors.New("incompatible port data types")

	// ErrTypeMismatch is returned by Get when the data has a different Go type.
	ErrTypeMismatch = errors.New("port data type mismatch")
)

// DataType names the kind of data a port carries.
type DataType string

const (
	Any      DataType = "any"
	Number   DataType = "number"
	Image    DataType = "image"
	Mesh     DataType = "mesh"
	Volume   DataType = "volume"
	Sequence DataType = "sequence"
)

// Compatible reports whether an outport of type out may feed an inport of
// type in.
func Compatible(out, in DataType) bool {
	return in == Any || out == in
}

// Owner is the processor a port belongs to.
type Owner interface {
	Identifier() string
}

// Port is the part shared by inports and outports.
type Port interface {
	Identifier() string
	Path() string
	DataType() DataType
	Owner() Owner
	Bind(owner Owner)
	IsConnected() bool
	IsReady() bool
}

// In is implemented by Inport and MultiInport.
type In interface {
	Port
	Optional() bool
	Multi() bool
	ConnectedOutports() []*Outport

	// Attach and Detach are called by the network when edges change.
	Attach(out *Outport) error
	Detach(out *Outport) bool
}

type portBase struct {
	identifier string
	dataType   DataType
	owner      Owner
}

func (p *portBase) Identifier() string { return p.identifier }

func (p *portBase) DataType() DataType { return p.dataType }

func (p *portBase) Owner() Owner { return p.owner }

// Bind sets the owning processor. It is called once when the port is added.
func (p *portBase) Bind(owner Owner) { p.owner = owner }

// Path returns "processor.port", or just the identifier when unbound.
func (p *portBase) Path() string {
	if p.owner == nil {
		return p.identifier
	}
	return p.owner.Identifier() + "." + p.identifier
}

// Get reads an inport and asserts the data to T.
func Get[T any](in *Inport) (T, error) {
	var zero T
	data, err := in.Data()
	if err != nil {
		return zero, err
	}
	v, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("%s: got %T, want %T: %w", in.Path(), data, zero, ErrTypeMismatch)
	}
	return v, nil
}
