package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/procnet/internal/env"
	"github.com/roach88/procnet/internal/port"
	"github.com/roach88/procnet/internal/property"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scaleInfo = Info{ClassIdentifier: "test.scale", DisplayName: "Scale", CodeState: Stable}

type scale struct {
	Base
	in      *port.Inport
	out     *port.Outport
	factor  *property.Ordinal[float64]
	layers  *property.Composite
	normals *property.Bool

	inits int
}

func newScale(id string, components ...Component) (*scale, error) {
	s := &scale{
		in:      port.NewInport("inport", port.Number),
		out:     port.NewOutport("outport", port.Number),
		factor:  property.NewFloat("factor", 2, 0, 10),
		layers:  property.NewComposite("layers"),
		normals: property.NewBool("normals", false, property.WithInvalidationLevel(property.InvalidResources)),
	}
	if err := s.layers.AddProperty(s.normals); err != nil {
		return nil, err
	}
	err := s.Init(s, id, scaleInfo, Shape{
		Ports:      []port.Port{s.in, s.out},
		Properties: []property.Property{s.factor, s.layers},
	}, components...)
	return s, err
}

func (s *scale) Process(ctx context.Context) error {
	v, err := port.Get[float64](s.in)
	if err != nil {
		return err
	}
	s.out.SetData(v * s.factor.Get())
	return nil
}

func (s *scale) InitializeResources(ctx context.Context) error {
	s.inits++
	return s.Base.InitializeResources(ctx)
}

func TestInitDeclaresShape(t *testing.T) {
	s, err := newScale("scale1")
	require.NoError(t, err)

	assert.Equal(t, "scale1", s.Identifier())
	assert.Len(t, s.Inports(), 1)
	assert.Len(t, s.Outports(), 1)
	assert.Equal(t, "scale1.inport", s.Inport("inport").Path())
	assert.Equal(t, "scale1.factor", s.factor.Path())
	assert.Equal(t, "scale1.layers.normals", s.normals.Path())
	assert.Nil(t, s.Outport("missing"))
}

func TestShapeIsFrozenAfterInit(t *testing.T) {
	s, err := newScale("scale1")
	require.NoError(t, err)

	err = s.AddProperty(property.NewBool("late", false))
	assert.ErrorIs(t, err, property.ErrShapeFrozen)
	err = s.layers.AddProperty(property.NewBool("late", false))
	assert.ErrorIs(t, err, property.ErrShapeFrozen)
}

func TestDuplicatePortRejected(t *testing.T) {
	p := &scale{}
	err := p.Init(p, "dup", scaleInfo, Shape{Ports: []port.Port{
		port.NewInport("x", port.Number),
		port.NewOutport("x", port.Number),
	}})
	assert.ErrorIs(t, err, ErrDuplicatePort)
}

func TestNewProcessorStartsInvalidWithResourcesPending(t *testing.T) {
	s, err := newScale("scale1")
	require.NoError(t, err)
	assert.Equal(t, Invalid, s.State())
	assert.Equal(t, property.InvalidResources, s.Pending())
}

func TestPropertyChangeInvalidatesAtItsLevel(t *testing.T) {
	s, err := newScale("scale1")
	require.NoError(t, err)
	s.ClearPending()
	s.SetState(Valid, nil)

	var levels []property.InvalidationLevel
	s.SetInvalidationHandler(func(p Processor, level property.InvalidationLevel) {
		assert.Same(t, s, p.(*scale))
		levels = append(levels, level)
	})

	s.factor.Set(3)
	assert.Equal(t, Invalid, s.State())
	assert.Equal(t, property.InvalidOutput, s.Pending())

	s.normals.Set(true)
	assert.Equal(t, property.InvalidResources, s.Pending())

	s.factor.Set(4)
	assert.Equal(t, property.InvalidResources, s.Pending(), "pending level only rises")

	assert.Equal(t, []property.InvalidationLevel{
		property.InvalidOutput, property.InvalidResources, property.InvalidOutput,
	}, levels)
}

func TestIsReadyHonorsOptionalInports(t *testing.T) {
	p := &scale{}
	opt := port.NewInport("opt", port.Number, port.Optional())
	require.NoError(t, p.Init(p, "p", scaleInfo, Shape{Ports: []port.Port{opt}}))
	assert.True(t, p.IsReady())

	src := port.NewOutport("src", port.Number)
	require.NoError(t, opt.Attach(src))
	assert.False(t, p.IsReady())
	src.SetData(1.0)
	src.Commit(1)
	assert.True(t, p.IsReady())
}

func TestStateTransitions(t *testing.T) {
	s, err := newScale("scale1")
	require.NoError(t, err)

	require.True(t, s.TryBeginProcessing())
	assert.False(t, s.TryBeginProcessing(), "re-entry is refused")

	s.factor.Set(5)
	assert.Equal(t, Processing, s.State(), "invalidation while processing keeps the state")

	failure := errors.New("boom")
	s.SetState(Error, failure)
	assert.Equal(t, failure, s.Err())
	s.SetState(Valid, failure)
	assert.NoError(t, s.Err())
	assert.Equal(t, "valid", Valid.String())
}

type program struct {
	define  *property.Bool
	builds  int
	failing bool
}

func (c *program) Name() string { return "program" }

func (c *program) Shape() Shape {
	return Shape{Properties: []property.Property{c.define}}
}

func (c *program) InitializeResources(context.Context) error {
	if c.failing {
		return errors.New("compile failed")
	}
	c.builds++
	return nil
}

func TestComponentsContributeShapeAndResources(t *testing.T) {
	comp := &program{define: property.NewBool("shading", true, property.WithInvalidationLevel(property.InvalidResources))}
	s, err := newScale("raycaster", comp)
	require.NoError(t, err)

	assert.Equal(t, "raycaster.shading", comp.define.Path())
	require.NoError(t, s.InitializeResources(context.Background()))
	assert.Equal(t, 1, s.inits)
	assert.Equal(t, 1, comp.builds)

	got, ok := ComponentOf[*program](s)
	require.True(t, ok)
	assert.Same(t, comp, got)

	comp.failing = true
	err = s.InitializeResources(context.Background())
	assert.ErrorContains(t, err, "component program")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	ctor := func(id string, _ *env.Context) (Processor, error) { return newScale(id) }
	require.NoError(t, r.Register(scaleInfo, ctor))
	assert.ErrorIs(t, r.Register(scaleInfo, ctor), ErrDuplicateClass)

	p, err := r.Create("test.scale", "s1", env.New())
	require.NoError(t, err)
	assert.Equal(t, "s1", p.Identifier())

	_, err = r.Create("test.missing", "s2", env.New())
	assert.ErrorIs(t, err, ErrUnknownClass)

	require.Len(t, r.Classes(), 1)
	assert.Equal(t, "test.scale", r.Classes()[0].ClassIdentifier)
}

func TestRegistryRejectsMismatchedClass(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Info{ClassIdentifier: "test.other"}, func(id string, _ *env.Context) (Processor, error) {
		return newScale(id)
	}))
	_, err := r.Create("test.other", "x", env.New())
	assert.ErrorContains(t, err, "constructor returned class test.scale")
}
