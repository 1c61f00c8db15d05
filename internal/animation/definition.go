package animation

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/property"
)

// Definition is the YAML form of an animation.
//
//	loop: swing
//	tracks:
//	  - property: source.value
//	    interpolation: linear
//	    keyframes:
//	      - {time: 0, value: 0}
//	      - {time: 2, value: 10}
//	controls:
//	  - {time: 1, action: pause}
type Definition struct {
	Loop     string       `yaml:"loop,omitempty"`
	Tracks   []TrackDef   `yaml:"tracks"`
	Controls []ControlDef `yaml:"controls,omitempty"`
}

type TrackDef struct {
	Property      string        `yaml:"property"`
	Interpolation string        `yaml:"interpolation,omitempty"`
	Keyframes     []KeyframeDef `yaml:"keyframes"`
}

type KeyframeDef struct {
	Time  float64 `yaml:"time"`
	Value any     `yaml:"value"`
}

type ControlDef struct {
	Time   float64 `yaml:"time"`
	Action string  `yaml:"action"`
	Target float64 `yaml:"target,omitempty"`
}

// Resolver finds properties by path. *network.Network satisfies it.
type Resolver interface {
	Property(path string) (property.Property, error)
}

// DecodeDefinition reads a YAML definition. Unknown fields are errors.
func DecodeDefinition(r io.Reader) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode animation: %w", err)
	}
	return &def, nil
}

// ReadDefinition decodes the file at path.
func ReadDefinition(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeDefinition(f)
}

// Build resolves property paths with r and assembles the animation.
func (d *Definition) Build(r Resolver, opts ...Option) (*Animation, LoopMode, error) {
	mode, err := ParseLoopMode(d.Loop)
	if err != nil {
		return nil, 0, err
	}
	anim := New(opts...)
	for _, td := range d.Tracks {
		p, err := r.Property(td.Property)
		if err != nil {
			return nil, 0, fmt.Errorf("track %s: %w", td.Property, err)
		}
		interp, err := ParseInterpolation(td.Interpolation)
		if err != nil {
			return nil, 0, fmt.Errorf("track %s: %w", td.Property, err)
		}
		seq, err := NewValueSequence(interp)
		if err != nil {
			return nil, 0, err
		}
		for _, kd := range td.Keyframes {
			v, err := ir.FromAny(kd.Value)
			if err != nil {
				return nil, 0, fmt.Errorf("track %s at %gs: %w", td.Property, kd.Time, err)
			}
			if err := seq.Add(NewValueKeyframe(Seconds(kd.Time), v)); err != nil {
				return nil, 0, fmt.Errorf("track %s: %w", td.Property, err)
			}
		}
		anim.AddTrack(NewPropertyTrack(p, seq))
	}
	if len(d.Controls) > 0 {
		seq := &ControlSequence{}
		for _, cd := range d.Controls {
			action, err := ParseControlAction(cd.Action)
			if err != nil {
				return nil, 0, err
			}
			var k *ControlKeyframe
			switch action {
			case Pause:
				k = NewPause(Seconds(cd.Time))
			case JumpTo:
				k = NewJumpTo(Seconds(cd.Time), Seconds(cd.Target))
			default:
				k = NewScript(Seconds(cd.Time), nil)
			}
			if err := seq.Add(k); err != nil {
				return nil, 0, fmt.Errorf("controls: %w", err)
			}
		}
		anim.AddControls(seq)
	}
	return anim, mode, nil
}
