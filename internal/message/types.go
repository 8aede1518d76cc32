package message

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanspareilsmyn/pumplens/internal/field"
)

// Vec is a Cartesian vector as it appears on the wire: [x, y, z].
type Vec [3]float64

func (v Vec) r3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

func fromR3(v r3.Vec) Vec { return Vec{v.X, v.Y, v.Z} }

// Frame is the JSON representation of one simulation timestep.
type Frame struct {
	Time      float64            `json:"time"`
	TimeIndex int                `json:"timeIndex"`
	DeltaT    float64            `json:"deltaT"`
	End       bool               `json:"end,omitempty"`
	Surfaces  map[string]Surface `json:"surfaces,omitempty"`
}

// Surface carries per-face geometry and field values of one boundary patch.
// Every list is indexed by face and must have len(Sf) entries.
type Surface struct {
	Sf      []Vec                `json:"Sf"`
	Cf      []Vec                `json:"Cf,omitempty"`
	Scalars map[string][]float64 `json:"scalars,omitempty"`
	Vectors map[string][]Vec     `json:"vectors,omitempty"`
}

func toR3(vs []Vec) []r3.Vec {
	if vs == nil {
		return nil
	}
	out := make([]r3.Vec, len(vs))
	for i, v := range vs {
		out[i] = v.r3()
	}
	return out
}

func toWire(vs []r3.Vec) []Vec {
	if vs == nil {
		return nil
	}
	out := make([]Vec, len(vs))
	for i, v := range vs {
		out[i] = fromR3(v)
	}
	return out
}

// ToField converts the wire frame into the accessor the engine reads.
func (m Frame) ToField() *field.Frame {
	f := field.NewFrame(m.Time, m.TimeIndex, m.DeltaT)
	f.End = m.End
	for name, s := range m.Surfaces {
		surf := f.AddSurface(name, toR3(s.Sf), toR3(s.Cf))
		for fld, v := range s.Scalars {
			surf.Scalars[fld] = v
		}
		for fld, v := range s.Vectors {
			surf.Vectors[fld] = toR3(v)
		}
	}
	return f
}

// FromField is the inverse of ToField.
func FromField(f *field.Frame) Frame {
	m := Frame{
		Time:      f.Time,
		TimeIndex: f.TimeIndex,
		DeltaT:    f.Dt,
		End:       f.End,
	}
	if len(f.Surfaces) > 0 {
		m.Surfaces = make(map[string]Surface, len(f.Surfaces))
	}
	for name, s := range f.Surfaces {
		ws := Surface{Sf: toWire(s.Sf), Cf: toWire(s.Cf)}
		if len(s.Scalars) > 0 {
			ws.Scalars = make(map[string][]float64, len(s.Scalars))
			for fld, v := range s.Scalars {
				ws.Scalars[fld] = v
			}
		}
		if len(s.Vectors) > 0 {
			ws.Vectors = make(map[string][]Vec, len(s.Vectors))
			for fld, v := range s.Vectors {
				ws.Vectors[fld] = toWire(v)
			}
		}
		m.Surfaces[name] = ws
	}
	return m
}
