package integrate

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanspareilsmyn/pumplens/internal/field"
)

const tol = 1e-9

func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// ringFrame builds a ring of n faces around the z axis on surface "blade".
func ringFrame(n int, rng *rand.Rand) *field.Frame {
	f := field.NewFrame(0, 0, 1)
	sf := make([]r3.Vec, n)
	cf := make([]r3.Vec, n)
	p := make([]float64, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		cf[i] = r3.Vec{X: math.Cos(theta), Y: math.Sin(theta), Z: rng.Float64()}
		sf[i] = r3.Vec{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5}
		p[i] = 100 + 10*rng.Float64()
	}
	s := f.AddSurface("blade", sf, cf)
	s.Scalars["p"] = p
	return f
}

func TestAreaInvariantToOrderingAndPartition(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	full := ringFrame(40, rng)
	s := full.Surfaces["blade"]

	var want float64
	for _, v := range s.Sf {
		want += r3.Norm(v)
	}

	got, err := New(full, nil).Area([]string{"blade"})
	if err != nil {
		t.Fatalf("Area() error = %v", err)
	}
	if !closeTo(got, want) {
		t.Fatalf("Area() = %v, want %v", got, want)
	}

	// Shuffle faces.
	perm := rng.Perm(len(s.Sf))
	shuffled := field.NewFrame(0, 0, 1)
	sf := make([]r3.Vec, len(perm))
	cf := make([]r3.Vec, len(perm))
	for i, j := range perm {
		sf[i], cf[i] = s.Sf[j], s.Cf[j]
	}
	shuffled.AddSurface("blade", sf, cf)
	gotShuffled, err := New(shuffled, nil).Area([]string{"blade"})
	if err != nil {
		t.Fatalf("Area() shuffled error = %v", err)
	}
	if !closeTo(gotShuffled, want) {
		t.Errorf("shuffled Area() = %v, want %v", gotShuffled, want)
	}

	// Split into disjoint partitions and sum the worker-local partials.
	cuts := []int{0, 3, 17, 17, 29, len(sf)}
	var partitioned float64
	for k := 0; k+1 < len(cuts); k++ {
		part := field.NewFrame(0, 0, 1)
		part.AddSurface("blade", sf[cuts[k]:cuts[k+1]], cf[cuts[k]:cuts[k+1]])
		v, err := New(part, nil).Area([]string{"blade"})
		if err != nil {
			t.Fatalf("Area() partition %d error = %v", k, err)
		}
		partitioned += v
	}
	if !closeTo(partitioned, want) {
		t.Errorf("partitioned Area() = %v, want %v", partitioned, want)
	}
}

func TestAreaSumsMultipleSurfaces(t *testing.T) {
	f := field.NewFrame(0, 0, 1)
	f.AddSurface("a", []r3.Vec{{X: 3, Y: 4}}, nil)
	f.AddSurface("b", []r3.Vec{{Z: 2}, {Z: -1}}, nil)

	got, err := New(f, field.LocalReducer{}).Area([]string{"a", "b"})
	if err != nil {
		t.Fatalf("Area() error = %v", err)
	}
	if got != 8 {
		t.Errorf("Area() = %v, want 8", got)
	}
}

func TestAreaUnknownSurface(t *testing.T) {
	f := field.NewFrame(0, 0, 1)
	if _, err := New(f, nil).Area([]string{"missing"}); !errors.Is(err, field.ErrUnknownSurface) {
		t.Errorf("Area() error = %v, want %v", err, field.ErrUnknownSurface)
	}
}

func TestAreaAverage(t *testing.T) {
	f := field.NewFrame(0, 0, 1)
	s := f.AddSurface("outlet", []r3.Vec{{X: 1}, {X: 3}}, nil)
	s.Scalars["p"] = []float64{10, 20}

	got, err := New(f, nil).AreaAverage("p", []string{"outlet"})
	if err != nil {
		t.Fatalf("AreaAverage() error = %v", err)
	}
	if !closeTo(got, 17.5) {
		t.Errorf("AreaAverage() = %v, want 17.5", got)
	}
}

func TestAreaAverageZeroArea(t *testing.T) {
	tests := []struct {
		name string
		sf   []r3.Vec
	}{
		{"no faces", nil},
		{"degenerate faces", []r3.Vec{{}, {}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := field.NewFrame(0, 0, 1)
			s := f.AddSurface("inlet", tt.sf, nil)
			s.Scalars["p"] = make([]float64, len(tt.sf))

			got, err := New(f, nil).AreaAverage("p", []string{"inlet"})
			if !errors.Is(err, ErrIllDefined) {
				t.Fatalf("AreaAverage() error = %v, want %v", err, ErrIllDefined)
			}
			if !math.IsNaN(got) {
				t.Errorf("AreaAverage() = %v, want NaN", got)
			}
		})
	}
}

func TestFlowAndVectorFlux(t *testing.T) {
	f := field.NewFrame(0, 0, 1)
	s := f.AddSurface("inlet", []r3.Vec{{X: -2}, {X: -1}}, nil)
	s.Scalars["phi"] = []float64{-3, -2}
	s.Vectors["U"] = []r3.Vec{{X: 1.5}, {X: 1}}

	in := New(f, nil)
	flow, err := in.Flow("phi", []string{"inlet"})
	if err != nil || flow != -5 {
		t.Errorf("Flow() = %v, %v, want -5", flow, err)
	}
	flux, err := in.VectorFlux("U", []string{"inlet"})
	if err != nil || flux != -4 {
		t.Errorf("VectorFlux() = %v, %v, want -4", flux, err)
	}
}

func TestFlowNonFinite(t *testing.T) {
	f := field.NewFrame(0, 0, 1)
	s := f.AddSurface("inlet", []r3.Vec{{X: -1}}, nil)
	s.Scalars["phi"] = []float64{math.Inf(1)}

	if _, err := New(f, nil).Flow("phi", []string{"inlet"}); !errors.Is(err, ErrNonFinite) {
		t.Errorf("Flow() error = %v, want %v", err, ErrNonFinite)
	}
}

func TestMomentSingleFace(t *testing.T) {
	f := field.NewFrame(0, 0, 1)
	s := f.AddSurface("blade", []r3.Vec{{Y: 1}}, []r3.Vec{{X: 1}})
	s.Scalars["p"] = []float64{10}

	stress := NewStressEvaluator(StressSettings{PName: "p"})
	got, err := New(f, nil).Moment(stress, []string{"blade"}, r3.Vec{}, r3.Vec{Z: 5})
	if err != nil {
		t.Fatalf("Moment() error = %v", err)
	}
	// r x F = (1,0,0) x (0,10,0) = (0,0,10); reported with the opposing sign.
	if !closeTo(got, -10) {
		t.Errorf("Moment() = %v, want -10", got)
	}
}

func TestMomentRotationalInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	base := ringFrame(25, rng)
	origin := r3.Vec{X: 0.3, Y: -0.2, Z: 1}
	omega := r3.Vec{X: 0.2, Y: 0.1, Z: 3}
	stress := NewStressEvaluator(StressSettings{PName: "p", Incompressible: true, RhoRef: 998, PRef: 100})

	want, err := New(base, nil).Moment(stress, []string{"blade"}, origin, omega)
	if err != nil {
		t.Fatalf("Moment() error = %v", err)
	}

	for _, alpha := range []float64{0.3, math.Pi / 2, 2.5, -1} {
		rot := r3.NewRotation(alpha, omega)
		src := base.Surfaces["blade"]
		sf := make([]r3.Vec, len(src.Sf))
		cf := make([]r3.Vec, len(src.Cf))
		for i := range src.Sf {
			sf[i] = rot.Rotate(src.Sf[i])
			cf[i] = r3.Add(origin, rot.Rotate(r3.Sub(src.Cf[i], origin)))
		}
		rotated := field.NewFrame(0, 0, 1)
		s := rotated.AddSurface("blade", sf, cf)
		s.Scalars["p"] = src.Scalars["p"]

		got, err := New(rotated, nil).Moment(stress, []string{"blade"}, origin, omega)
		if err != nil {
			t.Fatalf("Moment() rotated error = %v", err)
		}
		if math.Abs(got-want) > 1e-6*math.Max(1, math.Abs(want)) {
			t.Errorf("alpha=%v: Moment() = %v, want %v", alpha, got, want)
		}
	}
}

func TestMomentZeroAxis(t *testing.T) {
	f := field.NewFrame(0, 0, 1)
	stress := NewStressEvaluator(StressSettings{PName: "p"})
	if _, err := New(f, nil).Moment(stress, nil, r3.Vec{}, r3.Vec{}); !errors.Is(err, ErrIllDefined) {
		t.Errorf("Moment() error = %v, want %v", err, ErrIllDefined)
	}
}

func TestNormalStress(t *testing.T) {
	f := field.NewFrame(0, 0, 1)
	s := f.AddSurface("blade", []r3.Vec{{X: 1}, {X: 1}}, nil)
	s.Scalars["p"] = []float64{2, 4}

	tests := []struct {
		name     string
		settings StressSettings
		want     []float64
	}{
		{"compressible", StressSettings{PName: "p", RhoRef: 1000}, []float64{2, 4}},
		{"compressible with reference", StressSettings{PName: "p", PRef: 1}, []float64{1, 3}},
		{"incompressible", StressSettings{PName: "p", Incompressible: true, RhoRef: 1000}, []float64{2000, 4000}},
		{"incompressible with reference", StressSettings{PName: "p", Incompressible: true, RhoRef: 10, PRef: 2}, []float64{0, 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStressEvaluator(tt.settings).NormalStress(f, "blade")
			if err != nil {
				t.Fatalf("NormalStress() error = %v", err)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("NormalStress()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// countingReducer records how many reductions a worker takes part in.
type countingReducer struct {
	scalars int
	vecs    int
}

func (r *countingReducer) SumScalar(local float64) float64 {
	r.scalars++
	return local
}

func (r *countingReducer) SumVec(local r3.Vec) r3.Vec {
	r.vecs++
	return local
}

func TestReductionsHappenDespiteLookupErrors(t *testing.T) {
	f := field.NewFrame(0, 0, 1)
	s := f.AddSurface("inlet", []r3.Vec{{X: -1}}, nil)
	s.Scalars["p"] = []float64{1}
	stress := NewStressEvaluator(StressSettings{PName: "p"})

	tests := []struct {
		name        string
		call        func(in *Integrator) error
		wantScalars int
		wantVecs    int
		wantErr     error
	}{
		{
			name: "area of unknown surface",
			call: func(in *Integrator) error {
				_, err := in.Area([]string{"inlet", "volute"})
				return err
			},
			wantScalars: 1,
			wantErr:     field.ErrUnknownSurface,
		},
		{
			name: "flow of unknown field",
			call: func(in *Integrator) error {
				_, err := in.Flow("phi", []string{"inlet"})
				return err
			},
			wantScalars: 1,
			wantErr:     field.ErrUnknownField,
		},
		{
			name: "vector flux of unknown field",
			call: func(in *Integrator) error {
				_, err := in.VectorFlux("U", []string{"inlet"})
				return err
			},
			wantScalars: 1,
			wantErr:     field.ErrUnknownField,
		},
		{
			name: "average of unknown field",
			call: func(in *Integrator) error {
				_, err := in.AreaAverage("T", []string{"inlet"})
				return err
			},
			wantScalars: 2,
			wantErr:     field.ErrUnknownField,
		},
		{
			name: "moment without face centres",
			call: func(in *Integrator) error {
				_, err := in.Moment(stress, []string{"inlet"}, r3.Vec{}, r3.Vec{Z: 1})
				return err
			},
			wantVecs: 1,
			wantErr:  field.ErrMisaligned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingReducer{}
			err := tt.call(New(f, r))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if r.scalars != tt.wantScalars || r.vecs != tt.wantVecs {
				t.Errorf("reductions = (%d scalar, %d vector), want (%d, %d)", r.scalars, r.vecs, tt.wantScalars, tt.wantVecs)
			}
		})
	}
}
