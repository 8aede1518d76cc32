package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanspareilsmyn/pumplens/internal/config"
	"github.com/sanspareilsmyn/pumplens/internal/field"
	"github.com/sanspareilsmyn/pumplens/internal/logging"
	"github.com/sanspareilsmyn/pumplens/internal/message"
)

var (
	kafkaBroker = flag.String("broker", "localhost:9092", "Kafka broker address")
	topic       = flag.String("topic", "pump-frames", "Topic the frames are published to")
	steps       = flag.Int("steps", 512, "Number of timesteps to publish before the end marker (0 runs until interrupted)")
	deltaT      = flag.Float64("dt", 1e-3, "Simulated time step in seconds")
	interval    = flag.Duration("interval", 50*time.Millisecond, "Wall-clock delay between frames")
	rpm         = flag.Float64("rpm", 1450, "Impeller speed in rpm about +z")
)

func main() {
	flag.Parse()

	logger, err := logging.NewLogger(config.LogConfig{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	sugar := logger.Sugar()

	writer := &kafka.Writer{
		Addr:     kafka.TCP(*kafkaBroker),
		Topic:    *topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer func() {
		if err := writer.Close(); err != nil {
			sugar.Errorw("Error closing kafka writer", zap.Error(err))
		}
	}()
	sugar.Infow("Starting synthetic pump producer", "topic", *topic, "broker", *kafkaBroker, "rpm", *rpm)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		sugar.Info("Shutdown signal received, stopping producer...")
		cancel()
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	pump := newSyntheticPump(*rpm, rand.New(rand.NewSource(time.Now().UnixNano())))

	for i := 0; *steps == 0 || i <= *steps; i++ {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			sugar.Info("Producer loop stopped.")
			return
		}

		t := float64(i) * *deltaT
		var frame *field.Frame
		if *steps != 0 && i == *steps {
			frame = field.NewFrame(t, i, *deltaT)
			frame.End = true
		} else {
			frame = pump.frame(t, i, *deltaT)
		}

		msgBytes, err := message.EncodeFrame(frame)
		if err != nil {
			sugar.Errorw("Error encoding frame", "time", t, zap.Error(err))
			continue
		}
		if err := writer.WriteMessages(ctx, kafka.Message{Value: msgBytes}); err != nil {
			if ctx.Err() != nil {
				sugar.Info("Context cancelled, exiting message loop.")
				return
			}
			sugar.Errorw("Error writing frame", "time", t, zap.Error(err))
			continue
		}
		sugar.Debugw("Produced frame", "time", t, "bytes", len(msgBytes), "end", frame.End)
	}
	sugar.Infow("All frames published", "steps", *steps)
}

// syntheticPump is a centrifugal pump reduced to a ring of blade faces, an
// inlet disc and an outlet disc. Pressures are kinematic (p/rho), matching
// the incompressible formulation.
type syntheticPump struct {
	omega  float64 // rad/s
	blades int
	faces  int // per surface
	radius float64
	area   float64 // per face
	flow   float64 // volumetric, m^3/s
	pIn    float64
	pOut   float64
	pBlade float64
	rho    float64
	noise  float64
	rng    *rand.Rand
}

func newSyntheticPump(rpm float64, rng *rand.Rand) *syntheticPump {
	return &syntheticPump{
		omega:  rpm * 2 * math.Pi / 60,
		blades: 6,
		faces:  24,
		radius: 0.1,
		area:   1e-3,
		flow:   0.02,
		pIn:    100,
		pOut:   350,
		pBlade: 400,
		rho:    998.2,
		noise:  0.01,
		rng:    rng,
	}
}

func (s *syntheticPump) jitter() float64 {
	return 1 + s.noise*s.rng.NormFloat64()
}

func (s *syntheticPump) frame(t float64, index int, dt float64) *field.Frame {
	f := field.NewFrame(t, index, dt)
	n := s.faces
	// Blade passing pulsation.
	bpf := 1 + 0.05*math.Sin(float64(s.blades)*s.omega*t)

	sf := make([]r3.Vec, n)
	cf := make([]r3.Vec, n)
	p := make([]float64, n)
	zero := make([]float64, n)
	for k := 0; k < n; k++ {
		theta := 2*math.Pi*float64(k)/float64(n) + s.omega*t
		sin, cos := math.Sincos(theta)
		cf[k] = r3.Vec{X: s.radius * cos, Y: s.radius * sin}
		// Blade pressure side faces against the rotation, so the fluid
		// resists the impeller and the moment about +z is positive.
		sf[k] = r3.Scale(s.area, r3.Vec{X: sin, Y: -cos})
		p[k] = s.pBlade * bpf * s.jitter()
	}
	impeller := f.AddSurface("impeller", sf, cf)
	impeller.Scalars["p"] = p
	impeller.Scalars["phi"] = zero
	impeller.Scalars["rho"] = s.uniform(n, s.rho)

	s.disc(f, "inlet", -0.2, -1, s.pIn)
	s.disc(f, "outlet", 0.2, 1, s.pOut*bpf)
	return f
}

// disc adds a flat surface at height z whose normal points along sign*z.
func (s *syntheticPump) disc(f *field.Frame, name string, z, sign, p float64) {
	n := s.faces
	sf := make([]r3.Vec, n)
	cf := make([]r3.Vec, n)
	pv := make([]float64, n)
	phi := make([]float64, n)
	for k := 0; k < n; k++ {
		sin, cos := math.Sincos(2 * math.Pi * float64(k) / float64(n))
		cf[k] = r3.Vec{X: 0.5 * s.radius * cos, Y: 0.5 * s.radius * sin, Z: z}
		sf[k] = r3.Vec{Z: sign * s.area}
		pv[k] = p * s.jitter()
		phi[k] = sign * s.flow / float64(n)
	}
	surf := f.AddSurface(name, sf, cf)
	surf.Scalars["p"] = pv
	surf.Scalars["phi"] = phi
	surf.Scalars["rho"] = s.uniform(n, s.rho)
}

func (s *syntheticPump) uniform(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
