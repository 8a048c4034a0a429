package simulate

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/integrityos/pipeline-hub/internal/domain"
)

const (
	DefaultHistoryHours = 24
	MaxHistoryHours     = 168
	historyStep         = 10 * time.Minute
	pointsPerHour       = 6
)

var DefaultPipelines = []string{"A", "B", "C", "D"}

type profile struct {
	temperature   float64
	pressure      float64
	thicknessLoss float64
}

func profileFor(id string) profile {
	if id == "A" {
		return profile{temperature: 42, pressure: 875, thicknessLoss: 1.73}
	}
	return profile{temperature: 38, pressure: 920, thicknessLoss: 1.45}
}

// Generator produces synthetic sensor readings for a fixed set of pipelines.
// It is safe for concurrent use.
type Generator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	now       func() time.Time
	pipelines map[string]struct{}
	order     []string
}

type Option func(*Generator)

func WithRand(r *rand.Rand) Option { return func(g *Generator) { g.rng = r } }

func WithClock(now func() time.Time) Option { return func(g *Generator) { g.now = now } }

func New(pipelines []string, opts ...Option) *Generator {
	if len(pipelines) == 0 {
		pipelines = DefaultPipelines
	}
	g := &Generator{
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
		pipelines: make(map[string]struct{}, len(pipelines)),
	}
	for _, id := range pipelines {
		id = Normalize(id)
		if _, dup := g.pipelines[id]; dup || id == "" {
			continue
		}
		g.pipelines[id] = struct{}{}
		g.order = append(g.order, id)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func Normalize(id string) string { return strings.ToUpper(strings.TrimSpace(id)) }

func (g *Generator) Pipelines() []string { return append([]string(nil), g.order...) }

func (g *Generator) Known(id string) bool {
	_, ok := g.pipelines[Normalize(id)]
	return ok
}

func (g *Generator) resolve(id string) (string, error) {
	id = Normalize(id)
	if _, ok := g.pipelines[id]; !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownPipeline, id)
	}
	return id, nil
}

// jitter returns a uniform value in [-span/2, span/2). Caller holds mu.
func (g *Generator) jitter(span float64) float64 { return (g.rng.Float64() - 0.5) * span }

func (g *Generator) Reading(id string) (domain.SensorReading, error) {
	id, err := g.resolve(id)
	if err != nil {
		return domain.SensorReading{}, err
	}
	p := profileFor(id)

	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.SensorReading{
		PipelineID:    id,
		Temperature:   round(p.temperature+g.jitter(6), 1),
		Pressure:      math.Round(p.pressure + g.jitter(50)),
		ThicknessLoss: round(p.thicknessLoss+g.jitter(0.3), 2),
		Timestamp:     g.now().UTC(),
	}, nil
}

// History returns hours*6+1 points ten minutes apart, oldest first, ending now.
func (g *Generator) History(id string, hours int) (domain.History, error) {
	id, err := g.resolve(id)
	if err != nil {
		return domain.History{}, err
	}
	hours = ClampHours(hours)
	p := profileFor(id)

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now().UTC()
	steps := hours * pointsPerHour
	data := make([]domain.HistoryPoint, 0, steps+1)
	for i := steps; i >= 0; i-- {
		f := math.Sin(float64(i) / pointsPerHour * math.Pi / 12)
		data = append(data, domain.HistoryPoint{
			Timestamp:     now.Add(-time.Duration(i) * historyStep),
			Temperature:   round(p.temperature+f*3+g.jitter(2), 1),
			Pressure:      math.Round(p.pressure + f*20 + g.jitter(15)),
			ThicknessLoss: round(p.thicknessLoss+float64(i)*0.001+g.jitter(0.05), 2),
		})
	}
	return domain.History{PipelineID: id, Data: data}, nil
}

// DeviceTelemetry returns live values for an online sensor unit.
func (g *Generator) DeviceTelemetry() (temperature, pressure float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return round(65+g.rng.Float64()*10, 1), math.Round(850 + g.rng.Float64()*50)
}

func ClampHours(hours int) int {
	switch {
	case hours <= 0:
		return DefaultHistoryHours
	case hours > MaxHistoryHours:
		return MaxHistoryHours
	}
	return hours
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
