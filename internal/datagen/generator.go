package datagen

import (
	"math"
	"math/rand"
	"time"

	"github.com/opsightstack/opsight-rca/internal/models"
)

// Config controls the shape of the synthetic series used to seed demo data.
type Config struct {
	Start      time.Time
	End        time.Time
	Step       time.Duration
	Seed       int64
	SpikeCount int
}

func (c Config) withDefaults() Config {
	if c.End.IsZero() {
		c.End = time.Now().UTC().Truncate(time.Minute)
	}
	if c.Start.IsZero() || !c.End.After(c.Start) {
		c.Start = c.End.Add(-24 * time.Hour)
	}
	if c.Step <= 0 {
		c.Step = time.Minute
	}
	if c.SpikeCount <= 0 {
		c.SpikeCount = 5
	}
	return c
}

var infoMessages = []string{
	"Scheduled job completed successfully.",
	"User logged in.",
	"Background worker processed request.",
	"Heartbeat check passed.",
	"Cache refreshed successfully.",
}

var warnMessages = []string{
	"High memory usage detected.",
	"Slow query detected.",
	"API response time above threshold.",
}

var errorMessages = []string{
	"Database connection timeout.",
	"Service unavailable: 503 error.",
	"Out of memory error.",
	"Disk space critically low.",
	"Unhandled exception in worker thread.",
}

// Generate produces a deterministic synthetic metric series and log stream for
// the configured range: sinusoidal baselines with Gaussian noise, a handful of
// injected spike windows, and a Poisson-distributed log flow whose levels are
// weighted toward INFO. Identical configs yield identical output.
func Generate(cfg Config) ([]models.MetricSample, []models.LogRecord) {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))

	n := int(cfg.End.Sub(cfg.Start)/cfg.Step) + 1
	if n < 1 {
		n = 1
	}

	metrics := make([]models.MetricSample, n)
	for i := 0; i < n; i++ {
		phase := float64(i) / float64(n)
		cpu := math.Sin(phase*4*math.Pi)*10 + 50 + rng.NormFloat64()*5
		mem := math.Sin(phase*3*math.Pi)*5 + 60 + rng.NormFloat64()*3
		latency := math.Cos(phase*5*math.Pi)*20 + 100 + rng.NormFloat64()*10

		metrics[i] = models.MetricSample{
			Timestamp: cfg.Start.Add(time.Duration(i) * cfg.Step),
			Values: map[string]float64{
				"cpu_usage":    clip(cpu, 0, 100),
				"memory_usage": clip(mem, 0, 100),
				"latency_ms":   clip(latency, 0, math.MaxFloat64),
			},
		}
	}

	// Spike windows simulating incidents.
	for s := 0; s < cfg.SpikeCount && n > 30; s++ {
		idx := rng.Intn(n - 30)
		cpuBoost := 20 + rng.Float64()*20
		memBoost := 10 + rng.Float64()*10
		latBoost := 50 + rng.Float64()*50
		for j := idx; j <= idx+10; j++ {
			v := metrics[j].Values
			v["cpu_usage"] = clip(v["cpu_usage"]+cpuBoost, 0, 100)
			v["memory_usage"] = clip(v["memory_usage"]+memBoost, 0, 100)
			v["latency_ms"] += latBoost
		}
	}

	logs := make([]models.LogRecord, 0, n)
	for i := 0; i < n; i++ {
		ts := cfg.Start.Add(time.Duration(i) * cfg.Step)
		for k := poisson(rng, 1); k > 0; k-- {
			level, msg := pickLogLine(rng)
			logs = append(logs, models.LogRecord{Timestamp: ts, Level: level, Message: msg})
		}
	}

	return metrics, logs
}

func pickLogLine(rng *rand.Rand) (models.LogLevel, string) {
	switch p := rng.Float64(); {
	case p < 0.80:
		return models.LevelInfo, infoMessages[rng.Intn(len(infoMessages))]
	case p < 0.95:
		return models.LevelWarn, warnMessages[rng.Intn(len(warnMessages))]
	default:
		return models.LevelError, errorMessages[rng.Intn(len(errorMessages))]
	}
}

// poisson draws from Poisson(lambda) with Knuth's method; fine for small
// lambda.
func poisson(rng *rand.Rand, lambda float64) int {
	limit := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
