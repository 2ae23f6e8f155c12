package rover_simulator

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/rover_relay/internal/model"
)

// ====== Tunables ======
const (
	// maxSpeedKmh is reached at drive speed 255 (full PWM duty).
	maxSpeedKmh = 6.0
	// turnRate in degrees per second while spinning in place.
	turnRate = 45.0

	metersPerDegLat = 111320.0
	noEcho          = 999
)

// PowerBlock is the raw power section of the combined node payload.
type PowerBlock struct {
	SolarV float64 `json:"solarV"`
	LoadV  float64 `json:"loadV"`
	SolarI float64 `json:"solarI"` // mA
	LoadI  float64 `json:"loadI"`  // mA
}

// NodeReading is what the sensor node publishes on its data topic.
type NodeReading struct {
	Radar model.Radar `json:"radar"`
	IMU   model.IMU   `json:"imu"`
	Temp  float64     `json:"temp"`
	Hum   float64     `json:"hum"`
	Lux   float64     `json:"lux"`
	Power PowerBlock  `json:"power"`
}

// GPSFix is one position sample of the GPS node.
type GPSFix struct {
	Lat, Lon   float64
	SpeedKmh   float64
	Heading    float64
	Satellites int
	Signal     int
}

// Line renders the fix in the plain key:value form the GPS node sends.
func (f GPSFix) Line() string {
	return fmt.Sprintf("lat:%.6f,long:%.6f,speed:%.1f,direction:%.0f,satellites:%d,signal:%d,active:A",
		f.Lat, f.Lon, f.SpeedKmh, f.Heading, f.Satellites, f.Signal)
}

// DataGenerator keeps the simulated rover state and advances it in time.
type DataGenerator struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	last time.Time

	lat, lon float64
	heading  float64 // degrees, 0 = north
	move     string
	speed    float64 // drive units 0..255

	temp, hum, lux float64
}

func NewDataGenerator(lat, lon float64, seed int64) *DataGenerator {
	return &DataGenerator{
		rnd:  rand.New(rand.NewSource(seed)),
		lat:  lat,
		lon:  lon,
		move: MoveStop,
		temp: 22,
		hum:  45,
		lux:  400,
	}
}

// Apply sets the current drive order. Unknown moves are ignored.
func (g *DataGenerator) Apply(order model.DriveOrder) bool {
	if !validMove(order.Move) {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.move = order.Move
	g.speed = math.Max(0, math.Min(255, order.Speed))
	return true
}

// Move returns the drive order in effect.
func (g *DataGenerator) Move() (string, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.move, g.speed
}

// Next advances the state to now and samples both nodes.
func (g *DataGenerator) Next(now time.Time) (NodeReading, GPSFix) {
	g.mu.Lock()
	defer g.mu.Unlock()

	dt := 0.0
	if !g.last.IsZero() {
		dt = math.Max(0, now.Sub(g.last).Seconds())
	}
	g.last = now

	kmh := g.speed / 255 * maxSpeedKmh
	var ground float64
	switch g.move {
	case MoveForward:
		ground = kmh
	case MoveBackward:
		ground = -kmh
	case MoveLeft:
		g.heading = wrap360(g.heading - turnRate*dt)
	case MoveRight:
		g.heading = wrap360(g.heading + turnRate*dt)
	}
	if ground != 0 {
		dist := ground / 3.6 * dt
		rad := g.heading * math.Pi / 180
		g.lat += dist * math.Cos(rad) / metersPerDegLat
		g.lon += dist * math.Sin(rad) / (metersPerDegLat * math.Cos(g.lat*math.Pi/180))
	}

	g.temp = clamp(g.temp+g.jitter(0.2), -10, 50)
	g.hum = clamp(g.hum+g.jitter(0.5), 0, 100)
	g.lux = clamp(g.lux+g.jitter(20), 0, 100000)

	reading := NodeReading{
		Radar: model.Radar{
			Front: g.echo(),
			Right: g.echo(),
			Back:  g.echo(),
			Left:  g.echo(),
		},
		IMU: model.IMU{
			Roll:  round1(g.jitter(2)),
			Pitch: round1(g.jitter(2)),
			Yaw:   round1(g.heading),
		},
		Temp: round1(g.temp),
		Hum:  round1(g.hum),
		Lux:  math.Round(g.lux),
		Power: PowerBlock{
			SolarV: round1(12 + g.jitter(0.5)),
			LoadV:  round1(11.5 + g.jitter(0.2)),
			SolarI: math.Round(400 + g.jitter(50)),
			LoadI:  math.Round(150 + kmh*60 + g.jitter(10)),
		},
	}
	fix := GPSFix{
		Lat:        g.lat,
		Lon:        g.lon,
		SpeedKmh:   math.Abs(ground),
		Heading:    g.heading,
		Satellites: 6 + g.rnd.Intn(6),
		Signal:     2 + g.rnd.Intn(3),
	}
	return reading, fix
}

// echo samples one ultrasonic distance in cm; now and then nothing answers.
func (g *DataGenerator) echo() float64 {
	if g.rnd.Float64() < 0.05 {
		return noEcho
	}
	return math.Round(20 + g.rnd.Float64()*180)
}

func (g *DataGenerator) jitter(amp float64) float64 { return (g.rnd.Float64()*2 - 1) * amp }

// ===== Helpers =====

func wrap360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func clamp(x, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, x)) }

func round1(x float64) float64 { return math.Round(x*10) / 10 }
