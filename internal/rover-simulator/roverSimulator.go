package rover_simulator

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/rover_relay/internal/model"
	"github.com/LeonardoBeccarini/rover_relay/internal/services/relay"
)

// Drive moves understood by the motor node.
const (
	MoveForward  = "FORWARD"
	MoveBackward = "BACKWARD"
	MoveLeft     = "LEFT"
	MoveRight    = "RIGHT"
	MoveStop     = "STOP"
)

func validMove(m string) bool {
	switch m {
	case MoveForward, MoveBackward, MoveLeft, MoveRight, MoveStop:
		return true
	}
	return false
}

// BusPublisher is the part of a bus connection the simulator writes through.
type BusPublisher interface {
	Publish(topic string, payload []byte, timeout time.Duration) error
}

// RoverSimulator plays the sensor, GPS and motor nodes of one rover.
type RoverSimulator struct {
	mu        sync.Mutex
	timer     *time.Timer // single timer
	generator *DataGenerator
	hold      time.Duration
}

// NewRoverSimulator builds a simulator. A drive order other than STOP is held
// for hold and then reverts to STOP, unless a new order arrives first; hold
// <= 0 keeps orders until replaced.
func NewRoverSimulator(gen *DataGenerator, hold time.Duration) *RoverSimulator {
	return &RoverSimulator{generator: gen, hold: hold}
}

// Start publishes both node payloads every interval until ctx is done.
func (s *RoverSimulator) Start(ctx context.Context, pub BusPublisher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopTimer()
			return
		case now := <-ticker.C:
			s.publishOnce(pub, now)
		}
	}
}

func (s *RoverSimulator) publishOnce(pub BusPublisher, now time.Time) {
	reading, fix := s.generator.Next(now)
	payload, err := json.Marshal(reading)
	if err != nil {
		log.Printf("rover-sim: encode reading: %v", err)
		return
	}
	if err := pub.Publish(relay.TopicNode1Data, payload, 2*time.Second); err != nil {
		log.Printf("rover-sim: publish %s: %v", relay.TopicNode1Data, err)
	}
	if err := pub.Publish(relay.TopicNode2GPS, []byte(fix.Line()), 2*time.Second); err != nil {
		log.Printf("rover-sim: publish %s: %v", relay.TopicNode2GPS, err)
	}
}

// HandleMessage consumes drive orders; it is the bus handler of the simulator.
func (s *RoverSimulator) HandleMessage(topic string, payload []byte) {
	if topic != relay.TopicDrive {
		return
	}
	var order model.DriveOrder
	if err := json.Unmarshal(payload, &order); err != nil {
		log.Printf("rover-sim: invalid drive order %s: %v", payload, err)
		return
	}
	if !s.generator.Apply(order) {
		log.Printf("rover-sim: unknown move %q", order.Move)
		return
	}
	log.Printf("rover-sim: drive %s @ %g", order.Move, order.Speed)
	s.armHold(order.Move)
}

func (s *RoverSimulator) armHold(move string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if move == MoveStop || s.hold <= 0 {
		return
	}
	s.timer = time.AfterFunc(s.hold, func() {
		s.generator.Apply(model.DriveOrder{Move: MoveStop})
		log.Printf("rover-sim: no drive order for %s, stopping", s.hold)
	})
}

func (s *RoverSimulator) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
