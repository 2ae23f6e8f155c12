package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	roverSimulator "github.com/LeonardoBeccarini/rover_relay/internal/rover-simulator"
	"github.com/LeonardoBeccarini/rover_relay/internal/services/relay"
	"github.com/LeonardoBeccarini/rover_relay/pkg/mqttbus"
)

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	user := flag.String("user", "", "MQTT user")
	password := flag.String("password", "", "MQTT password")
	clientID := flag.String("client-id", "rover-sim", "MQTT client ID prefix")
	interval := flag.Duration("interval", time.Second, "publish interval")
	hold := flag.Duration("hold", 2*time.Second, "how long a drive order lasts without a refresh")
	lat := flag.Float64("lat", 45.0703, "start latitude")
	lon := flag.Float64("lon", 7.6869, "start longitude")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator := roverSimulator.NewDataGenerator(*lat, *lon, time.Now().UnixNano())
	sim := roverSimulator.NewRoverSimulator(generator, *hold)

	conn := mqttbus.NewConn(mqttbus.Config{
		Name:      "rover-sim",
		BrokerURL: *broker,
		User:      *user,
		Password:  *password,
		ClientID:  *clientID + "-" + uuid.NewString()[:8],
	}, []string{relay.TopicDrive}, sim.HandleMessage)
	conn.Start(ctx)
	defer conn.Close()

	log.Printf("rover-sim: publishing every %s to %s", *interval, *broker)
	sim.Start(ctx, conn, *interval)
}
