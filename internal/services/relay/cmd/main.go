package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/LeonardoBeccarini/rover_relay/internal/services/relay"
	"github.com/LeonardoBeccarini/rover_relay/pkg/mqttbus"
)

func setupLogging(c LogConfig) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if c.File == "" {
		return io.NopCloser(nil)
	}
	rot := &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rot))
	return rot
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("relay: %v", err)
	}
	logs := setupLogging(cfg.Log)
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Metrics ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := relay.NewMetrics(reg)

	// === Brokers ===
	registry := relay.NewRegistry()
	hub := relay.NewHub(registry, nil, metrics)
	router := relay.NewRouter(hub, metrics)
	grpcHealth := relay.NewGRPCHealth("main")

	stateHook := func(name string, s mqttbus.State) {
		metrics.BrokerState(name, s)
		grpcHealth.BrokerState(name, s)
	}

	suffix := uuid.NewString()[:8]
	mainConn := mqttbus.NewConn(mqttbus.Config{
		Name:          "main",
		BrokerURL:     cfg.MQTT.BrokerURL,
		User:          cfg.MQTT.User,
		Password:      cfg.MQTT.Password,
		ClientID:      cfg.MQTT.ClientID + "-" + suffix,
		QoS:           byte(cfg.MQTT.QoS),
		RetryInterval: cfg.retryInterval(),
	}, relay.MainTopics(cfg.MQTT.GPSURL != ""), router.Handler("main"))
	mainConn.OnStateChange(stateHook)

	brokers := []relay.BrokerStatus{mainConn}
	var gpsConn *mqttbus.Conn
	if cfg.MQTT.GPSURL != "" {
		gpsConn = mqttbus.NewConn(mqttbus.Config{
			Name:          "gps",
			BrokerURL:     cfg.MQTT.GPSURL,
			User:          cfg.MQTT.User,
			Password:      cfg.MQTT.Password,
			ClientID:      cfg.MQTT.ClientID + "-gps-" + suffix,
			QoS:           byte(cfg.MQTT.QoS),
			RetryInterval: cfg.retryInterval(),
		}, relay.GPSTopics(), router.Handler("gps"))
		gpsConn.OnStateChange(stateHook)
		brokers = append(brokers, gpsConn)
	}

	// commands always go out on the main broker
	publisher := mqttbus.NewPublisher(mainConn, mqttbus.PublisherConfig{
		Timeout:         time.Duration(cfg.Publish.TimeoutMs) * time.Millisecond,
		BreakerFailures: cfg.Publish.BreakerFails,
		BreakerOpenFor:  time.Duration(cfg.Publish.BreakerOpen) * time.Millisecond,
	})
	hub.AttachPublisher(publisher)

	mainConn.Start(ctx)
	if gpsConn != nil {
		gpsConn.Start(ctx)
	}

	// === HTTP ===
	mux := http.NewServeMux()
	mux.Handle("/ws", relay.NewSocketServer(hub, cfg.ClientQueue))
	mux.Handle("/config/webrtc-url", relay.NewWebRTCConfigHandler(cfg.Camera1URL, cfg.Camera2URL))
	mux.Handle("/healthz", relay.NewHealthHandler(registry, publisher, brokers...))
	mux.Handle("/readyz", relay.NewReadyHandler(mainConn))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("relay: HTTP listening on :%d", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("relay: http server error: %v", err)
		}
	}()

	// === gRPC health ===
	lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
	if err != nil {
		log.Fatalf("relay: grpc listen: %v", err)
	}
	go func() {
		log.Printf("relay: gRPC health listening on :%d", cfg.GRPCPort)
		if err := grpcHealth.Serve(lis); err != nil {
			log.Printf("relay: grpc server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("relay: shutting down...")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(shCtx)
	grpcHealth.Stop()
	mainConn.Close()
	if gpsConn != nil {
		gpsConn.Close()
	}
	// let the connectors finish their disconnect
	time.Sleep(300 * time.Millisecond)
}
