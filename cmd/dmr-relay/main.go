package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kb9vcn/dmr-relay/pkg/config"
	"github.com/kb9vcn/dmr-relay/pkg/dashboard"
	"github.com/kb9vcn/dmr-relay/pkg/logger"
	"github.com/kb9vcn/dmr-relay/pkg/metrics"
	"github.com/kb9vcn/dmr-relay/pkg/mqttpublish"
	"github.com/kb9vcn/dmr-relay/pkg/radioid"
	"github.com/kb9vcn/dmr-relay/pkg/relay"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	debug := flag.Bool("d", false, "Enable verbose packet-level logging")
	status := flag.Bool("s", false, "Query a running server's status and exit")

	for _, a := range os.Args[1:] {
		if a == "--help" {
			fmt.Println("dmr-relay: a Pi-Star/MMDVM home-brew repeater protocol relay")
			flag.PrintDefaults()
			os.Exit(0)
		}
	}
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dmr-relay: %v\n", err)
		os.Exit(1)
	}

	if *status {
		if err := queryStatus(cfg.General.UDPPort); err != nil {
			fmt.Fprintf(os.Stderr, "dmr-relay: %v\n", err)
			os.Exit(1)
		}
		return
	}

	level := logger.FromDebugFlag(cfg.Debug.Level)
	if *debug {
		level = logger.DebugLevel
	}
	log := logger.New(logger.Config{Level: levelName(level), Format: "text"})

	log.Info("starting dmr-relay", logger.String("version", version), logger.String("build_time", buildTime))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.General.UDPPort})
	if err != nil {
		log.Error("failed to open udp socket", logger.Error(err))
		os.Exit(1)
	}

	housekeeping := time.Duration(cfg.General.HousekeepingMinutes) * time.Minute
	d := relay.New(conn, cfg.Security.Password, housekeeping, log)

	var wg sync.WaitGroup

	collector := metrics.NewCollector()
	if cfg.Metrics.Enabled {
		d.SetMetrics(collector)
		metricsServer := metrics.NewServer(
			metrics.ServerConfig{Enabled: true, Port: cfg.Metrics.Port},
			collector,
			log.WithComponent("metrics"),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("metrics server error", logger.Error(err))
			}
		}()
	}

	var mqttPublisher *mqttpublish.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher = mqttpublish.New(mqttpublish.Config{
			Enabled:     cfg.MQTT.Enabled,
			Broker:      cfg.MQTT.Broker,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
		}, log.WithComponent("mqtt"))
		d.SetMQTT(mqttPublisher)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mqttPublisher.Start(ctx); err != nil && err != context.Canceled {
				log.Error("mqtt publisher error", logger.Error(err))
			}
		}()
	}

	if cfg.RadioID.Enabled {
		directory, err := radioid.Open(radioid.Config{Path: cfg.RadioID.DBPath}, log.WithComponent("radioid"))
		if err != nil {
			log.Error("failed to open radioid directory", logger.Error(err))
		} else {
			d.SetDirectory(directory)

			syncInterval := time.Duration(cfg.RadioID.SyncHours) * time.Hour
			syncer := radioid.NewSyncer(directory, syncInterval, log.WithComponent("radioid"))
			wg.Add(1)
			go func() {
				defer wg.Done()
				syncer.Start(ctx)
			}()
		}
	}

	if cfg.Web.Enabled {
		dashboardServer := dashboard.NewServer(
			dashboard.Config{Enabled: true, Port: cfg.Web.Port},
			log.WithComponent("dashboard"),
			d.NodeProvider(),
			d.TalkgroupProvider(),
		)
		d.SetDashboard(dashboardServer.Hub())

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dashboardServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("dashboard server error", logger.Error(err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.Run(ctx); err != nil && err != context.Canceled {
			log.Error("relay dispatcher stopped", logger.Error(err))
		}
	}()

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))
	cancel()

	if mqttPublisher != nil {
		mqttPublisher.Stop()
	}
	conn.Close()
	wg.Wait()

	log.Info("dmr-relay stopped")
}

func levelName(l logger.Level) string {
	switch l {
	case logger.DebugLevel:
		return "debug"
	case logger.WarnLevel:
		return "warn"
	case logger.ErrorLevel:
		return "error"
	default:
		return "info"
	}
}

// queryStatus implements the -s flag: it sends a "/STAT" query to a
// server already running on the configured UDP port and prints
// whatever it sends back, for local troubleshooting without needing
// to shell out to netcat.
func queryStatus(udpPort int) error {
	local := &net.UDPAddr{Port: 62111}
	conn, err := net.DialUDP("udp", local, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: udpPort})
	if err != nil {
		return fmt.Errorf("opening query socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("/STAT")); err != nil {
		return fmt.Errorf("sending status query: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("no reply from server: %w", err)
	}

	fmt.Println("dmr-relay status")
	fmt.Printf("version %s (%s)\n\n", version, buildTime)
	fmt.Print(string(buf[:n]))
	return nil
}
