package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/mmwave.report/api"
	"github.com/banshee-data/mmwave.report/db"
	"github.com/banshee-data/mmwave.report/internal/config"
	"github.com/banshee-data/mmwave.report/internal/framing"
	"github.com/banshee-data/mmwave.report/internal/mmwave"
	"github.com/banshee-data/mmwave.report/internal/serialio"
	"github.com/banshee-data/mmwave.report/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode with mock serial ports")
	listen     = flag.String("listen", ":8080", "Listen address")
	configPort = flag.String("config-port", "/dev/ttyUSB0", "Sensor command UART device path")
	dataPort   = flag.String("data-port", "/dev/ttyUSB1", "Sensor data UART device path")
	cfgScript  = flag.String("config", "", "Path to the sensor configuration script")
	tuningPath = flag.String("tuning", "", "Path to a tuning JSON file (defaults apply when empty)")
	dbFile     = flag.String("db", "sensor_frames.db", "Path to the frame archive database")
	fixtures   = flag.String("fixtures", "fixtures.bin", "Raw data-port capture replayed in dev mode")
)

// newDevFactory builds mock transports: the data port replays a raw capture
// in small chunks and the config port acknowledges every command.
func newDevFactory(fixturePath string) (*serialio.MockFactory, error) {
	data, err := os.ReadFile(fixturePath)
	if err != nil {
		return nil, err
	}

	factory := serialio.NewMockFactory()

	cfg := serialio.NewTestableTransport()
	cfg.AutoAck = true
	factory.Ports[*configPort] = cfg

	replay := serialio.NewTestableTransport()
	replay.ChunkLimit = 256
	replay.AddReadData(data)
	factory.Ports[*dataPort] = replay

	return factory, nil
}

func main() {
	flag.Parse()

	log.Printf("mmwave-report %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := config.EmptyTuningConfig()
	path := *tuningPath
	if path == "" {
		// Fall back to the canonical defaults file when present.
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}
	if path != "" {
		var err error
		tuning, err = config.LoadTuningConfig(path)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	opts := mmwave.Options{
		ConfigPortPath: *configPort,
		DataPortPath:   *dataPort,
		Tuning:         tuning,
	}
	if *devMode {
		factory, err := newDevFactory(*fixtures)
		if err != nil {
			log.Fatalf("failed to load fixtures: %v", err)
		}
		opts.Factory = factory
	}
	if *cfgScript != "" {
		script, err := os.ReadFile(*cfgScript)
		if err != nil {
			log.Fatalf("failed to read sensor config script: %v", err)
		}
		opts.ConfigScript = bytes.NewReader(script)
	}

	sensor, err := mmwave.Open(opts)
	if err != nil {
		log.Fatalf("failed to open sensor: %v", err)
	}
	defer sensor.Close()
	log.Printf("sensor session %s streaming from %s", sensor.SessionID(), *dataPort)

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open frame archive: %v", err)
	}
	defer database.Close()

	// Create a wait group for the HTTP server and the poll loop routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the poll loop to drive acquisition and archive decoded frames
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(tuning.GetPollInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Print("poll loop terminated")
				return
			case <-ticker.C:
				if _, err := sensor.Poll(); err != nil {
					if errors.Is(err, framing.ErrBufferOverflow) {
						log.Printf("reassembly buffer overflowed, resynchronising: %v", err)
						continue
					}
					log.Printf("fatal poll error, stopping: %v", err)
					stop()
					return
				}

				n := sensor.QueueLen()
				if n == 0 {
					continue
				}
				frames, err := sensor.TakeFront(n, true)
				if err != nil {
					log.Printf("failed to drain frame queue: %v", err)
					continue
				}
				for _, frame := range frames {
					if err := database.RecordFrame(sensor.SessionID(), frame); err != nil {
						log.Printf("failed to archive frame %d: %v", frame.Header.FrameNumber, err)
					}
				}
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// create a new API server instance using the sensor and database
		// and mount the API handlers
		apiMux := api.NewServer(sensor, database).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
