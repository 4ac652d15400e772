// cmd/modbus2mqtt/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus2mqtt/internal/config"
	"github.com/tamzrod/modbus2mqtt/internal/httpapi"
	"github.com/tamzrod/modbus2mqtt/internal/logging"
	"github.com/tamzrod/modbus2mqtt/internal/meter"
	"github.com/tamzrod/modbus2mqtt/internal/metrics"
	"github.com/tamzrod/modbus2mqtt/internal/poller"
	"github.com/tamzrod/modbus2mqtt/internal/sniffer"
	"github.com/tamzrod/modbus2mqtt/internal/transport"
	"github.com/tamzrod/modbus2mqtt/internal/writer"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: modbus2mqtt <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting",
		zap.String("device_name", cfg.DeviceName),
		zap.String("broker", cfg.MQTT.Address),
		zap.Bool("sniffer", cfg.Sniffer.Enabled),
		zap.Bool("poller", cfg.Poller.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.NewAppMetrics(reg)

	// --------------------
	// Broker link
	// --------------------

	link, err := writer.BuildLink(*cfg, logger.Named("mqtt"), m)
	if err != nil {
		logger.Fatal("mqtt build failed", zap.Error(err))
	}
	w := writer.New(link.Session, logger.Named("writer"))

	var wg sync.WaitGroup
	var ddsu, sdm *meter.Device

	// --------------------
	// Sniffed DDSU666-H
	// --------------------

	if cfg.Sniffer.Enabled {
		port, err := transport.OpenSerial(serialConfig(cfg.Sniffer.Serial))
		if err != nil {
			logger.Fatal("sniffer serial open failed", zap.Error(err))
		}
		defer port.Close()

		ddsu = meter.NewDevice(meter.DDSU666H)
		dec := sniffer.NewDDSU666H(ddsu, logger.Named("sniffer"), m)
		runner := sniffer.NewRunner(port, dec, logger.Named("sniffer"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Run(ctx)
		}()

		if cfg.Sniffer.PublishIntervalMs > 0 {
			every := time.Duration(cfg.Sniffer.PublishIntervalMs) * time.Millisecond
			wg.Add(1)
			go func() {
				defer wg.Done()
				publishEvery(ctx, every, w, ddsu, logger)
			}()
		}
	}

	// --------------------
	// Polled SDM120CT
	// --------------------

	if cfg.Poller.Enabled {
		port, err := transport.OpenSerial(serialConfig(cfg.Poller.Serial))
		if err != nil {
			logger.Fatal("poller serial open failed", zap.Error(err))
		}
		defer port.Close()

		sdm = meter.NewDevice(meter.SDM120CT)

		// the callback runs under the sequencer lock; publishing happens here
		cycles := make(chan poller.Phase, 1)
		onCycle := func(p poller.Phase) {
			select {
			case cycles <- p:
			default:
			}
		}

		seq, err := poller.Build(cfg.Poller, sdm, port, onCycle, logger.Named("poller"), m)
		if err != nil {
			logger.Fatal("poller build failed", zap.Error(err))
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			seq.Run(ctx, port, time.Duration(cfg.Poller.TickMs)*time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case p := <-cycles:
					onPhase(p, w, sdm, ddsu, logger)
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		link.Session.Run(ctx, link.Run)
	}()

	// --------------------
	// REST + probes + metrics
	// --------------------

	var srv *httpapi.Server
	if cfg.HTTP.Addr != "" {
		h := httpapi.NewHandler(
			cfg.HTTP.Key,
			[]httpapi.Meter{
				{Name: meter.DDSU666H, Device: ddsu},
				{Name: meter.SDM120CT, Device: sdm},
			},
			link.Session,
			time.Duration(cfg.Status.StaleAfterMs)*time.Millisecond,
			logger.Named("http"),
		)
		srv = httpapi.New(cfg.HTTP, h, metrics.Handler(reg), link.Session.MQTTConnected)

		go func() {
			logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server stopped", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		cancel()
	}

	wg.Wait()
	logger.Info("stopped")
}

// onPhase publishes after every data cycle: SDM120CT first, then the
// latest sniffed DDSU666-H reading.
func onPhase(p poller.Phase, w writer.Writer, sdm, ddsu *meter.Device, logger *zap.Logger) {
	if p == poller.PhaseInfo {
		if info, ok := sdm.Info(); ok {
			logger.Info("meter identified",
				zap.String("device", sdm.Name()),
				zap.Float32("meter_id", info.MeterID),
				zap.Float32("baud_rate", info.BaudRate),
				zap.Uint32("serial_number", info.SerialNumber),
				zap.Uint16("meter_code", info.MeterCode),
				zap.Uint16("software_version", info.SoftwareVersion),
			)
		}
		return
	}

	if err := w.Write(sdm, ddsu); err != nil {
		logger.Warn("publish failed", zap.Error(err))
	}
}

func publishEvery(ctx context.Context, every time.Duration, w writer.Writer, dev *meter.Device, logger *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.Write(dev); err != nil {
				logger.Warn("publish failed", zap.Error(err))
			}
		}
	}
}

func serialConfig(c config.SerialConfig) transport.SerialConfig {
	return transport.SerialConfig{
		Device:      c.Device,
		BaudRate:    c.BaudRate,
		DataBits:    c.DataBits,
		StopBits:    c.StopBits,
		Parity:      c.Parity,
		ReadTimeout: time.Duration(c.ReadTimeoutMs) * time.Millisecond,
	}
}
