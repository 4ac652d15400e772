// cmd/meterprobe/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tamzrod/modbus2mqtt/internal/config"
	"github.com/tamzrod/modbus2mqtt/internal/logging"
	"github.com/tamzrod/modbus2mqtt/internal/meter"
	pmodbus "github.com/tamzrod/modbus2mqtt/internal/poller/modbus"
	"github.com/tamzrod/modbus2mqtt/internal/rtu"
)

type valueReader interface {
	ReadValue(fc uint8, addr uint16) (rtu.Value, error)
}

func main() {
	var (
		device    string
		baudRate  int
		parity    string
		slave     int
		timeoutMs int
		fc        int
		register  string
	)

	logger, err := logging.InitLogger(config.LoggingConfig{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	open := func() (*pmodbus.Client, error) {
		return pmodbus.New(pmodbus.Config{
			Device:   device,
			BaudRate: baudRate,
			DataBits: 8,
			StopBits: 1,
			Parity:   parity,
			Slave:    uint8(slave),
			Timeout:  time.Duration(timeoutMs) * time.Millisecond,
		})
	}

	app := &cli.App{
		Name:    "meterprobe",
		Usage:   "read meter registers over Modbus RTU for commissioning",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "device",
				Aliases:     []string{"D"},
				Usage:       "serial device",
				Destination: &device,
				Value:       "/dev/ttyUSB0",
			},
			&cli.IntFlag{
				Name:        "baud",
				Usage:       "baud rate",
				Destination: &baudRate,
				Value:       config.DefaultBaudRate,
			},
			&cli.StringFlag{
				Name:        "parity",
				Usage:       "N, E or O",
				Destination: &parity,
				Value:       "N",
			},
			&cli.IntFlag{
				Name:        "slave",
				Aliases:     []string{"s"},
				Usage:       "slave address",
				Destination: &slave,
				Value:       int(meter.SDM120CTAddress),
				Action: func(ctx *cli.Context, v int) error {
					if v < 1 || v > 247 {
						return fmt.Errorf("slave address must be 1..247")
					}
					return nil
				},
			},
			&cli.IntFlag{
				Name:        "timeout",
				Usage:       "response timeout in ms",
				Destination: &timeoutMs,
				Value:       config.DefaultResponseTimeoutMs,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "read",
				Usage: "read one register pair",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "fc",
						Usage:       "function code (3 holding, 4 input)",
						Destination: &fc,
						Value:       int(rtu.FuncReadInputRegisters),
					},
					&cli.StringFlag{
						Name:        "register",
						Aliases:     []string{"r"},
						Usage:       "register address, decimal or 0x hex",
						Destination: &register,
						Required:    true,
					},
				},
				Action: func(c *cli.Context) error {
					reg, err := parseRegister(register)
					if err != nil {
						return err
					}
					client, err := open()
					if err != nil {
						return err
					}
					defer client.Close()
					return readOne(os.Stdout, client, uint8(fc), reg)
				},
			},
			{
				Name:  "sdm120ct",
				Usage: "read the SDM120CT identification and measurement registers",
				Action: func(c *cli.Context) error {
					client, err := open()
					if err != nil {
						return err
					}
					defer client.Close()
					return readSDM120CT(os.Stdout, client)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("meterprobe failed", zap.Error(err))
		os.Exit(1)
	}
}

func parseRegister(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("register %q: %w", s, err)
	}
	return uint16(v), nil
}

func readOne(out io.Writer, r valueReader, fc uint8, reg uint16) error {
	v, err := r.ReadValue(fc, reg)
	if err != nil {
		return fmt.Errorf("read 0x%04X: %w", reg, err)
	}
	fmt.Fprintf(out, "register=0x%04X raw=% X float=%g uint32=%d uint16=%d\n",
		v.Register, v.Raw[:], v.Float(), v.Uint32(), v.Uint16())
	return nil
}

func readSDM120CT(out io.Writer, r valueReader) error {
	dev := meter.NewDevice(meter.SDM120CT)

	for _, p := range meter.SDM120CTInfo {
		v, err := r.ReadValue(rtu.FuncReadHoldingRegisters, p.Register)
		if err != nil {
			return fmt.Errorf("info 0x%04X: %w", p.Register, err)
		}
		p.Apply(dev, v)
	}
	for _, p := range meter.SDM120CTData {
		v, err := r.ReadValue(rtu.FuncReadInputRegisters, p.Register)
		if err != nil {
			return fmt.Errorf("data 0x%04X: %w", p.Register, err)
		}
		p.Apply(dev, v)
	}

	info, _ := dev.Info()
	fmt.Fprintf(out, "meter_id=%g baud_rate=%g serial_number=%d meter_code=0x%04X software_version=0x%04X\n",
		info.MeterID, info.BaudRate, info.SerialNumber, info.MeterCode, info.SoftwareVersion)
	for _, p := range meter.SDM120CTData {
		fmt.Fprintf(out, "%-22s 0x%04X %.3f\n", p.Field, p.Register, dev.Get(p.Field))
	}

	payload, err := meter.Payload(dev.Reading())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", payload)
	return nil
}
