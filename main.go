package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"

	"fieldctl/controller"
)

func main() {
	deployment := flag.String("deployment", "default", "deployment config to load")
	hmiAddr := flag.String("hmi-addr", ":1502", "panel Modbus/TCP listen address")
	period := flag.Duration("period", 100*time.Millisecond, "control cycle period")
	dialTimeout := flag.Duration("dial-timeout", 3*time.Second, "gateway connect timeout")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	c, err := controller.New(controller.Options{
		Deployment: *deployment,
		HMIAddr:    *hmiAddr,
		Dial:       dialGateway(*dialTimeout),
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build controller")
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("deployment", *deployment).Str("hmiAddr", *hmiAddr).Msg("starting fieldctl")
	c.Run(ctx, *period)
}

// dialGateway returns a pipeline.Dial that opens a real Modbus/TCP
// connection to a gateway IP, following the goburrow/modbus client
// construction idiom (NewTCPClientHandler -> Connect -> NewClient).
func dialGateway(timeout time.Duration) func(ip string) (modbus.Client, func() error, error) {
	return func(ip string) (modbus.Client, func() error, error) {
		handler := modbus.NewTCPClientHandler(ip)
		handler.Timeout = timeout
		if err := handler.Connect(); err != nil {
			return nil, nil, err
		}
		return modbus.NewClient(handler), handler.Close, nil
	}
}
