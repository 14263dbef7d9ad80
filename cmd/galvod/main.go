package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/jt05610/galvo"
	galvoamqp "github.com/jt05610/galvo/amqp"
	"github.com/jt05610/galvo/amqp/server"
	"github.com/jt05610/galvo/comm/serial"
	"github.com/jt05610/galvo/daq/labjack"
	"github.com/jt05610/galvo/env"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	environ := env.LoadEnv(logger)

	port, err := serial.OpenPort(environ.SerialPort, environ.Baud)
	if err != nil {
		logger.Fatal("Failed to open port", zap.Error(err))
	}
	defer func() {
		if err := port.Close(); err != nil {
			logger.Error("Failed to close port", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := labjack.New(ctx, port, environ.Channels, environ.SampleRate, logger.Named("labjack"))
	if err != nil {
		logger.Fatal("Failed to start DAC backend", zap.Error(err))
	}

	group, err := galvo.NewGroup(ctx, environ.Table, environ.Axes, environ.Channels, environ.Initial, backend, logger.Named("galvo"))
	if err != nil {
		logger.Fatal("Failed to build axis group", zap.Error(err))
	}

	conn, err := galvoamqp.Dial(environ)
	if err != nil {
		logger.Fatal("Failed to dial amqp", zap.Error(err))
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Error("Failed to close amqp connection", zap.Error(err))
		}
	}()

	srv, err := server.New(group, conn.Channel, environ.Exchange, environ.DeviceID, logger.Named("server"))
	if err != nil {
		logger.Fatal("Failed to build server", zap.Error(err))
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c // wait for SIGINT
		cancel()
	}()

	logger.Info("Starting galvo service",
		zap.String("device", environ.DeviceID),
		zap.String("port", environ.SerialPort),
	)
	if err := srv.Listen(ctx); err != nil && err != context.Canceled {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
