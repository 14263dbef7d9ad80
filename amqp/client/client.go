// Package client is the supervisor side of the galvo AMQP surface: it sends
// commands and listens for the device's events, including the canceled
// events that tell it to shut down dependent operations.
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jt05610/galvo"
	galvoamqp "github.com/jt05610/galvo/amqp"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Controller struct {
	ch       *amqp.Channel
	q        *amqp.Queue
	cmd      *galvoamqp.CommandService
	event    *galvoamqp.EventService
	dataCh   chan *galvoamqp.Event
	exchange string
	deviceID string
	logger   *zap.Logger
}

func New(ch *amqp.Channel, exchange, deviceID string, logger *zap.Logger) (*Controller, error) {
	if err := ch.Confirm(false); err != nil {
		return nil, err
	}
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		false,    // durable
		false,    // delete when unused
		false,    // exclusive
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{deviceID + ".events.*", deviceID + ".error.*", deviceID + ".state.*"} {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			return nil, err
		}
	}
	return &Controller{
		ch:       ch,
		q:        &q,
		cmd:      &galvoamqp.CommandService{},
		event:    &galvoamqp.EventService{},
		exchange: exchange,
		deviceID: deviceID,
		logger:   logger,
	}, nil
}

func (c *Controller) send(ctx context.Context, name string, body interface{}) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	cmd := &galvoamqp.Command{
		To:   c.deviceID,
		Name: name,
		ID:   uuid.NewString(),
		Data: data,
	}
	p, err := c.cmd.Flush(ctx, cmd)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return cmd.ID, c.ch.PublishWithContext(ctx, c.exchange, cmd.RoutingKey(), false, false, p)
}

// GoTo requests a move. The answer arrives on Data as a moved or canceled
// event correlated by the returned command ID.
func (c *Controller) GoTo(ctx context.Context, positions map[galvo.AxisID]float64, speed float64) (string, error) {
	return c.send(ctx, "goto", galvoamqp.MoveRequest{Positions: positions, Speed: speed})
}

func (c *Controller) SetOrigin(ctx context.Context, positions map[galvo.AxisID]float64) (string, error) {
	return c.send(ctx, "set_origin", galvoamqp.OriginRequest{Positions: positions})
}

func (c *Controller) ResetPos(ctx context.Context) (string, error) {
	return c.send(ctx, "reset_pos", struct{}{})
}

// Data delivers the device's events once Listen is running.
func (c *Controller) Data() <-chan *galvoamqp.Event {
	return c.dataCh
}

func (c *Controller) Listen(ctx context.Context) error {
	c.dataCh = make(chan *galvoamqp.Event)
	msgs, err := c.ch.Consume(
		c.q.Name, // queue
		"",       // consumer
		true,     // auto-ack
		false,    // exclusive
		false,    // no-local
		false,    // no-wait
		nil,      // args
	)
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-msgs:
				event, err := c.event.Load(ctx, d)
				if err != nil {
					c.logger.Error("failed to load event", zap.Error(err))
					continue
				}
				c.dataCh <- event
			}
		}
	}()
	return nil
}
