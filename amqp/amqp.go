// Package amqp exposes the galvo service over a RabbitMQ topic exchange,
// the transport every device in the lab is driven by. Commands arrive on
// routing keys of the form <device>.commands.<name> with JSON bodies;
// events are published to <device>.events.<name>.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jt05610/galvo"
	"github.com/jt05610/galvo/env"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MoveRequest is the body of goto commands.
type MoveRequest struct {
	Positions map[galvo.AxisID]float64 `json:"positions"`
	Speed     float64                  `json:"speed"`
}

// OriginRequest is the body of set_origin commands. An empty or missing
// positions map marks each axis's current Point as its origin.
type OriginRequest struct {
	Positions map[galvo.AxisID]float64 `json:"positions,omitempty"`
}

// MovedPayload is the body of moved and canceled events.
type MovedPayload struct {
	Positions map[galvo.AxisID]float64 `json:"positions"`
	Elapsed   float64                  `json:"elapsed"`
}

// StatePayload is the body of state events.
type StatePayload struct {
	Positions map[galvo.AxisID]float64 `json:"positions"`
	Relative  map[galvo.AxisID]float64 `json:"relative"`
	Origins   map[galvo.AxisID]float64 `json:"origins"`
}

// ErrorPayload is the body of error events.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Command is a request routed to a device.
type Command struct {
	To   string
	Name string
	ID   string
	Data json.RawMessage
}

func (c *Command) RoutingKey() string {
	return c.To + ".commands." + c.Name
}

// Event is a device's answer, published back onto the exchange.
type Event struct {
	From  string
	Topic string
	Name  string
	ID    string
	Data  interface{}
}

func (e *Event) RoutingKey() string {
	return e.From + "." + e.Topic + "." + e.Name
}

type CommandService struct{}

func (a *CommandService) Load(_ context.Context, data amqp.Delivery) (*Command, error) {
	sk := strings.Split(data.RoutingKey, ".")
	if len(sk) != 3 {
		return nil, errors.New("invalid routing key")
	}
	id := ""
	if data.Headers != nil {
		if v, ok := data.Headers["x-command-id"].(string); ok {
			id = v
		}
	}
	return &Command{
		To:   sk[0],
		Name: sk[2],
		ID:   id,
		Data: json.RawMessage(data.Body),
	}, nil
}

func (a *CommandService) Flush(_ context.Context, cmd *Command) (amqp.Publishing, error) {
	return amqp.Publishing{
		Body:         cmd.Data,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers: amqp.Table{
			"x-command-id": cmd.ID,
		},
	}, nil
}

type EventService struct{}

func (a *EventService) Load(_ context.Context, data amqp.Delivery) (*Event, error) {
	sk := strings.Split(data.RoutingKey, ".")
	if len(sk) != 3 {
		return nil, errors.New("invalid routing key")
	}
	res := &Event{From: sk[0], Topic: sk[1], Name: sk[2]}
	if data.Headers != nil {
		if v, ok := data.Headers["x-event-id"].(string); ok {
			res.ID = v
		}
	}
	if len(data.Body) == 0 {
		return res, nil
	}
	return res, json.Unmarshal(data.Body, &res.Data)
}

func (a *EventService) Flush(_ context.Context, event *Event, commandID string) (amqp.Publishing, error) {
	body, err := json.Marshal(event.Data)
	if err != nil {
		var zero amqp.Publishing
		return zero, err
	}
	return amqp.Publishing{
		Body:         body,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers: amqp.Table{
			"x-event-name": event.Name,
			"x-event-id":   event.ID,
			"x-command-id": commandID,
		},
	}, nil
}

type Connection struct {
	*amqp.Connection
	*amqp.Channel
}

func (c *Connection) Close() error {
	if c.Channel != nil {
		if err := c.Channel.Close(); err != nil {
			return err
		}
	}
	return c.Connection.Close()
}

func Dial(environ *env.Environment) (*Connection, error) {
	conn, err := amqp.Dial(environ.URI)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return &Connection{conn, ch}, nil
}
