// Package server runs a galvo.Group as an AMQP-driven device service.
package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jt05610/galvo"
	galvoamqp "github.com/jt05610/galvo/amqp"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Server struct {
	group    *galvo.Group
	ch       *amqp.Channel
	q        *amqp.Queue
	cmd      *galvoamqp.CommandService
	event    *galvoamqp.EventService
	exchange string
	deviceID string
	logger   *zap.Logger
}

// New declares the topic exchange and binds a queue for every command the
// galvo understands plus the state query.
func New(group *galvo.Group, ch *amqp.Channel, exchange, deviceID string, logger *zap.Logger) (*Server, error) {
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
	for _, key := range []string{deviceID + ".commands.*", deviceID + ".state.get"} {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			return nil, err
		}
	}
	return &Server{
		group:    group,
		ch:       ch,
		q:        &q,
		cmd:      &galvoamqp.CommandService{},
		event:    &galvoamqp.EventService{},
		exchange: exchange,
		deviceID: deviceID,
		logger:   logger,
	}, nil
}

func (s *Server) newEvent(topic, name string, data interface{}) *galvoamqp.Event {
	return &galvoamqp.Event{
		From:  s.deviceID,
		Topic: topic,
		Name:  name,
		ID:    uuid.NewString(),
		Data:  data,
	}
}

func (s *Server) errEvent(err error) *galvoamqp.Event {
	return s.newEvent("error", "failed", galvoamqp.ErrorPayload{Message: err.Error()})
}

func (s *Server) stateEvent() *galvoamqp.Event {
	return s.newEvent("state", "current", galvoamqp.StatePayload{
		Positions: s.group.Pos(),
		Relative:  s.group.RelPos(),
		Origins:   s.group.Origin(),
	})
}

// handle executes one command against the group. A canceled move comes back
// as a canceled event carrying the reconciled positions, so a supervisor
// catching it can stop dependent routines (e.g. the laser) knowing exactly
// where the beam is parked.
func (s *Server) handle(ctx context.Context, cmd *galvoamqp.Command) *galvoamqp.Event {
	switch cmd.Name {
	case "goto":
		var req galvoamqp.MoveRequest
		if err := json.Unmarshal(cmd.Data, &req); err != nil {
			return s.errEvent(err)
		}
		return s.moveEvent(s.group.GoTo(ctx, req.Positions, req.Speed))
	case "reset_pos":
		return s.moveEvent(s.group.ResetPos(ctx))
	case "set_origin":
		var req galvoamqp.OriginRequest
		if len(cmd.Data) > 0 {
			if err := json.Unmarshal(cmd.Data, &req); err != nil {
				return s.errEvent(err)
			}
		}
		if len(req.Positions) == 0 {
			s.group.SetOrigin(nil)
		} else {
			s.group.SetOrigin(req.Positions)
		}
		return s.newEvent("events", "origin_set", galvoamqp.StatePayload{Origins: s.group.Origin()})
	case "reset_origin":
		s.group.ResetOrigin()
		return s.newEvent("events", "origin_set", galvoamqp.StatePayload{Origins: s.group.Origin()})
	case "get":
		return s.stateEvent()
	default:
		return s.errEvent(errors.New("unknown command: " + cmd.Name))
	}
}

func (s *Server) moveEvent(positions map[galvo.AxisID]float64, elapsed float64, err error) *galvoamqp.Event {
	if err != nil {
		var canceled *galvo.Canceled
		if errors.As(err, &canceled) {
			return s.newEvent("events", "canceled", galvoamqp.MovedPayload{
				Positions: canceled.Positions,
				Elapsed:   canceled.Elapsed,
			})
		}
		return s.errEvent(err)
	}
	return s.newEvent("events", "moved", galvoamqp.MovedPayload{Positions: positions, Elapsed: elapsed})
}

func (s *Server) publish(ctx context.Context, event *galvoamqp.Event, commandID string) {
	resp, err := s.event.Flush(ctx, event, commandID)
	if err != nil {
		s.logger.Error("failed to flush event", zap.Error(err))
		return
	}
	if err := s.ch.PublishWithContext(ctx, s.exchange, event.RoutingKey(), false, false, resp); err != nil {
		s.logger.Error("failed to publish event", zap.Error(err))
	}
}

// Listen consumes commands until ctx is canceled. Commands run one at a
// time on this goroutine; the group is never driven concurrently.
func (s *Server) Listen(ctx context.Context) error {
	msgs, err := s.ch.Consume(
		s.q.Name, // queue
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
	s.logger.Info("listening", zap.String("device", s.deviceID), zap.String("exchange", s.exchange))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-msgs:
			cmd, err := s.cmd.Load(ctx, d)
			if err != nil {
				s.logger.Error("failed to load command", zap.Error(err))
				continue
			}
			s.logger.Info("received command", zap.String("name", cmd.Name), zap.String("id", cmd.ID))
			s.publish(ctx, s.handle(ctx, cmd), cmd.ID)
		}
	}
}
