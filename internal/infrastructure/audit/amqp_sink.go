package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
)

// DefaultExchange exchange topic donde se publican las transiciones.
const DefaultExchange = "stockledger.events"

// Publisher subconjunto de *amqp.Channel usado por el sink.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publica cada evento como JSON persistente en un exchange topic.
// Routing key: ledger.<agregado>.<tipo>.
type AMQPSink struct {
	mu       sync.Mutex
	exchange string
	pub      Publisher
	conn     *amqp.Connection
	url      string
	log      zerolog.Logger
}

var _ ports.AuditSink = (*AMQPSink)(nil)

// NewAMQPSink crea el sink sobre un canal ya abierto.
func NewAMQPSink(pub Publisher, exchange string, log zerolog.Logger) *AMQPSink {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQPSink{exchange: exchange, pub: pub, log: log.With().Str("component", "audit_amqp").Logger()}
}

// DialAMQPSink conecta al broker, abre un canal y declara el exchange (topic, durable).
func DialAMQPSink(url, exchange string, log zerolog.Logger) (*AMQPSink, error) {
	s := NewAMQPSink(nil, exchange, log)
	s.url = url
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AMQPSink) connect() error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("audit: conectar AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("audit: abrir canal AMQP: %w", err)
	}
	if err := ch.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("audit: declarar exchange %s: %w", s.exchange, err)
	}
	s.conn = conn
	s.pub = ch
	s.log.Info().Str("exchange", s.exchange).Msg("publicador AMQP conectado")
	return nil
}

// RoutingKey clave de ruteo del evento.
func RoutingKey(ev ports.AuditEvent) string {
	return fmt.Sprintf("ledger.%s.%s", ev.AggregateType, ev.Type)
}

// Record serializa y publica el evento. Si el canal se cerró y el sink conoce la URL,
// reconecta una vez antes de fallar.
func (s *AMQPSink) Record(ctx context.Context, ev ports.AuditEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: serializar evento: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.New().String(),
		Timestamp:    ev.OccurredAt,
		Headers: amqp.Table{
			"aggregate_type": ev.AggregateType,
			"aggregate_id":   ev.AggregateID,
			"event_type":     ev.Type,
		},
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := RoutingKey(ev)
	err = s.publish(key, msg)
	if err != nil && errors.Is(err, amqp.ErrClosed) && s.url != "" {
		s.log.Warn().Err(err).Msg("canal AMQP cerrado, reconectando")
		if cerr := s.connect(); cerr != nil {
			return cerr
		}
		err = s.publish(key, msg)
	}
	if err != nil {
		return fmt.Errorf("audit: publicar %s: %w", key, err)
	}
	s.log.Debug().Str("routing_key", key).Str("aggregate_id", ev.AggregateID).Msg("evento publicado")
	return nil
}

func (s *AMQPSink) publish(key string, msg amqp.Publishing) error {
	if s.pub == nil {
		return amqp.ErrClosed
	}
	return s.pub.Publish(s.exchange, key, false, false, msg)
}

// Close cierra canal y conexión.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if ch, ok := s.pub.(*amqp.Channel); ok && ch != nil {
		errs = append(errs, ch.Close())
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	s.pub, s.conn = nil, nil
	return errors.Join(errs...)
}
