package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

const queue = "operator_events"

// Публикация событий для оператора: новые заявки на баллы, выпущенные ключи
type RabbitNotifier struct {
	conn *amqp.Connection
	mu   sync.Mutex
	ch   publisher
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

func NewRabbitNotifier(url string, port string, user string, pass string) (*RabbitNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("env RABBIT_URL is not set")
	}
	rabbitconn := "amqp://" + user + ":" + pass + "@" + url + ":" + port + "/membership"
	conn, err := amqp.Dial(rabbitconn)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &RabbitNotifier{conn: conn, ch: ch}, nil
}

func (r *RabbitNotifier) Notify(ctx context.Context, event models.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// канал amqp не безопасен для конкурентной публикации
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch.PublishWithContext(ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         event.Type,
			Body:         body,
		})
}

func (r *RabbitNotifier) Close() {
	r.ch.Close()
	if r.conn != nil {
		r.conn.Close()
	}
}
