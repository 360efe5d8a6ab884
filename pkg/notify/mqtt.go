// Package notify announces exported models over MQTT so running model servers
// pick them up without a restart.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gniziemazity/ml-course-phase-2/pkg/export"
	"github.com/gniziemazity/ml-course-phase-2/pkg/pipeline"
)

// DefaultTimeout bounds every broker round trip.
const DefaultTimeout = 10 * time.Second

var ErrTimeout = errors.New("notify: broker did not acknowledge in time")

// Client is the part of mqtt.Client used here.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Connect opens an auto-reconnecting client to broker, e.g. tcp://localhost:1883.
func Connect(broker, clientID string, logger *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	if clientID == "" {
		clientID = fmt.Sprintf("ml-course-%d", time.Now().Unix())
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("connected to MQTT broker", slog.String("broker", broker))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(DefaultTimeout) {
		return nil, ErrTimeout
	} else if token.Error() != nil {
		return nil, fmt.Errorf("notify: connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// Publisher sends model documents to a topic. Messages are retained, so a
// subscriber that connects later still receives the latest model.
type Publisher struct {
	client Client
	topic  string
}

func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Publish sends the JSON form of doc.
func (p *Publisher) Publish(doc *export.Document) error {
	payload, err := doc.Encode()
	if err != nil {
		return err
	}
	return wait(p.client.Publish(p.topic, 1, true, payload))
}

// RunFinished publishes the exported model of a pipeline run.
func (p *Publisher) RunFinished(_ context.Context, _ *pipeline.Result, doc *export.Document) error {
	return p.Publish(doc)
}

// Subscribe decodes every model published on topic and hands it to onModel.
// Payloads that do not decode are logged and dropped.
func Subscribe(client Client, topic string, logger *slog.Logger, onModel func(*export.Document) error) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		doc, err := export.Decode(msg.Payload())
		if err != nil {
			logger.Warn("ignoring model message", slog.String("topic", msg.Topic()), slog.Any("error", err))
			return
		}
		if err := onModel(doc); err != nil {
			logger.Error("model update rejected", slog.String("topic", msg.Topic()), slog.Any("error", err))
			return
		}
		logger.Info("model updated", slog.String("topic", msg.Topic()), slog.Any("neuronCounts", doc.NeuronCounts))
	}
	return wait(client.Subscribe(topic, 1, handler))
}

func wait(token mqtt.Token) error {
	if !token.WaitTimeout(DefaultTimeout) {
		return ErrTimeout
	}
	return token.Error()
}
