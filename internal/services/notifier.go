package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/config"
	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/pipeline"
)

const progressQueueSize = 64

// ProgressNotifier publishes human readable progress strings. Notify never blocks
// and never reports failure; messages are dropped when the queue is full.
type ProgressNotifier interface {
	Notify(channel, message string)
	// For returns an observer that reports stage checkpoints to channel.
	For(channel string) pipeline.Observer
	Close() error
}

// Publisher is the part of *amqp.Channel the notifier needs.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type ProgressMessage struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

var stageMessages = map[string]string{
	StageCV:               "Reading your CV",
	StageJob:              "Reading the job posting",
	StageCandidate:        "Comparing your CV with the job requirements",
	StageRevision:         "Rewriting your CV for this role",
	StageInterview:        "Preparing interview questions",
	StageHRD:              "Scoring the candidate",
	StageLinkedInOverview: "Reading the profile overview",
	StageLinkedInAnalysis: "Writing the profile critique",
}

// StageMessage maps a stage checkpoint to the text shown to the user.
func StageMessage(stageID, status string) string {
	label, ok := stageMessages[stageID]
	if !ok {
		if section, found := strings.CutPrefix(stageID, linkedInSectionPrefix); found {
			label = "Reading " + strings.ReplaceAll(section, "_", " ")
		} else {
			label = stageID
		}
	}
	switch status {
	case "finished":
		return label + " ✓"
	case "failed":
		return label + " failed"
	default:
		return label + "..."
	}
}

type amqpNotifier struct {
	pub      Publisher
	exchange string
	closer   io.Closer
	log      *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
	queue  chan ProgressMessage
	done   chan struct{}
}

// NewProgressNotifier connects to RabbitMQ and declares the progress topic exchange.
// An empty broker URL yields a notifier that discards everything.
func NewProgressNotifier(cfg config.BrokerConfig, log *zap.SugaredLogger) (ProgressNotifier, error) {
	log = logger.OrNop(log)
	if cfg.URL == "" {
		log.Infow("⚠️ RabbitMQ not configured, progress notifications disabled")
		return NopNotifier{}, nil
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open rabbitmq channel")
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "failed to declare exchange %s", cfg.Exchange)
	}

	log.Infow("✅ Progress notifier connected", "exchange", cfg.Exchange)
	return NewPublisherNotifier(ch, cfg.Exchange, conn, log), nil
}

// NewPublisherNotifier starts the publishing goroutine over pub. closer, when
// non-nil, is closed after the queue drains.
func NewPublisherNotifier(pub Publisher, exchange string, closer io.Closer, log *zap.SugaredLogger) ProgressNotifier {
	n := &amqpNotifier{
		pub:      pub,
		exchange: exchange,
		closer:   closer,
		log:      logger.OrNop(log),
		queue:    make(chan ProgressMessage, progressQueueSize),
		done:     make(chan struct{}),
	}
	go n.loop()
	return n
}

func (n *amqpNotifier) Notify(channel, message string) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}

	select {
	case n.queue <- ProgressMessage{Channel: channel, Message: message}:
	default:
		n.log.Debugw("Progress queue full, dropping message", "channel", channel)
	}
}

func (n *amqpNotifier) For(channel string) pipeline.Observer {
	return progressObserver{notifier: n, channel: channel}
}

func (n *amqpNotifier) loop() {
	defer close(n.done)
	for msg := range n.queue {
		body, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		err = n.pub.Publish(n.exchange, fmt.Sprintf("progress.%s", msg.Channel), false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
		if err != nil {
			n.log.Warnw("⚠️ Failed to publish progress", "channel", msg.Channel, "error", err)
		}
	}
}

func (n *amqpNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	<-n.done
	if n.closer != nil {
		return n.closer.Close()
	}
	return nil
}

type progressObserver struct {
	notifier ProgressNotifier
	channel  string
}

func (o progressObserver) StageStarted(_ context.Context, stageID string) {
	o.notifier.Notify(o.channel, StageMessage(stageID, "started"))
}

func (o progressObserver) StageFinished(_ context.Context, stageID string, _ *pipeline.StageResult) {
	o.notifier.Notify(o.channel, StageMessage(stageID, "finished"))
}

func (o progressObserver) StageFailed(_ context.Context, stageID string, _ error) {
	o.notifier.Notify(o.channel, StageMessage(stageID, "failed"))
}

// NopNotifier discards all progress.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string) {}

func (n NopNotifier) For(channel string) pipeline.Observer {
	return progressObserver{notifier: n, channel: channel}
}

func (NopNotifier) Close() error { return nil }
