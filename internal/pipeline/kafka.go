package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageSource abstracts the pub/sub transport behind the pipeline.
type MessageSource interface {
	// ReadMessage blocks until the next message or context cancellation.
	ReadMessage(ctx context.Context) ([]byte, error)
	Close() error
}

// KafkaSourceConfig configures the Kafka transport.
type KafkaSourceConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	ConnectTimeout time.Duration
	MaxRetries     int
}

type kafkaSource struct {
	reader *kafka.Reader
}

// ConnectKafka verifies the endpoint is reachable, retrying with
// exponential backoff, then opens a topic reader. Exhausting the retry
// budget surfaces as a ConnectFailed condition to the pipeline.
func ConnectKafka(ctx context.Context, cfg KafkaSourceConfig, logger *zap.Logger) (MessageSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no brokers configured")
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.MaxRetries)), ctx)

	dial := func() error {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		conn, err := kafka.DialContext(dialCtx, "tcp", cfg.Brokers[0])
		if err != nil {
			logger.Warn("Kafka dial failed, will retry",
				zap.String("broker", cfg.Brokers[0]),
				zap.Error(err))
			return err
		}
		return conn.Close()
	}
	if err := backoff.Retry(dial, policy); err != nil {
		return nil, err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &kafkaSource{reader: reader}, nil
}

func (s *kafkaSource) ReadMessage(ctx context.Context) ([]byte, error) {
	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}
	return msg.Value, nil
}

func (s *kafkaSource) Close() error { return s.reader.Close() }
