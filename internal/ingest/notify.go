package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Notifier 导入任务结束后发布报告
type Notifier interface {
	Publish(ctx context.Context, report *Report) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier 以 run_id 为 key 将报告写入 Kafka
type KafkaNotifier struct {
	writer messageWriter
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  brokers,
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		}),
	}
}

func (n *KafkaNotifier) Publish(ctx context.Context, report *Report) error {
	value, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("序列化导入报告失败: %w", err)
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(report.RunID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(report.Status)},
			{Key: "trigger", Value: []byte(report.Trigger)},
		},
	})
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
