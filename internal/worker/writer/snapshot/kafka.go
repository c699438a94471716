package snapshot

import (
	"context"
	"time"

	"silo-snapshots/internal/worker/model"
	"silo-snapshots/internal/worker/writer"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const RETRY_COUNT = 3

type KafkaSnapshotWriter struct {
	mq *kafka.Writer
	tl *zap.Logger

	topic string
}

func NewKafkaSnapshotWriter(mq *kafka.Writer, tl *zap.Logger, topic string) writer.BatchWriter[model.SnapshotRecord] {
	return &KafkaSnapshotWriter{mq: mq, tl: tl, topic: topic}
}

func (w *KafkaSnapshotWriter) BWrite(ctx context.Context, records []model.SnapshotRecord) error {
	if len(records) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(records))
	for _, record := range records {
		msgs = append(msgs, w.marshalToMsg(record))
	}

	newCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var err error
	for attempt := 0; attempt < RETRY_COUNT; attempt++ {
		err = w.mq.WriteMessages(newCtx, msgs...)
		if err == nil {
			break
		}
	}
	if err != nil {
		w.tl.Warn("❌ MQ write failed, exceeded the maximum number of retries", zap.Error(err))
		return err
	}
	return nil
}

func (w *KafkaSnapshotWriter) Close() error {
	return nil
}

func (w *KafkaSnapshotWriter) marshalToMsg(record model.SnapshotRecord) kafka.Message {
	event := model.NewSnapshotEvent(record)
	jsonData, _ := sonic.Marshal(event)
	return kafka.Message{
		Topic: w.topic,
		Key:   []byte(record.IntegrationID),
		Value: jsonData,
	}
}
