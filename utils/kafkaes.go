package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/segmentio/kafka-go"
)

type LogMessage struct {
	Level     string            `json:"level"`
	Module    string            `json:"module"`
	Message   string            `json:"message"`
	TraceID   string            `json:"trace_id"`
	Env       string            `json:"env"`
	Timestamp time.Time         `json:"timestamp"`
	Extra     map[string]string `json:"extra"`
}

// RunLogPusher consumes request-log entries from Kafka and bulk-indexes them
// into Elasticsearch. It blocks until the context is cancelled, so run it in
// its own goroutine or as a standalone process.
func RunLogPusher(ctx context.Context, brokers []string, topic, index string) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: "es-pusher",
	})
	defer reader.Close()

	es, err := elasticsearch.NewDefaultClient()
	if err != nil {
		log.Fatalf("Error creating Elasticsearch client: %s", err)
	}

	log.Printf("Starting Kafka -> Elasticsearch pusher on topic %q", topic)

	const batchSize = 100
	const batchTimeout = 5 * time.Second

	batch := make([]LogMessage, 0, batchSize)
	timer := time.NewTimer(batchTimeout)
	defer timer.Stop()

	flushBatch := func() {
		if len(batch) == 0 {
			return
		}
		var buf bytes.Buffer
		for _, logMsg := range batch {
			docBytes, err := json.Marshal(logMsg)
			if err != nil {
				log.Printf("Marshal error: %v", err)
				continue
			}
			buf.WriteString("{\"index\":{}}\n")
			buf.Write(docBytes)
			buf.WriteString("\n")
		}
		res, err := es.Bulk(bytes.NewReader(buf.Bytes()), es.Bulk.WithIndex(index))
		if err != nil {
			log.Printf("Bulk index error: %v", err)
		} else {
			res.Body.Close()
			log.Printf("Batch of %d log entries pushed to ES", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flushBatch()
			return
		case <-timer.C:
			flushBatch()
			timer.Reset(batchTimeout)
		default:
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					flushBatch()
					return
				}
				log.Printf("Kafka read error: %v", err)
				continue
			}

			var logMsg LogMessage
			if err := json.Unmarshal(m.Value, &logMsg); err != nil {
				log.Printf("JSON decode error: %v", err)
				continue
			}

			if logMsg.Timestamp.IsZero() {
				logMsg.Timestamp = time.Now()
			}

			batch = append(batch, logMsg)
			if len(batch) >= batchSize {
				flushBatch()
				timer.Reset(batchTimeout)
			}
		}
	}
}
