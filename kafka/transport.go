package kafka

import (
	"context"
	"fmt"
	"sort"

	"github.com/segmentio/kafka-go"
)

// Connect performs the handshake: a metadata request must reach a broker and
// list at least one broker back.
func (t *KafkaTransport) Connect(ctx context.Context) error {
	resp, err := t.client.Metadata(ctx, &kafka.MetadataRequest{Addr: t.addr})
	if err != nil {
		return classifyError(err)
	}
	if len(resp.Brokers) == 0 {
		return fmt.Errorf("%w: metadata response lists no brokers", ErrBrokerNotAvailable)
	}
	return nil
}

// Send picks a partition with the configured balancer and produces msg as a
// single record batch, waiting for the configured acknowledgments.
func (t *KafkaTransport) Send(ctx context.Context, msg Message) (Ack, error) {
	partitions, err := t.topicPartitions(ctx, msg.Topic)
	if err != nil {
		return Ack{}, err
	}

	partition := t.balancer.Balance(kafka.Message{
		Topic: msg.Topic,
		Key:   msg.Key,
		Value: msg.Value,
	}, partitions...)

	record := kafka.Record{
		Time:  t.now(),
		Value: kafka.NewBytes(msg.Value),
	}
	if msg.Key != nil {
		record.Key = kafka.NewBytes(msg.Key)
	}
	for _, h := range msg.Headers {
		record.Headers = append(record.Headers, kafka.Header{Key: h.Key, Value: h.Value})
	}

	resp, err := t.client.Produce(ctx, &kafka.ProduceRequest{
		Topic:        msg.Topic,
		Partition:    partition,
		RequiredAcks: kafka.RequiredAcks(*t.cfg.RequiredAcks),
		Compression:  t.compression,
		Records:      kafka.NewRecordReader(record),
	})
	if err != nil {
		t.forgetTopic(msg.Topic)
		return Ack{}, classifyError(err)
	}
	if resp.Error != nil {
		t.forgetTopic(msg.Topic)
		return Ack{}, classifyError(resp.Error)
	}
	if recordErr := resp.RecordErrors[0]; recordErr != nil {
		return Ack{}, classifyError(recordErr)
	}

	ack := Ack{
		Topic:     msg.Topic,
		Partition: partition,
		Offset:    resp.BaseOffset,
		Timestamp: record.Time,
	}
	if !resp.LogAppendTime.IsZero() {
		ack.Timestamp = resp.LogAppendTime
	}
	if *t.cfg.RequiredAcks == RequireNone {
		ack.Offset = -1
	}
	return ack, nil
}

// Disconnect closes the pooled broker connections.
func (t *KafkaTransport) Disconnect(context.Context) error {
	t.transport.CloseIdleConnections()

	t.mu.Lock()
	t.partitions = make(map[string]topicPartitions)
	t.mu.Unlock()
	return nil
}

func (t *KafkaTransport) topicPartitions(ctx context.Context, topic string) ([]int, error) {
	t.mu.Lock()
	cached, ok := t.partitions[topic]
	t.mu.Unlock()
	if ok && t.now().Sub(cached.fetched) < t.cfg.MetadataTTL {
		return cached.ids, nil
	}

	resp, err := t.client.Metadata(ctx, &kafka.MetadataRequest{Addr: t.addr, Topics: []string{topic}})
	if err != nil {
		return nil, classifyError(err)
	}

	for _, tm := range resp.Topics {
		if tm.Name != topic {
			continue
		}
		if tm.Error != nil {
			return nil, classifyError(tm.Error)
		}
		ids := make([]int, 0, len(tm.Partitions))
		for _, p := range tm.Partitions {
			ids = append(ids, p.ID)
		}
		if len(ids) == 0 {
			break
		}
		sort.Ints(ids)

		t.mu.Lock()
		t.partitions[topic] = topicPartitions{ids: ids, fetched: t.now()}
		t.mu.Unlock()
		return ids, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTopicNotFound, topic)
}

func (t *KafkaTransport) forgetTopic(topic string) {
	t.mu.Lock()
	delete(t.partitions, topic)
	t.mu.Unlock()
}
