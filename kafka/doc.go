// Package kafka manages the broker connection used to publish events.
//
// The Connection type is the lifecycle owner: it serialises connect and
// close sequences, retries connects with bounded exponential backoff, refuses
// sends unless it is Ready and lets in-flight sends finish before the
// transport is torn down on Close.
//
// The network work is behind the Transport interface. KafkaTransport, the
// default implementation, uses a segmentio/kafka-go Client: the handshake is
// a metadata request, and each send picks a partition with the configured
// balancer (murmur2 by default, matching the Java client) and issues a
// produce request whose response carries the assigned partition and offset.
//
//	conn, err := kafka.NewClient(kafka.Config{
//	    Brokers:            []string{"localhost:9092"},
//	    MaxConnectAttempts: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer conn.Close(context.Background())
//
//	if err := conn.EnsureReady(ctx); err != nil {
//	    return err // wraps kafka.ErrConnection
//	}
//	ack, err := conn.Send(ctx, kafka.Message{Topic: "orders", Key: []byte("SO-1"), Value: body})
//
// Errors wrap ErrConnection when the broker could not be reached and ErrSend
// when a reachable broker refused the message. Context errors are passed
// through unchanged.
package kafka
