// Package queue publishes dashboard view snapshots to a message queue.
//
// QueuePublisher is the transport abstraction; KafkaPublisher implements it on top of a
// confluent-kafka-go producer with synchronous delivery. SnapshotPublisher turns view
// snapshots into queue messages keyed by view kind.
//
// Every QueuePublisher must be closed exactly once to flush in-flight messages.
package queue
