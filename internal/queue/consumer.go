package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const auditLogFile = "booking.log"

var auditMu sync.Mutex

// StartAuditConsumer connects to RabbitMQ, declares the booking.held and
// booking.released queues (durable), and appends every event to
// logs/booking.log in a single-line, human-friendly format. It runs a
// reconnect loop with exponential backoff and keeps running indefinitely;
// processing errors are logged and the offending message is rejected
// without requeueing so the worker never spins on a poison message.
func StartAuditConsumer() error {
	url := BrokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("audit-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("audit-consumer: set QoS failed: %v", err)
	}

	for _, name := range []string{BookingHeldQueue, BookingReleasedQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	held, err := ch.Consume(BookingHeldQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", BookingHeldQueue, err)
	}
	released, err := ch.Consume(BookingReleasedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", BookingReleasedQueue, err)
	}

	for {
		select {
		case d, ok := <-held:
			if !ok {
				return errors.New("booking.held deliveries channel closed")
			}
			ackOrReject(d, handleHeld(d.Body))
		case d, ok := <-released:
			if !ok {
				return errors.New("booking.released deliveries channel closed")
			}
			ackOrReject(d, handleReleased(d.Body))
		}
	}
}

func ackOrReject(d amqp.Delivery, err error) {
	if err != nil {
		log.Printf("audit-consumer: handle message failed: %v", err)
		_ = d.Nack(false, false) // reject, do not requeue
		return
	}
	_ = d.Ack(false)
}

func handleHeld(body []byte) error {
	var ev BookingHeldEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Slots held | booking_ids=[%s] | room_id=%s | user_id=%s | total=%.2f | session_id=%s\n",
		ev.HeldAt, strings.Join(ev.BookingIDs, ","), ev.RoomID, ev.UserID, ev.TotalPrice, ev.SessionID)
	return appendAuditLine(line)
}

func handleReleased(body []byte) error {
	var ev BookingReleasedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Slots released | booking_ids=[%s] | room_id=%s | user_id=%s | reason=%q\n",
		ev.ReleasedAt, strings.Join(ev.BookingIDs, ","), ev.RoomID, ev.UserID, ev.Reason)
	return appendAuditLine(line)
}

func appendAuditLine(line string) error {
	auditMu.Lock()
	defer auditMu.Unlock()
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", auditLogFile)
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
