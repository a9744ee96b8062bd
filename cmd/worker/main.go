package main // audit worker entry point

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/essenza/room-booking/internal/queue"
)

// The worker consumes booking lifecycle events from RabbitMQ and appends
// them to logs/booking.log. It runs separately from the API server so a
// broker outage or slow disk never slows down reservation requests.
func main() {
	_ = godotenv.Load()

	log.Println("booking audit worker starting")
	if err := queue.StartAuditConsumer(); err != nil {
		log.Fatal(err)
	}
}
