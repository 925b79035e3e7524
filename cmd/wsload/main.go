// Package main provides a load testing tool for the comments WebSocket feed.
// Each client joins the comments group and counts the events it receives.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"commentboard/internal/models"

	"github.com/gorilla/websocket"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	NewComments          int64
	DeletedComments      int64
	OtherMessages        int64
	Errors               int64
}

var metrics Metrics

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	clients := flag.Int("clients", 50, "Number of concurrent clients")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	stagger := flag.Duration("stagger", 20*time.Millisecond, "Delay between client connections")
	flag.Parse()

	log.Printf("🚀 Starting comments feed load test")
	log.Printf("Target: %s", *host)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, stopChan, &wg)
		time.Sleep(*stagger)
	}

	select {
	case <-time.After(*duration):
		log.Println("⏱️  Test duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func runClient(host string, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	u := url.URL{Scheme: "ws", Host: host, Path: "/ws/comments"}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	if err := send(c, models.RealtimeJoinComments); err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			countFrame(data)
		}
	}()

	select {
	case <-stopChan:
		_ = send(c, models.RealtimeLeaveComments)
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-readDone:
		case <-time.After(time.Second):
		}
	case <-readDone:
		atomic.AddInt64(&metrics.Errors, 1)
	}
}

func send(c *websocket.Conn, msgType string) error {
	msg, _ := json.Marshal(map[string]string{"type": msgType})
	return c.WriteMessage(websocket.TextMessage, msg)
}

func countFrame(data []byte) {
	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	switch frame.Type {
	case models.RealtimeNewComment:
		atomic.AddInt64(&metrics.NewComments, 1)
	case models.RealtimeDeletedComment:
		atomic.AddInt64(&metrics.DeletedComments, 1)
	default:
		atomic.AddInt64(&metrics.OtherMessages, 1)
	}
}

func printMetrics() {
	log.Println("\n📊 Test Results")
	log.Println("===============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("NewComment events: %d", atomic.LoadInt64(&metrics.NewComments))
	log.Printf("DeletedComment events: %d", atomic.LoadInt64(&metrics.DeletedComments))
	log.Printf("Other messages: %d", atomic.LoadInt64(&metrics.OtherMessages))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
