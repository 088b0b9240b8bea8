// Package server hosts the websocket ops feed: a hub that broadcasts
// queue lifecycle events (enqueued, completed, failed, dead, stalled)
// to connected operator dashboards.
package server

import (
	"encoding/json"
	"sync"

	"hookrelay/internal/queue"
	"hookrelay/pkg/logger"
)

// Hub maintains the set of active clients and broadcasts lifecycle
// events to them.
type Hub struct {
	notifier   *queue.Notifier
	log        *logger.Logger
	register   chan *Client
	unregister chan *Client
	clients    map[*Client]bool
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

func NewHub(notifier *queue.Notifier, log *logger.Logger) *Hub {
	return &Hub{
		notifier:   notifier,
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		stopChan:   make(chan struct{}),
	}
}

// Start begins the broadcast loop.
func (h *Hub) Start() {
	events, cancel := h.notifier.Subscribe()
	h.wg.Add(1)
	go h.run(events, cancel)
}

// Stop closes every client connection and stops the loop.
func (h *Hub) Stop() {
	close(h.stopChan)
	h.wg.Wait()
}

func (h *Hub) run(events <-chan queue.LifecycleEvent, cancel func()) {
	defer h.wg.Done()
	defer cancel()

	for {
		select {
		case <-h.stopChan:
			for client := range h.clients {
				client.Close()
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev queue.LifecycleEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Errorf("marshal lifecycle event: %v", err)
		return
	}
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			// Slow consumer: drop it rather than stall the feed.
			delete(h.clients, client)
			client.Close()
		}
	}
}
