package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"trading-dashboard/internal/analytics"
)

const writeWait = 5 * time.Second

// Message is pushed to WebSocket clients.
type Message struct {
	Type      string              `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Overview  *analytics.Overview `json:"overview,omitempty"`
	Error     string              `json:"error,omitempty"`
}

const (
	messageOverview = "overview"
	messageError    = "error"
)

// overviewCollector recomputes the default overview every refresh interval.
func (s *Server) overviewCollector() {
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Broadcast()
		case <-s.stopChannel:
			return
		}
	}
}

// clientBroadcaster pushes queued messages to all connected clients.
func (s *Server) clientBroadcaster() {
	for {
		select {
		case msg := <-s.broadcastChannel:
			s.broadcastToClients(msg)
		case <-s.stopChannel:
			return
		}
	}
}

// Broadcast queues a fresh default overview for every client. Updates are
// dropped while the queue is full.
func (s *Server) Broadcast() {
	msg := s.snapshot(context.Background())
	select {
	case s.broadcastChannel <- msg:
	default:
		log.Warn().Msg("Broadcast queue full, skipping update")
	}
}

func (s *Server) snapshot(ctx context.Context) Message {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RefreshInterval)
	defer cancel()

	msg := Message{Timestamp: s.now().UTC()}
	f, err := performanceFilter(url.Values{}, s.cfg.DefaultTimeframe, s.now())
	if err == nil {
		var overview analytics.Overview
		if overview, err = s.service.Overview(ctx, f); err == nil {
			s.telemetry.ObserveStrategies(overview.Strategies)
			msg.Type = messageOverview
			msg.Overview = &overview
			return msg
		}
	}

	log.Error().Err(err).Msg("Failed to collect overview")
	msg.Type = messageError
	msg.Error = err.Error()
	return msg
}

// broadcastToClients sends msg to all connected WebSocket clients and drops
// the ones that fail.
func (s *Server) broadcastToClients(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal overview for broadcast")
		return
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for client := range s.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("Failed to send message to WebSocket client")
			client.Close()
			delete(s.clients, client)
			s.telemetry.WSClients().Dec()
		}
	}
	s.telemetry.WSBroadcasts().Inc()
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// handleWebSocket registers a client, sends it the current overview and
// keeps it registered until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	initial, err := json.Marshal(s.snapshot(r.Context()))
	if err != nil {
		return
	}

	// Registering and sending under one lock orders the initial message
	// before any broadcast.
	s.clientsMu.Lock()
	s.clients[conn] = true
	s.telemetry.WSClients().Inc()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
		delete(s.clients, conn)
		s.telemetry.WSClients().Dec()
		s.clientsMu.Unlock()
		return
	}
	s.clientsMu.Unlock()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.clientsMu.Lock()
	if s.clients[conn] {
		delete(s.clients, conn)
		s.telemetry.WSClients().Dec()
	}
	s.clientsMu.Unlock()
}
