// Package stream fans newly recorded entries out to websocket subscribers, one topic per
// patient.
package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/domain"
)

// Subscription receives entries for one patient until it is cancelled.
type Subscription struct {
	PatientID string
	C         <-chan *domain.Entry

	ch      chan *domain.Entry
	hub     *Hub
	once    sync.Once
	dropped int64
}

// Cancel unregisters the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Dropped returns how many entries were discarded because the subscriber fell behind.
func (s *Subscription) Dropped() int64 {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.dropped
}

// Hub is a per-patient broadcast point. It implements domain.EntryPublisher.
type Hub struct {
	cfg      domain.StreamConfig
	log      *logrus.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates a hub. Zero config values fall back to defaults.
func NewHub(cfg domain.StreamConfig, logger *logrus.Logger) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	return &Hub{
		cfg: cfg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber for patientID.
func (h *Hub) Subscribe(patientID string) *Subscription {
	ch := make(chan *domain.Entry, h.cfg.BufferSize)
	sub := &Subscription{PatientID: patientID, C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[patientID] == nil {
		h.subs[patientID] = make(map[*Subscription]struct{})
	}
	h.subs[patientID][sub] = struct{}{}
	return sub
}

// Publish delivers entry to every subscriber of its patient. It never blocks: a subscriber
// whose buffer is full misses the entry.
func (h *Hub) Publish(entry *domain.Entry) {
	if entry == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[entry.PatientID] {
		select {
		case sub.ch <- entry:
		default:
			sub.dropped++
			h.log.WithFields(logrus.Fields{
				"patient_id": entry.PatientID,
				"entry_id":   entry.ID,
			}).Warn("Stream subscriber is behind, dropping entry")
		}
	}
}

// Subscribers returns the number of live subscribers for patientID.
func (h *Hub) Subscribers(patientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[patientID])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.PatientID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.PatientID)
		}
	}
	close(sub.ch)
}

// ServeWS upgrades the request and streams patientID's new entries as JSON text frames,
// with periodic pings, until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, patientID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).WithField("patient_id", patientID).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.Subscribe(patientID)
	defer sub.Cancel()

	h.log.WithField("patient_id", patientID).Info("Stream subscriber connected")
	defer h.log.WithField("patient_id", patientID).Info("Stream subscriber disconnected")

	// The read side only consumes control frames and notices the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case entry, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteJSON(entry); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}
