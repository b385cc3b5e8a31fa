// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/inertial_syncer/internal/config"
	"github.com/relabs-tech/inertial_syncer/internal/measurement"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local dashboard; accept any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClients tracks active websocket subscribers to the live synced
// stream.
type wsClients struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func (c *wsClients) add(conn *websocket.Conn) {
	c.mu.Lock()
	c.conns[conn] = true
	c.mu.Unlock()
}

func (c *wsClients) remove(conn *websocket.Conn) {
	c.mu.Lock()
	delete(c.conns, conn)
	c.mu.Unlock()
	conn.Close()
}

// broadcast writes payload to every client, dropping the ones that fail.
func (c *wsClients) broadcast(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for conn := range c.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(c.conns, conn)
			conn.Close()
		}
	}
}

// RunWeb subscribes to the synced topic and serves the latest snapshot as
// JSON plus a websocket live stream.
func RunWeb() error {
	cfg := config.Get()

	var (
		mu         sync.RWMutex
		lastSynced measurement.Synced
		haveSynced bool
	)
	clients := &wsClients{conns: make(map[*websocket.Conn]bool)}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicSynced, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var sm measurement.Synced
		if err := json.Unmarshal(msg.Payload(), &sm); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastSynced = sm
		haveSynced = true
		mu.Unlock()

		clients.broadcast(msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicSynced)

	http.HandleFunc("/api/synced", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveSynced {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(&lastSynced); err != nil {
			log.Printf("json encode error: %v", err)
		}
	})

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}
		clients.add(conn)
		log.Printf("websocket client connected: %s", conn.RemoteAddr())

		// Reader loop only to detect disconnect.
		go func() {
			defer clients.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
						log.Printf("websocket error: %v", err)
					}
					return
				}
			}
		}()
	})

	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	log.Printf("web server listening on %s", cfg.WebListenAddr)
	return http.ListenAndServe(cfg.WebListenAddr, nil)
}
