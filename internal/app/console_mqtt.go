package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_syncer/internal/config"
	"github.com/relabs-tech/inertial_syncer/internal/measurement"
)

// RunConsoleMQTT subscribes to the synced and stale topics and prints
// every message in a compact one-line form.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	syncedToken := client.Subscribe(cfg.TopicSynced, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var sm measurement.Synced
		if err := json.Unmarshal(msg.Payload(), &sm); err != nil {
			log.Printf("console: synced unmarshal error: %v", err)
			return
		}
		fmt.Printf("[SYNC] t=%d%s\n", sm.Timestamp, formatSlots(&sm))
	})
	syncedToken.Wait()
	if syncedToken.Error() != nil {
		return syncedToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicSynced)

	staleToken := client.Subscribe(cfg.TopicStale, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var batch []measurement.Measurement
		if err := json.Unmarshal(msg.Payload(), &batch); err != nil {
			log.Printf("console: stale unmarshal error: %v", err)
			return
		}
		fmt.Printf("[STALE] dropped %d measurements\n", len(batch))
	})
	staleToken.Wait()
	if staleToken.Error() != nil {
		return staleToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStale)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("console: shutting down")
	return nil
}

func formatSlots(sm *measurement.Synced) string {
	out := ""
	for _, k := range measurement.Kinds() {
		m := sm.Get(k)
		if m == nil {
			continue
		}
		out += fmt.Sprintf("  %s=(%.3f, %.3f, %.3f)@%d", k, m.X, m.Y, m.Z, m.Timestamp)
	}
	return out
}
