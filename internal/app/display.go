package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_syncer/internal/config"
	"github.com/relabs-tech/inertial_syncer/internal/measurement"
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	synced     measurement.Synced
	haveSynced bool
	syncCount  uint64
	staleCount uint64
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	// devices/v3 v3.7.1 NewI2C has no address parameter; it uses the fixed
	// address 0x3C, which matches the DisplayI2CAddr default.
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	// Data storage
	data := &DisplayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	syncToken := client.Subscribe(cfg.TopicSynced, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var sm measurement.Synced
		if err := json.Unmarshal(msg.Payload(), &sm); err != nil {
			log.Printf("display: error unmarshaling synced record: %v", err)
			return
		}
		data.mu.Lock()
		data.synced = sm
		data.haveSynced = true
		data.syncCount++
		data.mu.Unlock()
	})
	syncToken.Wait()
	if syncToken.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.TopicSynced, syncToken.Error())
	}

	staleToken := client.Subscribe(cfg.TopicStale, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var stale []measurement.Measurement
		if err := json.Unmarshal(msg.Payload(), &stale); err != nil {
			log.Printf("display: error unmarshaling stale batch: %v", err)
			return
		}
		data.mu.Lock()
		data.staleCount += uint64(len(stale))
		data.mu.Unlock()
	})
	staleToken.Wait()
	if staleToken.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.TopicStale, staleToken.Error())
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		snapshot := DisplayData{
			synced:     *data.synced.Copy(),
			haveSynced: data.haveSynced,
			syncCount:  data.syncCount,
			staleCount: data.staleCount,
		}
		data.mu.RUnlock()

		if err := updateSyncDisplay(dev, &snapshot); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func updateSyncDisplay(dev *ssd1306.Dev, data *DisplayData) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !data.haveSynced {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Syncer"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("N:%d", data.syncCount)))

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("t:%d", data.synced.Timestamp/1_000_000)))

	drawer.Dot = fixed.P(0, 39)
	drawer.DrawBytes([]byte("S:" + slotFlags(&data.synced)))

	drawer.Dot = fixed.P(0, 52)
	drawer.DrawBytes([]byte(fmt.Sprintf("stale:%d", data.staleCount)))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

// slotFlags renders a two-letter tag per channel, uppercase when the slot
// is populated in the latest synchronized record.
func slotFlags(sm *measurement.Synced) string {
	tags := []string{"AC", "GR", "GY", "AT", "MA"}
	out := ""
	for i, k := range measurement.Kinds() {
		tag := tags[i]
		if sm.Get(k) == nil {
			tag = strings.ToLower(tag)
		}
		out += tag
		if i < len(tags)-1 {
			out += " "
		}
	}
	return out
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Inertial"))

	drawer.Dot = fixed.P(10, 43)
	drawer.DrawBytes([]byte("Syncer"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
