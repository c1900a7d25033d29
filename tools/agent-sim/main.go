// agent-sim runs a fleet of fake desktop agents against a relay,
// each registering, emitting frames at the capture interval, and
// reporting status once a minute. Useful for soak-testing routing and
// the polling fallback locally.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"workwatch.service/pkg/agentclient"
)

func main() {
	relayURL := flag.String("relay", "ws://localhost:8080/ws", "relay WebSocket URL")
	agents := flag.Int("agents", 10, "number of simulated agents")
	frameInterval := flag.Duration("frame-interval", 2*time.Second, "frame capture interval")
	frameSize := flag.Int("frame-size", 64<<10, "fake frame payload size in bytes")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	fmt.Printf("Simulating %d agents against %s\n", *agents, *relayURL)

	var wg sync.WaitGroup
	for i := 0; i < *agents; i++ {
		wg.Add(1)
		agentID := fmt.Sprintf("sim-agent-%d", i)

		go func(id string) {
			defer wg.Done()
			runAgent(ctx, *relayURL, id, *frameInterval, *frameSize)
		}(agentID)
	}

	wg.Wait()
	fmt.Println("All simulated agents stopped")
}

func runAgent(ctx context.Context, relayURL, agentID string, frameInterval time.Duration, frameSize int) {
	client := agentclient.New(relayURL, agentID)
	go client.Run(ctx)

	frames := time.NewTicker(frameInterval)
	defer frames.Stop()
	status := time.NewTicker(time.Minute)
	defer status.Stop()

	var sent, dropped int
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("%s: %d frames sent, %d dropped locally\n", agentID, sent, dropped)
			return
		case <-frames.C:
			if client.SendFrame(fakeFrame(frameSize), time.Now()) {
				sent++
			} else {
				dropped++
			}
		case <-status.C:
			client.SendStatus("online")
		}
	}
}

// fakeFrame builds a JSON string payload shaped like the agent's data
// URL screenshots.
func fakeFrame(size int) json.RawMessage {
	buf := make([]byte, size)
	rand.Read(buf)
	encoded := base64.StdEncoding.EncodeToString(buf)
	frame, _ := json.Marshal("data:image/jpeg;base64," + encoded)
	return frame
}
