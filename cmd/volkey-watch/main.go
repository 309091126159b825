package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// frame is the envelope published by the volkeyd state feed.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type volumeData struct {
	Value int `json:"value"`
	Min   int `json:"min"`
	Max   int `json:"max"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8787/ws", "volkeyd state feed URL")
		raw   = flag.Bool("raw", false, "Print frames as received instead of decoding them")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	// The server pings every 20s; gorilla answers with a pong, so extend the
	// deadline on pings too.
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}

			switch messageType {
			case websocket.TextMessage:
				if *raw {
					fmt.Printf("%s\n", message)
					continue
				}
				handleTextMessage(os.Stdout, message)
			case websocket.BinaryMessage:
				fmt.Printf("[BINARY] %d bytes\n", len(message))
			}
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// handleTextMessage prints one decoded state feed frame.
func handleTextMessage(w io.Writer, message []byte) {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		fmt.Fprintf(w, "[TEXT] %s\n", message)
		return
	}

	switch f.Type {
	case "state_init", "volume_changed":
		var v volumeData
		if err := json.Unmarshal(f.Data, &v); err != nil {
			fmt.Fprintf(w, "[TEXT] %s\n", message)
			return
		}
		fmt.Fprintf(w, "[VOLUME] %s\n", formatVolume(v))
	default:
		fmt.Fprintf(w, "[%s] %s\n", f.Type, f.Data)
	}
}

// formatVolume renders a value the way volkeyd prints it on stdout.
func formatVolume(v volumeData) string {
	s := fmt.Sprintf("%d", v.Value)
	if v.Value == v.Min {
		s += " (min)"
	}
	if v.Value == v.Max {
		s += " (max)"
	}
	return s
}
