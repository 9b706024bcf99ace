package models

import (
	"fmt"
	"sync"
)

// SSEBroadcaster fans live ingest events out to connected dashboard streams.
type SSEBroadcaster struct {
	clients []chan string
	mu      sync.Mutex
}

func (b *SSEBroadcaster) AddClient() chan string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan string, 8)
	b.clients = append(b.clients, ch)
	return ch
}

func (b *SSEBroadcaster) RemoveClient(ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, client := range b.clients {
		if client == ch {
			b.clients = append(b.clients[:i], b.clients[i+1:]...)
			close(ch)
			break
		}
	}
}

func (b *SSEBroadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Broadcast delivers an SSE-formatted message to every client. Slow clients
// are skipped rather than blocking the ingest path.
func (b *SSEBroadcaster) Broadcast(eventType, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	message := fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)
	for _, ch := range b.clients {
		select {
		case ch <- message:
		default:
		}
	}
}

var Broadcaster = &SSEBroadcaster{}
