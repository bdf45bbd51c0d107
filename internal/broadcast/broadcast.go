// Package broadcast fans solve results out to every registered listener.
// Delivery is best effort: a listener that fails or panics is logged and
// skipped, the others still get the result.
package broadcast

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"github.com/Sparsh-ui/captcha-solver/datastructures"
)

type Listener interface {
	Notify(res datastructures.SolveResult) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(res datastructures.SolveResult) error

func (f ListenerFunc) Notify(res datastructures.SolveResult) error {
	return f(res)
}

type Hub struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]Listener
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[int]Listener)}
}

// Register adds l and returns the id to unregister it with.
func (h *Hub) Register(l Listener) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.listeners[h.next] = l
	return h.next
}

func (h *Hub) Unregister(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, id)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Publish notifies listeners in registration order and returns how many
// accepted the result.
func (h *Hub) Publish(res datastructures.SolveResult) int {
	h.mu.RLock()
	listeners := make(map[int]Listener, len(h.listeners))
	ids := make([]int, 0, len(h.listeners))
	for id, l := range h.listeners {
		listeners[id] = l
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Ints(ids)

	delivered := 0
	for _, id := range ids {
		if err := notify(listeners[id], res); err != nil {
			log.Debug("[Broadcast] Listener ", id, " couldn't take result ", res.Uuid, ": ", err.Error())
			continue
		}
		delivered++
	}
	return delivered
}

func notify(l Listener, res datastructures.SolveResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return l.Notify(res)
}

// WebhookListener POSTs every result as JSON to url.
func WebhookListener(client *resty.Client, url string) Listener {
	if client == nil {
		client = resty.New().SetTimeout(5 * time.Second)
	}
	return ListenerFunc(func(res datastructures.SolveResult) error {
		resp, err := client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(res).
			Post(url)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("webhook %s answered %s", url, resp.Status())
		}
		return nil
	})
}
