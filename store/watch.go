package store

import (
	"context"
	"sync"

	"github.com/cutekitten000/backlog/monitoring"
	"github.com/cutekitten000/backlog/reactive"
	"github.com/cutekitten000/backlog/utils"
	"github.com/sirupsen/logrus"
)

func gamesTopic(userID string) string { return "games:user:" + userID }
func dlcsTopic(gameID string) string  { return "dlcs:game:" + gameID }

// hub tracks live queries by topic. A change signal is coalesced per
// watcher: any number of writes before the watcher reloads cost one reload.
type hub struct {
	mu     sync.Mutex
	topics map[string]map[*watcher]struct{}
}

type watcher struct {
	signal chan struct{}
}

func newHub() *hub {
	return &hub{topics: make(map[string]map[*watcher]struct{})}
}

func (h *hub) add(topic string) *watcher {
	w := &watcher{signal: make(chan struct{}, 1)}
	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*watcher]struct{})
	}
	h.topics[topic][w] = struct{}{}
	h.mu.Unlock()
	return w
}

func (h *hub) remove(topic string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.topics[topic], w)
	if len(h.topics[topic]) == 0 {
		delete(h.topics, topic)
	}
}

func (h *hub) notify(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.topics[topic] {
		w.poke()
	}
}

func (h *hub) watchers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

func (w *watcher) poke() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// watch runs one delivery goroutine for a live query: it loads the initial
// snapshot, then a fresh full snapshot after every signal on topic. A single
// goroutine per subscription keeps deliveries in store order. A delivery
// already in progress when the subscription is cancelled may still finish;
// no reload starts afterwards.
func watch[T any](ctx context.Context, h *hub, topic, collection string, load func(context.Context) (T, error), deliver func(T)) *reactive.Subscription {
	ctx, cancel := context.WithCancel(ctx)
	w := h.add(topic)
	w.poke()

	go func() {
		defer h.remove(topic, w)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.signal:
			}

			v, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				utils.Log.WithFields(logrus.Fields{
					"topic": topic,
					"error": err.Error(),
				}).Warn("live query reload failed")
				continue
			}
			monitoring.SnapshotDeliveries.WithLabelValues(collection).Inc()
			deliver(v)
		}
	}()

	return reactive.NewSubscription(cancel)
}
