package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/cutekitten000/backlog/backlog"
	"github.com/cutekitten000/backlog/catalog"
	"github.com/cutekitten000/backlog/middleware"
	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/monitoring"
	"github.com/cutekitten000/backlog/reactive"
	"github.com/cutekitten000/backlog/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 32
)

// Client -> server messages.
const (
	msgSetFilter     = "setFilter"
	msgSetSearch     = "setSearch"
	msgCatalogSearch = "catalogSearch"
	msgWatchDlcs     = "watchDlcs"
)

type liveRequest struct {
	Type      string `json:"type"`
	Filter    string `json:"filter,omitempty"`
	Term      string `json:"term,omitempty"`
	Platforms string `json:"platforms,omitempty"`
	GameID    string `json:"gameId,omitempty"`
}

type viewEvent struct {
	Type       string         `json:"type"`
	Filter     backlog.Filter `json:"filter"`
	SearchTerm string         `json:"searchTerm"`
	Games      []models.Game  `json:"games"`
}

type catalogEvent struct {
	Type    string          `json:"type"`
	Term    string          `json:"term"`
	Results []catalog.Entry `json:"results"`
}

type dlcsEvent struct {
	Type   string       `json:"type"`
	GameID string       `json:"gameId"`
	Dlcs   []models.Dlc `json:"dlcs"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type liveClient struct {
	conn    *websocket.Conn
	backlog *backlog.Backlog
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	log     *logrus.Entry

	ctx context.Context

	mu        sync.Mutex
	platforms string
	dlcSub    *reactive.Subscription
}

func (a *API) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(a.AllowedOrigins) == 0 || slices.Contains(a.AllowedOrigins, origin)
		},
	}
}

// Live - GET /ws
// Pushes the derived view on every change and answers debounced catalog
// searches. The socket closes when the session signs out.
func (a *API) Live(c *gin.Context) {
	entry := middleware.Session(c)
	upgrader := a.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Log.WithField("error", err.Error()).Warn("Websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &liveClient{
		ctx:     ctx,
		conn:    conn,
		backlog: entry.Backlog,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		log:     utils.Log.WithField("session_id", entry.ID),
	}
	monitoring.ActiveWebsockets.Inc()
	client.log.Info("Live view connected")

	search := func(ctx context.Context, term string) []catalog.Entry {
		if a.Catalog == nil {
			return []catalog.Entry{}
		}
		return a.Catalog.Search(ctx, term, client.currentPlatforms())
	}
	searcher := catalog.NewSearcher(search, a.SearchDebounce, func(term string, results []catalog.Entry) {
		client.push(catalogEvent{Type: "catalogResults", Term: term, Results: results})
	})

	viewSub := entry.Backlog.WatchView(func(games []models.Game) {
		client.push(viewEvent{
			Type:       "view",
			Filter:     entry.Backlog.Filter(),
			SearchTerm: entry.Backlog.SearchTerm(),
			Games:      games,
		})
	})
	identitySub := entry.Identity.Watch(func(u *models.User) {
		if u == nil {
			client.close()
		}
	})

	go client.writePump()
	client.readPump(searcher)

	identitySub.Unsubscribe()
	viewSub.Unsubscribe()
	client.watchDlcs("")
	searcher.Close()
	client.close()
	monitoring.ActiveWebsockets.Dec()
	client.log.Info("Live view disconnected")
}

func (lc *liveClient) currentPlatforms() string {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.platforms
}

// watchDlcs replaces the DLC live query of the client. An empty gameID
// just stops the current one.
func (lc *liveClient) watchDlcs(gameID string) error {
	lc.mu.Lock()
	prev := lc.dlcSub
	lc.dlcSub = nil
	lc.mu.Unlock()
	prev.Unsubscribe()

	if gameID == "" {
		return nil
	}
	sub, err := lc.backlog.WatchDlcs(lc.ctx, gameID, func(dlcs []models.Dlc) {
		lc.push(dlcsEvent{Type: "dlcs", GameID: gameID, Dlcs: dlcs})
	})
	if err != nil {
		return err
	}

	lc.mu.Lock()
	lc.dlcSub = sub
	lc.mu.Unlock()
	return nil
}

func (lc *liveClient) close() {
	lc.once.Do(func() {
		close(lc.done)
		lc.conn.Close()
	})
}

// push queues an event. A client that cannot keep up is disconnected.
func (lc *liveClient) push(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		lc.log.WithField("error", err.Error()).Error("Failed to encode live event")
		return
	}
	select {
	case <-lc.done:
	case lc.send <- data:
	default:
		lc.log.Warn("Live client too slow, closing")
		lc.close()
	}
}

func (lc *liveClient) readPump(searcher *catalog.Searcher) {
	lc.conn.SetReadLimit(4096)
	lc.conn.SetReadDeadline(time.Now().Add(pongWait))
	lc.conn.SetPongHandler(func(string) error {
		lc.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := lc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				lc.log.WithField("error", err.Error()).Warn("Websocket read error")
			}
			return
		}

		var req liveRequest
		if err := json.Unmarshal(data, &req); err != nil {
			lc.push(errorEvent{Type: "error", Error: "invalid message"})
			continue
		}

		switch req.Type {
		case msgSetFilter:
			if err := lc.backlog.SetFilter(backlog.Filter(req.Filter)); err != nil {
				lc.push(errorEvent{Type: "error", Error: err.Error()})
			}
		case msgSetSearch:
			lc.backlog.SetSearchTerm(req.Term)
		case msgCatalogSearch:
			lc.mu.Lock()
			lc.platforms = req.Platforms
			lc.mu.Unlock()
			searcher.Input(req.Term)
		case msgWatchDlcs:
			if err := lc.watchDlcs(req.GameID); err != nil {
				lc.push(errorEvent{Type: "error", Error: "cannot watch DLCs of game " + req.GameID})
			}
		default:
			lc.push(errorEvent{Type: "error", Error: "unknown message type " + req.Type})
		}
	}
}

func (lc *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		lc.close()
	}()

	for {
		select {
		case <-lc.done:
			return
		case msg := <-lc.send:
			lc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := lc.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			lc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := lc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
