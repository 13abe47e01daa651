package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cutekitten000/backlog/utils"
	"github.com/sirupsen/logrus"
)

const (
	gamesPath = "/v4/games"
	coverBase = "https://images.igdb.com/igdb/image/upload/t_cover_big/"
)

// Entry is a catalog game or expansion as the backend hands it out.
type Entry struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	CoverURL string   `json:"coverUrl"`
	Genres   []string `json:"genres"`
}

// Forwarder is what the client needs from the relay.
type Forwarder interface {
	Forward(ctx context.Context, path string, body []byte) (*Response, error)
}

// Client builds catalog queries and maps the answers. Every failure is
// logged and turned into an empty result.
type Client struct {
	relay     Forwarder
	platforms string
}

func NewClient(relay Forwarder, defaultPlatforms string) *Client {
	return &Client{relay: relay, platforms: defaultPlatforms}
}

type igdbGame struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Cover *struct {
		URL string `json:"url"`
	} `json:"cover"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Expansions []igdbGame `json:"expansions"`
}

func searchQuery(query, platforms string) string {
	q := strings.ReplaceAll(query, `"`, `\"`)
	body := fmt.Sprintf("search \"%s\"; fields name, cover.url, genres.name; limit 15; where version_parent = null & category = 0", q)
	if platforms != "" {
		body += fmt.Sprintf(" & platforms = (%s)", platforms)
	}
	return body + ";"
}

func expansionsQuery(apiGameID int64) string {
	return fmt.Sprintf("fields expansions.name, expansions.cover.url, expansions.genres.name; where id = %d;", apiGameID)
}

// coverURL points a catalog thumbnail at its large PNG rendition.
func coverURL(raw string) string {
	if raw == "" {
		return ""
	}
	name := raw[strings.LastIndex(raw, "/")+1:]
	return strings.Replace(coverBase+name, "jpg", "png", 1)
}

func toEntries(games []igdbGame) []Entry {
	out := make([]Entry, 0, len(games))
	for _, g := range games {
		e := Entry{ID: g.ID, Name: g.Name, Genres: []string{}}
		if g.Cover != nil {
			e.CoverURL = coverURL(g.Cover.URL)
		}
		for _, genre := range g.Genres {
			e.Genres = append(e.Genres, genre.Name)
		}
		out = append(out, e)
	}
	return out
}

func (c *Client) query(ctx context.Context, kind, body string) []igdbGame {
	resp, err := c.relay.Forward(ctx, gamesPath, []byte(body))
	if err != nil {
		if ctx.Err() == nil {
			utils.Log.WithFields(logrus.Fields{
				"query": kind,
				"error": err.Error(),
			}).Warn("Catalog query failed")
		}
		return nil
	}
	var games []igdbGame
	if err := json.Unmarshal(resp.Body, &games); err != nil {
		utils.Log.WithFields(logrus.Fields{
			"query": kind,
			"error": err.Error(),
		}).Warn("Catalog response not understood")
		return nil
	}
	return games
}

// Search returns at most 15 primary editions matching query. An empty
// platforms value falls back to the configured default.
func (c *Client) Search(ctx context.Context, query, platforms string) []Entry {
	if strings.TrimSpace(query) == "" {
		return []Entry{}
	}
	if platforms == "" {
		platforms = c.platforms
	}
	return toEntries(c.query(ctx, "search", searchQuery(query, platforms)))
}

// Expansions lists the catalog's DLCs for a base game.
func (c *Client) Expansions(ctx context.Context, apiGameID int64) []Entry {
	games := c.query(ctx, "expansions", expansionsQuery(apiGameID))
	if len(games) == 0 {
		return []Entry{}
	}
	return toEntries(games[0].Expansions)
}

// ExpansionsAvailable drops expansions whose name is already tracked.
func (c *Client) ExpansionsAvailable(ctx context.Context, apiGameID int64, trackedTitles []string) []Entry {
	tracked := make(map[string]struct{}, len(trackedTitles))
	for _, t := range trackedTitles {
		tracked[t] = struct{}{}
	}
	all := c.Expansions(ctx, apiGameID)
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if _, ok := tracked[e.Name]; !ok {
			out = append(out, e)
		}
	}
	return out
}
