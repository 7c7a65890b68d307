package maptile

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPFetcher downloads tiles from a slippy-map tile server. Tiles are
// addressed as {base}/{zoom}/{x}/{y}.png; APIKey, when set, is appended as
// an apikey query parameter.
type HTTPFetcher struct {
	BaseURL string
	APIKey  string

	Client *http.Client
	Log    zerolog.Logger
}

func NewHTTPFetcher(baseURL, apiKey string, log zerolog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Log:     log,
	}
}

func (f *HTTPFetcher) Fetch(zoom, x, y int) ([]byte, error) {
	url := fmt.Sprintf("%s/%d/%d/%d.png",
		strings.TrimSuffix(f.BaseURL, "/"), zoom, x, y)
	if f.APIKey != "" {
		url += "?apikey=" + f.APIKey
	}

	f.Log.Debug().Int("zoom", zoom).Int("x", x).Int("y", y).
		Msg("downloading tile")

	resp, err := f.Client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s/%d/%d/%d.png: %s",
			f.BaseURL, zoom, x, y, resp.Status)
	}

	return io.ReadAll(resp.Body)
}
