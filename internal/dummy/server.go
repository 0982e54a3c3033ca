package dummy

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type ServerConfig struct {
	Port int
}

// Row is one address range in a search response.
type Row struct {
	Low    int    `json:"low"`
	High   int    `json:"high"`
	Street string `json:"street"`
}

// SearchResponse mirrors the address service's response body.
type SearchResponse struct {
	Count int   `json:"count"`
	Rows  []Row `json:"rows"`
}

var streets = []Row{
	{Low: 1, High: 999, Street: "Main St"},
	{Low: 1, High: 450, Street: "Maple Ave"},
	{Low: 100, High: 8800, Street: "Anchor Bay Dr"},
	{Low: 2, High: 300, Street: "Anchor Ct"},
	{Low: 1, High: 1200, Street: "Woodward Ave"},
	{Low: 10, High: 990, Street: "Washington Blvd"},
	{Low: 1, High: 77, Street: "Wash Ln"},
	{Low: 5, High: 5000, Street: "Grand River Ave"},
	{Low: 1, High: 640, Street: "Granite Ct"},
	{Low: 1, High: 2400, Street: "Michigan Ave"},
}

// Search returns the rows whose street starts with the street parameter,
// case-insensitively, limited by max and filtered by num when given.
func Search(r *http.Request) SearchResponse {
	q := r.URL.Query()
	prefix := strings.ToLower(strings.TrimSpace(q.Get("street")))
	max := len(streets)
	if v, err := strconv.Atoi(q.Get("max")); err == nil && v > 0 {
		max = v
	}
	num, numErr := strconv.Atoi(q.Get("num"))

	resp := SearchResponse{Rows: []Row{}}
	for _, row := range streets {
		if !strings.HasPrefix(strings.ToLower(row.Street), prefix) {
			continue
		}
		if numErr == nil && (num < row.Low || num > row.High) {
			continue
		}
		resp.Count++
		if len(resp.Rows) < max {
			resp.Rows = append(resp.Rows, row)
		}
	}
	return resp
}

func writeSearch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Search(r))
}

// Handler serves the address search endpoints.
func Handler() http.Handler {
	mux := http.NewServeMux()

	// 1. Instant search
	mux.HandleFunc("/index.php", writeSearch)

	// 2. Fast search (10-50ms)
	mux.HandleFunc("/fast/index.php", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(40)+10) * time.Millisecond)
		writeSearch(w, r)
	})

	// 3. Slow search (1s-2s) - Good for testing timeouts and overshoot
	mux.HandleFunc("/slow/index.php", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(1000)+1000) * time.Millisecond)
		writeSearch(w, r)
	})

	// 4. Flaky search: drops 20% of connections without a response
	mux.HandleFunc("/flaky/index.php", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.2 {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
		}
		writeSearch(w, r)
	})

	return mux
}

func Start(cfg ServerConfig) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("👻 Dummy address service running on http://localhost%s\n", addr)
	fmt.Println("   Endpoints: /index.php, /fast/index.php, /slow/index.php, /flaky/index.php")

	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Dummy server failed")
		}
	}()
	return server
}
