// Command demo drives a running Vigil server through a short scripted
// scenario: a burst of generated events, a deliberately risky transfer, and a
// login, then prints the resulting dashboard stats.
//
// Usage:
//
//	go run ./cmd/demo [-base http://localhost:8080] [-burst 10]
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	base := flag.String("base", "http://localhost:8080", "base URL of a running Vigil server")
	burst := flag.Int("burst", 10, "number of events to generate immediately")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Printf("generating %d events...\n", *burst)
	for i := 0; i < *burst; i++ {
		post(client, *base+"/api/v1/events/generate", map[string]any{})
	}

	fmt.Println("sending a large transfer for U001 (always flagged)...")
	evt := post(client, *base+"/api/v1/actions/transaction", map[string]any{
		"user_id": "U001",
		"amount":  "25,000",
	})
	fmt.Printf("  -> %s  score=%v  status=%v\n", str(evt, "id"), evt["risk_score"], evt["status"])

	fmt.Println("logging in as U002...")
	evt = post(client, *base+"/api/v1/actions/login", map[string]any{
		"user_id":     "U002",
		"force_risky": true,
	})
	fmt.Printf("  -> %s  score=%v  reason=%v\n", str(evt, "id"), evt["risk_score"], evt["reason"])

	stats := get(client, *base+"/api/v1/stats")
	overview, _ := stats["overview"].(map[string]any)
	fmt.Println("dashboard overview:")
	fmt.Printf("  avg risk:     %v (%v)\n", overview["avg_risk"], overview["avg_risk_band"])
	fmt.Printf("  flagged:      %v of %v events\n", overview["flagged_events"], overview["total_events"])
	fmt.Printf("  volume:       %v\n", overview["volume_display"])
	fmt.Printf("  unread:       %v alerts\n", overview["unread_alerts"])
}

func post(client *http.Client, url string, body map[string]any) map[string]any {
	b, _ := json.Marshal(body)
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		fail("POST %s: %v", url, err)
	}
	return decode(resp)
}

func get(client *http.Client, url string) map[string]any {
	resp, err := client.Get(url)
	if err != nil {
		fail("GET %s: %v", url, err)
	}
	return decode(resp)
}

func decode(resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var env struct {
		Data  map[string]any `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		fail("decode response: %v", err)
	}
	if env.Error != nil {
		fail("server error %s: %s", env.Error.Code, env.Error.Message)
	}
	return env.Data
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
