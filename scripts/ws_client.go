// Package main runs a demo WebSocket client for order events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Create an order to watch
	body := []byte(`{"tenantId":"t_demo","orders":[{"externalRef":"WSDEMO-1","vendor":{"lat":40.7128,"lng":-74.0060},"customer":{"lat":40.7306,"lng":-73.9352}}]}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()

	listReq, _ := http.NewRequest(http.MethodGet, base+"/v1/orders?limit=1", nil)
	listReq.Header.Set("X-Tenant-Id", "t_demo")
	listReq.Header.Set("X-Role", "admin")
	listResp, err := http.DefaultClient.Do(listReq)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = listResp.Body.Close() }()
	var listOut struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listOut); err != nil {
		log.Fatal(err)
	}
	if len(listOut.Items) == 0 {
		log.Fatal("no orders returned")
	}
	orderID := listOut.Items[0].ID
	log.Printf("Order ID: %s", orderID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// subscribe to the order's events
	pl, _ := json.Marshal(map[string]any{"orderId": orderID})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger an order event via a transition
	time.Sleep(500 * time.Millisecond)
	trBody := []byte(`{"targetStatus":"on_route_to_vendor"}`)
	trReq, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/v1/orders/%s/transitions", base, orderID), bytes.NewReader(trBody))
	trReq.Header.Set("Content-Type", "application/json")
	trReq.Header.Set("X-Tenant-Id", "t_demo")
	trReq.Header.Set("X-Role", "admin")
	_, _ = http.DefaultClient.Do(trReq)

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
