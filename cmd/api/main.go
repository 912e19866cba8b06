package main

import (
    "bufio"
    "fmt"
    "log"
    "net"
    "net/http"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "driverflow/internal/api"
    "driverflow/internal/metrics"
)

func main() {
    srvDeps, err := api.NewServer()
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }
    metrics.RegisterDefault()

    mux := http.NewServeMux()

    // Orders and transitions
    mux.HandleFunc("/v1/orders", srvDeps.OrdersHandler)
    mux.HandleFunc("/v1/orders/", srvDeps.OrderByIDHandler) // includes /assign, /transitions, /events/stream, /locations

    // Batches
    mux.HandleFunc("/v1/batches", srvDeps.BatchesHandler)
    mux.HandleFunc("/v1/batches/", srvDeps.BatchByIDHandler) // includes /reoptimize, /advance, /orders

    // Driver location pings
    mux.HandleFunc("/v1/driver-locations", srvDeps.DriverLocationsHandler)

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

    // Health
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
    mux.HandleFunc("/debug/info", srvDeps.DebugJSON)

    // Admin
    mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", srvDeps.WebhookDeliveryRetryHandler)

    // WebSocket event stream
    mux.HandleFunc("/v1/ws", srvDeps.EventsWSHandler)

    addr := ":8080"
    if v := os.Getenv("PORT"); v != "" {
        addr = ":" + v
    }

    limiter := api.NewRateLimiterFromEnv()
    srv := &http.Server{
        Addr:              addr,
        Handler:           logMiddleware(metricsMiddleware(limiter.Middleware(mux))),
        ReadHeaderTimeout: 5 * time.Second,
    }

    log.Printf("API listening on %s", addr)
    // Start webhook worker
    if srvDeps.Pub != nil {
        worker := srvDeps.NewWebhookWorker()
        worker.Start()
    }
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatalf("server error: %v", err)
    }
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        next.ServeHTTP(w, r)
        dur := time.Since(start)
        log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
    })
}

type statusWriter struct {
    http.ResponseWriter
    status int
}

func (w *statusWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

// SSE handlers flush and the WebSocket upgrade hijacks; both must pass through.
func (w *statusWriter) Flush() {
    if f, ok := w.ResponseWriter.(http.Flusher); ok {
        f.Flush()
    }
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    if h, ok := w.ResponseWriter.(http.Hijacker); ok {
        return h.Hijack()
    }
    return nil, nil, fmt.Errorf("hijack not supported")
}

// routeLabel collapses resource IDs to a placeholder so the path label stays
// bounded; raw paths would mint a label value per order/batch UUID.
func routeLabel(path string) string {
    parts := strings.Split(path, "/")
    withID := map[string]bool{"orders": true, "batches": true, "subscriptions": true, "webhook-deliveries": true}
    for i := 0; i < len(parts)-1; i++ {
        if withID[parts[i]] && parts[i+1] != "" {
            parts[i+1] = ":id"
        }
    }
    return strings.Join(parts, "/")
}

func metricsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(sw, r)
        status := strconv.Itoa(sw.status)
        route := routeLabel(r.URL.Path)
        metrics.HTTPRequests.WithLabelValues(r.Method, route, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
    })
}
