package api

import (
    "net/http"
    "os"
    "strings"

    "driverflow/internal/auth"
    "driverflow/internal/config"
    "driverflow/internal/store"
    "driverflow/internal/webhooks"
    "driverflow/internal/workflow"
)

type Server struct {
    Store     store.Store
    Engine    *workflow.Engine
    Pub       *webhooks.Publisher
    Auth      *auth.Verifier
    Broker    EventBroker
    Locations *LocationCache
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer() (*Server, error) {
    dsn := os.Getenv("DATABASE_URL")
    var s store.Store
    if strings.TrimSpace(dsn) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(dsn)
        if err != nil {
            return nil, err
        }
        // Run migrations (dev helper)
        if os.Getenv("DB_MIGRATE") != "false" {
            _ = sp.MigrateDir("db/migrations")
        }
        s = sp
    }
    pol, err := config.PolicyFromEnv()
    if err != nil {
        return nil, err
    }
    // Broker selection
    var broker EventBroker
    if os.Getenv("REDIS_URL") != "" {
        if rb, err := NewRedisBroker(); err == nil { broker = rb } else { broker = NewBroker() }
    } else {
        broker = NewBroker()
    }
    return &Server{
        Store:     s,
        Engine:    workflow.NewEngine(pol),
        Pub:       webhooks.NewPublisher(s),
        Auth:      auth.NewVerifierFromEnv(),
        Broker:    broker,
        Locations: NewLocationCache(),
    }, nil
}

func (s *Server) tenantOf(r *http.Request) string {
    return s.getPrincipal(r).Tenant
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store)
}
