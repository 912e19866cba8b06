package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "driverflow/internal/batch"
    "driverflow/internal/metrics"
    "driverflow/internal/model"
    "driverflow/internal/store"
    "driverflow/internal/webhooks"
)

// OrdersHandler handles POST/GET /v1/orders
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
        var req struct {
            TenantID string          `json:"tenantId"`
            Orders   []model.OrderIn `json:"orders"`
        }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = p.Tenant }
        imp, created, skipped, err := s.Store.CreateOrders(r.Context(), req.TenantID, req.Orders)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create orders failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusAccepted, map[string]any{"importId": imp, "created": created, "skipped": skipped})
    case http.MethodGet:
        p := s.getPrincipal(r)
        status := r.URL.Query().Get("status")
        driverID := r.URL.Query().Get("driverId")
        if p.Role == "driver" {
            // drivers only see their own orders
            driverID = p.DriverID
        }
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListOrders(r.Context(), p.Tenant, status, driverID, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List orders failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// OrderByIDHandler handles /v1/orders/{id} and its subresources:
//   GET  /v1/orders/{id}
//   POST /v1/orders/{id}/assign
//   POST /v1/orders/{id}/transitions
//   GET  /v1/orders/{id}/transitions
//   GET  /v1/orders/{id}/events/stream   (SSE)
//   GET  /v1/orders/{id}/locations
func (s *Server) OrderByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/orders/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]

    if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
        s.streamOrderEvents(w, r, id)
        return
    }
    if len(parts) > 1 && parts[1] == "transitions" {
        switch r.Method {
        case http.MethodPost:
            s.transitionOrder(w, r, id)
        case http.MethodGet:
            p := s.getPrincipal(r)
            events, err := s.Store.ListTransitions(r.Context(), p.Tenant, id)
            if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Order not found", "", r.URL.Path); return }
            if err != nil { writeProblem(w, 500, "List transitions failed", err.Error(), r.URL.Path); return }
            writeJSON(w, 200, map[string]any{"items": events})
        default:
            w.WriteHeader(http.StatusMethodNotAllowed)
        }
        return
    }
    if len(parts) > 1 && parts[1] == "assign" {
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        p := s.getPrincipal(r)
        if !p.CanDispatch() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
        var req struct{ DriverID string `json:"driverId"` }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        o, err := s.Store.AssignOrder(r.Context(), p.Tenant, id, req.DriverID)
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Order not found", "", r.URL.Path); return }
        if err != nil { writeProblem(w, 500, "Assign order failed", err.Error(), r.URL.Path); return }
        writeJSON(w, http.StatusOK, o)
        return
    }
    if len(parts) > 1 && parts[1] == "locations" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        p := s.getPrincipal(r)
        writeJSON(w, 200, map[string]any{"items": s.Locations.ListByOrder(p.Tenant, id)})
        return
    }

    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p := s.getPrincipal(r)
    o, err := s.Store.GetOrder(r.Context(), p.Tenant, id)
    if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Order not found", "", r.URL.Path); return }
    if err != nil { writeProblem(w, 500, "Get order failed", err.Error(), r.URL.Path); return }
    writeJSON(w, http.StatusOK, o)
}

// transitionOrder adjudicates a requested status change and, when accepted,
// applies it with optimistic concurrency. Rejections come back as 422 with
// every reason found.
func (s *Server) transitionOrder(w http.ResponseWriter, r *http.Request, id string) {
    p := s.getPrincipal(r)
    var req model.TransitionRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if req.TargetStatus == "" {
        writeProblem(w, http.StatusBadRequest, "Missing targetStatus", "", r.URL.Path)
        return
    }

    o, err := s.Store.GetOrder(r.Context(), p.Tenant, id)
    if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Order not found", "", r.URL.Path); return }
    if err != nil { writeProblem(w, 500, "Get order failed", err.Error(), r.URL.Path); return }
    if !p.mayActOnOrder(o.DriverID) {
        writeProblem(w, 403, "Forbidden", "not the assigned driver", r.URL.Path)
        return
    }

    var evidence model.Evidence
    if req.Pickup != nil {
        req.Pickup.OrderID = id
        evidence = *req.Pickup
    } else if req.Delivery != nil {
        req.Delivery.OrderID = id
        evidence = *req.Delivery
    }
    driverLoc := req.DriverLocation
    if driverLoc == nil {
        if loc, ok := s.Locations.Get(p.Tenant, id, o.DriverID); ok {
            driverLoc = &model.GeoPoint{Lat: loc.Lat, Lng: loc.Lng}
        }
    }

    res := s.Engine.EvaluateTransition(o, req.TargetStatus, evidence, driverLoc, time.Now().UTC())
    if !res.Accepted {
        metrics.Transitions.WithLabelValues(string(req.TargetStatus), "rejected").Inc()
        metrics.TransitionReasons.WithLabelValues(string(req.TargetStatus)).Add(float64(len(res.Reasons)))
        s.Pub.Emit(r.Context(), p.Tenant, webhooks.EventOrderRejected, map[string]any{
            "orderId": id, "targetStatus": req.TargetStatus, "reasons": res.Reasons,
        })
        writeJSON(w, http.StatusUnprocessableEntity, res)
        return
    }

    applied, err := s.Store.ApplyTransition(r.Context(), p.Tenant, id, o.Status, o.Version, res.NewStatus, res.EffectiveAt)
    if errors.Is(err, store.ErrConflict) {
        writeProblem(w, http.StatusConflict, "Order state conflict", "order changed since read; refetch and retry", r.URL.Path)
        return
    }
    if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Order not found", "", r.URL.Path); return }
    if err != nil { writeProblem(w, 500, "Apply transition failed", err.Error(), r.URL.Path); return }

    proofID := ""
    if evidence != nil {
        proofID, _ = s.Store.CreateProof(r.Context(), p.Tenant, id, evidence)
    }
    metrics.Transitions.WithLabelValues(string(req.TargetStatus), "accepted").Inc()

    data := map[string]any{
        "orderId": id,
        "fromStatus": o.Status,
        "toStatus": applied.Status,
        "effectiveAt": res.EffectiveAt.Format(time.RFC3339),
    }
    if proofID != "" { data["proofId"] = proofID }
    s.Pub.Emit(r.Context(), p.Tenant, webhooks.EventOrderTransitioned, data)
    s.Broker.Publish(id, SSEEvent{Type: webhooks.EventOrderTransitioned, Data: data})

    writeJSON(w, http.StatusOK, map[string]any{"result": res, "order": applied})
}

func (s *Server) streamOrderEvents(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    pr := s.getPrincipal(r)
    if !pr.CanDispatch() {
        // allow drivers only for their assigned orders
        o, err := s.Store.GetOrder(r.Context(), pr.Tenant, id)
        if err != nil { writeProblem(w, 404, "Order not found", "", r.URL.Path); return }
        if !pr.mayActOnOrder(o.DriverID) {
            writeProblem(w, 403, "Forbidden", "not authorized for order events", r.URL.Path)
            return
        }
    }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"orderId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"orderId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// BatchesHandler handles POST /v1/batches: build a waypoint route for a
// driver's active orders from a start location.
func (s *Server) BatchesHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p := s.getPrincipal(r)
    var req struct {
        DriverID string          `json:"driverId"`
        OrderIDs []string        `json:"orderIds"`
        Start    *model.GeoPoint `json:"start"`
    }
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if p.Role == "driver" { req.DriverID = p.DriverID }
    if req.DriverID == "" {
        writeProblem(w, http.StatusBadRequest, "Missing driverId", "", r.URL.Path)
        return
    }
    if req.Start == nil {
        writeProblem(w, http.StatusBadRequest, "Missing start", "start location is required", r.URL.Path)
        return
    }

    var orders []model.Order
    var err error
    if len(req.OrderIDs) > 0 {
        for _, oid := range req.OrderIDs {
            o, err := s.Store.GetOrder(r.Context(), p.Tenant, oid)
            if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Order not found", oid, r.URL.Path); return }
            if err != nil { writeProblem(w, 500, "Get order failed", err.Error(), r.URL.Path); return }
            orders = append(orders, o)
        }
    } else {
        orders, err = s.Store.ListActiveOrdersForDriver(r.Context(), p.Tenant, req.DriverID)
        if err != nil { writeProblem(w, 500, "List active orders failed", err.Error(), r.URL.Path); return }
    }
    if len(orders) == 0 {
        writeProblem(w, http.StatusBadRequest, "No orders", "no active orders to sequence", r.URL.Path)
        return
    }

    seq, err := batch.Build(orders, *req.Start)
    if err != nil {
        writeProblem(w, http.StatusUnprocessableEntity, "Orders not routable", err.Error(), r.URL.Path)
        return
    }
    b, err := s.Store.CreateBatch(r.Context(), model.Batch{
        TenantID:  p.Tenant,
        DriverID:  req.DriverID,
        Waypoints: seq.Waypoints,
        Current:   seq.Current,
    })
    if err != nil { writeProblem(w, 500, "Create batch failed", err.Error(), r.URL.Path); return }
    writeJSON(w, http.StatusCreated, b)
}

// BatchByIDHandler handles /v1/batches/{id} and actions:
//   GET    /v1/batches/{id}
//   POST   /v1/batches/{id}/reoptimize
//   POST   /v1/batches/{id}/advance
//   POST   /v1/batches/{id}/orders          (insert one order)
//   DELETE /v1/batches/{id}/orders/{orderId}
func (s *Server) BatchByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/batches/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    p := s.getPrincipal(r)

    b, err := s.Store.GetBatch(r.Context(), p.Tenant, id)
    if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Batch not found", "", r.URL.Path); return }
    if err != nil { writeProblem(w, 500, "Get batch failed", err.Error(), r.URL.Path); return }
    if p.Role == "driver" && b.DriverID != p.DriverID {
        writeProblem(w, 403, "Forbidden", "not the batch driver", r.URL.Path)
        return
    }
    seq := batch.Sequence{Waypoints: b.Waypoints, Current: b.Current}

    if len(parts) > 1 {
        switch {
        case parts[1] == "reoptimize" && r.Method == http.MethodPost:
            seq = seq.Reoptimize()
            b.Waypoints, b.Current = seq.Waypoints, seq.Current
            out, err := s.Store.UpdateBatch(r.Context(), b)
            if errors.Is(err, store.ErrConflict) { writeProblem(w, 409, "Batch state conflict", "batch changed since read; refetch and retry", r.URL.Path); return }
            if err != nil { writeProblem(w, 500, "Update batch failed", err.Error(), r.URL.Path); return }
            s.Pub.Emit(r.Context(), p.Tenant, webhooks.EventBatchReoptimized, map[string]any{"batchId": id, "version": out.Version})
            writeJSON(w, 200, out)
            return
        case parts[1] == "advance" && r.Method == http.MethodPost:
            visited := seq.Next()
            seq = seq.Advance()
            b.Waypoints, b.Current = seq.Waypoints, seq.Current
            if _, err := s.Store.UpdateBatch(r.Context(), b); err != nil {
                if errors.Is(err, store.ErrConflict) { writeProblem(w, 409, "Batch state conflict", "batch changed since read; refetch and retry", r.URL.Path); return }
                writeProblem(w, 500, "Update batch failed", err.Error(), r.URL.Path)
                return
            }
            res := model.AdvanceResult{
                BatchID:  id,
                Visited:  visited,
                Next:     seq.Next(),
                Current:  seq.Current,
                Complete: seq.Complete(),
                TS:       time.Now().UTC().Format(time.RFC3339),
            }
            if visited != nil {
                data := map[string]any{"batchId": id, "orderId": visited.OrderID, "stage": visited.Stage, "ts": res.TS}
                s.Pub.Emit(r.Context(), p.Tenant, webhooks.EventBatchAdvanced, data)
                s.Broker.Publish(visited.OrderID, SSEEvent{Type: webhooks.EventBatchAdvanced, Data: data})
            }
            writeJSON(w, 200, res)
            return
        case parts[1] == "orders" && r.Method == http.MethodPost:
            var req struct{ OrderID string `json:"orderId"` }
            if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
                writeProblem(w, 400, "Invalid JSON", "orderId required", r.URL.Path)
                return
            }
            o, err := s.Store.GetOrder(r.Context(), p.Tenant, req.OrderID)
            if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Order not found", "", r.URL.Path); return }
            if err != nil { writeProblem(w, 500, "Get order failed", err.Error(), r.URL.Path); return }
            seq, err = seq.Insert(o)
            if err != nil {
                writeProblem(w, http.StatusUnprocessableEntity, "Order not routable", err.Error(), r.URL.Path)
                return
            }
            b.Waypoints, b.Current = seq.Waypoints, seq.Current
            out, err := s.Store.UpdateBatch(r.Context(), b)
            if errors.Is(err, store.ErrConflict) { writeProblem(w, 409, "Batch state conflict", "batch changed since read; refetch and retry", r.URL.Path); return }
            if err != nil { writeProblem(w, 500, "Update batch failed", err.Error(), r.URL.Path); return }
            writeJSON(w, 200, out)
            return
        case parts[1] == "orders" && len(parts) > 2 && r.Method == http.MethodDelete:
            seq = seq.Remove(parts[2])
            b.Waypoints, b.Current = seq.Waypoints, seq.Current
            out, err := s.Store.UpdateBatch(r.Context(), b)
            if errors.Is(err, store.ErrConflict) { writeProblem(w, 409, "Batch state conflict", "batch changed since read; refetch and retry", r.URL.Path); return }
            if err != nil { writeProblem(w, 500, "Update batch failed", err.Error(), r.URL.Path); return }
            writeJSON(w, 200, out)
            return
        }
        writeProblem(w, 404, "Not Found", "", r.URL.Path)
        return
    }

    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    writeJSON(w, 200, b)
}

// DriverLocationsHandler handles POST /v1/driver-locations: a batch of GPS
// pings from driver devices. Pings land in the in-memory cache and fan out to
// order event subscribers; they are not persisted.
func (s *Server) DriverLocationsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p := s.getPrincipal(r)
    var req struct {
        Pings []struct {
            OrderID   string  `json:"orderId"`
            DriverID  string  `json:"driverId"`
            Lat       float64 `json:"lat"`
            Lng       float64 `json:"lng"`
            AccuracyM float64 `json:"accuracyM"`
            TS        string  `json:"ts"`
        } `json:"pings"`
    }
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    accepted := 0
    for _, ping := range req.Pings {
        driverID := ping.DriverID
        if p.Role == "driver" { driverID = p.DriverID }
        if ping.OrderID == "" || driverID == "" { continue }
        ts := ping.TS
        if ts == "" { ts = time.Now().UTC().Format(time.RFC3339) }
        s.Locations.Upsert(p.Tenant, ping.OrderID, driverID, ping.Lat, ping.Lng, ping.AccuracyM, ts)
        s.Broker.Publish(ping.OrderID, SSEEvent{Type: "driver.location", Data: map[string]any{
            "orderId": ping.OrderID, "driverId": driverID, "lat": ping.Lat, "lng": ping.Lng, "ts": ts,
        }})
        accepted++
    }
    writeJSON(w, http.StatusAccepted, map[string]int{"accepted": accepted})
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = p.Tenant }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Subscription delete (admin)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path); return }
    w.WriteHeader(204)
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Retry delivery failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
