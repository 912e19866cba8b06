package store

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    _ "github.com/jackc/pgx/v5/stdlib"
    "github.com/google/uuid"
    "encoding/json"
    "crypto/sha256"
    "encoding/hex"

    "driverflow/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// Ping reports database connectivity; used by the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// CreateOrders inserts orders in assigned state. Dedup by (tenant_id, external_ref).
func (p *Postgres) CreateOrders(ctx context.Context, tenantID string, orders []model.OrderIn) (string, int, int, error) {
    importID := fmt.Sprintf("imp_%d", time.Now().UnixNano())
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return "", 0, 0, err }
    defer func(){ _ = tx.Rollback() }()

    created := 0
    skipped := 0
    for _, o := range orders {
        oid := uuid.New()
        if o.ExternalRef != "" {
            var existsID string
            err = tx.QueryRowContext(ctx, `SELECT id::text FROM orders WHERE tenant_id=$1 AND external_ref=$2`, tenantID, o.ExternalRef).Scan(&existsID)
            if err == nil {
                skipped++
                continue
            }
            if err != nil && !errors.Is(err, sql.ErrNoRows) {
                return "", 0, 0, err
            }
        }
        var vlat, vlng, clat, clng any
        if o.Vendor != nil { vlat, vlng = o.Vendor.Lat, o.Vendor.Lng }
        if o.Customer != nil { clat, clng = o.Customer.Lat, o.Customer.Lng }
        _, err = tx.ExecContext(ctx, `INSERT INTO orders (id, tenant_id, external_ref, status, version, vendor_lat, vendor_lng, customer_lat, customer_lng, vendor_contact, customer_contact, requested_delivery, created_at)
            VALUES ($1,$2,$3,$4,1,$5,$6,$7,$8,$9,$10,$11,now())`,
            oid, tenantID, nullIfEmpty(o.ExternalRef), string(model.StatusAssigned), vlat, vlng, clat, clng, contactJSON(o.VendorContact), contactJSON(o.CustomerContact), o.RequestedDelivery)
        if err != nil { return "", 0, 0, err }
        created++
    }
    if err := tx.Commit(); err != nil { return "", 0, 0, err }
    return importID, created, skipped, nil
}

const orderCols = `id::text, tenant_id::text, COALESCE(external_ref,''), COALESCE(driver_id::text,''), status, version, vendor_lat, vendor_lng, customer_lat, customer_lng, vendor_contact, customer_contact, requested_delivery, created_at`

func scanOrder(sc interface{ Scan(...any) error }) (model.Order, error) {
    var o model.Order
    var status string
    var vlat, vlng, clat, clng sql.NullFloat64
    var vc, cc []byte
    var reqDel sql.NullTime
    if err := sc.Scan(&o.ID, &o.TenantID, &o.ExternalRef, &o.DriverID, &status, &o.Version, &vlat, &vlng, &clat, &clng, &vc, &cc, &reqDel, &o.CreatedAt); err != nil {
        return model.Order{}, err
    }
    o.Status = model.OrderStatus(status)
    if vlat.Valid && vlng.Valid { o.Vendor = &model.GeoPoint{Lat: vlat.Float64, Lng: vlng.Float64} }
    if clat.Valid && clng.Valid { o.Customer = &model.GeoPoint{Lat: clat.Float64, Lng: clng.Float64} }
    if len(vc) > 0 { _ = json.Unmarshal(vc, &o.VendorContact) }
    if len(cc) > 0 { _ = json.Unmarshal(cc, &o.CustomerContact) }
    if reqDel.Valid { t := reqDel.Time; o.RequestedDelivery = &t }
    return o, nil
}

func (p *Postgres) GetOrder(ctx context.Context, tenantID, orderID string) (model.Order, error) {
    row := p.db.QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders WHERE tenant_id=$1 AND id=$2`, tenantID, orderID)
    o, err := scanOrder(row)
    if errors.Is(err, sql.ErrNoRows) { return model.Order{}, ErrNotFound }
    return o, err
}

func (p *Postgres) ListOrders(ctx context.Context, tenantID, status, driverID, cursor string, limit int) ([]model.Order, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT ` + orderCols + ` FROM orders WHERE tenant_id=$1`
    args := []any{tenantID}
    if status != "" {
        args = append(args, status)
        q += fmt.Sprintf(` AND status=$%d`, len(args))
    }
    if driverID != "" {
        args = append(args, driverID)
        q += fmt.Sprintf(` AND driver_id=$%d`, len(args))
    }
    if cursor != "" {
        args = append(args, cursor)
        q += fmt.Sprintf(` AND id::text > $%d`, len(args))
    }
    args = append(args, limit)
    q += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Order{}
    var last string
    for rows.Next() {
        o, err := scanOrder(rows)
        if err != nil { return nil, "", err }
        out = append(out, o)
        last = o.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) AssignOrder(ctx context.Context, tenantID, orderID, driverID string) (model.Order, error) {
    res, err := p.db.ExecContext(ctx, `UPDATE orders SET driver_id=$3, version=version+1 WHERE tenant_id=$1 AND id=$2`, tenantID, orderID, driverID)
    if err != nil { return model.Order{}, err }
    if n, _ := res.RowsAffected(); n == 0 { return model.Order{}, ErrNotFound }
    return p.GetOrder(ctx, tenantID, orderID)
}

func (p *Postgres) ListActiveOrdersForDriver(ctx context.Context, tenantID, driverID string) ([]model.Order, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders WHERE tenant_id=$1 AND driver_id=$2 AND status NOT IN ('delivered','cancelled','failed')`, tenantID, driverID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Order{}
    for rows.Next() {
        o, err := scanOrder(rows)
        if err != nil { return nil, err }
        out = append(out, o)
    }
    return out, nil
}

// ApplyTransition is a compare-and-set on (status, version). A transition
// event row is written in the same tx, so history and state cannot diverge.
func (p *Postgres) ApplyTransition(ctx context.Context, tenantID, orderID string, fromStatus model.OrderStatus, fromVersion int, to model.OrderStatus, effectiveAt time.Time) (model.Order, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.Order{}, err }
    defer func(){ _ = tx.Rollback() }()

    res, err := tx.ExecContext(ctx, `UPDATE orders SET status=$5, version=version+1 WHERE tenant_id=$1 AND id=$2 AND status=$3 AND version=$4`,
        tenantID, orderID, string(fromStatus), fromVersion, string(to))
    if err != nil { return model.Order{}, err }
    n, _ := res.RowsAffected()
    if n == 0 {
        // distinguish missing order from stale snapshot
        var one int
        err = tx.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE tenant_id=$1 AND id=$2`, tenantID, orderID).Scan(&one)
        if errors.Is(err, sql.ErrNoRows) { return model.Order{}, ErrNotFound }
        if err != nil { return model.Order{}, err }
        return model.Order{}, ErrConflict
    }
    _, err = tx.ExecContext(ctx, `INSERT INTO transition_events (id, tenant_id, order_id, from_status, to_status, effective_at) VALUES ($1,$2,$3,$4,$5,$6)`,
        uuid.New(), tenantID, orderID, string(fromStatus), string(to), effectiveAt)
    if err != nil { return model.Order{}, err }
    if err := tx.Commit(); err != nil { return model.Order{}, err }
    return p.GetOrder(ctx, tenantID, orderID)
}

func (p *Postgres) ListTransitions(ctx context.Context, tenantID, orderID string) ([]model.TransitionEvent, error) {
    if _, err := p.GetOrder(ctx, tenantID, orderID); err != nil { return nil, err }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, order_id::text, from_status, to_status, effective_at FROM transition_events WHERE tenant_id=$1 AND order_id=$2 ORDER BY effective_at`, tenantID, orderID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.TransitionEvent{}
    for rows.Next() {
        var e model.TransitionEvent
        var from, to string
        if err := rows.Scan(&e.ID, &e.OrderID, &from, &to, &e.EffectiveAt); err != nil { return nil, err }
        e.TenantID = tenantID
        e.FromStatus = model.OrderStatus(from)
        e.ToStatus = model.OrderStatus(to)
        out = append(out, e)
    }
    return out, nil
}

func (p *Postgres) CreateProof(ctx context.Context, tenantID, orderID string, evidence model.Evidence) (string, error) {
    id := uuid.New().String()
    kind := "pickup"
    if _, ok := evidence.(model.DeliveryConfirmation); ok { kind = "delivery" }
    body, err := json.Marshal(evidence)
    if err != nil { return "", err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO proofs (id, tenant_id, order_id, kind, body, created_at) VALUES ($1,$2,$3,$4,$5,now())`, id, tenantID, orderID, kind, body)
    if err != nil { return "", err }
    return id, nil
}

// Batches

func (p *Postgres) CreateBatch(ctx context.Context, b model.Batch) (model.Batch, error) {
    if b.ID == "" { b.ID = uuid.New().String() }
    b.Version = 1
    b.CreatedAt = time.Now().UTC()
    wps, err := json.Marshal(b.Waypoints)
    if err != nil { return model.Batch{}, err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO batches (id, tenant_id, driver_id, waypoints, current, version, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
        b.ID, b.TenantID, b.DriverID, wps, b.Current, b.Version, b.CreatedAt)
    if err != nil { return model.Batch{}, err }
    return b, nil
}

func (p *Postgres) GetBatch(ctx context.Context, tenantID, batchID string) (model.Batch, error) {
    var b model.Batch
    var wps []byte
    err := p.db.QueryRowContext(ctx, `SELECT id::text, tenant_id::text, COALESCE(driver_id::text,''), waypoints, current, version, created_at FROM batches WHERE tenant_id=$1 AND id=$2`,
        tenantID, batchID).Scan(&b.ID, &b.TenantID, &b.DriverID, &wps, &b.Current, &b.Version, &b.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) { return model.Batch{}, ErrNotFound }
    if err != nil { return model.Batch{}, err }
    _ = json.Unmarshal(wps, &b.Waypoints)
    return b, nil
}

func (p *Postgres) UpdateBatch(ctx context.Context, b model.Batch) (model.Batch, error) {
    wps, err := json.Marshal(b.Waypoints)
    if err != nil { return model.Batch{}, err }
    res, err := p.db.ExecContext(ctx, `UPDATE batches SET waypoints=$3, current=$4, version=version+1 WHERE tenant_id=$1 AND id=$2 AND version=$5`,
        b.TenantID, b.ID, wps, b.Current, b.Version)
    if err != nil { return model.Batch{}, err }
    if n, _ := res.RowsAffected(); n == 0 {
        // Distinguish a missing batch from a stale snapshot.
        if _, gerr := p.GetBatch(ctx, b.TenantID, b.ID); gerr != nil { return model.Batch{}, gerr }
        return model.Batch{}, ErrConflict
    }
    return p.GetBatch(ctx, b.TenantID, b.ID)
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, req.Secret)
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, fmt.Sprintf("[\"%s\"]", eventType))
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var events any
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil { return nil, err }
        s.TenantID = tenantID
        if b, ok := events.([]byte); ok { _ = json.Unmarshal(b, &s.Events) }
        out = append(out, s)
    }
    return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    var out []model.Subscription
    var last string
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        var payload []byte
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        d.Payload = payload
        out = append(out, d)
    }
    return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
            id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, event_type, status, attempts, next_attempt_at, last_error, url FROM webhook_deliveries WHERE tenant_id=$1`
    var rows *sql.Rows
    var err error
    if status != "" {
        q += ` AND status=$2 ORDER BY id LIMIT $3`
        rows, err = p.db.QueryContext(ctx, q, tenantID, status, limit)
    } else {
        q += ` ORDER BY id LIMIT $2`
        rows, err = p.db.QueryContext(ctx, q, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, typ, st, url string
        var lastErr sql.NullString
        var attempts int
        var nextAt sql.NullTime
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil { return nil, "", err }
        m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
        if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
        if lastErr.Valid && lastErr.String != "" { m["lastError"] = lastErr.String }
        out = append(out, m)
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

func computeDedupKey(payload []byte) string {
    // try to parse JSON and use id
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

func contactJSON(c model.Contact) any {
    if c.Name == "" && c.Phone == "" { return nil }
    b, _ := json.Marshal(c)
    return b
}
