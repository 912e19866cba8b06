package csvsftp

import (
    "encoding/csv"
    "strconv"
    "strings"

    "driverflow/internal/integrations"
    "driverflow/internal/model"
)

// Adapter parses CSV order drops fetched over SFTP. Rows look like
// externalRef,vendorLat,vendorLng,customerLat,customerLng.
type Adapter struct{}

func (a Adapter) Name() string { return "csv-sftp" }

func (a Adapter) Authenticate(cfg map[string]any) (integrations.AuthState, error) {
    return integrations.AuthState{Method: "sftp", Token: "keyref://example"}, nil
}

func (a Adapter) FetchOrders(since string, cursor string) (integrations.OrderBatch, error) {
    // Placeholder: in real impl, list files by mtime > since and parse each
    return integrations.OrderBatch{}, nil
}

// ParseOrders converts raw CSV content into order create payloads. Malformed
// rows are skipped, not fatal.
func (a Adapter) ParseOrders(raw string) ([]model.OrderIn, error) {
    rd := csv.NewReader(strings.NewReader(raw))
    rd.FieldsPerRecord = -1
    rows, err := rd.ReadAll()
    if err != nil {
        return nil, err
    }
    out := []model.OrderIn{}
    for _, row := range rows {
        if len(row) < 5 || row[0] == "externalRef" {
            continue
        }
        vlat, e1 := strconv.ParseFloat(row[1], 64)
        vlng, e2 := strconv.ParseFloat(row[2], 64)
        clat, e3 := strconv.ParseFloat(row[3], 64)
        clng, e4 := strconv.ParseFloat(row[4], 64)
        if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
            continue
        }
        out = append(out, model.OrderIn{
            ExternalRef: row[0],
            Vendor:      &model.GeoPoint{Lat: vlat, Lng: vlng},
            Customer:    &model.GeoPoint{Lat: clat, Lng: clng},
        })
    }
    return out, nil
}

func (a Adapter) AckOrders(ids []string) error { return nil }

func (a Adapter) MapStatus(ext integrations.ExternalStatus) model.OrderStatus {
    switch strings.ToUpper(ext.Code) {
    case "ASSIGNED", "ACCEPTED":
        return model.StatusAssigned
    case "PICKED_UP", "COLLECTED":
        return model.StatusPickedUp
    case "DELIVERED", "COMPLETED":
        return model.StatusDelivered
    case "CANCELLED", "VOID":
        return model.StatusCancelled
    default:
        return ""
    }
}

func (a Adapter) Webhooks() integrations.WebhookInfo {
    return integrations.WebhookInfo{Events: []string{}, Verify: func(sig string, body []byte) bool { return true }}
}
