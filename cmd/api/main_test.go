package main

import "testing"

func TestRouteLabel(t *testing.T) {
    cases := []struct{ in, want string }{
        {"/v1/orders", "/v1/orders"},
        {"/v1/orders/8f14e45f-ceea-4671-9f6b-2b4c4a8f0b1d", "/v1/orders/:id"},
        {"/v1/orders/8f14e45f-ceea-4671-9f6b-2b4c4a8f0b1d/transitions", "/v1/orders/:id/transitions"},
        {"/v1/batches/b1/orders/o1", "/v1/batches/:id/orders/:id"},
        {"/v1/admin/webhook-deliveries/d1/retry", "/v1/admin/webhook-deliveries/:id/retry"},
        {"/healthz", "/healthz"},
        {"/metrics", "/metrics"},
    }
    for _, tc := range cases {
        if got := routeLabel(tc.in); got != tc.want {
            t.Errorf("routeLabel(%q) = %q, want %q", tc.in, got, tc.want)
        }
    }
}
