package workflow

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"driverflow/internal/geo"
	"driverflow/internal/model"
)

// Format contracts shared with driver clients. These are wire limits, not
// tunable policy; see Policy for the deployment-configurable thresholds.
const (
	maxNotesLen     = 500
	maxRecipientLen = 100
	maxOrderAge     = 24 * time.Hour
	deliveryGrace   = time.Hour
)

var recipientNamePattern = regexp.MustCompile(`^[A-Za-z \-']+$`)

// ValidateChecklist checks pickup checklist evidence. Every applicable failure
// is returned; an empty slice means the checklist is valid.
func ValidateChecklist(checklist map[string]bool, critical []string, minRatio float64, notes string) []string {
	var reasons []string
	if len(checklist) == 0 {
		reasons = append(reasons, "pickup checklist is empty")
		return reasons
	}
	done := 0
	for _, ok := range checklist {
		if ok {
			done++
		}
	}
	ratio := float64(done) / float64(len(checklist))
	if ratio < minRatio {
		reasons = append(reasons, fmt.Sprintf(
			"checklist completion %.0f%% is below the required %.0f%%",
			ratio*100, minRatio*100))
	}
	for _, item := range critical {
		checked, present := checklist[item]
		if !present {
			reasons = append(reasons, fmt.Sprintf("critical checklist item %q is missing", item))
			continue
		}
		if !checked {
			reasons = append(reasons, fmt.Sprintf("critical checklist item %q is not confirmed", item))
		}
	}
	if utf8.RuneCountInString(notes) > maxNotesLen {
		reasons = append(reasons, fmt.Sprintf("notes exceed %d characters", maxNotesLen))
	}
	return reasons
}

// ValidateDeliveryEvidence checks photo+GPS delivery evidence. All applicable
// failures are collected, not just the first.
func ValidateDeliveryEvidence(photoURL string, point *model.GeoPoint, accuracyM *float64, recipient, notes string, maxAccuracyM float64) []string {
	var reasons []string
	if strings.TrimSpace(photoURL) == "" {
		reasons = append(reasons, "delivery photo is required")
	} else if !isAbsoluteHTTPURL(photoURL) {
		reasons = append(reasons, "delivery photo URL must be an absolute http or https URL")
	}
	switch {
	case point == nil:
		reasons = append(reasons, "GPS coordinates are required")
	case point.Lat == 0 && point.Lng == 0:
		reasons = append(reasons, "GPS coordinates report no fix (0,0)")
	case point.Lat < -90 || point.Lat > 90 || point.Lng < -180 || point.Lng > 180:
		reasons = append(reasons, "GPS coordinates are out of range")
	}
	if accuracyM != nil && *accuracyM > maxAccuracyM {
		reasons = append(reasons, fmt.Sprintf(
			"GPS accuracy %.0fm exceeds the %.0fm limit", *accuracyM, maxAccuracyM))
	}
	if recipient != "" {
		if utf8.RuneCountInString(recipient) > maxRecipientLen {
			reasons = append(reasons, fmt.Sprintf("recipient name exceeds %d characters", maxRecipientLen))
		} else if !recipientNamePattern.MatchString(recipient) {
			reasons = append(reasons, "recipient name contains invalid characters")
		}
	}
	if utf8.RuneCountInString(notes) > maxNotesLen {
		reasons = append(reasons, fmt.Sprintf("notes exceed %d characters", maxNotesLen))
	}
	return reasons
}

// ValidatePhotoFormat checks that a photo file name (and MIME type, when
// supplied) is an accepted image format.
func ValidatePhotoFormat(fileName, mimeType string) []string {
	var reasons []string
	lower := strings.ToLower(fileName)
	if !strings.HasSuffix(lower, ".jpg") && !strings.HasSuffix(lower, ".jpeg") && !strings.HasSuffix(lower, ".png") {
		reasons = append(reasons, "photo file must be .jpg, .jpeg or .png")
	}
	if mimeType != "" {
		switch strings.ToLower(mimeType) {
		case "image/jpeg", "image/jpg", "image/png":
		default:
			reasons = append(reasons, fmt.Sprintf("unsupported photo MIME type %q", mimeType))
		}
	}
	return reasons
}

// ValidateProximity checks that the driver is within maxMeters of the target.
// The failure message reports both the limit and the actual distance so the
// driver sees how far off they are.
func ValidateProximity(driver, target model.GeoPoint, maxMeters float64, operation string) []string {
	d := geo.DistanceMeters(driver.Lat, driver.Lng, target.Lat, target.Lng)
	if d > maxMeters {
		return []string{fmt.Sprintf(
			"%s requires being within %.0fm of the location; current distance is %.0fm",
			operation, maxMeters, math.Round(d))}
	}
	return nil
}

// ValidateOrderTiming rejects stale orders and long-missed delivery windows.
// now is caller-supplied for determinism.
func ValidateOrderTiming(createdAt time.Time, requestedDelivery *time.Time, now time.Time) []string {
	var reasons []string
	if now.Sub(createdAt) > maxOrderAge {
		reasons = append(reasons, "order is older than 24 hours")
	}
	if requestedDelivery != nil && now.Sub(*requestedDelivery) > deliveryGrace {
		reasons = append(reasons, "requested delivery time passed more than 1 hour ago")
	}
	return reasons
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
