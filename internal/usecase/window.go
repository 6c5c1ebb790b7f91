package usecase

import (
	"time"

	"PayPull/internal/domain/models"
)

// CalcWindow derives the fetch window for one account from its last seen
// event time. The start never reaches further back than maxWindow before
// now; when a cursor exists it is rewound by overlap to re-cover records
// the provider reported late.
func CalcWindow(now time.Time, lastSeen *time.Time, maxWindow, overlap time.Duration) models.Window {
	capStart := now.Add(-maxWindow)
	start := capStart
	if lastSeen != nil {
		if s := lastSeen.Add(-overlap); s.After(capStart) {
			start = s
		}
	}
	return models.Window{Start: start, End: now}
}
