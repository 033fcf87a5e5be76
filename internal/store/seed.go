package store

import (
	"time"

	"gearbag/internal/model"
)

// DemoFixtures is the fixed bootstrap set for an empty catalog. Owner counts
// are intentionally larger than the (empty) membership sets: these documents
// exist to make the directory look lived-in, not to grant anyone membership.
// Repeated seeding duplicates them; callers gate on empty + dev mode.
// Timestamps are staggered so recency ordering stays deterministic.
func DemoFixtures(now time.Time) []model.Item {
	fixtures := []model.Item{
		{
			Name:     "Sony A7IV",
			Category: "Camera",
			Owners:   42,
			Notes:    map[string]string{"system": "My daily driver for everything."},
		},
		{
			Name:     "MacBook Pro M3",
			Category: "Computer",
			Owners:   15,
			Notes:    map[string]string{"system": "Absurdly fast."},
		},
		{
			Name:     "Keychron Q1",
			Category: "Peripheral",
			Owners:   8,
			Notes:    map[string]string{"system": "Heavy, but worth it."},
		},
		{
			Name:     "Peak Design Zip 15L",
			Category: "Bag",
			Owners:   23,
			Notes:    map[string]string{"system": "Perfect size for day trips."},
		},
	}
	for i := range fixtures {
		fixtures[i].OwnerIDs = []string{}
		fixtures[i].CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
	}
	return fixtures
}
