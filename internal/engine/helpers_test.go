package engine

import (
	"fmt"
	"time"

	"github.com/BearBump/TripFlow/internal/models"
)

func transport(id int64) *models.Transport {
	return &models.Transport{
		ID:           id,
		UID:          fmt.Sprintf("transport-%d", id),
		SequentialID: 100 + id,
		GlobalStatus: "ongoing",
	}
}

func site(city string) *models.Address {
	return &models.Address{
		Name:     "Site " + city,
		Address:  "1 Main street",
		City:     city,
		Postcode: "00000",
		Country:  "FR",
	}
}

func activity(uid string, cat models.ActivityCategory, t *models.Transport, city string) models.Activity {
	a := models.Activity{
		ActivityBase: models.ActivityBase{
			UID:      uid,
			Category: cat,
			Status:   models.StatusCreated,
		},
		Transport: t,
	}
	if city != "" {
		a.Address = site(city)
	}
	return a
}

func expanded(acts ...models.Activity) []models.SimilarActivityWithTransportData {
	return Expand(GroupConsecutive(acts))
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func uidsOf(acts []models.SimilarActivityWithTransportData) []string {
	out := make([]string, 0, len(acts))
	for _, a := range acts {
		out = append(out, a.UID)
	}
	return out
}
