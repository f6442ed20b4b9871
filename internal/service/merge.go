package service

import "ebike-booking/internal/models"

// Merge combines a client's cached copy with the authoritative record. The
// authoritative copy wins every field; descriptive fields it left empty are
// backfilled from the cache.
func Merge(cached, authoritative *models.Booking) *models.Booking {
	if authoritative == nil {
		return cached.Clone()
	}
	out := authoritative.Clone()
	if cached == nil {
		return out
	}

	if out.ColorVariant == "" {
		out.ColorVariant = cached.ColorVariant
	}
	if out.UnitImageRef == "" {
		out.UnitImageRef = cached.UnitImageRef
	}
	if out.Model == "" {
		out.Model = cached.Model
	}
	return out
}
