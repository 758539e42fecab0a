package store

// SlotKey identifies one bookable unit: a calendar date (YYYY-MM-DD) and an
// enumerated time-slot label.
type SlotKey struct {
	Date     string
	TimeSlot string
}

// CapacityStatus is the derived capacity label for a slot. It is never
// stored; it is recomputed from the reservation count on every read.
type CapacityStatus string

const (
	StatusAvailable CapacityStatus = "available"
	StatusLimited   CapacityStatus = "limited"
	StatusFull      CapacityStatus = "full"
)

// StatusFor derives the capacity status from a reservation count and the
// configured per-slot maximum.
func StatusFor(count, max int) CapacityStatus {
	switch {
	case count <= 0:
		return StatusAvailable
	case count < max:
		return StatusLimited
	default:
		return StatusFull
	}
}

// SlotAvailability is one slot's entry in a day availability map.
type SlotAvailability struct {
	Status CapacityStatus `json:"status"`
	Count  int            `json:"count"`
}

// AvailabilityMap builds the full availability view for a day: every
// configured time slot with its derived status, slots without a ledger row
// defaulting to zero/available.
func AvailabilityMap(counts map[string]int, timeSlots []string, max int) map[string]SlotAvailability {
	out := make(map[string]SlotAvailability, len(timeSlots))
	for _, slot := range timeSlots {
		c := counts[slot]
		out[slot] = SlotAvailability{Status: StatusFor(c, max), Count: c}
	}
	return out
}
