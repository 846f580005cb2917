package engine

import (
	"errors"
	"fmt"

	"github.com/wricardo/campus-charging-sim/campus/layout"
)

var (
	ErrSpotOccupied = errors.New("parking spot already occupied")
	ErrSpotNotHeld  = errors.New("parking spot not held by vehicle")
	ErrInvalidSpot  = errors.New("invalid parking spot handle")
)

// SpotHandle indexes a spot in the SpotTable
type SpotHandle int

// NoSpot marks a vehicle without a bound spot
const NoSpot SpotHandle = -1

// SpotTable owns parking spot occupancy. Vehicles hold handles, never spots.
type SpotTable struct {
	spots   []layout.ParkingSpot
	holders []int // vehicle ID per spot, 0 when free
}

// NewSpotTable creates an all-free table over the given spots
func NewSpotTable(spots []layout.ParkingSpot) *SpotTable {
	return &SpotTable{
		spots:   append([]layout.ParkingSpot(nil), spots...),
		holders: make([]int, len(spots)),
	}
}

// Len returns the number of spots
func (t *SpotTable) Len() int {
	return len(t.spots)
}

func (t *SpotTable) valid(h SpotHandle) bool {
	return h >= 0 && int(h) < len(t.spots)
}

// Spot returns the spot geometry for a handle
func (t *SpotTable) Spot(h SpotHandle) layout.ParkingSpot {
	return t.spots[h]
}

// Occupied reports whether a vehicle holds the spot
func (t *SpotTable) Occupied(h SpotHandle) bool {
	return t.valid(h) && t.holders[h] != 0
}

// Holder returns the vehicle holding the spot
func (t *SpotTable) Holder(h SpotHandle) (int, bool) {
	if !t.Occupied(h) {
		return 0, false
	}
	return t.holders[h], true
}

// Acquire binds the spot to a vehicle
func (t *SpotTable) Acquire(h SpotHandle, vehicleID int) error {
	if !t.valid(h) {
		return fmt.Errorf("%w: %d", ErrInvalidSpot, h)
	}
	if t.holders[h] != 0 {
		return fmt.Errorf("%w: spot %d held by vehicle %d", ErrSpotOccupied, h, t.holders[h])
	}
	t.holders[h] = vehicleID
	return nil
}

// Release frees the spot if the vehicle holds it
func (t *SpotTable) Release(h SpotHandle, vehicleID int) error {
	if !t.valid(h) {
		return fmt.Errorf("%w: %d", ErrInvalidSpot, h)
	}
	if t.holders[h] != vehicleID {
		return fmt.Errorf("%w: spot %d, vehicle %d", ErrSpotNotHeld, h, vehicleID)
	}
	t.holders[h] = 0
	return nil
}

// Unoccupied returns the handles of all free spots in table order
func (t *SpotTable) Unoccupied() []SpotHandle {
	var free []SpotHandle
	for i, holder := range t.holders {
		if holder == 0 {
			free = append(free, SpotHandle(i))
		}
	}
	return free
}

// FindUnoccupied returns the first free spot accepted by match, or NoSpot
func (t *SpotTable) FindUnoccupied(match func(layout.ParkingSpot) bool) SpotHandle {
	for i, s := range t.spots {
		if t.holders[i] == 0 && match(s) {
			return SpotHandle(i)
		}
	}
	return NoSpot
}

// OccupiedCount returns how many spots are held
func (t *SpotTable) OccupiedCount() int {
	count := 0
	for _, holder := range t.holders {
		if holder != 0 {
			count++
		}
	}
	return count
}

// Reset frees every spot
func (t *SpotTable) Reset() {
	for i := range t.holders {
		t.holders[i] = 0
	}
}
