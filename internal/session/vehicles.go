package session

import (
	"errors"
	"math"
)

// ErrUnknownVehicle is returned for a vehicle class outside the catalogue.
var ErrUnknownVehicle = errors.New("unknown vehicle class")

// VehicleClass identifies a bookable vehicle type.
type VehicleClass string

// Catalogue classes.
const (
	VehicleMoto  VehicleClass = "moto"
	VehicleAuto  VehicleClass = "auto"
	VehiclePrime VehicleClass = "prime"
)

const (
	// BaseFare is the fare a multiplier of 1 would cost.
	BaseFare = 100

	// SafetySurcharge multiplies the fare when safety mode is on.
	SafetySurcharge = 1.1
)

// Vehicle describes one catalogue entry.
type Vehicle struct {
	Class      VehicleClass `json:"id"`
	Name       string       `json:"name"`
	Multiplier float64      `json:"multiplier"`
	ETA        string       `json:"eta"`
}

var catalogue = []Vehicle{
	{Class: VehicleMoto, Name: "Moto", Multiplier: 0.5, ETA: "3 min"},
	{Class: VehicleAuto, Name: "Auto", Multiplier: 0.8, ETA: "5 min"},
	{Class: VehiclePrime, Name: "Prime", Multiplier: 1.2, ETA: "8 min"},
}

// Catalogue returns the bookable vehicles in display order.
func Catalogue() []Vehicle {
	return append([]Vehicle(nil), catalogue...)
}

// LookupVehicle returns the catalogue entry for class.
func LookupVehicle(class VehicleClass) (Vehicle, bool) {
	for _, v := range catalogue {
		if v.Class == class {
			return v, true
		}
	}
	return Vehicle{}, false
}

// Quote returns the displayed fare for class, rounded to a whole unit.
func Quote(class VehicleClass, safety bool) (int, error) {
	v, ok := LookupVehicle(class)
	if !ok {
		return 0, ErrUnknownVehicle
	}
	fare := BaseFare * v.Multiplier
	if safety {
		fare *= SafetySurcharge
	}
	return int(math.Round(fare)), nil
}
