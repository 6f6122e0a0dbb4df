// Package construction instantiates the generic rule engine for a paving
// contractor's dispatch board: its resource types, row types, job types
// and the default rule catalog.
package construction

import "github.com/warp/dispatch-engine/engine"

// =============================================================================
// RESOURCE TYPES
// =============================================================================

// Personnel
const (
	Foreman   engine.ResourceType = "foreman"
	Operator  engine.ResourceType = "operator"
	Driver    engine.ResourceType = "driver"
	Laborer   engine.ResourceType = "laborer"
	Screwman  engine.ResourceType = "screwman"
	Groundman engine.ResourceType = "groundman"
	Flagger   engine.ResourceType = "flagger"
)

// Equipment
const (
	Excavator      engine.ResourceType = "excavator"
	Paver          engine.ResourceType = "paver"
	MillingMachine engine.ResourceType = "millingMachine"
	Roller         engine.ResourceType = "roller"
	Sweeper        engine.ResourceType = "sweeper"
	TackTruck      engine.ResourceType = "tackTruck"
)

// Trucks
const (
	Flatbed        engine.ResourceType = "flatbed"
	TenWheeler     engine.ResourceType = "tenWheeler"
	TractorTrailer engine.ResourceType = "tractorTrailer"
)

// PersonnelTypes lists every person type.
var PersonnelTypes = []engine.ResourceType{
	Foreman, Operator, Driver, Laborer, Screwman, Groundman, Flagger,
}

// EquipmentTypes lists every operated machine type.
var EquipmentTypes = []engine.ResourceType{
	Excavator, Paver, MillingMachine, Roller, Sweeper, TackTruck,
}

// TruckTypes lists every hauling truck type.
var TruckTypes = []engine.ResourceType{Flatbed, TenWheeler, TractorTrailer}

// IsPersonnel reports whether t is a person.
func IsPersonnel(t engine.ResourceType) bool { return contains(PersonnelTypes, t) }

// IsEquipment reports whether t is an operated machine.
func IsEquipment(t engine.ResourceType) bool { return contains(EquipmentTypes, t) }

// IsTruck reports whether t is a hauling truck.
func IsTruck(t engine.ResourceType) bool { return contains(TruckTypes, t) }

func contains(types []engine.ResourceType, t engine.ResourceType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// =============================================================================
// ROW TYPES
// =============================================================================

const (
	RowForeman   engine.RowType = "foreman"
	RowEquipment engine.RowType = "equipment"
	RowSweeper   engine.RowType = "sweeper"
	RowTack      engine.RowType = "tack"
	RowMPT       engine.RowType = "mpt"
	RowCrew      engine.RowType = "crew"
	RowTrucks    engine.RowType = "trucks"
)

// =============================================================================
// JOB TYPES
// =============================================================================

const (
	JobPaving  engine.JobType = "paving"
	JobMilling engine.JobType = "milling"
	JobGeneral engine.JobType = "general"
)
