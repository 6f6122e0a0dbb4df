/*
catalog.go - Default rule catalog for the paving dispatch board

PURPOSE:
  Builds the out-of-the-box rule set: which person types ride on which
  machines, which resource types each row accepts, and which rows each
  job type exposes. Dispatch admins override these with YAML catalog
  files (see yaml.go); this is the fallback and the seed for new boards.

RULE HIGHLIGHTS:
  - Every operated machine requires exactly one operator
  - Every hauling truck and the tack truck require exactly one driver
  - A paver additionally takes up to two screwmen (optional)
  - A milling machine takes an optional groundman
  - Rows accept the unattached type only: the equipment row accepts
    machines, not operators - an operator reaches that row by being
    attached to a machine

SEE ALSO:
  - yaml.go: Loading replacement catalogs from disk
  - engine/catalog.go: Lookup semantics
*/
package construction

import "github.com/warp/dispatch-engine/engine"

// DefaultSpec returns the buildable form of the default rule set.
func DefaultSpec() engine.CatalogSpec {
	attach := []engine.AttachmentRule{
		// One operator per operated machine, always required.
		{Source: Operator, Target: Excavator, CanAttach: true, MaxCount: 1, Required: true},
		{Source: Operator, Target: Paver, CanAttach: true, MaxCount: 1, Required: true},
		{Source: Operator, Target: MillingMachine, CanAttach: true, MaxCount: 1, Required: true},
		{Source: Operator, Target: Roller, CanAttach: true, MaxCount: 1, Required: true},
		{Source: Operator, Target: Sweeper, CanAttach: true, MaxCount: 1, Required: true},

		// Paver crew extras.
		{Source: Screwman, Target: Paver, CanAttach: true, MaxCount: 2, Required: false},
		{Source: Groundman, Target: MillingMachine, CanAttach: true, MaxCount: 1, Required: false},

		// One driver per truck, always required.
		{Source: Driver, Target: TackTruck, CanAttach: true, MaxCount: 1, Required: true},
		{Source: Driver, Target: Flatbed, CanAttach: true, MaxCount: 1, Required: true},
		{Source: Driver, Target: TenWheeler, CanAttach: true, MaxCount: 1, Required: true},
		{Source: Driver, Target: TractorTrailer, CanAttach: true, MaxCount: 1, Required: true},
	}

	drop := []engine.DropRule{
		{Row: RowForeman, Allowed: []engine.ResourceType{Foreman}},
		{Row: RowEquipment, Allowed: []engine.ResourceType{Excavator, Paver, MillingMachine, Roller}},
		{Row: RowSweeper, Allowed: []engine.ResourceType{Sweeper}},
		{Row: RowTack, Allowed: []engine.ResourceType{TackTruck}},
		{Row: RowMPT, Allowed: []engine.ResourceType{Flagger, Laborer}},
		{Row: RowCrew, Allowed: []engine.ResourceType{Operator, Laborer, Screwman, Groundman, Flagger}},
		{Row: RowTrucks, Allowed: TruckTypes},
	}

	schemas := []engine.RowSchema{
		{Job: JobPaving, Rows: []engine.RowType{
			RowForeman, RowEquipment, RowSweeper, RowTack, RowMPT, RowCrew, RowTrucks,
		}},
		{Job: JobMilling, Rows: []engine.RowType{
			RowForeman, RowEquipment, RowSweeper, RowMPT, RowCrew, RowTrucks,
		}},
		{Job: JobGeneral, Rows: []engine.RowType{
			RowForeman, RowEquipment, RowMPT, RowCrew, RowTrucks,
		}},
	}

	return engine.CatalogSpec{
		AttachmentRules: attach,
		DropRules:       drop,
		RowSchemas:      schemas,
	}
}

// DefaultCatalog indexes DefaultSpec into an immutable catalog.
func DefaultCatalog() *engine.Catalog {
	return engine.NewCatalog(DefaultSpec())
}
