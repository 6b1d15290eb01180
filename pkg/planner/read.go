package planner

import (
	"github.com/fuselabs/fusequery/pkg/datablock"
)

// Part is a unit of work of a read: a fragment of a table that can be read
// independently of the others.
type Part struct {
	Name    string
	Version uint64

	// Offset and Rows locate the part within its fragment, for tables that
	// split by row ranges.
	Offset uint64
	Rows   uint64
}

// Statistics estimate the size of a read.
type Statistics struct {
	ReadRows  uint64
	ReadBytes uint64
	Exact     bool
}

// ReadDataSourcePlan describes how a table will be read: which parts, with
// which push-downs, producing which schema.
type ReadDataSourcePlan struct {
	Database    string
	Table       string
	TableID     uint64
	Schema      *datablock.Schema
	Parts       []Part
	Statistics  Statistics
	Description string
	Extras      *Extras
}

// Limit returns the pushed down limit, if any.
func (p *ReadDataSourcePlan) Limit() (uint64, bool) {
	if p.Extras == nil || p.Extras.Limit == nil {
		return 0, false
	}
	return *p.Extras.Limit, true
}

// Projection returns the projected columns, or nil when all columns are read.
func (p *ReadDataSourcePlan) Projection() []string {
	if p.Extras == nil {
		return nil
	}
	return p.Extras.Projection
}
