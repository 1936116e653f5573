// Package reachlayout names the files and directories that make up a
// source model and its reach submodels. It performs no I/O beyond
// path arithmetic (os/filepath); every stage and every test constructs
// paths through this package so the on-disk contract described by the
// directory layout has exactly one implementation.
package reachlayout

import (
	"fmt"
	"path/filepath"
)

// SourceModel names the files that make up a source HEC-RAS model
// directory, addressed by the model's base name.
type SourceModel struct {
	root string
	name string
}

// NewSourceModel returns a SourceModel rooted at root, named name (the
// shared basename of its .prj/.g01/.p01/.f01 files).
func NewSourceModel(root, name string) SourceModel {
	return SourceModel{root: root, name: name}
}

// Root is the source model's root directory.
func (m SourceModel) Root() string { return m.root }

// Name is the source model's basename.
func (m SourceModel) Name() string { return m.name }

// Project is the HEC-RAS project file, <root>/<name>.prj.
func (m SourceModel) Project() string { return m.path(".prj") }

// Geometry is the nth geometry file, <root>/<name>.g<NN>.
func (m SourceModel) Geometry(n int) string { return m.pathSuffix("g", n) }

// Plan is the nth plan file, <root>/<name>.p<NN>.
func (m SourceModel) Plan(n int) string { return m.pathSuffix("p", n) }

// Flow is the nth steady-flow file, <root>/<name>.f<NN>.
func (m SourceModel) Flow(n int) string { return m.pathSuffix("f", n) }

// GeoPackage is the network geopackage derived from the model, <root>/<name>.gpkg.
func (m SourceModel) GeoPackage() string { return m.path(".gpkg") }

// ConflationDocument is the conflation result document, <root>/<name>.conflation.json.
func (m SourceModel) ConflationDocument() string { return m.path(".conflation.json") }

func (m SourceModel) path(ext string) string {
	return filepath.Join(m.root, m.name+ext)
}

func (m SourceModel) pathSuffix(kind string, n int) string {
	return filepath.Join(m.root, fmt.Sprintf("%s.%s%02d", m.name, kind, n))
}

// ReachSubmodel names the files that make up one reach's extracted
// submodel directory, addressed by reach identifier.
type ReachSubmodel struct {
	sourceRoot string
	reachID    string
}

// NewReachSubmodel returns a ReachSubmodel for reachID, rooted under
// sourceRoot (the <root>/<reach> directory described by the layout).
func NewReachSubmodel(sourceRoot, reachID string) ReachSubmodel {
	return ReachSubmodel{sourceRoot: sourceRoot, reachID: reachID}
}

// Root is the reach submodel's directory, <sourceRoot>/<reach>.
func (r ReachSubmodel) Root() string {
	return filepath.Join(r.sourceRoot, r.reachID)
}

// ReachID is the reach identifier this submodel was extracted for.
func (r ReachSubmodel) ReachID() string { return r.reachID }

// GeoPackage is the reach's clipped network geopackage, <root>/<reach>.gpkg.
func (r ReachSubmodel) GeoPackage() string {
	return filepath.Join(r.Root(), r.reachID+".gpkg")
}

// TerrainDir is the reach's terrain bundle directory, <root>/Terrain.
func (r ReachSubmodel) TerrainDir() string {
	return filepath.Join(r.Root(), "Terrain")
}

// Terrain is the reach's terrain HDF file, <root>/Terrain/<reach>.hdf.
func (r ReachSubmodel) Terrain() string {
	return filepath.Join(r.TerrainDir(), r.reachID+".hdf")
}

// Plan is the nth plan file, <root>/<reach>.p<NN>.
func (r ReachSubmodel) Plan(n int) string { return r.pathSuffix("p", n) }

// Flow is the nth steady-flow file, <root>/<reach>.f<NN>.
func (r ReachSubmodel) Flow(n int) string { return r.pathSuffix("f", n) }

// Results is the nth results file, <root>/<reach>.r<NN>.
func (r ReachSubmodel) Results(n int) string { return r.pathSuffix("r", n) }

// FimsDir is the reach's map library directory, <root>/fims/<reach>.
func (r ReachSubmodel) FimsDir() string {
	return filepath.Join(r.Root(), "fims", r.reachID)
}

// FimGrid is one depth grid, <root>/fims/<reach>/<Q>-<E>.tif.
// discharge and elevation are formatted with two decimal places, matching
// the profile identifiers the solver adapter produces.
func (r ReachSubmodel) FimGrid(discharge, elevation float64) string {
	name := fmt.Sprintf("%.2f-%.2f.tif", discharge, elevation)

	return filepath.Join(r.FimsDir(), name)
}

// RatingCurvesDB is the reach's rating-curve relational file, <root>/<reach>.db.
func (r ReachSubmodel) RatingCurvesDB() string {
	return filepath.Join(r.Root(), r.reachID+".db")
}

func (r ReachSubmodel) pathSuffix(kind string, n int) string {
	return filepath.Join(r.Root(), fmt.Sprintf("%s.%s%02d", r.reachID, kind, n))
}
