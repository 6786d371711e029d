// Package naming derives the file names chgres_cube outputs are staged
// under. Every function here is pure.
package naming

import (
	"fmt"
	"time"
)

// Kind identifies one of the fixed initial-condition artifacts.
type Kind int

const (
	Atmosphere Kind = iota
	Surface
	Control
	Boundary
)

// ICSKinds lists the initial-condition artifacts in staging order. This is
// also the order of the output_file_labels entries in the task config.
var ICSKinds = []Kind{Atmosphere, Surface, Control, Boundary}

func (k Kind) String() string {
	switch k {
	case Atmosphere:
		return "atmosphere"
	case Surface:
		return "surface"
	case Control:
		return "control"
	case Boundary:
		return "boundary"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// LBCSource is the name chgres_cube gives its boundary output in the run directory.
const LBCSource = "gfs.bndy.nc"

// Fields are the resolved config values output names are built from.
type Fields struct {
	Network     string
	Cycle       time.Time
	Member      string
	Ensemble    bool
	Operational bool
	Tile        int
	Halo        int
}

// MemberSuffix returns ".mem<member>" when both ensemble mode and the
// operational run environment are active, otherwise "".
func MemberSuffix(member string, ensemble, operational bool) string {
	if ensemble && operational && member != "" {
		return ".mem" + member
	}
	return ""
}

// CycleToken renders the cycle hour as "t<HH>z".
func CycleToken(cycle time.Time) string {
	return fmt.Sprintf("t%02dz", cycle.UTC().Hour())
}

func (f Fields) prefix() string {
	return f.Network + "." + CycleToken(f.Cycle) + MemberSuffix(f.Member, f.Ensemble, f.Operational)
}

// ICSName returns the staged name of an initial-condition artifact.
func (f Fields) ICSName(k Kind) string {
	switch k {
	case Atmosphere:
		return fmt.Sprintf("%s.gfs_data.tile%d.halo%d.nc", f.prefix(), f.Tile, f.Halo)
	case Surface:
		return fmt.Sprintf("%s.sfc_data.tile%d.halo%d.nc", f.prefix(), f.Tile, f.Halo)
	case Control:
		return f.prefix() + ".gfs_ctrl.nc"
	case Boundary:
		return fmt.Sprintf("%s.gfs_bndy.tile%d.f000.nc", f.prefix(), f.Tile)
	default:
		panic(fmt.Sprintf("naming: unknown artifact kind %d", int(k)))
	}
}

// ICSSource returns the default name chgres_cube writes an
// initial-condition artifact under in its run directory.
func ICSSource(k Kind, tile int) string {
	switch k {
	case Atmosphere:
		return fmt.Sprintf("out.atm.tile%d.nc", tile)
	case Surface:
		return fmt.Sprintf("out.sfc.tile%d.nc", tile)
	case Control:
		return "gfs_ctrl.nc"
	case Boundary:
		return LBCSource
	default:
		panic(fmt.Sprintf("naming: unknown artifact kind %d", int(k)))
	}
}

// LBCName returns the staged name of the boundary file for the given
// forecast-hour offset.
func (f Fields) LBCName(offset int) (string, error) {
	hhh, err := FormatHour(offset)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.gfs_bndy.tile%d.f%s.nc", f.prefix(), f.Tile, hhh), nil
}

// LBCHeldName returns the per-hour name a boundary output is moved to in
// the run directory, so the next hour's run does not overwrite it.
func LBCHeldName(offset int) (string, error) {
	hhh, err := FormatHour(offset)
	if err != nil {
		return "", err
	}
	return "gfs.bndy.f" + hhh + ".nc", nil
}

// OffsetError reports a forecast-hour offset that came out negative.
type OffsetError struct {
	Index    int
	SpecHour int
	Offset   int
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("forecast hour %d (index %d) minus boundary offset %d is negative", e.SpecHour, e.Index, e.Offset)
}

// ForecastOffset returns specHours[i] - offset, the forecast hour relative to
// the cycle that boundary file i covers.
func ForecastOffset(specHours []int, i, offset int) (int, error) {
	if i < 0 || i >= len(specHours) {
		return 0, fmt.Errorf("forecast hour index %d out of range [0, %d)", i, len(specHours))
	}
	h := specHours[i] - offset
	if h < 0 {
		return 0, &OffsetError{Index: i, SpecHour: specHours[i], Offset: offset}
	}
	return h, nil
}

// FormatHour renders a non-negative hour as a 3-digit zero-padded string.
func FormatHour(h int) (string, error) {
	if h < 0 {
		return "", fmt.Errorf("hour %d is negative", h)
	}
	return fmt.Sprintf("%03d", h), nil
}

// DoneMarker returns the completion marker file name a driver leaves in its
// run directory.
func DoneMarker(driver string) string {
	return "runscript." + driver + ".done"
}
