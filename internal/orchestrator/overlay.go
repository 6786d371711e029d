package orchestrator

import (
	"fmt"

	"github.com/vk/chgresrun/internal/configtree"
	"github.com/vk/chgresrun/internal/keypath"
	"github.com/zclconf/go-cty/cty"
)

// Namelist keys of the chgres_cube "config" group the control loop sets.
const (
	keyInputType     = "input_type"
	keyGrib2File     = "grib2_file_input_grid"
	keyAtmFiles      = "atm_files_input_grid"
	keySfcFiles      = "sfc_files_input_grid"
	keySoilLevels    = "nsoill_out"
	keyThompsonClimo = "thomp_mp_climo_file"
)

// Var-defs variables written by the external-model fetch tasks.
const (
	varFileNames = "EXTRN_MDL_FNS"
	varFcstHours = "EXTRN_MDL_FHRS"
)

const inputTypeGrib2 = "grib2"

// rucSoilLevels is the soil level count for models run with the RUC land
// surface model.
const rucSoilLevels = 9

// rucModels are the source models whose land surface data is RUC-based.
var rucModels = map[string]bool{"HRRR": true, "RAP": true}

var (
	pathCRES          = keypath.Path{"workflow", "CRES"}
	pathRUCLSM        = keypath.Path{"workflow", "SDF_USES_RUC_LSM"}
	pathThompson      = keypath.Path{"workflow", "SDF_USES_THOMPSON_MP"}
	pathThompsonClimo = keypath.Path{"workflow", "THOMPSON_MP_CLIMO_FP"}
	pathNetwork       = keypath.Path{"nco", "NET_default"}
	pathTile          = keypath.Path{"constants", "TILE_RGNL"}
	pathHalo          = keypath.Path{"constants", "NH0"}
	pathEnsemble      = keypath.Path{"global", "DO_ENSEMBLE"}
	pathRunEnvir      = keypath.Path{"user", "RUN_ENVIR"}
	pathICSModel      = keypath.Path{"task_get_extrn_ics", "EXTRN_MDL_NAME_ICS"}
	pathLBCModel      = keypath.Path{"task_get_extrn_lbcs", "EXTRN_MDL_NAME_LBCS"}
	pathLBCOffset     = keypath.Path{"task_get_extrn_lbcs", "EXTRN_MDL_LBCS_OFFSET_HRS"}

	// Relative to the task block.
	pathMetadata = keypath.Path{"input_files_metadata_path"}
	pathLabels   = keypath.Path{"output_file_labels"}

	// Relative to the driver block.
	pathNamelistConfig = keypath.Path{"namelist", "update_values", "config"}
)

// modelOverrides holds what the model-family-specific namelist overrides
// depend on.
type modelOverrides struct {
	model         string
	rucLSM        bool
	thompson      bool
	thompsonClimo string
}

func readModelOverrides(resolved cty.Value, modelPath keypath.Path) (modelOverrides, error) {
	var m modelOverrides
	var err error
	if m.model, err = configtree.String(resolved, modelPath); err != nil {
		return m, err
	}
	if m.rucLSM, err = configtree.OptionalBool(resolved, pathRUCLSM, false); err != nil {
		return m, err
	}
	if m.thompson, err = configtree.OptionalBool(resolved, pathThompson, false); err != nil {
		return m, err
	}
	if m.thompson && !rucModels[m.model] {
		if m.thompsonClimo, err = configtree.String(resolved, pathThompsonClimo); err != nil {
			return m, err
		}
	}
	return m, nil
}

// apply adds the soil-level and microphysics-climatology overrides.
func (m modelOverrides) apply(attrs map[string]cty.Value) {
	ruc := rucModels[m.model]
	if ruc && m.rucLSM {
		attrs[keySoilLevels] = cty.NumberIntVal(rucSoilLevels)
	}
	if m.thompson && !ruc {
		attrs[keyThompsonClimo] = cty.StringVal(m.thompsonClimo)
	}
}

// icsOverlay selects the initial-condition input files: the single grib2
// file, or the atmosphere and surface files of other formats.
func icsOverlay(inputType string, files []string, m modelOverrides) (cty.Value, error) {
	attrs := make(map[string]cty.Value)
	if inputType == inputTypeGrib2 {
		if len(files) < 1 {
			return cty.NilVal, fmt.Errorf("%s is empty, need one grib2 file", varFileNames)
		}
		attrs[keyGrib2File] = cty.StringVal(files[0])
	} else {
		if len(files) < 2 {
			return cty.NilVal, fmt.Errorf("%s has %d entries, need atmosphere and surface files for input type %q", varFileNames, len(files), inputType)
		}
		attrs[keyAtmFiles] = cty.StringVal(files[0])
		attrs[keySfcFiles] = cty.StringVal(files[1])
	}
	m.apply(attrs)
	return cty.ObjectVal(attrs), nil
}

// lbcOverlay selects the input file of forecast-hour index i.
func lbcOverlay(inputType string, files []string, i int, m modelOverrides) (cty.Value, error) {
	if i < 0 || i >= len(files) {
		return cty.NilVal, fmt.Errorf("%s has %d entries, no file for forecast hour index %d", varFileNames, len(files), i)
	}
	attrs := make(map[string]cty.Value)
	if inputType == inputTypeGrib2 {
		attrs[keyGrib2File] = cty.StringVal(files[i])
	} else {
		attrs[keyAtmFiles] = cty.StringVal(files[i])
	}
	m.apply(attrs)
	return cty.ObjectVal(attrs), nil
}
