package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"text/template"

	"github.com/stretchr/testify/require"
)

// ExperimentOptions shape the experiment WriteExperiment creates. Zero
// values get defaults.
type ExperimentOptions struct {
	Task        string // task block name, default "task_make_ics"
	InputType   string // default "grib2"
	Model       string // external model name for both ICS and LBCS, default "FV3GFS"
	Files       []string
	Hours       []int
	OffsetHours int
	RUCLSM      bool
	Thompson    bool
	Ensemble    bool
	RunEnvir    string // default "community"
	Labels      []string
	Executable  string // default "/bin/true"
	CRES        string // workflow.CRES as written, default "C403"; workflow.RES is 403
}

// Experiment is a minimal SRW-style experiment written to a temporary directory.
type Experiment struct {
	Dir         string
	ConfigPath  string
	VarDefsPath string
	// RunDir is the task's run directory for cycle 2024-07-15T18.
	RunDir string
	// InputDir is the sibling INPUT directory outputs are staged into by default.
	InputDir string
}

var experimentTemplate = template.Must(template.New("config").Parse(`workflow:
  EXPTDIR: '{{.Dir}}'
  RES: 403
  CRES: '{{.CRES}}'
  FCST_LEN_HRS: 12
  DATE_FIRST_CYCL: '2024071518'
  SDF_USES_RUC_LSM: {{.RUCLSM}}
  SDF_USES_THOMPSON_MP: {{.Thompson}}
  THOMPSON_MP_CLIMO_FP: '${workflow.EXPTDIR}/fix/Thompson_MP_MONTHLY_CLIMO.nc'
nco:
  NET_default: srw
constants:
  TILE_RGNL: 7
  NH0: 0
global:
  DO_ENSEMBLE: {{.Ensemble}}
user:
  RUN_ENVIR: {{.RunEnvir}}
task_get_extrn_ics:
  EXTRN_MDL_NAME_ICS: {{.Model}}
task_get_extrn_lbcs:
  EXTRN_MDL_NAME_LBCS: {{.Model}}
  EXTRN_MDL_LBCS_OFFSET_HRS: {{.OffsetHours}}
{{.Task}}:
  input_files_metadata_path: '{{.VarDefsPath}}'
{{- if .Labels}}
  output_file_labels: [{{.Labels}}]
{{- end}}
  chgres_cube:
    rundir: '${workflow.EXPTDIR}/${formatdate("YYYYMMDDhh", cycle)}/{{.Task}}'
    execution:
      executable: '{{.Executable}}'
    namelist:
      update_values:
        config:
          input_type: {{.InputType}}
          mosaic_file_target_grid: '${workflow.EXPTDIR}/fix_lam/${env.CRES}_mosaic.halo${constants.NH0}.nc'
          varmap_file: '${workflow.EXPTDIR}/parm/GSDphys_var_map.txt'
          cycle_mon: 7
`))

// WriteExperiment writes an experiment config and its var-defs file into a
// fresh temporary directory.
func WriteExperiment(t *testing.T, opts ExperimentOptions) *Experiment {
	t.Helper()

	if opts.Task == "" {
		opts.Task = "task_make_ics"
	}
	if opts.InputType == "" {
		opts.InputType = "grib2"
	}
	if opts.Model == "" {
		opts.Model = "FV3GFS"
	}
	if opts.RunEnvir == "" {
		opts.RunEnvir = "community"
	}
	if opts.Executable == "" {
		opts.Executable = "/bin/true"
	}
	if opts.CRES == "" {
		opts.CRES = "C403"
	}
	if opts.Files == nil {
		opts.Files = []string{"gfs.t18z.pgrb2.0p25.f000"}
	}
	if opts.Hours == nil {
		opts.Hours = []int{0}
	}

	dir := t.TempDir()
	exp := &Experiment{
		Dir:         dir,
		ConfigPath:  filepath.Join(dir, "config.yaml"),
		VarDefsPath: filepath.Join(dir, "extrn_mdl_var_defs.sh"),
		RunDir:      filepath.Join(dir, "2024071518", opts.Task),
		InputDir:    filepath.Join(dir, "2024071518", "INPUT"),
	}

	var varDefs strings.Builder
	varDefs.WriteString("EXTRN_MDL_CDATE='2024071518'\n")
	varDefs.WriteString("EXTRN_MDL_FNS=(")
	for _, f := range opts.Files {
		fmt.Fprintf(&varDefs, " %q", f)
	}
	varDefs.WriteString(" )\nEXTRN_MDL_FHRS=(")
	for _, h := range opts.Hours {
		fmt.Fprintf(&varDefs, " %d", h)
	}
	varDefs.WriteString(" )\n")
	require.NoError(t, os.WriteFile(exp.VarDefsPath, []byte(varDefs.String()), 0o644))

	labels := ""
	if len(opts.Labels) > 0 {
		labels = "'" + strings.Join(opts.Labels, "', '") + "'"
	}

	var cfg strings.Builder
	err := experimentTemplate.Execute(&cfg, map[string]any{
		"Dir":         dir,
		"VarDefsPath": exp.VarDefsPath,
		"Task":        opts.Task,
		"InputType":   opts.InputType,
		"Model":       opts.Model,
		"OffsetHours": opts.OffsetHours,
		"RUCLSM":      opts.RUCLSM,
		"Thompson":    opts.Thompson,
		"Ensemble":    opts.Ensemble,
		"RunEnvir":    opts.RunEnvir,
		"Labels":      labels,
		"Executable":  opts.Executable,
		"CRES":        opts.CRES,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(exp.ConfigPath, []byte(cfg.String()), 0o644))

	return exp
}
