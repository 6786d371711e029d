package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/chgresrun/internal/configtree"
	"github.com/vk/chgresrun/internal/keypath"
	"github.com/zclconf/go-cty/cty"
)

func workflowTree(model string, ruc, thompson bool) cty.Value {
	return configtree.MustFromGo(map[string]any{
		"workflow": map[string]any{
			"SDF_USES_RUC_LSM":     ruc,
			"SDF_USES_THOMPSON_MP": thompson,
			"THOMPSON_MP_CLIMO_FP": "/fix/Thompson_MP_MONTHLY_CLIMO.nc",
		},
		"task_get_extrn_ics": map[string]any{"EXTRN_MDL_NAME_ICS": model},
	})
}

func TestModelOverrides(t *testing.T) {
	testCases := []struct {
		name     string
		model    string
		ruc      bool
		thompson bool
		want     map[string]any
	}{
		{name: "plain global model", model: "FV3GFS", want: map[string]any{}},
		{name: "RUC LSM with HRRR", model: "HRRR", ruc: true, want: map[string]any{"nsoill_out": 9}},
		{name: "RUC LSM with RAP", model: "RAP", ruc: true, want: map[string]any{"nsoill_out": 9}},
		{name: "RUC LSM with a non-RUC model", model: "FV3GFS", ruc: true, want: map[string]any{}},
		{
			name: "Thompson with a non-RUC model", model: "FV3GFS", thompson: true,
			want: map[string]any{"thomp_mp_climo_file": "/fix/Thompson_MP_MONTHLY_CLIMO.nc"},
		},
		{name: "Thompson with HRRR", model: "HRRR", thompson: true, want: map[string]any{}},
		{
			name: "both flags with RAP", model: "RAP", ruc: true, thompson: true,
			want: map[string]any{"nsoill_out": 9},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := readModelOverrides(workflowTree(tc.model, tc.ruc, tc.thompson), pathICSModel)
			require.NoError(t, err)

			attrs := make(map[string]cty.Value)
			m.apply(attrs)

			want := configtree.MustFromGo(tc.want)
			got := cty.ObjectVal(attrs)
			assert.True(t, want.RawEquals(got), "want %#v, got %#v", want, got)
		})
	}
}

func TestModelOverrides_MissingModel(t *testing.T) {
	tree := configtree.MustFromGo(map[string]any{"workflow": map[string]any{}})
	_, err := readModelOverrides(tree, pathLBCModel)
	require.ErrorIs(t, err, keypath.ErrMissingKeyPath)
}

func TestICSOverlay(t *testing.T) {
	plain := modelOverrides{model: "FV3GFS"}

	t.Run("grib2 selects only the grib2 file", func(t *testing.T) {
		v, err := icsOverlay("grib2", []string{"a.grib2", "b.grib2"}, plain)
		require.NoError(t, err)
		assert.Equal(t, []string{"grib2_file_input_grid"}, configtree.Keys(v))
	})

	t.Run("other formats select atmosphere and surface", func(t *testing.T) {
		v, err := icsOverlay("netcdf", []string{"atm.nc", "sfc.nc"}, plain)
		require.NoError(t, err)
		assert.Equal(t, []string{"atm_files_input_grid", "sfc_files_input_grid"}, configtree.Keys(v))
	})

	t.Run("too few files", func(t *testing.T) {
		_, err := icsOverlay("netcdf", []string{"atm.nc"}, plain)
		require.Error(t, err)
		_, err = icsOverlay("grib2", nil, plain)
		require.Error(t, err)
	})
}

func TestLBCOverlay(t *testing.T) {
	m := modelOverrides{model: "RAP", rucLSM: true}
	v, err := lbcOverlay("grib2", []string{"f000", "f003"}, 1, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"grib2_file_input_grid", "nsoill_out"}, configtree.Keys(v))

	_, err = lbcOverlay("grib2", []string{"f000"}, 1, m)
	require.Error(t, err)
}
