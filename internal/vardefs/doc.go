// Package vardefs parses flat shell-style variable definition files, such as
// the metadata files written by the external-model fetch tasks:
//
//	EXTRN_MDL_CDATE=2024071518
//	EXTRN_MDL_FNS=( "gfs.t18z.pgrb2.0p25.f000" "gfs.t18z.pgrb2.0p25.f003" )
//	EXTRN_MDL_FHRS=( 0 3 )
//
// Parenthesised values become sequences; everything else is kept as the raw
// trimmed scalar. Lines without '=' are ignored.
package vardefs
