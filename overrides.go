package sqldao

// Overrides holds named switches controlling which fields of an existing
// definition may be overwritten. A switch that is not set is off.
type Overrides map[string]bool

const (
	OverrideTitle           = "title"
	OverrideScanRate        = "scanRate"
	OverrideScanTime        = "scanTime"
	OverrideLongDescription = "longDescription"
	OverrideActive          = "isActive"
	OverrideScaleFactor     = "scaleFactor"
	OverrideDeadBand        = "deadBand"
)

// For reports whether the named switch is on.
func (o Overrides) For(name string) bool {
	return o[name]
}
