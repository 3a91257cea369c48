package telemetry

// Frame geometry
const (
	BitsPerSensor      = 8
	DefaultSensorCount = 24
)

// Level payload markers on the serial feed. The current firmware sends
// "ALL=<bits>", older boards send "ALL:<bits>".
const (
	PrefixCurrent = "ALL="
	PrefixLegacy  = "ALL:"
	NotAvailable  = "NA"
)
