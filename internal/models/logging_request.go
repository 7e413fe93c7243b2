package models

// LoggingRequest is the body of one delivery attempt to the remote
// collector. Beacons is a value snapshot taken at flush time, so later
// store mutations cannot leak into an in-flight request.
type LoggingRequest struct {
	DeviceName string   `json:"device_name"`
	Beacons    []Beacon `json:"beacons"`
}
