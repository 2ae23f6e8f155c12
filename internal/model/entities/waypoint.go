package entities

// Waypoint is created by the operator on the map. The relay only forwards
// waypoint operations; it keeps no waypoint state.
type Waypoint struct {
	ID  string  `json:"id,omitempty"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
