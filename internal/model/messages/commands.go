package messages

// DriveOrder is what the drive controller node reads on rover/node2/drive.
// Pan-tilt and device commands are relayed as the dashboard sent them.
type DriveOrder struct {
	Move  string  `json:"move"`
	Speed float64 `json:"speed"`
}
