package detections

const (
	// Model space: the square input resolution the detector was exported with
	InputWidth  = 640
	InputHeight = 640

	DefaultConfThreshold = 0.4
	DefaultIOUThreshold  = 0.7

	// Leading attributes of every anchor column: cx, cy, w, h
	boxAttributes = 4
)
