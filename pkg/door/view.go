package door

// View is the display model derived from the signals.
// The rendering layer reads it and never writes back.
type View struct {
	SystemBadge        string `json:"systemBadge"`
	SystemBadgeVariant string `json:"systemBadgeVariant"`
	MotionBadge        string `json:"motionBadge"`
	MotionBadgeVariant string `json:"motionBadgeVariant"`
	Position           string `json:"position"`
	ControlMode        string `json:"controlMode"`
	StatusLine         string `json:"statusLine"`
	OverrideButton     string `json:"overrideButton"`
	DoorButton         string `json:"doorButton"`
	DoorButtonEnabled  bool   `json:"doorButtonEnabled"`
	PanelFaulted       bool   `json:"panelFaulted"`
	ShowAlert          bool   `json:"showAlert"`
	SensorsActive      bool   `json:"sensorsActive"`
}

// NewView derives the display model for s.
func NewView(s Signals) View {
	v := View{
		SystemBadge:        "System OK",
		SystemBadgeVariant: "secondary",
		MotionBadge:        "No Motion",
		MotionBadgeVariant: "secondary",
		Position:           "Closed",
		ControlMode:        "Automatic Control",
		OverrideButton:     "Manual Override",
		DoorButton:         "Open Door",
		DoorButtonEnabled:  s.IsManualOverride,
		PanelFaulted:       s.IsError,
		ShowAlert:          s.IsError,
		SensorsActive:      s.MotionDetected,
	}
	if s.IsError {
		v.SystemBadge = "System Error"
		v.SystemBadgeVariant = "destructive"
	}
	if s.MotionDetected {
		v.MotionBadge = "Motion Detected"
		v.MotionBadgeVariant = "default"
	}
	if s.IsOpen {
		v.Position = "Open"
		v.DoorButton = "Close Door"
	}
	if s.IsManualOverride {
		v.ControlMode = "Manual Control"
		v.OverrideButton = "Enable Auto"
	}
	v.StatusLine = v.Position + " • " + v.ControlMode
	return v
}
