package door

// --- Domain Entities & Value Objects ---

// DoorState represents the physical position of the door.
// DoorState는 문의 물리적 위치를 나타냅니다.
type DoorState string

const (
	DoorOpen  DoorState = "Open"
	DoorClose DoorState = "Close"
)

func doorStateOf(open bool) DoorState {
	if open {
		return DoorOpen
	}
	return DoorClose
}

// OperationMode defines who controls the door position.
// OperationMode는 문 위치를 누가 제어하는지 정의합니다.
type OperationMode int

const (
	ModeAuto   OperationMode = iota // 자동 제어 (센서 기반)
	ModeManual                      // 수동 제어 (사용자 조작)
)

func (m OperationMode) String() string {
	return [...]string{"Auto", "Manual"}[m]
}

// Signals is the state record shared by the generators, the door logic and the view.
// Signals는 생성기, 문 로직, 뷰가 공유하는 상태 레코드입니다.
type Signals struct {
	IsOpen           bool `json:"isOpen"`
	MotionDetected   bool `json:"motionDetected"`
	IsError          bool `json:"isError"`
	IsManualOverride bool `json:"isManualOverride"`
}

// Mode reports the operation mode implied by the override flag.
func (s Signals) Mode() OperationMode {
	if s.IsManualOverride {
		return ModeManual
	}
	return ModeAuto
}

// Door reports the door position.
func (s Signals) Door() DoorState {
	return doorStateOf(s.IsOpen)
}

// CloseCheck is a delayed close armed by the door rule.
// MotionAtArm is the motion reading captured when the check was armed;
// the check compares against it, not against the live reading.
type CloseCheck struct {
	Seq         uint64
	MotionAtArm bool
}

// LogicActionType defines the outcome decided by the logic.
// LogicActionType은 로직이 결정한 결과를 정의합니다.
type LogicActionType int

const (
	ActionNone      LogicActionType = iota
	ActionOpenDoor                  // 문 열기 (움직임 감지)
	ActionCloseDoor                 // 문 닫기
	ActionHold                      // 고장 상태: 현재 위치 유지
	ActionFrozen                    // 수동 모드: 자동 규칙 미적용
)

func (t LogicActionType) String() string {
	return [...]string{"None", "OpenDoor", "CloseDoor", "Hold", "Frozen"}[t]
}

// LogicAction represents the decision made by one evaluation of the door rule.
type LogicAction struct {
	Type        LogicActionType
	Reevaluated bool        // the rule ran; any previously armed check is cancelled
	Arm         *CloseCheck // a new delayed close to schedule, if any
}

// DoorLogic contains purely business logic for the door.
// DoorLogic은 문의 순수 비즈니스 로직을 포함합니다.
// No mutex, No channel, No time.
type DoorLogic struct {
	Signals

	pending *CloseCheck
	seq     uint64
}

// NewDoorLogic creates a logic instance with every signal false.
func NewDoorLogic() *DoorLogic {
	return &DoorLogic{}
}

// Pending returns the armed close check, if any.
func (l *DoorLogic) Pending() (CloseCheck, bool) {
	if l.pending == nil {
		return CloseCheck{}, false
	}
	return *l.pending, true
}

// SetMotion records a motion reading. The door rule only runs when the value changes.
func (l *DoorLogic) SetMotion(detected bool) LogicAction {
	if l.MotionDetected == detected {
		return LogicAction{Type: ActionNone}
	}
	l.MotionDetected = detected
	return l.evaluate()
}

// SetError records a fault reading. The door rule only runs when the value changes.
func (l *DoorLogic) SetError(faulted bool) LogicAction {
	if l.IsError == faulted {
		return LogicAction{Type: ActionNone}
	}
	l.IsError = faulted
	return l.evaluate()
}

// ToggleOverride flips between automatic and manual mode and re-runs the door rule.
func (l *DoorLogic) ToggleOverride() LogicAction {
	l.IsManualOverride = !l.IsManualOverride
	return l.evaluate()
}

// ToggleDoor flips the door position directly. Only allowed in manual mode.
func (l *DoorLogic) ToggleDoor() bool {
	if !l.IsManualOverride {
		return false
	}
	l.IsOpen = !l.IsOpen
	return true
}

// ExpireClose handles the firing of an armed close check.
// A check that was superseded by a later evaluation is ignored.
func (l *DoorLogic) ExpireClose(seq uint64) LogicAction {
	if l.pending == nil || l.pending.Seq != seq {
		return LogicAction{Type: ActionNone}
	}
	check := *l.pending
	l.pending = nil

	if !check.MotionAtArm {
		l.IsOpen = false
		return LogicAction{Type: ActionCloseDoor}
	}
	return LogicAction{Type: ActionNone}
}

// evaluate applies the door rule after one of its inputs changed.
// Order: cancel pending check -> manual -> fault -> motion.
func (l *DoorLogic) evaluate() LogicAction {
	l.pending = nil
	action := LogicAction{Reevaluated: true}

	switch {
	case l.IsManualOverride:
		action.Type = ActionFrozen
	case l.IsError:
		action.Type = ActionHold
	case l.MotionDetected:
		l.IsOpen = true
		l.seq++
		l.pending = &CloseCheck{Seq: l.seq, MotionAtArm: l.MotionDetected}
		arm := *l.pending
		action.Type = ActionOpenDoor
		action.Arm = &arm
	default:
		l.IsOpen = false
		action.Type = ActionCloseDoor
	}
	return action
}
