// Package door implements an event-driven automatic door simulator.
// 이 패키지는 스레드 안전(Thread-safe)한 이벤트 기반 자동문 시뮬레이터를 구현합니다.
// 무작위 움직임/고장 신호로부터 문 열림 상태를 도출하며, 수동 제어 모드를 지원합니다.
package door

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
)

var (
	ErrInvalidConfig    = errors.New("invalid config")
	ErrAlreadyRunning   = errors.New("door simulator already running")
	ErrOverrideInactive = errors.New("manual override is not active")
	ErrMotionFrozen     = errors.New("motion readings are frozen while manual override is active")
)

// EventType represents the category of a door event.
// EventType는 문 이벤트의 카테고리를 나타냅니다.
type EventType string

const (
	EventMotionChange EventType = "MotionChange"
	EventFaultChange  EventType = "FaultChange"
	EventModeChange   EventType = "ModeChange"
	EventDoorChange   EventType = "DoorChange"
	EventCloseArmed   EventType = "CloseArmed"
	EventCloseExpired EventType = "CloseExpired"
)

// Event carries the state change information.
// Event는 시스템 내에서 발생한 상태 변화 정보를 담고 있습니다.
type Event struct {
	ID        string
	Type      EventType
	Payload   interface{}
	Timestamp time.Time
}

// CloseExpiredPayload carries detail for a fired close check.
type CloseExpiredPayload struct {
	Seq    uint64
	Closed bool
}

// Transition is one recorded change of the door position. Ts is Unix milliseconds.
type Transition struct {
	From  DoorState
	To    DoorState
	Cause string
	Ts    int64
}

// Config holds immutable configuration parameters.
// Config는 시스템 시작 시 설정되며, 런타임 중에 변경되지 않습니다.
type Config struct {
	ID              string
	MotionInterval  time.Duration // 움직임 센서 샘플링 주기
	ErrorInterval   time.Duration // 고장 신호 샘플링 주기
	CloseDelay      time.Duration // 문 열림 후 지연 닫힘 검사 시간
	MotionThreshold float64       // 이 값을 초과하면 움직임 감지
	ErrorThreshold  float64       // 이 값을 초과하면 고장
	HistorySize     int           // 보관할 문 위치 변경 기록 수
	EventBuffer     int           // 이벤트 채널 버퍼 크기
	MotionSource    Source        // nil이면 전역 난수 사용
	ErrorSource     Source        // nil이면 전역 난수 사용
}

// DefaultConfig returns the stock timings: motion every 2s, faults every 5s, close check after 3s.
func DefaultConfig(id string) Config {
	if id == "" {
		id = uuid.New().String()
	}
	return Config{
		ID:              id,
		MotionInterval:  2000 * time.Millisecond,
		ErrorInterval:   5000 * time.Millisecond,
		CloseDelay:      3000 * time.Millisecond,
		MotionThreshold: 0.7,
		ErrorThreshold:  0.9,
		HistorySize:     32,
		EventBuffer:     256,
	}
}

func (c Config) validate() error {
	switch {
	case c.MotionInterval <= 0:
		return fmt.Errorf("%w: MotionInterval must be positive, got %s", ErrInvalidConfig, c.MotionInterval)
	case c.ErrorInterval <= 0:
		return fmt.Errorf("%w: ErrorInterval must be positive, got %s", ErrInvalidConfig, c.ErrorInterval)
	case c.CloseDelay <= 0:
		return fmt.Errorf("%w: CloseDelay must be positive, got %s", ErrInvalidConfig, c.CloseDelay)
	case c.MotionThreshold < 0 || c.MotionThreshold >= 1:
		return fmt.Errorf("%w: MotionThreshold %v outside [0,1)", ErrInvalidConfig, c.MotionThreshold)
	case c.ErrorThreshold < 0 || c.ErrorThreshold >= 1:
		return fmt.Errorf("%w: ErrorThreshold %v outside [0,1)", ErrInvalidConfig, c.ErrorThreshold)
	case c.HistorySize < 0:
		return fmt.Errorf("%w: HistorySize must not be negative", ErrInvalidConfig)
	case c.EventBuffer < 0:
		return fmt.Errorf("%w: EventBuffer must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Snapshot is a read-only copy of the door state for the view layer.
type Snapshot struct {
	ID            string
	Signals       Signals
	Mode          OperationMode
	Door          DoorState
	CloseArmed    bool
	History       []Transition
	DroppedEvents uint64
}

// Door is the simulator engine.
// Door의 모든 상태 변경은 Mutex로 보호되며, 변경 사항은 Event 채널로 전파됩니다.
type Door struct {
	mu     sync.RWMutex
	Config Config

	// --- State (가변 상태) ---
	logic    *DoorLogic
	openedAt time.Time
	history  []Transition

	// --- Loop Control ---
	motionGen  *Generator
	errorGen   *Generator
	closeTimer *time.Timer // 지연 닫힘 검사 타이머
	runCtx     context.Context
	running    bool
	stopped    bool

	// --- Observability ---
	logger            *slog.Logger
	eventCh           chan Event
	droppedEventCount uint64
}

// New initializes a new Door with strict validation.
// 잘못된 설정이 감지되면 즉시 에러를 반환합니다 (Fail Fast).
func New(config Config) (*Door, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.ID == "" {
		config.ID = uuid.New().String()
	}

	d := &Door{
		Config:  config,
		logic:   NewDoorLogic(),
		eventCh: make(chan Event, config.EventBuffer),
		logger:  slog.Default().With("id", config.ID),
	}
	d.motionGen = NewGenerator("motion", config.MotionInterval, config.MotionThreshold, config.MotionSource, d.onMotionTick)
	d.errorGen = NewGenerator("fault", config.ErrorInterval, config.ErrorThreshold, config.ErrorSource, d.onFaultTick)

	d.logger.Info("Door initialized",
		"motion_interval", config.MotionInterval,
		"error_interval", config.ErrorInterval,
		"close_delay", config.CloseDelay,
	)
	return d, nil
}

// Run starts both generators and blocks until ctx is cancelled.
// On return every timer is cancelled and no further update is applied.
// Run은 생성기를 시작하고 컨텍스트가 취소될 때까지 대기합니다.
func (d *Door) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running || d.stopped {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.runCtx = ctx
	d.errorGen.Start(ctx)
	if !d.logic.IsManualOverride {
		d.motionGen.Start(ctx)
	}
	d.mu.Unlock()

	sessionsActive.Inc()
	defer sessionsActive.Dec()
	d.logger.Info("Door Engine Started")

	<-ctx.Done()

	d.mu.Lock()
	d.stopped = true
	d.running = false
	d.motionGen.Stop()
	d.errorGen.Stop()
	d.stopCloseTimer()
	d.mu.Unlock()

	d.logger.Info("Engine Stopping (Context Cancelled)")
	return ctx.Err()
}

// Signals returns the four signals safely.
func (d *Door) Signals() Signals {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.logic.Signals
}

// Mode returns the operation mode safely.
func (d *Door) Mode() OperationMode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.logic.Mode()
}

// DoorState returns the door position safely.
func (d *Door) DoorState() DoorState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.logic.Door()
}

// CloseArmed reports whether a delayed close check is pending.
func (d *Door) CloseArmed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.logic.Pending()
	return ok
}

// DroppedEventCount returns diagnostic metric for channel health.
// DroppedEventCount는 버퍼 오버플로우로 버려진 이벤트 수를 안전하게 반환합니다.
func (d *Door) DroppedEventCount() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.droppedEventCount
}

// History returns a copy of the recorded door transitions, oldest first.
func (d *Door) History() []Transition {
	return d.Snapshot().History
}

// Snapshot returns a deep copy of the current state.
// Snapshot은 현재 상태의 깊은 복사본을 반환합니다.
func (d *Door) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, armed := d.logic.Pending()
	snap := Snapshot{
		ID:            d.Config.ID,
		Signals:       d.logic.Signals,
		Mode:          d.logic.Mode(),
		Door:          d.logic.Door(),
		CloseArmed:    armed,
		DroppedEvents: d.droppedEventCount,
	}
	if err := deepcopy.Copy(&snap.History, d.history); err != nil {
		d.logger.Error("Failed to copy history", "error", err)
	}
	return snap
}

// Events returns the read-only channel for state change notifications.
// Events는 상태 변경 알림을 위한 읽기 전용 채널을 반환합니다.
func (d *Door) Events() <-chan Event {
	return d.eventCh
}

// ToggleOverride switches between automatic and manual mode.
// Leaving automatic mode pauses the motion generator; returning restarts it fresh.
// ToggleOverride는 자동/수동 모드를 전환합니다.
func (d *Door) ToggleOverride() OperationMode {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := d.logic.Signals
	action := d.logic.ToggleOverride()
	overrideToggles.Inc()

	mode := d.logic.Mode()
	d.logger.Info("Operation Mode Changed", "from", before.Mode(), "to", mode)

	d.motionGen.Stop()
	if mode == ModeAuto && d.running {
		d.motionGen.Start(d.runCtx)
	}

	d.apply(before, action, "override")
	return mode
}

// ToggleDoor flips the door position. Only permitted in manual mode.
// ToggleDoor는 수동 모드에서만 문을 직접 열고 닫습니다.
func (d *Door) ToggleDoor() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := d.logic.Signals
	if !d.logic.ToggleDoor() {
		d.logger.Warn("ToggleDoor refused: automatic mode")
		return ErrOverrideInactive
	}
	d.logger.Info("Manual Door state set", "state", d.logic.Door())
	d.apply(before, LogicAction{Type: ActionNone}, "manual")
	return nil
}

// ReportMotion injects a motion reading as a generator tick would.
// Readings are refused while manual override is active.
func (d *Door) ReportMotion(detected bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.logic.IsManualOverride {
		return ErrMotionFrozen
	}
	d.setMotion(detected)
	return nil
}

// ReportFault injects a fault reading as a generator tick would.
func (d *Door) ReportFault(faulted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setFault(faulted)
}

func (d *Door) onMotionTick(ctx context.Context, detected bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// 중지된 실행의 틱은 버림 (모드 전환/종료와 경합한 경우)
	if ctx.Err() != nil || d.stopped || d.logic.IsManualOverride {
		return
	}
	motionTicks(detected).Inc()
	d.logger.Debug("Motion tick", "detected", detected)
	d.setMotion(detected)
}

func (d *Door) onFaultTick(ctx context.Context, faulted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ctx.Err() != nil || d.stopped {
		return
	}
	faultTicks(faulted).Inc()
	d.logger.Debug("Fault tick", "fault", faulted)
	d.setFault(faulted)
}

func (d *Door) setMotion(detected bool) {
	before := d.logic.Signals
	action := d.logic.SetMotion(detected)
	d.apply(before, action, "motion")
}

func (d *Door) setFault(faulted bool) {
	before := d.logic.Signals
	action := d.logic.SetError(faulted)
	if faulted && !before.IsError {
		d.logger.Warn("⚠️ System fault reported")
	}
	d.apply(before, action, "fault")
}

// expireClose runs when an armed close check fires.
func (d *Door) expireClose(seq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if check, ok := d.logic.Pending(); !ok || check.Seq != seq {
		return // superseded
	}

	before := d.logic.Signals
	action := d.logic.ExpireClose(seq)
	d.closeTimer = nil

	closed := action.Type == ActionCloseDoor
	if closed {
		closeChecks("closed").Inc()
	} else {
		closeChecks("held").Inc()
		d.logger.Debug("Close check: motion at arm time, door stays open", "seq", seq)
	}
	d.publishEvent(EventCloseExpired, CloseExpiredPayload{Seq: seq, Closed: closed})
	d.apply(before, action, "close-check")
}

// apply publishes the differences between before and the current signals
// and schedules the delayed close the action asks for.
// Caller must hold d.mu.
func (d *Door) apply(before Signals, action LogicAction, cause string) {
	after := d.logic.Signals

	if action.Reevaluated {
		d.stopCloseTimer()
	}

	if before.MotionDetected != after.MotionDetected {
		d.publishEvent(EventMotionChange, after.MotionDetected)
	}
	if before.IsError != after.IsError {
		d.publishEvent(EventFaultChange, after.IsError)
	}
	if before.IsManualOverride != after.IsManualOverride {
		d.publishEvent(EventModeChange, after.Mode())
	}
	if before.IsOpen != after.IsOpen {
		d.recordTransition(before.Door(), after.Door(), cause)
	}

	if action.Arm != nil && !d.stopped {
		d.armClose(*action.Arm)
	}
}

func (d *Door) armClose(check CloseCheck) {
	seq := check.Seq
	d.closeTimer = time.AfterFunc(d.Config.CloseDelay, func() {
		d.expireClose(seq)
	})
	d.logger.Debug("Close check armed", "seq", seq, "delay", d.Config.CloseDelay)
	d.publishEvent(EventCloseArmed, check)
}

func (d *Door) stopCloseTimer() {
	if d.closeTimer != nil {
		d.closeTimer.Stop()
		d.closeTimer = nil
	}
}

func (d *Door) recordTransition(from, to DoorState, cause string) {
	now := time.Now()
	switch to {
	case DoorOpen:
		d.openedAt = now
		d.logger.Info("🚪 Door OPEN", "cause", cause)
	case DoorClose:
		observeOpenDuration(d.openedAt)
		d.openedAt = time.Time{}
		d.logger.Info("🚪 Door CLOSED", "cause", cause)
	}
	transitions(to).Inc()

	if d.Config.HistorySize > 0 {
		d.history = append(d.history, Transition{From: from, To: to, Cause: cause, Ts: now.UnixMilli()})
		if over := len(d.history) - d.Config.HistorySize; over > 0 {
			d.history = append(d.history[:0], d.history[over:]...)
		}
	}
	d.publishEvent(EventDoorChange, to)
}

// publishEvent sends an event to the channel without blocking logic.
// 채널이 가득 차면 이벤트를 버리고 메트릭을 증가시킵니다 (System Stability).
func (d *Door) publishEvent(eventType EventType, payload interface{}) {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	select {
	case d.eventCh <- event:
	default:
		d.droppedEventCount++
		eventsDropped.Inc()
		// Log rarely to avoid disk I/O flooding
		if d.droppedEventCount%100 == 1 {
			d.logger.Error("Event Channel Saturated", "dropped", d.droppedEventCount, "type", eventType)
		}
	}
}
