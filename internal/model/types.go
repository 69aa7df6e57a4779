package model

import (
	"encoding/json"
	"time"
)

type QualityLevel string

const (
	QualityExcellent QualityLevel = "excellent"
	QualityGood      QualityLevel = "good"
	QualityFair      QualityLevel = "fair"
	QualityPoor      QualityLevel = "poor"
	QualityCritical  QualityLevel = "critical"
)

func QualityFor(overall float64) QualityLevel {
	switch {
	case overall >= 90:
		return QualityExcellent
	case overall >= 75:
		return QualityGood
	case overall >= 60:
		return QualityFair
	case overall >= 40:
		return QualityPoor
	default:
		return QualityCritical
	}
}

// PostureSample is one fused measurement combining the tilt, vision and
// stability channels. HeadDistance <= 0 means the distance is unknown.
type PostureSample struct {
	Timestamp    time.Time `json:"timestamp"`
	TiltAngle    float64   `json:"tilt_angle"`
	HeadDistance float64   `json:"head_distance_cm"`
	OffsetX      float64   `json:"offset_x"`
	OffsetY      float64   `json:"offset_y"`
	Rotation     float64   `json:"rotation"`
	Confidence   float64   `json:"confidence"`
	FaceDetected bool      `json:"face_detected"`
	DeviceStable bool      `json:"device_stable"`
}

type PostureScore struct {
	Timestamp       time.Time    `json:"timestamp"`
	Overall         float64      `json:"overall"`
	Tilt            float64      `json:"tilt"`
	Distance        float64      `json:"distance"`
	Position        float64      `json:"position"`
	Level           QualityLevel `json:"level"`
	Recommendations []string     `json:"recommendations"`
}

type BehaviorProfile struct {
	AverageScore         float64 `json:"average_score"`
	ImprovementTrend     float64 `json:"improvement_trend"`
	SessionDuration      int     `json:"session_duration"`
	DailyUsage           int     `json:"daily_usage"`
	ReminderResponseRate float64 `json:"reminder_response_rate"`
}

type SessionStats struct {
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
	Count int     `json:"count"`
	Trend float64 `json:"trend"`
}

// ReminderLevel indexes the fixed intensity ordering. Step arithmetic is
// index-based and clamped to the enumeration bounds.
type ReminderLevel int

const (
	LevelGentle ReminderLevel = iota
	LevelModerate
	LevelStrong
	LevelUrgent
)

type levelInfo struct {
	label    string
	priority int
	blocking bool
	haptic   []int
}

var levels = []levelInfo{
	{label: "gentle", priority: 1, blocking: false, haptic: []int{100}},
	{label: "moderate", priority: 2, blocking: false, haptic: []int{150, 100, 150}},
	{label: "strong", priority: 3, blocking: true, haptic: []int{250, 100, 250, 100, 250}},
	{label: "urgent", priority: 4, blocking: true, haptic: []int{400, 150, 400, 150, 400, 150, 400}},
}

func (l ReminderLevel) clamped() ReminderLevel {
	if l < LevelGentle {
		return LevelGentle
	}
	if int(l) >= len(levels) {
		return ReminderLevel(len(levels) - 1)
	}
	return l
}

func (l ReminderLevel) Escalate(steps int) ReminderLevel {
	return (l + ReminderLevel(steps)).clamped()
}

func (l ReminderLevel) Deescalate(steps int) ReminderLevel {
	return (l - ReminderLevel(steps)).clamped()
}

func (l ReminderLevel) Label() string    { return levels[l.clamped()].label }
func (l ReminderLevel) Priority() int    { return levels[l.clamped()].priority }
func (l ReminderLevel) MayBlockUI() bool { return levels[l.clamped()].blocking }

// HapticPattern returns alternating vibrate/pause durations in milliseconds.
func (l ReminderLevel) HapticPattern() []int {
	src := levels[l.clamped()].haptic
	out := make([]int, len(src))
	copy(out, src)
	return out
}

func (l ReminderLevel) String() string { return l.Label() }

func (l ReminderLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Label())
}

func (l *ReminderLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = LevelFromLabel(s)
	return nil
}

func LevelFromLabel(label string) ReminderLevel {
	for i, info := range levels {
		if info.label == label {
			return ReminderLevel(i)
		}
	}
	return LevelGentle
}

type ReminderType string

const (
	TypeNotification ReminderType = "notification"
	TypePopup        ReminderType = "popup"
	TypeOverlay      ReminderType = "overlay"
	TypeVibration    ReminderType = "vibration"
	TypeCombined     ReminderType = "combined"
)

type UserAction string

const (
	ActionNone                UserAction = ""
	ActionCorrectedPosture    UserAction = "corrected_posture"
	ActionDismissed           UserAction = "dismissed"
	ActionPostponed           UserAction = "postponed"
	ActionDisabledTemporarily UserAction = "disabled_temporarily"
)

type ReminderEvent struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id"`
	Level         ReminderLevel `json:"level"`
	Type          ReminderType  `json:"type"`
	Message       string        `json:"message"`
	Score         PostureScore  `json:"score"`
	HapticPattern []int         `json:"haptic_pattern"`
	CreatedAt     time.Time     `json:"created_at"`
	UserTriggered bool          `json:"user_triggered"`
}

type ReminderResponse struct {
	Acknowledged bool          `json:"acknowledged"`
	Ignored      bool          `json:"ignored"`
	Latency      time.Duration `json:"latency"`
	Action       UserAction    `json:"action,omitempty"`
}

type ReminderStats struct {
	TotalTriggered     int           `json:"total_triggered"`
	Acknowledged       int           `json:"acknowledged"`
	ResponseRate       float64       `json:"response_rate"`
	ConsecutiveIgnored int           `json:"consecutive_ignored"`
	MeanInterval       time.Duration `json:"mean_interval"`
}

type ReadingChannel string

const (
	ChannelTilt      ReadingChannel = "tilt"
	ChannelVision    ReadingChannel = "vision"
	ChannelStability ReadingChannel = "stability"
)

// Reading is one raw update from a single sensor channel. Exactly one of
// Tilt, Vision, Stability is set, matching Channel.
type Reading struct {
	SessionID string         `json:"session_id"`
	Channel   ReadingChannel `json:"channel"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source,omitempty"`

	Tilt      *TiltReading      `json:"tilt,omitempty"`
	Vision    *VisionReading    `json:"vision,omitempty"`
	Stability *StabilityReading `json:"stability,omitempty"`
}

type TiltReading struct {
	Angle float64 `json:"angle"`
}

type VisionReading struct {
	Distance     float64 `json:"distance_cm"`
	OffsetX      float64 `json:"offset_x"`
	OffsetY      float64 `json:"offset_y"`
	Rotation     float64 `json:"rotation"`
	Confidence   float64 `json:"confidence"`
	FaceDetected bool    `json:"face_detected"`
}

type StabilityReading struct {
	Stable bool `json:"stable"`
}

// SessionSnapshot is the eventually-consistent view published for
// presentation collaborators.
type SessionSnapshot struct {
	SessionID      string          `json:"session_id"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Score          *PostureScore   `json:"score,omitempty"`
	Behavior       BehaviorProfile `json:"behavior"`
	Stats          SessionStats    `json:"stats"`
	ActiveReminder *ReminderEvent  `json:"active_reminder,omitempty"`
	ReminderStats  ReminderStats   `json:"reminder_stats"`
}
