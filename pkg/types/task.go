package types

// Position is a WGS-84 coordinate.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TaskArea is the rectangular mission area.
type TaskArea struct {
	TopLeft     Position `json:"top_left"`
	BottomRight Position `json:"bottom_right"`
}

// Ting is a simulated unmanned surface vehicle taking part in a stage.
type Ting struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Position    *Position `json:"position,omitempty"`
	SpeedMPS    float64   `json:"speed_mps,omitempty"`
	SonarRangeM float64   `json:"sonar_range_m,omitempty"`
	SuspectProb float64   `json:"suspect_prob,omitempty"`
	ConfirmProb float64   `json:"confirm_prob,omitempty"`
}

// Clone returns an independent copy.
func (t Ting) Clone() Ting {
	out := t
	if t.Position != nil {
		pos := *t.Position
		out.Position = &pos
	}
	return out
}

// CloneTings deep-copies a platform roster.
func CloneTings(tings []Ting) []Ting {
	if tings == nil {
		return nil
	}
	out := make([]Ting, len(tings))
	for i, t := range tings {
		out[i] = t.Clone()
	}
	return out
}

// Mine is a detected hazard moving through the classification pipeline.
type Mine struct {
	ID              string    `json:"id"`
	Position        *Position `json:"position,omitempty"`
	Status          string    `json:"status,omitempty"`
	AssignedTing    string    `json:"assigned_ting,omitempty"`
	EvaluationScore *float64  `json:"evaluation_score,omitempty"`
}

// Clone returns an independent copy.
func (m Mine) Clone() Mine {
	out := m
	if m.Position != nil {
		pos := *m.Position
		out.Position = &pos
	}
	if m.EvaluationScore != nil {
		score := *m.EvaluationScore
		out.EvaluationScore = &score
	}
	return out
}

// CloneMines deep-copies a mine list.
func CloneMines(mines []Mine) []Mine {
	if mines == nil {
		return nil
	}
	out := make([]Mine, len(mines))
	for i, m := range mines {
		out[i] = m.Clone()
	}
	return out
}

// TrackPoint is one sample of a ting's movement during a stage.
type TrackPoint struct {
	TingID    string   `json:"ting_id"`
	Phase     string   `json:"phase,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Position  Position `json:"position"`
}

// WorkZone is a geographic sub-area assigned during sweep.
type WorkZone struct {
	ID          string   `json:"id"`
	Index       int      `json:"index"`
	TopLeft     Position `json:"top_left"`
	BottomRight Position `json:"bottom_right"`
}

// Plan is the output of the initial planning call.
type Plan struct {
	WorkZones []WorkZone `json:"work_zones"`
}

// Clone returns an independent copy.
func (p Plan) Clone() Plan {
	out := Plan{}
	if p.WorkZones != nil {
		out.WorkZones = make([]WorkZone, len(p.WorkZones))
		copy(out.WorkZones, p.WorkZones)
	}
	return out
}

// TaskConfig is the immutable creation input of a task.
type TaskConfig struct {
	TaskID     string   `json:"task_id"`
	TingCount  int      `json:"ting_count"`
	Tings      []Ting   `json:"tings"`
	TaskArea   TaskArea `json:"task_area"`
	WorkflowID string   `json:"workflow_id,omitempty"`
}

// TimelineEvent is one entry of a task's lifecycle timeline.
type TimelineEvent struct {
	Stage     string  `json:"stage"`
	Timestamp float64 `json:"timestamp"`
	Message   string  `json:"message"`
}

// EndpointInfo is the discovery metadata of a resolved service endpoint.
type EndpointInfo struct {
	IP          string `json:"ip"`
	Port        int    `json:"port"`
	Protocol    string `json:"protocol"`
	NodeID      string `json:"nodeId"`
	InstanceID  string `json:"instanceId"`
	ServiceName string `json:"serviceName"`
	Healthy     bool   `json:"healthy"`
}

// ServiceCall records one outbound request made on behalf of a task.
type ServiceCall struct {
	ServiceName  string        `json:"service_name"`
	Endpoint     string        `json:"endpoint"`
	Method       string        `json:"method"`
	Timestamp    float64       `json:"timestamp"`
	Request      any           `json:"request,omitempty"`
	Response     any           `json:"response,omitempty"`
	StatusCode   int           `json:"status_code,omitempty"`
	Error        string        `json:"error,omitempty"`
	DurationMS   float64       `json:"duration_ms,omitempty"`
	EndpointInfo *EndpointInfo `json:"endpoint_info,omitempty"`
}

// Task is the full state of one orchestrated mission task. The registry
// hands out deep copies; callers never hold the live instance.
type Task struct {
	TaskID         string          `json:"task_id"`
	Stage          StageState      `json:"stage"`
	Config         TaskConfig      `json:"config"`
	Plan           Plan            `json:"plan"`
	RandomSeed     uint32          `json:"random_seed"`
	WorkflowID     string          `json:"workflow_id,omitempty"`
	WorkflowStages StageSet        `json:"workflow_stages"`
	Tings          []Ting          `json:"tings"`
	WorkZones      []WorkZone      `json:"work_zones"`
	SuspectMines   []Mine          `json:"suspect_mines"`
	ConfirmedMines []Mine          `json:"confirmed_mines"`
	ClearedMines   []Mine          `json:"cleared_mines"`
	DestroyedMines []Mine          `json:"destroyed_mines"`
	EvaluatedMines []Mine          `json:"evaluated_mines"`
	Tracks         []TrackPoint    `json:"tracks"`
	Timeline       []TimelineEvent `json:"timeline"`
	ServiceCalls   []ServiceCall   `json:"service_calls"`
	CreatedAt      float64         `json:"created_at"`
	UpdatedAt      float64         `json:"updated_at"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	out := *t
	out.Config.Tings = CloneTings(t.Config.Tings)
	out.Plan = t.Plan.Clone()
	out.WorkflowStages = t.WorkflowStages.Clone()
	out.Tings = CloneTings(t.Tings)
	if t.WorkZones != nil {
		out.WorkZones = make([]WorkZone, len(t.WorkZones))
		copy(out.WorkZones, t.WorkZones)
	}
	out.SuspectMines = CloneMines(t.SuspectMines)
	out.ConfirmedMines = CloneMines(t.ConfirmedMines)
	out.ClearedMines = CloneMines(t.ClearedMines)
	out.DestroyedMines = CloneMines(t.DestroyedMines)
	out.EvaluatedMines = CloneMines(t.EvaluatedMines)
	if t.Tracks != nil {
		out.Tracks = make([]TrackPoint, len(t.Tracks))
		copy(out.Tracks, t.Tracks)
	}
	if t.Timeline != nil {
		out.Timeline = make([]TimelineEvent, len(t.Timeline))
		copy(out.Timeline, t.Timeline)
	}
	if t.ServiceCalls != nil {
		out.ServiceCalls = make([]ServiceCall, len(t.ServiceCalls))
		copy(out.ServiceCalls, t.ServiceCalls)
	}
	return &out
}
