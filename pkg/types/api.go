package types

// StagePayload is the data contract handed to a worker stage service.
// All embedded collections are defensive deep copies of the task state.
type StagePayload struct {
	TaskID         string    `json:"task_id"`
	Stage          StageName `json:"stage"`
	RandomSeed     uint32    `json:"random_seed"`
	Tings          []Ting    `json:"tings"`
	SuspectMines   []Mine    `json:"suspect_mines"`
	ConfirmedMines []Mine    `json:"confirmed_mines"`
	DestroyedMines []Mine    `json:"destroyed_mines"`
	EvaluatedMines []Mine    `json:"evaluated_mines"`

	// Sweep only.
	WorkZones []WorkZone `json:"work_zones,omitempty"`
	Plan      *Plan      `json:"plan,omitempty"`
}

// StageReport is a worker's progress or result payload. Pointer slices
// distinguish an absent field from a present-but-empty one: progress
// updates only merge the fields the worker actually sent.
type StageReport struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`

	Tings          *[]Ting      `json:"tings,omitempty"`
	Tracks         []TrackPoint `json:"tracks,omitempty"`
	SuspectMines   *[]Mine      `json:"suspect_mines,omitempty"`
	ConfirmedMines *[]Mine      `json:"confirmed_mines,omitempty"`
	ClearedMines   *[]Mine      `json:"cleared_mines,omitempty"`
	DestroyedMines *[]Mine      `json:"destroyed_mines,omitempty"`
	EvaluatedMines *[]Mine      `json:"evaluated_mines,omitempty"`
}

// IsError reports whether the worker itself signalled a failure.
func (r *StageReport) IsError() bool {
	return r != nil && r.Status == "error"
}

// minesOrEmpty dereferences an optional mine list, treating absence as empty.
func minesOrEmpty(mines *[]Mine) []Mine {
	if mines == nil {
		return nil
	}
	return *mines
}

// SuspectMinesOrEmpty returns the suspect list, absent meaning empty.
func (r *StageReport) SuspectMinesOrEmpty() []Mine { return minesOrEmpty(r.SuspectMines) }

// ConfirmedMinesOrEmpty returns the confirmed list, absent meaning empty.
func (r *StageReport) ConfirmedMinesOrEmpty() []Mine { return minesOrEmpty(r.ConfirmedMines) }

// ClearedMinesOrEmpty returns the cleared list, absent meaning empty.
func (r *StageReport) ClearedMinesOrEmpty() []Mine { return minesOrEmpty(r.ClearedMines) }

// DestroyedMinesOrEmpty returns the destroyed list, absent meaning empty.
func (r *StageReport) DestroyedMinesOrEmpty() []Mine { return minesOrEmpty(r.DestroyedMines) }

// EvaluatedMinesOrEmpty returns the evaluated list, absent meaning empty.
func (r *StageReport) EvaluatedMinesOrEmpty() []Mine { return minesOrEmpty(r.EvaluatedMines) }
