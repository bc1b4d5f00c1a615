package session

import "github.com/Billy-Davies-2/basket-tracker/internal/models"

// View is a read-only snapshot of a session for displays and APIs
type View struct {
	Game         models.Game      `json:"game"`
	Phase        Phase            `json:"phase"`
	Period       int              `json:"period"`
	Running      bool             `json:"running"`
	ClockStartMs *int64           `json:"clockStart,omitempty"`
	ElapsedMs    int64            `json:"periodElapsedMs"`
	Elapsed      string           `json:"elapsed"`
	OnCourt      []string         `json:"onCourt"`
	Bench        []string         `json:"bench"`
	PlayedMs     map[string]int64 `json:"playedMs"`
	Events       []models.Event   `json:"events"`
	CanUndo      bool             `json:"canUndo"`
	CanRedo      bool             `json:"canRedo"`
}

// View captures the current state
func (s *Session) View() View {
	v := View{
		Game:      s.Game(),
		Phase:     s.phase,
		Period:    s.clock.Period(),
		Running:   s.clock.Running(),
		ElapsedMs: s.ElapsedMs(),
		OnCourt:   s.lineup.OnCourt(),
		Bench:     s.lineup.Bench(),
		PlayedMs:  s.PlayedMs(),
		Events:    s.log.Events(),
		CanUndo:   s.log.CanUndo(),
		CanRedo:   s.log.CanRedo(),
	}
	if started, ok := s.clock.StartedAt(); ok {
		ms := started.UnixMilli()
		v.ClockStartMs = &ms
	}
	if v.Events == nil {
		v.Events = []models.Event{}
	}
	v.Elapsed = models.FormatMs(v.ElapsedMs)
	return v
}
