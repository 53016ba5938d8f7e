package scheduling

// Default extension policy for the extended strategy.
const (
	DefaultExtensionStepDays = 7
	DefaultMaxExtensionDays  = 30
)

// SkipReason explains why a fixed override was not applied.
type SkipReason string

// Fixed override skip reasons.
const (
	SkipDayUnavailable  SkipReason = "DAY_UNAVAILABLE"
	SkipStudentConflict SkipReason = "STUDENT_CONFLICT"
	SkipUnknownExam     SkipReason = "UNKNOWN_EXAM"
	SkipDuplicate       SkipReason = "DUPLICATE_OVERRIDE"
)

// FixedOverride pins an exam to a mandatory day.
type FixedOverride struct {
	ExamID string `json:"examId"`
	Date   Date   `json:"date"`
}

// SkippedOverride records a fixed override the engine could not honour.
type SkippedOverride struct {
	ExamID    string     `json:"examId"`
	Date      Date       `json:"date"`
	Reason    SkipReason `json:"reason"`
	StudentID string     `json:"studentId,omitempty"`
}

// Request carries the inputs shared by every strategy. Fixed is processed in
// slice order.
type Request struct {
	Roster   *Roster
	First    Date
	Last     Date
	Excluded DateSet
	Fixed    []FixedOverride
}

// Options tunes the extended strategy.
type Options struct {
	ExtensionStepDays int
	MaxExtensionDays  int
}

// Engine runs the three placement strategies. It holds no per-run state.
type Engine struct {
	opts Options
}

// NewEngine builds an engine, defaulting unset options.
func NewEngine(opts Options) *Engine {
	if opts.ExtensionStepDays <= 0 {
		opts.ExtensionStepDays = DefaultExtensionStepDays
	}
	if opts.MaxExtensionDays < 0 {
		opts.MaxExtensionDays = DefaultMaxExtensionDays
	}
	return &Engine{opts: opts}
}

// DefaultEngine uses a 7 day step and a 30 day budget.
func DefaultEngine() *Engine {
	return NewEngine(Options{MaxExtensionDays: DefaultMaxExtensionDays})
}

// NormalResult is the conflict-free attempt inside the requested window.
type NormalResult struct {
	Assignment Assignment
	Available  []Date
	Skipped    []SkippedOverride
	Unplaced   []string
	Complete   bool

	state placement
}

// ExtendedResult widens the window until every exam fits or the budget runs out.
type ExtendedResult struct {
	Assignment    Assignment
	Entries       []ScheduleEntry
	LastDate      Date
	ExtensionDays int
	Unplaced      []string
	Complete      bool
}

// ForcedResult keeps the window and minimises conflicts.
type ForcedResult struct {
	Assignment       Assignment
	Entries          []ScheduleEntry
	TotalConflicts   int
	ImpactedStudents int
	Skipped          []SkippedOverride
	Unplaced         []string
}

// Plan bundles every strategy output for one request.
type Plan struct {
	Normal    NormalResult
	Extended  ExtendedResult
	Forced    ForcedResult
	Conflicts []ConflictRecord
}

// Plan runs normal, extended and forced strategies and reports the forced
// assignment's conflicts.
func (e *Engine) Plan(req Request) Plan {
	normal := e.Normal(req)
	forced := e.Forced(req)
	return Plan{
		Normal:    normal,
		Extended:  e.Extended(req, normal),
		Forced:    forced,
		Conflicts: DetectConflicts(req.Roster, forced.Assignment),
	}
}

// Normal places fixed overrides first, then the remaining exams by enrollment
// size on the first day none of their students is busy.
func (e *Engine) Normal(req Request) NormalResult {
	roster := rosterOf(req)
	days := AvailableDays(req.First, req.Last, req.Excluded)
	state := newPlacement()
	var skipped []SkippedOverride

	for _, fixed := range req.Fixed {
		if skip, ok := precheckFixed(roster, state.assignment, days, fixed); ok {
			skipped = append(skipped, skip)
			continue
		}
		if student, busy := state.occupancy.firstBusy(roster.Students(fixed.ExamID), fixed.Date); busy {
			skipped = append(skipped, SkippedOverride{ExamID: fixed.ExamID, Date: fixed.Date, Reason: SkipStudentConflict, StudentID: student})
			continue
		}
		state = state.commit(roster, fixed.ExamID, fixed.Date)
	}

	var unplaced []string
	for _, exam := range orderByEnrollment(roster, unassigned(roster, state.assignment)) {
		day, ok := state.firstFreeDay(roster, exam, days)
		if !ok {
			unplaced = append(unplaced, exam)
			continue
		}
		state = state.commit(roster, exam, day)
	}

	return NormalResult{
		Assignment: state.assignment.Clone(),
		Available:  days,
		Skipped:    skipped,
		Unplaced:   unplaced,
		Complete:   len(state.assignment) == roster.Len(),
		state:      state,
	}
}

// Extended continues from the normal result, pushing the last date out one
// step at a time while exams remain unplaced and the budget allows.
func (e *Engine) Extended(req Request, normal NormalResult) ExtendedResult {
	roster := rosterOf(req)
	state := normal.state.clone()
	remaining := unassigned(roster, state.assignment)
	last := req.Last
	extension := 0

	for len(remaining) > 0 && extension+e.opts.ExtensionStepDays <= e.opts.MaxExtensionDays {
		extension += e.opts.ExtensionStepDays
		last = req.Last.AddDays(extension)
		days := AvailableDays(req.First, last, req.Excluded)
		var still []string
		for _, exam := range remaining {
			day, ok := state.firstFreeDay(roster, exam, days)
			if !ok {
				still = append(still, exam)
				continue
			}
			state = state.commit(roster, exam, day)
		}
		remaining = still
	}

	return ExtendedResult{
		Assignment:    state.assignment,
		Entries:       Project(roster, state.assignment),
		LastDate:      last,
		ExtensionDays: extension,
		Unplaced:      remaining,
		Complete:      len(remaining) == 0,
	}
}

// Forced places every exam inside the original window. Fixed overrides on an
// available day always win; the rest go to the day adding the fewest
// conflicts.
func (e *Engine) Forced(req Request) ForcedResult {
	roster := rosterOf(req)
	days := AvailableDays(req.First, req.Last, req.Excluded)
	state := newPlacement()
	var skipped []SkippedOverride

	for _, fixed := range req.Fixed {
		if skip, ok := precheckFixed(roster, state.assignment, days, fixed); ok {
			skipped = append(skipped, skip)
			continue
		}
		state = state.commit(roster, fixed.ExamID, fixed.Date)
	}

	var unplaced []string
	for _, exam := range orderByEnrollment(roster, unassigned(roster, state.assignment)) {
		day, _, ok := state.leastLoadedDay(roster, exam, days)
		if !ok {
			unplaced = append(unplaced, exam)
			continue
		}
		state = state.commit(roster, exam, day)
	}

	total, impacted := countConflicts(state.occupancy)
	return ForcedResult{
		Assignment:       state.assignment,
		Entries:          Project(roster, state.assignment),
		TotalConflicts:   total,
		ImpactedStudents: impacted,
		Skipped:          skipped,
		Unplaced:         unplaced,
	}
}

// precheckFixed applies the checks shared by every fixed pass.
func precheckFixed(roster *Roster, assigned Assignment, days []Date, fixed FixedOverride) (SkippedOverride, bool) {
	skip := SkippedOverride{ExamID: fixed.ExamID, Date: fixed.Date}
	switch {
	case !roster.Has(fixed.ExamID):
		skip.Reason = SkipUnknownExam
	case hasExam(assigned, fixed.ExamID):
		skip.Reason = SkipDuplicate
	case !containsDay(days, fixed.Date):
		skip.Reason = SkipDayUnavailable
	default:
		return SkippedOverride{}, false
	}
	return skip, true
}

func hasExam(a Assignment, examID string) bool {
	_, ok := a[examID]
	return ok
}

// countConflicts adds count-1 for every day a student holds more than once and
// counts each such student once.
func countConflicts(o occupancy) (total, impacted int) {
	for _, days := range o {
		excess := 0
		for _, n := range days {
			if n > 1 {
				excess += n - 1
			}
		}
		if excess > 0 {
			impacted++
			total += excess
		}
	}
	return total, impacted
}

func rosterOf(req Request) *Roster {
	if req.Roster == nil {
		return NewRoster(nil)
	}
	return req.Roster
}
