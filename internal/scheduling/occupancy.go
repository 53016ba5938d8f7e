package scheduling

// occupancy tracks, per student, the days already claimed by placed exams.
// The normal and extended strategies only read it as a set; the forced strategy
// uses the counts.
type occupancy map[string]map[Date]int

func newOccupancy() occupancy {
	return make(occupancy)
}

// free reports whether none of the students holds day.
func (o occupancy) free(students []string, day Date) bool {
	for _, s := range students {
		if o[s][day] > 0 {
			return false
		}
	}
	return true
}

// firstBusy returns the first student already holding day.
func (o occupancy) firstBusy(students []string, day Date) (string, bool) {
	for _, s := range students {
		if o[s][day] > 0 {
			return s, true
		}
	}
	return "", false
}

// load sums, over the students, how many times each already holds day.
func (o occupancy) load(students []string, day Date) int {
	total := 0
	for _, s := range students {
		total += o[s][day]
	}
	return total
}

func (o occupancy) mark(students []string, day Date) {
	for _, s := range students {
		days := o[s]
		if days == nil {
			days = make(map[Date]int)
			o[s] = days
		}
		days[day]++
	}
}

func (o occupancy) clone() occupancy {
	out := make(occupancy, len(o))
	for s, days := range o {
		copied := make(map[Date]int, len(days))
		for d, n := range days {
			copied[d] = n
		}
		out[s] = copied
	}
	return out
}

// placement is the accumulator threaded through one strategy run.
type placement struct {
	assignment Assignment
	occupancy  occupancy
}

func newPlacement() placement {
	return placement{assignment: make(Assignment), occupancy: newOccupancy()}
}

func (p placement) commit(roster *Roster, examID string, day Date) placement {
	p.assignment[examID] = day
	p.occupancy.mark(roster.Students(examID), day)
	return p
}

func (p placement) clone() placement {
	return placement{assignment: p.assignment.Clone(), occupancy: p.occupancy.clone()}
}

// firstFreeDay scans days in order and returns the first one on which none of
// the exam's students is busy.
func (p placement) firstFreeDay(roster *Roster, examID string, days []Date) (Date, bool) {
	students := roster.Students(examID)
	for _, day := range days {
		if p.occupancy.free(students, day) {
			return day, true
		}
	}
	return Date{}, false
}

// leastLoadedDay returns the day with the strictly smallest conflict count;
// the earliest day wins ties.
func (p placement) leastLoadedDay(roster *Roster, examID string, days []Date) (Date, int, bool) {
	students := roster.Students(examID)
	best := Date{}
	bestLoad := -1
	for _, day := range days {
		load := p.occupancy.load(students, day)
		if bestLoad < 0 || load < bestLoad {
			best, bestLoad = day, load
		}
	}
	return best, bestLoad, bestLoad >= 0
}
