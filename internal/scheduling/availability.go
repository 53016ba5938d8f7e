package scheduling

// AvailableDays walks every day from first to last inclusive and keeps the
// weekdays not present in excluded. The result is empty when first is after last.
func AvailableDays(first, last Date, excluded DateSet) []Date {
	if first.After(last) {
		return nil
	}
	days := make([]Date, 0, first.DaysUntil(last)+1)
	for d := first; !d.After(last); d = d.AddDays(1) {
		if !d.IsWeekday() || excluded.Has(d) {
			continue
		}
		days = append(days, d)
	}
	return days
}

func containsDay(days []Date, target Date) bool {
	for _, d := range days {
		if d == target {
			return true
		}
	}
	return false
}
