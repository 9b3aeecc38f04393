package ansulta

// repeater replays the current light state once per poll tick while its
// budget lasts. The budget never goes negative.
type repeater struct {
	budget int
}

func (r *repeater) arm(n int) {
	if n < 0 {
		n = 0
	}
	r.budget = n
}

// tick consumes one unit of budget and reports whether a replay is due.
func (r *repeater) tick() bool {
	if r.budget <= 0 {
		return false
	}
	r.budget--
	return true
}
