package pools

import (
	"sync"
	"time"
)

// DailyBudgetPool tracks reserved spend against a daily cap keyed to the UTC
// calendar day. Reservation is optimistic: TryReserve debits the estimate and
// Settle corrects the running total with the actual at release time.
type DailyBudgetPool struct {
	mu         sync.Mutex
	limitCents int
	reserved   int
	day        time.Time
}

// NewDailyBudgetPool creates a pool with a daily cap in cents.
func NewDailyBudgetPool(dailyLimitCents int) *DailyBudgetPool {
	return &DailyBudgetPool{
		limitCents: dailyLimitCents,
		day:        utcDay(time.Now()),
	}
}

// TryReserve debits estimateCents against today's cap. The retry hint points
// at the next UTC midnight.
func (p *DailyBudgetPool) TryReserve(estimateCents int) (ok bool, retryAfterMs int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rollDayLocked(time.Now())
	if p.reserved+estimateCents > p.limitCents {
		return false, p.msUntilNextDayLocked(time.Now())
	}
	p.reserved += estimateCents
	return true, 0
}

// Settle replaces the estimate with the actual: the running total moves by
// (actual - estimate).
func (p *DailyBudgetPool) Settle(estimateCents, actualCents int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rollDayLocked(time.Now())
	p.reserved += actualCents - estimateCents
	if p.reserved < 0 {
		p.reserved = 0
	}
}

// ReleaseReservation returns an unsettled estimate, e.g. when a lease expires
// without a release call.
func (p *DailyBudgetPool) ReleaseReservation(estimateCents int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rollDayLocked(time.Now())
	p.reserved -= estimateCents
	if p.reserved < 0 {
		p.reserved = 0
	}
}

// ReservedCents returns today's reserved total.
func (p *DailyBudgetPool) ReservedCents() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rollDayLocked(time.Now())
	return p.reserved
}

// CurrentDay returns the UTC day the running total belongs to.
func (p *DailyBudgetPool) CurrentDay() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.day
}

// RestoreState replaces the running total from persisted state. A persisted
// day other than today resets the total to zero.
func (p *DailyBudgetPool) RestoreState(day time.Time, reservedCents int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	today := utcDay(time.Now())
	if utcDay(day).Equal(today) {
		p.day = today
		p.reserved = max(0, reservedCents)
		return
	}
	p.day = today
	p.reserved = 0
}

func (p *DailyBudgetPool) rollDayLocked(now time.Time) {
	today := utcDay(now)
	if !p.day.Equal(today) {
		p.day = today
		p.reserved = 0
	}
}

func (p *DailyBudgetPool) msUntilNextDayLocked(now time.Time) int {
	next := utcDay(now).Add(24 * time.Hour)
	return max(250, int(next.Sub(now).Milliseconds()))
}

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
