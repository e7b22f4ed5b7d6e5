package points

import (
	"sync"
	"time"

	"standx-maker-bot/internal/strategy"
	"standx-maker-bot/internal/venue"

	"github.com/shopspring/decimal"
)

var secondsPerDay = decimal.NewFromInt(86400)

// SideQuote is one resting quote as seen by a cycle.
type SideQuote struct {
	Side        venue.Side
	OrderID     string
	Notional    decimal.Decimal
	DistanceBps decimal.Decimal
}

type activeQuote struct {
	SideQuote
	openedAt time.Time
	points   decimal.Decimal
}

type Stats struct {
	TotalPoints    decimal.Decimal
	SessionPoints  decimal.Decimal
	PointsPerHour  decimal.Decimal
	ProjectedDaily decimal.Decimal
	UptimePct      decimal.Decimal
	ActiveQuotes   int
	// ClosedQuotes counts quotes closed since the tracker was created.
	ClosedQuotes  int
	SessionLength time.Duration
}

// Tracker estimates maker points from quote observations. Points accrue
// as notional x tier multiplier x resting days, where the tier is taken
// from the distance seen at the start of each interval.
type Tracker struct {
	mu           sync.Mutex
	ledger       Ledger
	total        decimal.Decimal
	session      decimal.Decimal
	active       map[venue.Side]*activeQuote
	sessionStart time.Time
	lastRecord   time.Time
	covered      time.Duration
	closed       int
}

func NewTracker(ledger Ledger, now time.Time) *Tracker {
	return &Tracker{
		ledger:       ledger,
		total:        ledger.Total(),
		active:       make(map[venue.Side]*activeQuote),
		sessionStart: now,
		lastRecord:   now,
	}
}

func accrue(notional, bps decimal.Decimal, elapsed time.Duration) decimal.Decimal {
	if elapsed <= 0 {
		return decimal.Zero
	}
	seconds := decimal.NewFromFloat(elapsed.Seconds())
	return notional.Mul(strategy.PointsMultiplier(bps)).Mul(seconds).Div(secondsPerDay)
}

// Record advances the tracker to now with the quotes resting after a cycle.
func (t *Tracker) Record(now time.Time, quotes []SideQuote) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := now.Sub(t.lastRecord)
	if len(t.active) > 0 && elapsed > 0 {
		t.covered += elapsed
	}
	for _, q := range t.active {
		earned := accrue(q.Notional, q.DistanceBps, elapsed)
		q.points = q.points.Add(earned)
		t.session = t.session.Add(earned)
		t.total = t.total.Add(earned)
	}

	seen := make(map[venue.Side]bool, len(quotes))
	for _, q := range quotes {
		if q.OrderID == "" {
			continue
		}
		seen[q.Side] = true
		current, ok := t.active[q.Side]
		if ok && current.OrderID == q.OrderID {
			current.Notional = q.Notional
			current.DistanceBps = q.DistanceBps
			continue
		}
		if ok {
			t.closeLocked(current, now)
		}
		t.active[q.Side] = &activeQuote{SideQuote: q, openedAt: now}
	}
	for side, q := range t.active {
		if !seen[side] {
			t.closeLocked(q, now)
			delete(t.active, side)
		}
	}
	t.lastRecord = now
}

// Finish closes every active quote, e.g. at shutdown.
func (t *Tracker) Finish(now time.Time) {
	t.Record(now, nil)
}

func (t *Tracker) closeLocked(q *activeQuote, now time.Time) {
	t.ledger.append(OrderRecord{
		OrderID:    q.OrderID,
		Side:       string(q.Side),
		Notional:   q.Notional.String(),
		Points:     q.points.String(),
		OpenedAtMS: q.openedAt.UnixMilli(),
		ClosedAtMS: now.UnixMilli(),
	})
	t.closed++
}

func (t *Tracker) Ledger() Ledger {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := Ledger{TotalPoints: t.total.String()}
	out.Orders = append(out.Orders, t.ledger.Orders...)
	return out
}

func (t *Tracker) Stats(now time.Time) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := Stats{
		TotalPoints:   t.total,
		SessionPoints: t.session,
		ActiveQuotes:  len(t.active),
		ClosedQuotes:  t.closed,
		SessionLength: now.Sub(t.sessionStart),
	}
	if stats.SessionLength <= 0 {
		return stats
	}
	hours := decimal.NewFromFloat(stats.SessionLength.Hours())
	stats.PointsPerHour = t.session.Div(hours)
	stats.ProjectedDaily = stats.PointsPerHour.Mul(decimal.NewFromInt(24))
	covered := t.covered
	if len(t.active) > 0 && now.After(t.lastRecord) {
		covered += now.Sub(t.lastRecord)
	}
	stats.UptimePct = decimal.NewFromFloat(covered.Seconds()).
		Div(decimal.NewFromFloat(stats.SessionLength.Seconds())).
		Mul(decimal.NewFromInt(100))
	return stats
}
