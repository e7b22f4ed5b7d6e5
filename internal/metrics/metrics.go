package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
}

type Metrics struct {
	OrdersPlaced     Counter
	OrdersFailed     Counter
	OrdersCancelled  Counter
	CancelFailed     Counter
	PositionFlattens Counter
	CyclesFailed     Counter
	SidesSkipped     Counter

	MarkPrice       Gauge
	BuyDistanceBps  Gauge
	SellDistanceBps Gauge
	PointsTotal     Gauge
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	n := noopCounter{}
	g := noopGauge{}
	return &Metrics{
		OrdersPlaced:     n,
		OrdersFailed:     n,
		OrdersCancelled:  n,
		CancelFailed:     n,
		PositionFlattens: n,
		CyclesFailed:     n,
		SidesSkipped:     n,
		MarkPrice:        g,
		BuyDistanceBps:   g,
		SellDistanceBps:  g,
		PointsTotal:      g,
	}
}
