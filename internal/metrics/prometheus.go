package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "standx_maker_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Set(v float64) {
	p.gauge.Set(v)
}

type Prometheus struct {
	Metrics *Metrics

	registry        *prometheus.Registry
	ordersPlaced    prometheus.Counter
	ordersFailed    prometheus.Counter
	ordersCancelled prometheus.Counter
	cancelFailed    prometheus.Counter
	flattens        prometheus.Counter
	cyclesFailed    prometheus.Counter
	sidesSkipped    prometheus.Counter
	markPrice       prometheus.Gauge
	distance        *prometheus.GaugeVec
	pointsTotal     prometheus.Gauge
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	ordersPlaced := newCounter("orders_placed_total", "Total number of quotes placed.")
	ordersFailed := newCounter("orders_failed_total", "Total number of quote placement failures.")
	ordersCancelled := newCounter("orders_cancelled_total", "Total number of quotes cancelled.")
	cancelFailed := newCounter("cancel_failed_total", "Total number of quote cancel failures.")
	flattens := newCounter("position_flattens_total", "Total number of stray positions flattened.")
	cyclesFailed := newCounter("cycles_failed_total", "Total number of aborted quoting cycles.")
	sidesSkipped := newCounter("sides_skipped_total", "Total number of sides skipped for insufficient size.")
	markPrice := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "mark_price",
		Help:      "Mark price observed in the last cycle.",
	})
	distance := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "quote_distance_bps",
		Help:      "Distance of the resting quote from the mark in basis points.",
	}, []string{"side"})
	pointsTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "points_total",
		Help:      "Estimated maker points accrued.",
	})

	registry.MustRegister(ordersPlaced, ordersFailed, ordersCancelled, cancelFailed, flattens, cyclesFailed, sidesSkipped, markPrice, distance, pointsTotal)

	m := &Metrics{
		OrdersPlaced:     promCounter{ordersPlaced},
		OrdersFailed:     promCounter{ordersFailed},
		OrdersCancelled:  promCounter{ordersCancelled},
		CancelFailed:     promCounter{cancelFailed},
		PositionFlattens: promCounter{flattens},
		CyclesFailed:     promCounter{cyclesFailed},
		SidesSkipped:     promCounter{sidesSkipped},
		MarkPrice:        promGauge{markPrice},
		BuyDistanceBps:   promGauge{distance.WithLabelValues("buy")},
		SellDistanceBps:  promGauge{distance.WithLabelValues("sell")},
		PointsTotal:      promGauge{pointsTotal},
	}

	return &Prometheus{
		Metrics:         m,
		registry:        registry,
		ordersPlaced:    ordersPlaced,
		ordersFailed:    ordersFailed,
		ordersCancelled: ordersCancelled,
		cancelFailed:    cancelFailed,
		flattens:        flattens,
		cyclesFailed:    cyclesFailed,
		sidesSkipped:    sidesSkipped,
		markPrice:       markPrice,
		distance:        distance,
		pointsTotal:     pointsTotal,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
