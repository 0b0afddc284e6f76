package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	NewslettersScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsletters_scheduled_total",
		Help: "Количество запланированных рассылок",
	})
	NewslettersDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsletters_delivered_total",
		Help: "Количество доставленных рассылок",
	})
	NewsletterDeliveryErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_delivery_errors_total",
		Help: "Ошибки доставки рассылок",
	})
	FeedAnnouncements = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_announcements_total",
		Help: "Количество анонсов из внешней ленты",
	})
	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})
	RoastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roasts_total",
		Help: "Количество выданных подколов",
	})
	ScoringRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scoring_requests_total",
		Help: "Количество запросов оценки полезности",
	}, []string{"status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NewslettersScheduled,
		NewslettersDelivered,
		NewsletterDeliveryErrors,
		FeedAnnouncements,
		BotSendErrors,
		RoastsTotal,
		ScoringRequests,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// ObserveNetworkRequest фиксирует длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	elapsed := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(elapsed)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration фиксирует статистику одной генерации LLM.
func ObserveLLMGeneration(model string, elapsed time.Duration, promptTokens, completionTokens, totalTokens int) {
	LLMGenerationDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
}

// ObserveScoring фиксирует результат запроса оценки.
func ObserveScoring(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ScoringRequests.WithLabelValues(status).Inc()
}
