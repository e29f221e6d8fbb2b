package recovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/query"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/internal/quality"
	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/pkg/logger"
)

// StrategyRunner attempts exactly one strategy.
type StrategyRunner interface {
	RunStrategy(ctx context.Context, q query.Question, strategy quality.Strategy) (*query.ResolutionResult, error)
}

// Echo repeats the inputs that were rejected.
type Echo struct {
	Question string `json:"question"`
	TenantID string `json:"tenant_id"`
}

type Response struct {
	Category      Category                `json:"category"`
	Explanation   string                  `json:"explanation"`
	Suggestions   []string                `json:"suggestions"`
	RetryStrategy quality.Strategy        `json:"retry_strategy,omitempty"`
	Recovered     bool                    `json:"recovered"`
	Result        *query.ResolutionResult `json:"result,omitempty"`
	Echo          *Echo                   `json:"echo,omitempty"`
	// TechnicalDetail is for operators only and never shown to end users.
	TechnicalDetail string `json:"-"`
}

type route struct {
	retry       quality.Strategy
	explanation string
	suggestions []string
}

var routes = map[Category]route{
	InvalidInput: {
		explanation: "No he podido entender la consulta: falta la pregunta o el identificador del restaurante no es válido.",
		suggestions: []string{
			"Escribe una pregunta sobre tus facturas, productos o proveedores.",
			"Comprueba que la sesión del restaurante sigue activa.",
		},
	},
	LLMUnavailable: {
		retry:       quality.StrategyTextual,
		explanation: "El asistente de consultas no está disponible ahora mismo, así que he buscado por palabras clave.",
		suggestions: []string{
			"Usa el nombre exacto del producto o del proveedor.",
			"Vuelve a intentarlo en unos minutos para obtener una respuesta completa.",
		},
	},
	SQLExecutionError: {
		retry:       quality.StrategySemantic,
		explanation: "No he podido ejecutar la consulta sobre tus datos, así que he buscado productos y proveedores parecidos.",
		suggestions: []string{
			"Reformula la pregunta de forma más concreta.",
			"Indica un periodo, por ejemplo «este mes» o «esta semana».",
		},
	},
	SemanticUnavailable: {
		retry:       quality.StrategyTextual,
		explanation: "La búsqueda por similitud no está disponible, así que he buscado por palabras clave.",
		suggestions: []string{
			"Usa el nombre del producto tal y como aparece en la factura.",
		},
	},
	DatastoreUnavailable: {
		retry:       quality.StrategyAggregate,
		explanation: "Tu base de datos de compras responde con dificultad; te muestro un resumen general.",
		suggestions: []string{
			"Vuelve a intentarlo en unos minutos.",
			"Si el problema continúa, contacta con soporte.",
		},
	},
	Generic: {
		retry:       quality.StrategyTextual,
		explanation: "Algo ha fallado al responder tu pregunta, así que he probado una búsqueda por palabras clave.",
		suggestions: []string{
			"Prueba a reformular la pregunta.",
			"Pregunta por un producto, un proveedor o una factura concreta.",
		},
	},
}

type Router struct {
	runner StrategyRunner
}

func NewRouter(runner StrategyRunner) *Router {
	return &Router{runner: runner}
}

// Recover classifies cause and runs the matching recovery. It never panics
// and never returns an error.
func (r *Router) Recover(ctx context.Context, q query.Question, cause error) (resp Response) {
	category := Classify(cause)
	rt := routes[category]

	resp = Response{
		Category:    category,
		Explanation: rt.explanation,
		Suggestions: append([]string(nil), rt.suggestions...),
	}
	if cause != nil {
		resp.TechnicalDetail = cause.Error()
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Recovery panicked",
				zap.String("category", string(category)),
				zap.Any("panic", p),
			)
			resp.Recovered = false
			resp.Result = nil
			resp.TechnicalDetail = fmt.Sprintf("%s; recovery panic: %v", resp.TechnicalDetail, p)
		}
	}()

	if category == InvalidInput {
		resp.Echo = &Echo{Question: q.Text, TenantID: q.TenantID}
		logger.Info("Invalid input short-circuited",
			zap.String("tenant_id", q.TenantID),
			zap.String("detail", resp.TechnicalDetail),
		)
		return resp
	}

	resp.RetryStrategy = rt.retry
	if r.runner == nil {
		return resp
	}

	result, err := r.runner.RunStrategy(ctx, q, rt.retry)
	resp.Result = result
	resp.Recovered = err == nil && result != nil && result.Succeeded()

	fields := []zap.Field{
		zap.String("tenant_id", q.TenantID),
		zap.String("category", string(category)),
		zap.String("retry_strategy", string(rt.retry)),
		zap.Bool("recovered", resp.Recovered),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		resp.TechnicalDetail = fmt.Sprintf("%s; retry with %s failed: %v", resp.TechnicalDetail, rt.retry, err)
	}
	logger.Info("Recovery attempted", fields...)

	return resp
}
