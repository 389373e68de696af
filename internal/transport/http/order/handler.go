package order

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/presentation/http/response"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	service "github.com/Additional-Code/orderdesk/internal/service/order"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/orderdesk/transport/http/order")

const defaultListLimit = 100

// Module wires HTTP order handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/stats", h.stats)
	g.PUT("/bulk/status", h.bulkUpdateStatus)
	g.POST("/bulk/duplicate", h.bulkDuplicate)
	g.DELETE("/bulk", h.bulkDelete)
	g.GET("/:id", h.getByID)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	filter := repo.ListFilter{Limit: defaultListLimit}
	var err error
	if filter.Limit, err = queryInt(c, "limit", defaultListLimit); err != nil {
		return b.WithError(err).Build()
	}
	if filter.Offset, err = queryInt(c, "offset", 0); err != nil {
		return b.WithError(err).Build()
	}
	if status := c.QueryParam("status"); status != "" {
		filter.Status = &status
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list", trace.WithAttributes(
		attribute.Int("query.limit", filter.Limit),
		attribute.Int("query.offset", filter.Offset),
	))
	defer span.End()

	orders, err := h.svc.List(ctx, filter)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderListResponse(orders)).Build()
}

func (h *Handler) stats(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.stats")
	defer span.End()

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.OrderStatsResponse{Total: stats.Total, ByStatus: stats.ByStatus}).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.OrderCreateRequest
	if err := bindAndValidate(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	order := payload.Entity()

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.String("order.number", order.OrderNumber),
	))
	defer span.End()

	if err := h.svc.Create(ctx, order); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).
		WithHeader(echo.HeaderLocation, "/orders/"+strconv.FormatInt(order.ID, 10)).
		WithData(dto.NewOrderResponse(order)).
		Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.OrderUpdateRequest
	if err := bindAndValidate(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Update(ctx, id, repo.Changes(payload.Changes()))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) bulkUpdateStatus(c echo.Context) error {
	b := response.New(c)

	var payload dto.BulkStatusRequest
	if err := bindAndValidate(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.bulkUpdateStatus", trace.WithAttributes(
		attribute.Int("order.ids", len(payload.IDs)),
		attribute.String("order.status", *payload.Status),
	))
	defer span.End()

	n, err := h.svc.BulkUpdateStatus(ctx, payload.IDs, *payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.BulkUpdatedResponse{Updated: n}).Build()
}

func (h *Handler) bulkDuplicate(c echo.Context) error {
	b := response.New(c)

	var payload dto.BulkIDsRequest
	if err := bindAndValidate(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.bulkDuplicate", trace.WithAttributes(attribute.Int("order.ids", len(payload.IDs))))
	defer span.End()

	ids, err := h.svc.BulkDuplicate(ctx, payload.IDs)
	if err != nil {
		return b.WithError(err).Build()
	}
	if ids == nil {
		ids = []int64{}
	}
	return b.WithData(dto.BulkDuplicatedResponse{DuplicatedIDs: ids}).Build()
}

func (h *Handler) bulkDelete(c echo.Context) error {
	b := response.New(c)

	var payload dto.BulkIDsRequest
	if err := bindAndValidate(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.bulkDelete", trace.WithAttributes(attribute.Int("order.ids", len(payload.IDs))))
	defer span.End()

	n, err := h.svc.BulkDelete(ctx, payload.IDs)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.BulkDeletedResponse{Deleted: n}).Build()
}

// bindAndValidate decodes the JSON body and runs struct validation. Malformed bodies and
// failed rules are both unprocessable.
func bindAndValidate(c echo.Context, payload any) error {
	if err := c.Bind(payload); err != nil {
		return errorbank.Unprocessable("invalid request body", errorbank.WithCause(err))
	}
	if err := c.Validate(payload); err != nil {
		if errorbank.IsKind(err, errorbank.KindUnprocessableEntity) {
			return err
		}
		return errorbank.Unprocessable("validation error", errorbank.WithCause(err))
	}
	return nil
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errorbank.Unprocessable("invalid order id",
			errorbank.WithDetail("fields", map[string]any{"id": "must be an integer"}))
	}
	return id, nil
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errorbank.Unprocessable("invalid query parameter",
			errorbank.WithDetail("fields", map[string]any{name: "must be a non-negative integer"}))
	}
	return v, nil
}
