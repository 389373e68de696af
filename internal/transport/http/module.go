package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/Additional-Code/orderdesk/internal/transport/http/order"
)

// Module aggregates the HTTP resource handlers mounted on the shared echo router.
var Module = fx.Module("http_transport",
	ordertransport.Module,
)
