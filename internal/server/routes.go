package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/actrec/internal/api/v1"
	"github.com/gosuda/actrec/internal/api/ws"
)

func registerReaderRoutes(api huma.API, deps Deps) {
	v1.RegisterLogRoutes(api, deps.Store)
	v1.RegisterMessageRoutes(api, deps.Decoder, deps.Dispatcher)
}

func registerProducerRoutes(api huma.API, deps Deps) {
	v1.RegisterEventRoutes(api, deps.Decoder, deps.Sink, deps.Observer)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/ingest", hub.ServeIngest)
	r.Get("/tail", hub.ServeTail)
}
