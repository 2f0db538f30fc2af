// Package contracts holds the interfaces the service binaries are assembled from.
package contracts

import "github.com/julienschmidt/httprouter"

// Handler is one service's HTTP surface. app.Application mounts it behind
// the shared middleware chain, next to /health and /ready.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}
