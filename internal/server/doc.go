// Package server provides HTTP routing, middleware, and the handlers of the songzip web service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [MuxRouter] implementation uses gorilla/mux internally, giving method matching and path variables
// such as /jobs/{id}. [CORS] wraps the whole router so preflight requests are answered before routing.
//
// # Polling Routes
//
// The page at / and the /progress, /download, /list_tracks and /download_selected routes keep the
// single-job view of the service: they always act on the most recently started job.
//
// # Job Routes
//
// Every job also has its own routes under /jobs/{id}: snapshot, per-song report (json, text, markdown or csv),
// archive download and cancellation via DELETE.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// [HealthHandler] is registered this way.
package server
