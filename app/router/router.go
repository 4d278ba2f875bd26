package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/djrag/backend-go/app/controllers"
	"github.com/djrag/backend-go/app/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)
	web.InsertFilter("/*", web.BeforeRouter, middleware.MetricsBefore)
	web.InsertFilter("/*", web.FinishRouter, middleware.MetricsAfter, web.WithReturnOnOutput(false))

	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Handler("/metrics", promhttp.Handler())

	sessionController := &controllers.SessionController{}
	web.Router("/sessions", sessionController, "post:Create;get:List")
	web.Router("/sessions/:id", sessionController, "delete:Delete")
	web.Router("/sessions/:id/messages", sessionController, "get:Messages")
	web.Router("/sessions/:id/chat", sessionController, "post:Chat")
	web.Router("/sessions/:id/upload", sessionController, "post:Upload")
}
