package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/echoscribehq/echoscribe/app/controllers"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Controllers carries the request handlers the routers need. Everything is
// constructed at startup and injected; no package-level instances.
type Controllers struct {
	Webhook *controllers.WebhookController
	Upload  *controllers.APIUploadController
	Usage   *controllers.APIUsageController
}

// InstallRouter registers all HTTP routes.
func InstallRouter(app *fiber.App, ctrl Controllers) {
	setup(app, NewWebhookRouter(ctrl.Webhook), NewApiRouter(ctrl.Upload, ctrl.Usage))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
