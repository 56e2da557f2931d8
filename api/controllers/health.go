package controllers

import (
	"context"
	"net/http"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/responses"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/config"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
)

const envHeader = "X-Nux-Env"

// Pinger is a backing store the readiness probe checks.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the backing stores and reports per-dependency status.
// A nil entry means the dependency is not configured for this deployment.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		status := map[string]string{}
		healthy := true
		for name, dep := range deps {
			if dep == nil {
				status[name] = "disabled"
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				status[name] = "down"
				healthy = false
				if logg != nil {
					logg.Error(r.Context(), "health."+name+".down", err)
				}
				continue
			}
			status[name] = "up"
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(status))
			return
		}
		responses.WriteSuccess(w, status)
	}
}
