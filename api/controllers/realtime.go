package controllers

import (
	"errors"
	"net/http"

	"github.com/thalibox/marketplace-backend/api/middleware"
	"github.com/thalibox/marketplace-backend/api/responses"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/realtime"
)

// RealtimeConnect upgrades an authenticated request to the hub's WebSocket
// channel. Group membership is derived from the token and fixed for the life
// of the connection.
func RealtimeConnect(hub *realtime.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotConfigured, "realtime unavailable"))
			return
		}
		userID, role, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = hub.ServeWS(w, r, realtime.Identity{UserID: userID, Role: role})
		switch {
		case err == nil:
		case errors.Is(err, realtime.ErrHubClosed):
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "realtime shutting down"))
		case logg != nil:
			// the upgrader has already answered the client
			logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "realtime.connect_failed")
		}
	}
}
