package controllers

import (
	"net/http"

	"github.com/bawabati/bawabati-backend/api/responses"
	"github.com/bawabati/bawabati-backend/api/validators"
	"github.com/bawabati/bawabati-backend/internal/luckybox"
	pkgerrors "github.com/bawabati/bawabati-backend/pkg/errors"
	"github.com/bawabati/bawabati-backend/pkg/logger"
)

// LuckyBoxList returns boxes currently open for claims.
func LuckyBoxList(svc luckybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lucky box service unavailable"))
			return
		}

		boxes, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": boxes})
	}
}

// LuckyBoxListAll returns every box, active or not. Admin only.
func LuckyBoxListAll(svc luckybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lucky box service unavailable"))
			return
		}

		boxes, err := svc.ListAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": boxes})
	}
}

// LuckyBoxClaim draws a prize from a box for the caller.
func LuckyBoxClaim(svc luckybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lucky box service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		boxID, err := pathUUID(r, "boxId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Claim(r.Context(), actor.ID, boxID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// LuckyBoxWins lists the caller's past wins.
func LuckyBoxWins(svc luckybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lucky box service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wins, err := svc.ListWins(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": wins})
	}
}

// LuckyBoxCreate adds a new box. Admin only.
func LuckyBoxCreate(svc luckybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lucky box service unavailable"))
			return
		}

		var body luckybox.UpsertBoxRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		box, err := svc.Create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, box)
	}
}

// LuckyBoxUpdate edits an existing box. Admin only.
func LuckyBoxUpdate(svc luckybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lucky box service unavailable"))
			return
		}

		boxID, err := pathUUID(r, "boxId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body luckybox.UpsertBoxRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		box, err := svc.Update(r.Context(), boxID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, box)
	}
}

// LuckyBoxDeactivate closes a box to further claims. Admin only.
func LuckyBoxDeactivate(svc luckybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lucky box service unavailable"))
			return
		}

		boxID, err := pathUUID(r, "boxId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), boxID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}
