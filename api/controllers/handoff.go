package controllers

import (
	"net/http"

	"github.com/bawabati/bawabati-backend/api/responses"
	"github.com/bawabati/bawabati-backend/api/validators"
	"github.com/bawabati/bawabati-backend/internal/handoff"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	pkgerrors "github.com/bawabati/bawabati-backend/pkg/errors"
	"github.com/bawabati/bawabati-backend/pkg/logger"
)

// handoffProofBody carries the proof submitted by the receiving party. The
// order and phase come from the route, so the body only holds the secret.
type handoffProofBody struct {
	OTP     string `json:"otp,omitempty"`
	QRToken string `json:"qr_token,omitempty"`
}

// HandoffIssueCodes mints a fresh OTP/QR pair for the given phase. Reissuing
// invalidates any previously issued pair for that phase.
func HandoffIssueCodes(svc handoff.Service, phase enums.HandoffPhase, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "handoff service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.IssueCodes(r.Context(), actor, orderID, phase)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// HandoffVerify checks a submitted proof and, on success, completes the
// handoff. A failed check returns 200 with verified=false so clients can
// distinguish a wrong code from a request error.
func HandoffVerify(svc handoff.Service, phase enums.HandoffPhase, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "handoff service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body handoffProofBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), actor, handoff.VerifyRequest{
			OrderID: orderID,
			Phase:   phase,
			OTP:     body.OTP,
			QRToken: body.QRToken,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// HandoffManualComplete records an admin override for a stuck handoff.
func HandoffManualComplete(svc handoff.Service, logg *logger.Logger) http.HandlerFunc {
	type manualBody struct {
		Phase enums.HandoffPhase `json:"phase" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "handoff service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body manualBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ManualComplete(r.Context(), actor, orderID, body.Phase)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// HandoffHistory lists completed handoffs for an order.
func HandoffHistory(svc handoff.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "handoff service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		audits, err := svc.History(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": audits})
	}
}
