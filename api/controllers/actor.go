package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bawabati/bawabati-backend/api/middleware"
	"github.com/bawabati/bawabati-backend/internal/orders"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	pkgerrors "github.com/bawabati/bawabati-backend/pkg/errors"
)

// actorFromRequest resolves the authenticated actor seeded by the auth middleware.
func actorFromRequest(r *http.Request) (orders.Actor, error) {
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing role context")
	}
	return orders.Actor{ID: userID, Role: role}, nil
}

// pathUUID parses a uuid route parameter.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
