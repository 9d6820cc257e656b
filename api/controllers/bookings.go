package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rentaride/rentaride-backend/api/responses"
	"github.com/rentaride/rentaride-backend/api/validators"
	"github.com/rentaride/rentaride-backend/internal/bookings"
	pkgerrors "github.com/rentaride/rentaride-backend/pkg/errors"
	"github.com/rentaride/rentaride-backend/pkg/logger"
)

// BookingCreateFromTransaction materializes the booking for a completed
// transaction. Calling it again for the same transaction is safe: the
// existing booking comes back with a conflict status instead of a duplicate.
func BookingCreateFromTransaction(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input bookings.CreateFromTransactionInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, created, err := svc.CreateFromTransaction(r.Context(), input.TransactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !created {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeConflict, "booking already exists for this transaction").
					WithDetails(bookings.ToBookingResponse(booking)))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bookings.ToBookingResponse(booking))
	}
}

// BookingByTransaction looks up the booking materialized for a transaction.
func BookingByTransaction(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction id"))
			return
		}

		booking, err := svc.GetByTransactionID(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookings.ToBookingResponse(booking))
	}
}

// BookingByReference looks up a booking by its customer-facing reference.
func BookingByReference(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		booking, err := svc.GetByReference(r.Context(), chi.URLParam(r, "reference"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookings.ToBookingResponse(booking))
	}
}

const (
	defaultBookingsLimit = 50
	maxBookingsLimit     = 200
)

// BookingsByUser lists a user's bookings, newest first. An optional `limit`
// query parameter caps the page size.
func BookingsByUser(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultBookingsLimit, 1, maxBookingsLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByUser(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookings.ToBookingResponses(rows))
	}
}

// BookingCancelRequest records a customer's cancellation request against an
// active booking.
func BookingCancelRequest(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input bookings.CancelRequestInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reason := validators.SanitizeString(input.Reason, 500)
		booking, err := svc.RequestCancellation(r.Context(), chi.URLParam(r, "reference"), reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookings.ToBookingResponse(booking))
	}
}

// BookingCancelDecision settles a pending cancellation request.
func BookingCancelDecision(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input bookings.CancelDecisionInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.DecideCancellation(r.Context(), chi.URLParam(r, "reference"), input.Approve, input.DecidedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookings.ToBookingResponse(booking))
	}
}
