package controllers

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rentaride/rentaride-backend/api/responses"
	"github.com/rentaride/rentaride-backend/api/validators"
	"github.com/rentaride/rentaride-backend/internal/bookings"
	"github.com/rentaride/rentaride-backend/internal/payments"
	"github.com/rentaride/rentaride-backend/pkg/config"
	"github.com/rentaride/rentaride-backend/pkg/enums"
	pkgerrors "github.com/rentaride/rentaride-backend/pkg/errors"
	"github.com/rentaride/rentaride-backend/pkg/esewa"
	"github.com/rentaride/rentaride-backend/pkg/logger"
)

// gatewayFormTemplate renders the browser-side auto-submit hop to the
// gateway for clients that asked for HTML instead of JSON.
var gatewayFormTemplate = template.Must(template.New("gateway-form").Parse(`<!DOCTYPE html>
<html>
<head><title>Redirecting to eSewa…</title></head>
<body onload="document.forms[0].submit()">
<form action="{{.PaymentURL}}" method="POST">
{{- range $name, $value := .Fields }}
<input type="hidden" name="{{$name}}" value="{{$value}}">
{{- end }}
<noscript><button type="submit">Continue to eSewa</button></noscript>
</form>
</body>
</html>`))

// PaymentInitiate starts a payment attempt and returns the signed gateway
// form, as JSON by default or as an auto-submitting HTML page when asked.
func PaymentInitiate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input payments.InitiateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if wantsHTML(r) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := gatewayFormTemplate.Execute(w, result); err != nil {
				logg.Error(r.Context(), "render gateway form", err)
			}
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PaymentSuccess is the gateway's success-redirect target. The payload only
// points at a transaction; the reconciler re-verifies before trusting it.
func PaymentSuccess(svc payments.Service, frontend config.FrontendConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := esewa.DecodeCallback(r.URL.Query().Get("data"))
		if err != nil {
			logg.Warn(r.Context(), fmt.Sprintf("rejecting malformed success callback: %v", err))
			redirect(w, r, frontend.FailureURL, url.Values{"error": {"invalid_payload"}})
			return
		}

		transactionID, err := uuid.Parse(payload.TransactionUUID)
		if err != nil {
			logg.Warn(r.Context(), "success callback carried a malformed transaction id")
			redirect(w, r, frontend.FailureURL, url.Values{"error": {"invalid_payload"}})
			return
		}

		outcome, err := svc.Reconcile(r.Context(), transactionID, payload.TransactionCode)
		if err != nil {
			// Verification could not settle the transaction; it stays
			// pending and the status page can retry.
			logg.Error(r.Context(), "success callback reconciliation failed", err)
			redirect(w, r, frontend.FailureURL, url.Values{
				"transactionId": {transactionID.String()},
				"status":        {string(enums.TransactionStatusPending)},
			})
			return
		}

		params := url.Values{
			"transactionId": {transactionID.String()},
			"status":        {string(outcome.Transaction.Status)},
		}
		if outcome.Transaction.Status == enums.TransactionStatusCompleted {
			if outcome.Booking != nil {
				params.Set("bookingReference", outcome.Booking.Reference)
			}
			redirect(w, r, frontend.SuccessURL, params)
			return
		}
		redirect(w, r, frontend.FailureURL, params)
	}
}

// PaymentFailure is the gateway's explicit-cancellation redirect target.
func PaymentFailure(svc payments.Service, frontend config.FrontendConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.URL.Query().Get("transaction_uuid"))
		transactionID, err := uuid.Parse(raw)
		if err != nil {
			redirect(w, r, frontend.FailureURL, url.Values{"error": {"missing_transaction"}})
			return
		}

		txn, err := svc.HandleFailureCallback(r.Context(), transactionID)
		if err != nil {
			// Completed transactions never downgrade; send those to the
			// success page instead of reporting a cancellation.
			if current, lookupErr := svc.GetTransaction(r.Context(), transactionID); lookupErr == nil &&
				current.Status == enums.TransactionStatusCompleted {
				redirect(w, r, frontend.SuccessURL, url.Values{
					"transactionId": {transactionID.String()},
					"status":        {string(current.Status)},
				})
				return
			}
			logg.Warn(r.Context(), fmt.Sprintf("failure callback could not fail transaction: %v", err))
			redirect(w, r, frontend.FailureURL, url.Values{
				"transactionId": {transactionID.String()},
				"status":        {string(enums.TransactionStatusFailed)},
			})
			return
		}

		redirect(w, r, frontend.FailureURL, url.Values{
			"transactionId": {transactionID.String()},
			"status":        {string(txn.Status)},
		})
	}
}

type paymentStatusResponse struct {
	Transaction payments.TransactionResponse `json:"transaction"`
	Booking     *bookings.BookingResponse    `json:"booking,omitempty"`
}

// PaymentStatus reports the current ledger state for a transaction. A
// pending transaction gets one reconciliation pass first, so polling this
// endpoint is the standalone verification entry point.
func PaymentStatus(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactionID, err := uuid.Parse(chi.URLParam(r, "transactionUUID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction id"))
			return
		}

		outcome, err := svc.Reconcile(r.Context(), transactionID, "")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := paymentStatusResponse{
			Transaction: payments.ToTransactionResponse(outcome.Transaction),
		}
		if outcome.Booking != nil {
			view := bookings.ToBookingResponse(outcome.Booking)
			payload.Booking = &view
		}
		responses.WriteSuccess(w, payload)
	}
}

func wantsHTML(r *http.Request) bool {
	if r.URL.Query().Get("format") == "html" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func redirect(w http.ResponseWriter, r *http.Request, base string, params url.Values) {
	target := base
	if encoded := params.Encode(); encoded != "" {
		separator := "?"
		if strings.Contains(base, "?") {
			separator = "&"
		}
		target = base + separator + encoded
	}
	http.Redirect(w, r, target, http.StatusFound)
}
