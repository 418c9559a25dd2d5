package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"tablebook/src/lifecycle"
	"tablebook/src/logger"
	"tablebook/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// stripeWebhookRoute completes paid table changes when Stripe reports the
// charge succeeded. A business rejection refunds the charge and is
// acknowledged so Stripe stops retrying; gateway and storage failures are not.
func stripeWebhookRoute(g *gin.Engine, engine *lifecycle.Engine, secret string) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		log := logger.Get()
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Error().Err(err).Msg("error reading webhook body")
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		event, err := webhook.ConstructEventWithOptions(payload, ctx.GetHeader("Stripe-Signature"), secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			log.Warn().Err(err).Msg("error verifying webhook signature")
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Info().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("[StripeEvent]")

		if event.Type != stripe.EventTypePaymentIntentSucceeded {
			ctx.Status(http.StatusOK)
			return
		}
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Error().Err(err).Msg("error parsing PaymentIntent")
			ctx.Status(http.StatusBadRequest)
			return
		}
		if pi.Metadata[types.MetaPurpose] != types.PurposeTableChange {
			ctx.Status(http.StatusOK)
			return
		}
		id, err := uuid.Parse(pi.Metadata[types.MetaReservationID])
		if err != nil {
			log.Warn().Str("charge_id", pi.ID).Msg("table change charge without reservation id")
			ctx.Status(http.StatusOK)
			return
		}
		tableID, err := strconv.ParseUint(pi.Metadata[types.MetaTableID], 10, 64)
		if err != nil {
			log.Warn().Str("charge_id", pi.ID).Msg("table change charge without table id")
			ctx.Status(http.StatusOK)
			return
		}

		res, err := engine.ChangeTable(ctx, lifecycle.ChangeTableInput{
			ReservationID:    id,
			NewTableID:       uint(tableID),
			PaymentReference: pi.ID,
		})
		if err != nil {
			status := errorStatus(err)
			log.Warn().Err(err).Str("charge_id", pi.ID).Str("reservation_id", id.String()).Msg("table change from webhook rejected")
			if status >= http.StatusInternalServerError || errors.Is(err, types.ErrStatusConflict) {
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			// The guest paid for a move that will not happen.
			refund, rerr := engine.RefundUnappliedCharge(ctx, id, pi.ID)
			if rerr != nil {
				log.Error().Err(rerr).Str("charge_id", pi.ID).Msg("error refunding unapplied charge")
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			body := gin.H{"outcome": "rejected", "code": types.ErrorCode(err)}
			if refund != nil {
				body["refund_status"] = refund.Status
			}
			ctx.JSON(http.StatusOK, body)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"outcome": res.Outcome})
	})
	return apiv1
}
