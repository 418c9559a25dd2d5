package main

import (
	"errors"
	"net/http"

	"tablebook/src/lifecycle"
	"tablebook/src/logger"
	"tablebook/src/middlewares"
	"tablebook/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// errorStatus maps engine errors onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrAlreadyCancelled),
		errors.Is(err, types.ErrAlreadyCheckedIn),
		errors.Is(err, types.ErrTableUnavailable),
		errors.Is(err, types.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidPayment),
		errors.Is(err, types.ErrPaymentIncomplete),
		errors.Is(err, types.ErrMetadataMismatch):
		return http.StatusPaymentRequired
	case errors.Is(err, types.ErrNoPaymentOnFile),
		errors.Is(err, types.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrRefundFailed),
		errors.Is(err, types.ErrGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func abortWithError(ctx *gin.Context, err error) {
	status := errorStatus(err)
	body := gin.H{"error": err.Error(), "code": types.ErrorCode(err)}
	var checkedIn *types.AlreadyCheckedInError
	if errors.As(err, &checkedIn) {
		body["checked_in_by"] = checkedIn.CheckedInBy
		body["checked_in_at"] = checkedIn.CheckedInAt
	}
	if status == http.StatusInternalServerError {
		logger.Get().Error().Err(err).Str("path", ctx.FullPath()).Msg("request failed")
		body["error"] = "something went wrong"
	}
	ctx.AbortWithStatusJSON(status, body)
}

func badRequest(ctx *gin.Context, err error) {
	ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": types.ErrorCode(types.ErrInvalidRequest)})
}

func reservationID(ctx *gin.Context) (uuid.UUID, bool) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		badRequest(ctx, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(params.ID), true
}

func reservationHandlers(g *gin.RouterGroup, engine *lifecycle.Engine) *gin.RouterGroup {
	staffOnly := middlewares.RequireRole(types.ROLE_STAFF, types.ROLE_ADMIN)

	g.
		POST("/reservations", staffOnly, func(ctx *gin.Context) {
			var body types.CreateReservationRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			r, err := engine.Create(ctx, lifecycle.CreateInput{
				EventID:     body.EventID,
				TableID:     body.TableID,
				UserID:      body.UserID,
				GuestName:   body.GuestName,
				GuestEmail:  body.GuestEmail,
				PaymentID:   body.PaymentID,
				TotalAmount: body.TotalAmount,
			})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": r})
		}).
		GET("/reservations/:id", func(ctx *gin.Context) {
			id, ok := reservationID(ctx)
			if !ok {
				return
			}
			r, err := engine.Get(ctx, id)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			if r.UserID != ctx.GetUint("id") && !middlewares.IsStaff(ctx) {
				abortWithError(ctx, types.ErrNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": r})
		}).
		GET("/users/:id/reservations", func(ctx *gin.Context) {
			var params types.UserRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				badRequest(ctx, err)
				return
			}
			if params.ID != ctx.GetUint("id") && !middlewares.IsStaff(ctx) {
				ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "code": "forbidden"})
				return
			}
			data, err := engine.ListForUser(ctx, params.ID)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		}).
		POST("/reservations/:id/cancel", staffOnly, func(ctx *gin.Context) {
			id, ok := reservationID(ctx)
			if !ok {
				return
			}
			var body types.CancelReservationRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			res, err := engine.Cancel(ctx, lifecycle.CancelInput{
				ReservationID: id,
				Reason:        body.Reason,
				RefundAmount:  body.RefundAmount,
				StaffName:     body.StaffName,
			})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": res})
		}).
		POST("/reservations/:id/change-table", func(ctx *gin.Context) {
			id, ok := reservationID(ctx)
			if !ok {
				return
			}
			var body types.ChangeTableRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				badRequest(ctx, err)
				return
			}
			staff := middlewares.IsStaff(ctx)
			if body.DeferPayment && !staff {
				ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "deferring payment requires staff", "code": "forbidden"})
				return
			}
			if !staff {
				r, err := engine.Get(ctx, id)
				if err != nil {
					abortWithError(ctx, err)
					return
				}
				if r.UserID != ctx.GetUint("id") {
					abortWithError(ctx, types.ErrNotFound)
					return
				}
			}
			res, err := engine.ChangeTable(ctx, lifecycle.ChangeTableInput{
				ReservationID:    id,
				NewTableID:       body.TableID,
				PaymentReference: body.PaymentReference,
				DeferPayment:     body.DeferPayment,
			})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": res})
		}).
		POST("/reservations/:id/check-in", staffOnly, func(ctx *gin.Context) {
			id, ok := reservationID(ctx)
			if !ok {
				return
			}
			var body types.CheckInRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil && ctx.Request.ContentLength > 0 {
				badRequest(ctx, err)
				return
			}
			r, err := engine.CheckIn(ctx, lifecycle.CheckInInput{ReservationID: id, StaffName: body.StaffName})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": r})
		}).
		POST("/reservations/:id/confirmation", staffOnly, func(ctx *gin.Context) {
			id, ok := reservationID(ctx)
			if !ok {
				return
			}
			var body types.SendConfirmationRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil && ctx.Request.ContentLength > 0 {
				badRequest(ctx, err)
				return
			}
			res, err := engine.SendConfirmation(ctx, id, body.ForceResend)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": res})
		})
	return g
}
