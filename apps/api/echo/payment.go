package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/payment"
	"github.com/trezcool/darasa/core/user"
)

var errPmtNotFoundInCtx = errors.New("payment object not found in echo.Context")

type paymentApi struct {
	svc      payment.Service
	batchSvc batch.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerPaymentAPI(
	g *echo.Group,
	batchDetail *echo.Group,
	jwt echo.MiddlewareFunc,
	svc payment.Service,
	batchSvc batch.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := paymentApi{
		svc:      svc,
		batchSvc: batchSvc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	pg := g.Group("/payments")

	// un-authed gateway callback; authenticated by its signature instead
	pg.POST("/notify", api.notify)

	// authed endpoints
	ag := pg.Group("", jwt)
	ag.POST("", api.create, teacherOrAdminMiddleware())
	ag.GET("", api.query)
	ag.GET("/summary/student/:studentId", api.summary)

	// detail endpoints
	dg := ag.Group("/:id", paymentObjectMiddleware(api.svc, api.batchSvc, api.usrSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())

	// payments of one batch; view access is enforced by the batch object middleware
	batchDetail.GET("/payments", api.queryForBatch)
}

// Handlers

func (api *paymentApi) create(ctx echo.Context) error {
	var data payment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	b, err := api.batchSvc.GetByID(data.BatchID)
	if err != nil {
		if errors.Cause(err) == batch.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "batch_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding batch by ID")
	}
	if !batch.CanActOn(ctxUsr, b, batch.ActionRecord) {
		return errHttpForbidden
	}

	pmt, err := api.svc.Create(data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}

// notify handles the gateway's server-to-server callback about an order.
func (api *paymentApi) notify(ctx echo.Context) error {
	var data payment.Notification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Notification")
	}

	if _, err := api.svc.HandleNotification(data); err != nil {
		if errors.Cause(err) == payment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "handling payment notification")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "OK"})
}

func (api *paymentApi) query(ctx echo.Context) error {
	filter := new(payment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []payment.Payment{})
	}
	filter.Clean()

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	scopePaymentFilter(filter, ctxUsr)

	ordering := new(Ordering)
	ordering.Bind(ctx)

	pmts, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if pmts == nil {
		pmts = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, pmts)
}

func (api *paymentApi) queryForBatch(ctx echo.Context) error {
	b, ok := ctx.Get("object").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving object from context")
	}

	filter := new(payment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []payment.Payment{})
	}
	filter.Clean()
	filter.BatchID = b.ID

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// enrolled students only see their own payments
	if !ctxUsr.IsAdmin() && !ctxUsr.IsTeacher() {
		filter.StudentID = ctxUsr.ID
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	pmts, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if pmts == nil {
		pmts = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, pmts)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	pmt, ok := ctx.Get("object").(payment.Payment)
	if !ok {
		return errors.Wrap(errPmtNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *paymentApi) update(ctx echo.Context) error {
	pmt, ok := ctx.Get("object").(payment.Payment)
	if !ok {
		return errors.Wrap(errPmtNotFoundInCtx, "retrieving object from context")
	}

	var data payment.UpdatePayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePayment")
	}
	if err := data.Validate(pmt, api.validate); err != nil {
		return err
	}

	pmt, err := api.svc.Update(pmt, data)
	if err != nil {
		return errors.Wrap(err, "updating payment")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *paymentApi) destroy(ctx echo.Context) error {
	pmt, ok := ctx.Get("object").(payment.Payment)
	if !ok {
		return errors.Wrap(errPmtNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(pmt.ID); err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// summary reports a student's payment standing, optionally narrowed to one
// batch via the `batch_id` query param.
func (api *paymentApi) summary(ctx echo.Context) error {
	studentID := ctx.Param("studentId")
	batchID := ctx.QueryParam("batch_id")

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.ID != studentID && !ctxUsr.IsAdmin() {
		// a teacher may check a student's standing within their own batch
		if batchID == "" {
			return errHttpForbidden
		}
		b, err := api.batchSvc.GetByID(batchID)
		if err != nil {
			if errors.Cause(err) == batch.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding batch by ID")
		}
		if !batch.CanActOn(ctxUsr, b, batch.ActionRecord) {
			return errHttpForbidden
		}
	}

	sum, err := api.svc.StudentSummary(studentID, batchID)
	if err != nil {
		if errors.Cause(err) == batch.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "summarizing payments")
	}
	return ctx.JSON(http.StatusOK, sum)
}

// scopePaymentFilter pins the filter to the payments ctxUsr may see.
// Admins see everything, teachers the payments of their own batches, students
// their own payments.
func scopePaymentFilter(filter *payment.QueryFilter, ctxUsr user.User) {
	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsTeacher():
		filter.TeacherID = ctxUsr.ID
	default:
		filter.StudentID = ctxUsr.ID
	}
}

// paymentObjectMiddleware loads the payment from the `id` path param into the
// context; the paying student, the batch's teacher and admins may see it.
func paymentObjectMiddleware(svc payment.Service, batchSvc batch.Service, usrSvc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			pmt, err := svc.GetByID(ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == payment.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding payment by ID")
			}
			if !ctxUsr.IsAdmin() && pmt.StudentID != ctxUsr.ID {
				b, err := batchSvc.GetByID(pmt.BatchID)
				if err != nil {
					if errors.Cause(err) == batch.ErrNotFound {
						return errHttpForbidden
					}
					return errors.Wrap(err, "finding batch by ID")
				}
				if !batch.CanActOn(ctxUsr, b, batch.ActionRecord) {
					return errHttpForbidden
				}
			}
			ctx.Set("object", pmt)
			return next(ctx)
		}
	}
}
