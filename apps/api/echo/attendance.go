package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/user"
)

var errAttNotFoundInCtx = errors.New("attendance object not found in echo.Context")

type attendanceApi struct {
	svc      attendance.Service
	batchSvc batch.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	batchDetail *echo.Group,
	jwt echo.MiddlewareFunc,
	svc attendance.Service,
	batchSvc batch.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := attendanceApi{
		svc:      svc,
		batchSvc: batchSvc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	ag := g.Group("/attendance", jwt)
	ag.POST("", api.create, teacherOrAdminMiddleware())
	ag.POST("/mark", api.bulkMark, teacherOrAdminMiddleware())
	ag.GET("", api.query)
	ag.GET("/summary/student/:studentId/batch/:batchId", api.summary)

	// detail endpoints; only the original marker or an admin may act on a record
	dg := ag.Group("/:id", attendanceObjectMiddleware(api.svc, api.usrSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)

	// records of one batch; view access is enforced by the batch object middleware
	batchDetail.GET("/attendance", api.queryForBatch)
}

// Handlers

func (api *attendanceApi) create(ctx echo.Context) error {
	var data attendance.NewAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttendance")
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

	rec, err := api.svc.Create(data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) bulkMark(ctx echo.Context) error {
	var data attendance.BulkMark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkMark")
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

	res, err := api.svc.BulkMark(data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "bulk marking attendance")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Attendance{})
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	scopeAttendanceFilter(filter, ctxUsr)

	ordering := new(Ordering)
	ordering.Bind(ctx)

	records, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if records == nil {
		records = []attendance.Attendance{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) queryForBatch(ctx echo.Context) error {
	b, ok := ctx.Get("object").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving object from context")
	}

	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Attendance{})
	}
	filter.BatchID = b.ID

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// enrolled students only see their own records
	if !ctxUsr.IsAdmin() && !ctxUsr.IsTeacher() {
		filter.StudentID = ctxUsr.ID
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	records, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if records == nil {
		records = []attendance.Attendance{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	rec, ok := ctx.Get("object").(attendance.Attendance)
	if !ok {
		return errors.Wrap(errAttNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) update(ctx echo.Context) error {
	rec, ok := ctx.Get("object").(attendance.Attendance)
	if !ok {
		return errors.Wrap(errAttNotFoundInCtx, "retrieving object from context")
	}

	var data attendance.UpdateAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAttendance")
	}
	if err := data.Validate(rec, api.validate); err != nil {
		return err
	}

	rec, err := api.svc.Update(rec, data)
	if err != nil {
		return errors.Wrap(err, "updating attendance")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	rec, ok := ctx.Get("object").(attendance.Attendance)
	if !ok {
		return errors.Wrap(errAttNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(rec.ID); err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) summary(ctx echo.Context) error {
	studentID := ctx.Param("studentId")
	batchID := ctx.Param("batchId")

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.ID != studentID && !ctxUsr.IsAdmin() {
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

	sum, err := api.svc.Summary(studentID, batchID)
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	return ctx.JSON(http.StatusOK, sum)
}

// scopeAttendanceFilter pins the filter to the records ctxUsr may see.
// Admins see everything, teachers the records of their own batches, students
// their own records.
func scopeAttendanceFilter(filter *attendance.QueryFilter, ctxUsr user.User) {
	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsTeacher():
		filter.TeacherID = ctxUsr.ID
	default:
		filter.StudentID = ctxUsr.ID
	}
}

// attendanceObjectMiddleware loads the record from the `id` path param into
// the context; only the original marker or an admin may act on it.
func attendanceObjectMiddleware(svc attendance.Service, usrSvc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			rec, err := svc.GetByID(ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == attendance.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding attendance by ID")
			}
			if !ctxUsr.IsAdmin() && rec.MarkedBy.String != ctxUsr.ID {
				return errHttpForbidden
			}
			ctx.Set("object", rec)
			return next(ctx)
		}
	}
}
