package echoapi

import (
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/user"
)

var errAsgNotFoundInCtx = errors.New("assignment object not found in echo.Context")

type assignmentApi struct {
	svc      assignment.Service
	batchSvc batch.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerAssignmentAPI(
	g *echo.Group,
	batchDetail *echo.Group,
	jwt echo.MiddlewareFunc,
	svc assignment.Service,
	batchSvc batch.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := assignmentApi{
		svc:      svc,
		batchSvc: batchSvc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	ag := g.Group("/assignments", jwt)
	ag.POST("", api.create, teacherOrAdminMiddleware())
	ag.GET("", api.query)

	// detail endpoints; the object middleware loads the assignment and its
	// batch and gates view access
	dg := ag.Group("/:id", assignmentObjectMiddleware(api.svc, api.batchSvc, api.usrSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/submit", api.submit)
	dg.PUT("/grade/:studentId", api.grade)

	// assignments of one batch; view access is enforced by the batch object middleware
	batchDetail.GET("/assignments", api.queryForBatch)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
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

	asg, err := api.svc.Create(data, formFiles(ctx, "attachments"), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	filter := new(assignment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []assignment.Assignment{})
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	scopeAssignmentFilter(filter, ctxUsr)

	ordering := new(Ordering)
	ordering.Bind(ctx)

	asgs, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) queryForBatch(ctx echo.Context) error {
	b, ok := ctx.Get("object").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving object from context")
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	asgs, err := api.svc.Query(&assignment.QueryFilter{BatchID: b.ID}, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

// retrieve returns the assignment with its submissions; students only get
// their own submission, teachers and admins get all of them.
func (api *assignmentApi) retrieve(ctx echo.Context) error {
	asg, ok := ctx.Get("object").(assignment.Assignment)
	if !ok {
		return errors.Wrap(errAsgNotFoundInCtx, "retrieving object from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if ctxUsr.IsAdmin() || ctxUsr.IsTeacher() {
		subs, err := api.svc.Submissions(asg.ID)
		if err != nil {
			return errors.Wrap(err, "querying submissions")
		}
		if subs == nil {
			subs = []assignment.Submission{}
		}
		asg.Submissions = subs
	} else {
		sub, err := api.svc.StudentSubmission(asg.ID, ctxUsr.ID)
		switch errors.Cause(err) {
		case nil:
			asg.Submissions = []assignment.Submission{sub}
		case assignment.ErrSubmissionNotFound:
			asg.Submissions = []assignment.Submission{}
		default:
			return errors.Wrap(err, "finding student submission")
		}
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	asg, ok := ctx.Get("object").(assignment.Assignment)
	if !ok {
		return errors.Wrap(errAsgNotFoundInCtx, "retrieving object from context")
	}
	b, ok := ctx.Get("batch").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving batch from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !batch.CanActOn(ctxUsr, b, batch.ActionManage) {
		return errHttpForbidden
	}

	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(asg, api.validate); err != nil {
		return err
	}

	asg, err = api.svc.Update(asg, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	asg, ok := ctx.Get("object").(assignment.Assignment)
	if !ok {
		return errors.Wrap(errAsgNotFoundInCtx, "retrieving object from context")
	}
	b, ok := ctx.Get("batch").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving batch from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !batch.CanActOn(ctxUsr, b, batch.ActionManage) {
		return errHttpForbidden
	}

	if err := api.svc.Delete(asg.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	asg, ok := ctx.Get("object").(assignment.Assignment)
	if !ok {
		return errors.Wrap(errAsgNotFoundInCtx, "retrieving object from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsStudent() {
		return errHttpForbidden
	}

	sub, err := api.svc.Submit(asg, formFiles(ctx, "files"), ctxUsr)
	if err != nil {
		if errors.Cause(err) == batch.ErrNotEnrolled {
			return errHttpForbidden
		}
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	asg, ok := ctx.Get("object").(assignment.Assignment)
	if !ok {
		return errors.Wrap(errAsgNotFoundInCtx, "retrieving object from context")
	}
	b, ok := ctx.Get("batch").(batch.Batch)
	if !ok {
		return errors.Wrap(errBatchNotFoundInCtx, "retrieving batch from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !batch.CanActOn(ctxUsr, b, batch.ActionRecord) {
		return errHttpForbidden
	}

	var data assignment.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(asg, api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Grade(asg, ctx.Param("studentId"), data, ctxUsr)
	if err != nil {
		if errors.Cause(err) == assignment.ErrSubmissionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// scopeAssignmentFilter pins the filter to the assignments ctxUsr may see.
// Admins see everything, teachers the assignments of their own batches,
// students those of the batches they are enrolled in.
func scopeAssignmentFilter(filter *assignment.QueryFilter, ctxUsr user.User) {
	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsTeacher():
		filter.TeacherID = ctxUsr.ID
	default:
		filter.StudentID = ctxUsr.ID
	}
}

// assignmentObjectMiddleware loads the assignment from the `id` path param,
// along with its batch, into the context and gates it behind batch view access.
func assignmentObjectMiddleware(svc assignment.Service, batchSvc batch.Service, usrSvc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			asg, err := svc.GetByID(ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == assignment.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding assignment by ID")
			}
			b, err := batchSvc.GetByID(asg.BatchID)
			if err != nil {
				if errors.Cause(err) == batch.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding batch by ID")
			}
			if !batch.CanActOn(ctxUsr, b, batch.ActionView) {
				return errHttpForbidden
			}
			ctx.Set("object", asg)
			ctx.Set("batch", b)
			return next(ctx)
		}
	}
}

// formFiles pulls the uploaded files under field from the multipart form, if
// any. Requests without a multipart body simply yield no files.
func formFiles(ctx echo.Context, field string) []*multipart.FileHeader {
	form, err := ctx.MultipartForm()
	if err != nil {
		return nil
	}
	return form.File[field]
}
